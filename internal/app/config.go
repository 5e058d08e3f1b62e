package app

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	StorageDriverFilesystem = "filesystem"
	StorageDriverS3         = "s3"
)

type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

type RabbitConfig struct {
	Address  string `yaml:"address"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type ConsulConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Scheme  string `yaml:"scheme"`
}

type CredlyConfig struct {
	SdkUrl string `yaml:"sdkUrl"`
	// fallback when no key was saved through the settings api
	ApiKey              string        `yaml:"apiKey"`
	Timeout             time.Duration `yaml:"timeout"`
	AllowedImageHosts   []string      `yaml:"allowedImageHosts"`
	AllowInsecureImages bool          `yaml:"allowInsecureImages"`
	MaxImageBytes       int64         `yaml:"maxImageBytes"`
	RequestsPerSecond   float64       `yaml:"requestsPerSecond"`
	Burst               int           `yaml:"burst"`
	// extra css classes on the builder link, themes hook their styles onto them
	LinkClasses []string `yaml:"linkClasses"`
}

type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"accessKeyId"`
	SecretAccessKey string `yaml:"secretAccessKey"`
	UsePathStyle    bool   `yaml:"usePathStyle"`
}

type StorageConfig struct {
	Driver    string   `yaml:"driver"`
	Path      string   `yaml:"path"`
	PublicUrl string   `yaml:"publicUrl"`
	KeyPrefix string   `yaml:"keyPrefix"`
	S3        S3Config `yaml:"s3"`
}

type AuthConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
}

type Config struct {
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	Scheme   string `yaml:"scheme"`
	LogLevel string `yaml:"logLevel"`

	Mongo   MongoConfig   `yaml:"mongo"`
	Rabbit  RabbitConfig  `yaml:"rabbit"`
	Consul  ConsulConfig  `yaml:"consul"`
	Credly  CredlyConfig  `yaml:"credly"`
	Storage StorageConfig `yaml:"storage"`
	Auth    AuthConfig    `yaml:"auth"`

	// post types that get the badge builder link in their featured image metabox
	AchievementTypes []string `yaml:"achievementTypes"`
}

func defaultConfig() Config {
	return Config{
		Port:     9899,
		Name:     "default",
		Scheme:   "http",
		LogLevel: "info",
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "cms",
		},
		Rabbit: RabbitConfig{
			Address:  "localhost",
			Port:     5672,
			Username: "guest",
			Password: "guest",
		},
		Consul: ConsulConfig{
			Enabled: true,
			Address: "localhost",
			Port:    8500,
			Scheme:  "http",
		},
		Credly: CredlyConfig{
			SdkUrl:            "https://credly.com/badge-builder/",
			Timeout:           15 * time.Second,
			AllowedImageHosts: []string{"credly.com"},
			MaxImageBytes:     10 << 20,
			RequestsPerSecond: 5,
			Burst:             5,
		},
		Storage: StorageConfig{
			Driver:    StorageDriverFilesystem,
			Path:      "/var/lib/badge-builder/uploads",
			PublicUrl: "http://localhost:9899/uploads",
			KeyPrefix: "badges",
		},
		AchievementTypes: []string{"achievement", "badge"},
	}
}

// Load reads the config file given with -config, then .env and the environment, then the remaining flags.
func Load(args []string) (Config, error) {
	fs := flag.NewFlagSet("badge-builder", flag.ContinueOnError)

	configPath := fs.String("config", "", "Path to a YAML config file")
	port := fs.Int("port", 0, "Server port to listen on")

	err := fs.Parse(args)
	if err != nil {
		return Config{}, err
	}

	cfg := defaultConfig()

	if *configPath != "" {
		content, err := os.ReadFile(*configPath)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file %s: %w", *configPath, err)
		}

		err = yaml.Unmarshal(content, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to parse config file %s: %w", *configPath, err)
		}
	}

	// a missing .env file is fine
	_ = godotenv.Load()

	err = applyEnv(&cfg)
	if err != nil {
		return Config{}, err
	}

	if *port != 0 {
		cfg.Port = *port
	}

	return cfg, cfg.validate()
}

func applyEnv(cfg *Config) error {
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.Mongo.URI, "MONGO_URI")
	setString(&cfg.Rabbit.Password, "RABBIT_PASSWORD")
	setString(&cfg.Credly.ApiKey, "CREDLY_API_KEY")
	setString(&cfg.Credly.SdkUrl, "CREDLY_SDK_URL")
	setString(&cfg.Auth.Token, "AUTH_BEARER_TOKEN")
	setString(&cfg.Storage.S3.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.Storage.S3.SecretAccessKey, "S3_SECRET_ACCESS_KEY")

	if value := os.Getenv("AUTH_ENABLED"); value != "" {
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid AUTH_ENABLED: %w", err)
		}

		cfg.Auth.Enabled = enabled
	}

	return nil
}

func setString(target *string, key string) {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		*target = value
	}
}

func (c Config) validate() error {
	if c.Port <= 0 {
		return fmt.Errorf("invalid port %d", c.Port)
	}

	sdkUrl, err := url.Parse(c.Credly.SdkUrl)
	if err != nil || sdkUrl.Host == "" {
		return fmt.Errorf("invalid credly sdk url %q", c.Credly.SdkUrl)
	}

	if c.Credly.Timeout <= 0 {
		return errors.New("credly timeout must be greater than 0")
	}

	if c.Auth.Enabled && c.Auth.Token == "" {
		return errors.New("an auth token is required when auth is enabled")
	}

	switch c.Storage.Driver {
	case StorageDriverFilesystem:
		if c.Storage.Path == "" {
			return errors.New("storage path is required for the filesystem driver")
		}
	case StorageDriverS3:
		if c.Storage.S3.Bucket == "" {
			return errors.New("s3 bucket is required for the s3 driver")
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", c.Storage.Driver)
	}

	return nil
}
