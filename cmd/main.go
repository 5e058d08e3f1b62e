package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/egfanboy/badge-builder/internal/app"
	"github.com/egfanboy/badge-builder/internal/auth"
	"github.com/egfanboy/badge-builder/internal/badge"
	"github.com/egfanboy/badge-builder/internal/consul"
	"github.com/egfanboy/badge-builder/internal/credly"
	"github.com/egfanboy/badge-builder/internal/health"
	"github.com/egfanboy/badge-builder/internal/media"
	"github.com/egfanboy/badge-builder/internal/meta"
	"github.com/egfanboy/badge-builder/internal/metrics"
	"github.com/egfanboy/badge-builder/internal/mongo"
	"github.com/egfanboy/badge-builder/internal/post"
	"github.com/egfanboy/badge-builder/internal/rabbitmq"
	"github.com/egfanboy/badge-builder/internal/render"
	"github.com/egfanboy/badge-builder/internal/settings"
	"github.com/egfanboy/badge-builder/internal/storage"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var cleanupFuncs []func()

func addCleanupFunc(fn func()) {
	cleanupFuncs = append(cleanupFuncs, fn)
}

func main() {
	ctx := context.Background()

	cfg, err := app.Load(os.Args[1:])
	if err != nil {
		log.Error().Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)
	log.Info().Msg("Initializing Badge Builder")

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)

	defer func() {
		signal.Stop(c)
		log.Info().Msg("Running cleanup functions")
		for _, fn := range cleanupFuncs {
			fn()
		}
	}()

	err = mongo.InitMongo(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to connect to mongoDB")
		os.Exit(1)
	}

	addCleanupFunc(func() { mongo.CleanUpMongo(ctx) })

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to set up %s storage", cfg.Storage.Driver)
		os.Exit(1)
	}

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(metricsRegistry)

	settingsService := settings.NewSettingsService(settings.NewOptionRepository(), cfg.Credly.ApiKey, cfg.Credly.SdkUrl)

	attachments := media.NewAttachmentRepository()
	imagePolicy := media.UrlPolicy{AllowedHosts: cfg.Credly.AllowedImageHosts, AllowInsecure: cfg.Credly.AllowInsecureImages}
	importer := media.NewImageImporter(
		imagePolicy,
		media.NewDownloader(media.DownloaderConfig{Policy: imagePolicy, Timeout: cfg.Credly.Timeout, MaxBytes: cfg.Credly.MaxImageBytes}),
		media.NewLibrary(store, attachments, cfg.Storage.KeyPrefix),
		m,
	)

	badgeService := badge.NewBadgeService(badge.Dependencies{
		Credly: credly.NewClient(credly.Config{
			SdkUrl:            cfg.Credly.SdkUrl,
			Timeout:           cfg.Credly.Timeout,
			RequestsPerSecond: cfg.Credly.RequestsPerSecond,
			Burst:             cfg.Credly.Burst,
			Metrics:           m,
		}),
		ApiKeys:          settingsService,
		Posts:            post.NewRepository(),
		Attachments:      attachments,
		Importer:         importer,
		Meta:             meta.NewRepository(),
		Renderer:         render.NewThumbnailRenderer(),
		Publisher:        rabbitmq.Publisher{},
		LinkFilters:      []credly.LinkFilter{credly.ExtraClassFilter(cfg.Credly.LinkClasses...)},
		AchievementTypes: cfg.AchievementTypes,
	})

	badgeBuilder := app.New(cfg)
	badgeBuilder.Register(
		health.NewController(mongo.Ping),
		settings.NewController(settingsService),
		badge.NewController(badgeService),
	)

	// consumers have to be known before the queue is bound
	badge.RegisterConsumers(badgeService)

	err = rabbitmq.Setup(ctx, cfg.Rabbit, cfg.Name)
	if err != nil {
		log.Error().Err(err).Msgf("Failed to connect to rabbitmq")
		os.Exit(1)
	}

	addCleanupFunc(func() { rabbitmq.Cleanup() })

	if cfg.Consul.Enabled {
		err = consul.NewConsulClient(cfg.Consul)
		if err != nil {
			log.Error().Err(err).Msgf("Failed to connect to consul")
			os.Exit(1)
		}

		err = consul.RegisterService(cfg)
		if err != nil {
			log.Error().Err(err).Msgf("Failed to register service to consul")
			os.Exit(1)
		}

		addCleanupFunc(func() { consul.UnregisterService() })
	}

	log.Debug().Msg("starting webserver")

	mainRouter := mux.NewRouter()
	mainRouter.Use(m.Middleware, auth.Middleware(cfg.Auth.Enabled, cfg.Auth.Token, m))

	mainRouter.Handle("/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))

	if cfg.Storage.Driver == app.StorageDriverFilesystem {
		mainRouter.PathPrefix(auth.UploadsPrefix).Handler(
			http.StripPrefix(auth.UploadsPrefix, http.FileServer(http.Dir(cfg.Storage.Path))),
		)
	}

	for _, c := range badgeBuilder.ControllerRegistry.GetControllers() {
		for _, b := range c.GetApis() {
			b.Build(mainRouter)
		}
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf("0.0.0.0:%d", cfg.Port),
		// the save callback waits on the image download and a token exchange
		WriteTimeout: 2*cfg.Credly.Timeout + time.Second*15,
		ReadTimeout:  time.Second * 15,
		IdleTimeout:  time.Second * 60,
		Handler:      mainRouter,
	}

	go func() {
		err := srv.ListenAndServe()

		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("")
			os.Exit(1)
		}
	}()

	addCleanupFunc(func() { srv.Close() })

	log.Info().Msgf("Badge Builder running on port %d", cfg.Port)

	<-c
}
