package credly

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/egfanboy/badge-builder/internal/metrics"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	DefaultSdkUrl = "https://credly.com/badge-builder/"

	maxTokenResponseBytes = 1 << 20
)

var (
	ErrMissingApiKey = errors.New("no credly api key configured")
	ErrMissingToken  = errors.New("no badge builder token")
	ErrTransport     = errors.New("credly token exchange failed")
)

type Client interface {
	FetchSessionToken(ctx context.Context, apiKey string) (string, error)
	BuildEmbedLink(token string, req EmbedRequest) (*EmbedLink, error)
}

type Config struct {
	SdkUrl  string
	Timeout time.Duration
	// 0 disables throttling of token exchanges
	RequestsPerSecond float64
	Burst             int
	HTTPClient        *http.Client
	Metrics           *metrics.Metrics
}

type tokenResponse struct {
	TempToken string `json:"temp_token"`
}

type client struct {
	sdkUrl  string
	http    *http.Client
	limiter *rate.Limiter
	metrics *metrics.Metrics
}

func (c *client) endpoint(p string) string {
	return strings.TrimRight(c.sdkUrl, "/") + "/" + p
}

func (c *client) FetchSessionToken(ctx context.Context, apiKey string) (token string, err error) {
	if apiKey == "" {
		return "", ErrMissingApiKey
	}

	defer func() {
		c.metrics.ObserveTokenExchange(metrics.Result(err))
	}()

	if c.limiter != nil {
		if wErr := c.limiter.Wait(ctx); wErr != nil {
			return "", fmt.Errorf("%w: %v", ErrTransport, wErr)
		}
	}

	form := url.Values{"access_token": {apiKey}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("code"), strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTransport, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("%w: credly returned status code %d", ErrTransport, resp.StatusCode)
	}

	var body tokenResponse

	err = json.NewDecoder(io.LimitReader(resp.Body, maxTokenResponseBytes)).Decode(&body)
	if err != nil {
		return "", fmt.Errorf("%w: malformed response: %v", ErrTransport, err)
	}

	if body.TempToken == "" {
		return "", fmt.Errorf("%w: response has no temp_token", ErrTransport)
	}

	log.Debug().Msg("Exchanged credly api key for a badge builder token")

	return body.TempToken, nil
}

func NewClient(cfg Config) Client {
	sdkUrl := cfg.SdkUrl
	if sdkUrl == "" {
		sdkUrl = DefaultSdkUrl
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	// the configured timeout wins over whatever the given client had
	if cfg.Timeout > 0 {
		withTimeout := *httpClient
		withTimeout.Timeout = cfg.Timeout
		httpClient = &withTimeout
	}

	c := &client{sdkUrl: sdkUrl, http: httpClient, metrics: cfg.Metrics}

	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}

		c.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return c
}
