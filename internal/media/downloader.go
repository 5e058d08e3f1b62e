package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	defaultMaxImageBytes = 10 << 20
	maxRedirects         = 5
)

// Downloader fetches a remote file into a temp file and returns its path.
type Downloader interface {
	Download(ctx context.Context, fileUrl string) (string, error)
}

type DownloaderConfig struct {
	// every redirect hop has to pass the policy as well
	Policy     UrlPolicy
	Timeout    time.Duration
	MaxBytes   int64
	TempDir    string
	HTTPClient *http.Client
}

type httpDownloader struct {
	client   *http.Client
	maxBytes int64
	tempDir  string
}

func (d *httpDownloader) Download(ctx context.Context, fileUrl string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileUrl, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, ErrInvalidImageUrl) {
			return "", err
		}

		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: %s returned status code %d", ErrDownload, req.URL.Redacted(), resp.StatusCode)
	}

	if resp.ContentLength > d.maxBytes {
		return "", fmt.Errorf("%w: image is larger than %d bytes", ErrDownload, d.maxBytes)
	}

	temp, err := os.CreateTemp(d.tempDir, "badge-builder-*.tmp")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	written, err := io.Copy(temp, io.LimitReader(resp.Body, d.maxBytes+1))

	closeErr := temp.Close()
	if err == nil {
		err = closeErr
	}

	if err == nil && written > d.maxBytes {
		err = fmt.Errorf("image is larger than %d bytes", d.maxBytes)
	}

	if err != nil {
		RemoveTemp(temp.Name())
		return "", fmt.Errorf("%w: %v", ErrDownload, err)
	}

	return temp.Name(), nil
}

// RemoveTemp deletes a temp file. Failures are logged and swallowed.
func RemoveTemp(p string) {
	if p == "" {
		return
	}

	err := os.Remove(p)
	if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msgf("Failed to remove temp file %s", p)
	}
}

func redirectPolicy(policy UrlPolicy) func(*http.Request, []*http.Request) error {
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("%w: stopped after %d redirects", ErrDownload, maxRedirects)
		}

		_, err := policy.Validate(req.URL.String())
		if err != nil {
			log.Warn().Msgf("Refusing image redirect from %s to %s", via[len(via)-1].URL.Redacted(), req.URL.Redacted())
		}

		return err
	}
}

func NewDownloader(cfg DownloaderConfig) Downloader {
	client := &http.Client{}
	if cfg.HTTPClient != nil {
		*client = *cfg.HTTPClient
	}

	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}

	client.CheckRedirect = redirectPolicy(cfg.Policy)

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxImageBytes
	}

	return &httpDownloader{client: client, maxBytes: maxBytes, tempDir: cfg.TempDir}
}
