package settings

import (
	"context"
	"strings"

	"github.com/egfanboy/badge-builder/pkg/types"
	"github.com/rs/zerolog/log"
)

// ApiKeyProvider resolves the credly api key of the site. An empty key means none is configured.
type ApiKeyProvider interface {
	ApiKey(ctx context.Context) (string, error)
}

type SettingsApi interface {
	ApiKeyProvider
	GetSettings(ctx context.Context) (types.BadgeBuilderSettings, error)
	UpdateApiKey(ctx context.Context, request types.ApiKeyUpdateRequest) (types.BadgeBuilderSettings, error)
}

type settingsService struct {
	options        OptionRepository
	fallbackApiKey string
	sdkUrl         string
}

// ApiKey prefers the key saved through the settings api over the one from the config.
func (s *settingsService) ApiKey(ctx context.Context) (string, error) {
	key, err := s.options.Get(ctx, OptionCredlyApiKey)
	if err != nil {
		log.Err(err).Msg("Failed to read credly api key option")
		return "", err
	}

	if key != "" {
		return key, nil
	}

	return s.fallbackApiKey, nil
}

func (s *settingsService) GetSettings(ctx context.Context) (types.BadgeBuilderSettings, error) {
	log.Info().Msg("Getting badge builder settings")

	key, err := s.ApiKey(ctx)
	if err != nil {
		return types.BadgeBuilderSettings{}, err
	}

	return types.BadgeBuilderSettings{ApiKeyConfigured: key != "", SdkUrl: s.sdkUrl}, nil
}

func (s *settingsService) UpdateApiKey(ctx context.Context, request types.ApiKeyUpdateRequest) (types.BadgeBuilderSettings, error) {
	err := s.options.Set(ctx, OptionCredlyApiKey, strings.TrimSpace(request.ApiKey))
	if err != nil {
		log.Err(err).Msg("Failed to save credly api key option")
		return types.BadgeBuilderSettings{}, err
	}

	log.Info().Msg("Credly api key updated")

	return s.GetSettings(ctx)
}

func NewSettingsService(options OptionRepository, fallbackApiKey, sdkUrl string) SettingsApi {
	return &settingsService{options: options, fallbackApiKey: fallbackApiKey, sdkUrl: sdkUrl}
}
