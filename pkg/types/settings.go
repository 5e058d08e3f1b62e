package types

type BadgeBuilderSettings struct {
	ApiKeyConfigured bool   `json:"apiKeyConfigured"`
	SdkUrl           string `json:"sdkUrl"`
}

type ApiKeyUpdateRequest struct {
	ApiKey string `json:"apiKey"`
}
