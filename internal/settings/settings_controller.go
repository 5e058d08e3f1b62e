package settings

import (
	"net/http"

	"github.com/egfanboy/badge-builder/internal/app"
	"github.com/egfanboy/badge-builder/pkg/types"

	"github.com/egfanboy/mediapire-common/router"
)

const (
	basePath = "/settings"
)

type settingsController struct {
	builders []func() router.RouteBuilder
	service  SettingsApi
}

func (c settingsController) GetApis() (routes []router.RouteBuilder) {
	for _, b := range c.builders {

		routes = append(routes, b())
	}

	return
}

func (c settingsController) getSettings() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath).
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			return c.service.GetSettings(request.Context())
		})
}

func (c settingsController) updateApiKey() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodPut).
		SetPath(basePath + "/api-key").
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			var body types.ApiKeyUpdateRequest
			err := p.PopulateBody(&body)
			if err != nil {
				return nil, err
			}

			return c.service.UpdateApiKey(request.Context(), body)
		})
}

func NewController(service SettingsApi) app.Controller {
	c := settingsController{service: service}

	c.builders = append(c.builders, c.getSettings, c.updateApiKey)

	return c
}
