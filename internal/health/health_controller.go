package health

import (
	"context"
	"net/http"

	"github.com/egfanboy/badge-builder/internal/app"
	"github.com/egfanboy/mediapire-common/exceptions"
	"github.com/egfanboy/mediapire-common/router"
)

const basePath = "/health"

// Pinger checks a dependency the service cannot work without.
type Pinger func(ctx context.Context) error

type healthResponse struct {
	Status string `json:"status"`
}

type healthController struct {
	builders []func() router.RouteBuilder
	checks   []Pinger
}

func (c healthController) GetApis() (routes []router.RouteBuilder) {
	for _, b := range c.builders {
		routes = append(routes, b())
	}

	return
}

func (c healthController) check(ctx context.Context) (healthResponse, error) {
	for _, ping := range c.checks {
		err := ping(ctx)
		if err != nil {
			return healthResponse{}, &exceptions.ApiException{Err: err, StatusCode: http.StatusServiceUnavailable}
		}
	}

	return healthResponse{Status: "ok"}, nil
}

func (c healthController) getHealth() router.RouteBuilder {
	return router.NewV1RouteBuilder().
		SetMethod(http.MethodOptions, http.MethodGet).
		SetPath(basePath).
		SetReturnCode(http.StatusOK).
		SetHandler(func(request *http.Request, p router.RouteParams) (interface{}, error) {
			return c.check(request.Context())
		})
}

func NewController(checks ...Pinger) app.Controller {
	c := healthController{checks: checks}

	c.builders = append(c.builders, c.getHealth)

	return c
}
