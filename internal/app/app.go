package app

import (
	"github.com/egfanboy/mediapire-common/router"
)

// Controller exposes the routes of one api area.
type Controller interface {
	GetApis() []router.RouteBuilder
}

type App struct {
	ControllerRegistry *router.ControllerRegistry
	Config             Config
}

func (a *App) Register(controllers ...Controller) {
	for _, c := range controllers {
		a.ControllerRegistry.Register(c)
	}
}

func New(cfg Config) *App {
	return &App{ControllerRegistry: router.NewControllerRegistry(), Config: cfg}
}
