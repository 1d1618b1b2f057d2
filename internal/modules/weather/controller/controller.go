package controller

import (
	"net/http"

	"sensorhub-server/internal/modules/weather/service"
	"sensorhub-server/internal/modules/weather/views"
)

const (
	apiReadingsPath = "/api/v1/readings"
	apiStatsPath    = "/api/v1/stats"

	// Paths the original device firmware and dashboard call.
	legacyReadingsPath = "/api/sensor/data"
	legacyStatsPath    = "/api/sensor/stats"
)

type WeatherController interface {
	RegisterRoutes(mux *http.ServeMux)
}

type weatherControllerImpl struct {
	service *service.Service
	devMode bool
}

// NewWeatherController builds the HTTP surface. devMode adds internal error text to 500 responses.
func NewWeatherController(svc *service.Service, devMode bool) WeatherController {
	return &weatherControllerImpl{service: svc, devMode: devMode}
}

func (c *weatherControllerImpl) RegisterRoutes(mux *http.ServeMux) {
	for _, p := range []string{apiReadingsPath, legacyReadingsPath} {
		mux.HandleFunc("POST "+p, c.handleSubmit)
		mux.HandleFunc("GET "+p, c.handleList)
	}
	for _, p := range []string{apiStatsPath, legacyStatsPath} {
		mux.HandleFunc("GET "+p, c.handleStats)
	}
	mux.HandleFunc("GET /", c.handleDashboard)
	mux.HandleFunc("GET /partials/cards", c.handleCards)
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServerFS(views.StaticFS())))
}
