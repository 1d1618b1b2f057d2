package weather

import (
	"database/sql"
	"net/http"

	"sensorhub-server/internal/metrics"
	"sensorhub-server/internal/modules/weather/controller"
	"sensorhub-server/internal/modules/weather/repository"
	"sensorhub-server/internal/modules/weather/service"
	"sensorhub-server/internal/mqtt"
)

type Options struct {
	Dialect string
	DevMode bool
	Metrics *metrics.Metrics
	// Subscriber is nil when MQTT ingestion is disabled.
	Subscriber mqtt.MQTTSubscriber
}

func RegisterFeature(mux *http.ServeMux, db *sql.DB, opts Options) {
	weatherRepository := repository.NewRepository(db, opts.Dialect)
	weatherService := service.NewService(weatherRepository, opts.Metrics)
	weatherController := controller.NewWeatherController(weatherService, opts.DevMode)
	weatherController.RegisterRoutes(mux)

	if opts.Subscriber != nil {
		registerMQTTHandler(opts.Subscriber, weatherService)
	}
}
