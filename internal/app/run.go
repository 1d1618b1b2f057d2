package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"sensorhub-server/internal/config"
	db "sensorhub-server/internal/db"
	httpapi "sensorhub-server/internal/httpapi"
	"sensorhub-server/internal/metrics"
	"sensorhub-server/internal/migrate"
	weather "sensorhub-server/internal/modules/weather"
	weatherviews "sensorhub-server/internal/modules/weather/views"
	"sensorhub-server/internal/mqtt"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"devMode", cfg.DevMode,
		"dbDriver", cfg.DB.Driver,
		"sqlitePath", cfg.DB.Path,
		"dbHost", cfg.DB.Host,
		"dbName", cfg.DB.Name,
		"dbMaxOpenConns", cfg.DB.MaxOpenConns,
		"dbMaxIdleConns", cfg.DB.MaxIdleConns,
		"dbConnMaxLifetime", cfg.DB.ConnMaxLifetime,
		"dbAutoMigrate", cfg.DB.AutoMigrate,
		"mqttEnabled", cfg.MQTT.Enabled,
		"mqttBroker", cfg.MQTT.Broker,
		"mqttPort", cfg.MQTT.Port,
		"mqttTopic", cfg.MQTT.Topic,
	)
	if cfg.DevMode {
		slog.Warn("dev mode enabled: 500 responses include internal error details")
	}

	if cfg.DB.AutoMigrate {
		if err := db.EnsureDatabase(ctx, cfg.DB); err != nil {
			return err
		}
	}

	dbConn, err := db.Open(ctx, cfg.DB)
	if err != nil {
		return err
	}
	defer func() {
		closeErr := db.Close(dbConn)
		if closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()
	slog.Info("database connection successful")

	if cfg.DB.AutoMigrate {
		if err := migrate.Run(ctx, dbConn, cfg.DB.Driver); err != nil {
			return err
		}
	}

	if err := weatherviews.LoadTemplates(); err != nil {
		return err
	}

	m := metrics.New()
	mux := httpapi.NewMux(dbConn, m)
	opts := weather.Options{
		Dialect: cfg.DB.Driver,
		DevMode: cfg.DevMode,
		Metrics: m,
	}

	// Set MQTT handler before Connect so OnConnectHandler can subscribe immediately.
	var subscriber *mqtt.Subscriber
	if cfg.MQTT.Enabled {
		subscriber = mqtt.NewSubscriber(cfg.MQTT, slog.Default())
		opts.Subscriber = subscriber
	}
	weather.RegisterFeature(mux, dbConn, opts)

	if subscriber != nil {
		// Short timeout so a missing broker does not block startup; HTTP ingestion keeps working.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err = subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	srv := httpapi.NewServer(cfg, mux, m)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		slog.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}
