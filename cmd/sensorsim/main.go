package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"sensorhub-server/internal/config"
	"sensorhub-server/internal/logging"
	"sensorhub-server/internal/sim"
)

var version = "dev"
var appName = "sensorhub-sim"

func main() {
	cfg, err := config.LoadSimFromEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging(), version, appName)
	slog.SetDefault(logger)

	slog.Info("starting",
		"app", appName,
		"version", version,
		"mode", cfg.Mode,
		"interval", cfg.Interval,
		"device_id", cfg.DeviceID,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run failed", "err", err)
		os.Exit(1)
	}

	slog.Info("shutting down")
}

func run(ctx context.Context, cfg config.SimConfig) error {
	seed := uint64(cfg.Seed)
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	gen := sim.NewGenerator(seed)

	var pub sim.Publisher
	switch cfg.Mode {
	case config.SimModeMQTT:
		p := sim.NewMQTTPublisher(cfg.MQTT, cfg.Topic(), cfg.DeviceFieldNames, slog.Default())
		if err := p.Connect(ctx); err != nil {
			return err
		}
		defer p.Disconnect()
		pub = p
		slog.Info("publishing over mqtt", "broker", cfg.MQTT.Broker, "topic", cfg.Topic())
	default:
		pub = sim.NewHTTPPublisher(cfg.ServerURL, cfg.DeviceFieldNames, nil)
		slog.Info("publishing over http", "server", cfg.ServerURL)
	}

	return sim.Run(ctx, cfg.Interval, gen, pub)
}
