package sim

import (
	"context"
	"log/slog"
	"time"
)

// Run publishes one reading per interval until ctx is done. Publish failures are
// logged and the loop carries on, like a device that keeps sampling while offline.
func Run(ctx context.Context, interval time.Duration, gen *Generator, pub Publisher) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sent, failed := 0, 0
	publish := func() {
		p := gen.Next()
		if err := pub.Publish(ctx, p); err != nil {
			failed++
			slog.Warn("publish failed", "error", err, "failed", failed)
			return
		}
		sent++
		slog.Info("reading sent",
			"temperature", p.Temperature,
			"humidity", p.Humidity,
			"light", p.Light,
			"sent", sent,
		)
	}

	publish()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			publish()
		}
	}
}
