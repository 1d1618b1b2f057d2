package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/handlers"

	"sensorhub-server/internal/config"
	"sensorhub-server/internal/metrics"
)

// NewServer wraps mux with CORS, panic recovery, request ids and access logging.
func NewServer(cfg config.Config, mux *http.ServeMux, m *metrics.Metrics) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewHandler(mux, m),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewHandler(mux *http.ServeMux, m *metrics.Metrics) http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Content-Type", requestIDHeader}),
		handlers.ExposedHeaders([]string{requestIDHeader}),
	)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(recoveryLogger{}),
		handlers.PrintRecoveryStack(false),
	)
	return requestID(requestLogger(m, cors(recovery(mux))))
}

type recoveryLogger struct{}

func (recoveryLogger) Println(v ...any) {
	slog.Error("http handler panic", "panic", v)
}
