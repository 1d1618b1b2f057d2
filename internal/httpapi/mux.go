package httpapi

import (
	"database/sql"
	"net/http"

	"sensorhub-server/internal/metrics"
)

func NewMux(db *sql.DB, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	mux.Handle("GET /metrics", m.Handler())
	return mux
}
