package controller

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"sensorhub-server/internal/modules/weather/service"
	"sensorhub-server/internal/modules/weather/types"
	"sensorhub-server/internal/modules/weather/views"
	"sensorhub-server/internal/utils"
)

const (
	maxBodyBytes   = 64 << 10
	statsWindow    = 24
	dashboardLimit = 100
	refreshSeconds = 30
)

type submitResponse struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message"`
	ID        int64     `json:"id"`
	Timestamp time.Time `json:"timestamp"`
}

type listResponse struct {
	Success bool            `json:"success"`
	Data    []types.Reading `json:"data"`
	Count   int             `json:"count"`
}

type statsResponse struct {
	Success bool               `json:"success"`
	Stats   types.RoundedStats `json:"stats"`
}

func (c *weatherControllerImpl) handleSubmit(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			utils.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		utils.WriteError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	id, err := c.service.SubmitPayload(r.Context(), service.SourceHTTP, body)
	if err != nil {
		c.writeFailure(w, r, err, "Internal server error")
		return
	}

	utils.WriteJSON(w, http.StatusCreated, submitResponse{
		Success:   true,
		Message:   "Data received successfully",
		ID:        id,
		Timestamp: time.Now().UTC(),
	})
}

func (c *weatherControllerImpl) handleList(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r)
	if err != nil {
		utils.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	var readings []types.Reading
	if q.Hours > 0 {
		readings, err = c.service.ByTimeRange(r.Context(), q.Hours)
	} else {
		readings, err = c.service.Latest(r.Context(), q.Limit)
	}
	if err != nil {
		c.writeFailure(w, r, err, "Failed to fetch data")
		return
	}

	utils.WriteJSON(w, http.StatusOK, listResponse{Success: true, Data: readings, Count: len(readings)})
}

func (c *weatherControllerImpl) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := c.service.Stats(r.Context(), statsWindow)
	if err != nil {
		c.writeFailure(w, r, err, "Internal server error")
		return
	}
	utils.WriteJSON(w, http.StatusOK, statsResponse{Success: true, Stats: roundStats(stats)})
}

func (c *weatherControllerImpl) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	data, err := c.dashboardData(r)
	if err != nil {
		slog.Error("dashboard: load data failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load dashboard")
		return
	}

	var buf bytes.Buffer
	if err := views.RenderDashboard(&buf, data); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render page")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("dashboard write failed", "error", err)
	}
}

// handleCards serves the cards fragment on its own, for clients that refresh without the script.
func (c *weatherControllerImpl) handleCards(w http.ResponseWriter, r *http.Request) {
	data, err := c.dashboardData(r)
	if err != nil {
		slog.Error("cards: load data failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to load readings")
		return
	}

	var buf bytes.Buffer
	if err := views.RenderCards(&buf, data); err != nil {
		slog.Error("cards partial render failed", "error", err)
		utils.WriteError(w, http.StatusInternalServerError, "failed to render partial")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if _, err := buf.WriteTo(w); err != nil {
		slog.Error("cards write failed", "error", err)
	}
}

func (c *weatherControllerImpl) dashboardData(r *http.Request) (*views.DashboardData, error) {
	latest, err := c.service.Latest(r.Context(), 1)
	if err != nil {
		return nil, err
	}
	stats, err := c.service.Stats(r.Context(), statsWindow)
	if err != nil {
		return nil, err
	}
	rounded := roundStats(stats)

	data := &views.DashboardData{
		Stats:          &rounded,
		ReadingsLimit:  dashboardLimit,
		RefreshSeconds: refreshSeconds,
		ReadingsPath:   apiReadingsPath,
		StatsPath:      apiStatsPath,
		GeneratedAt:    time.Now().UTC(),
	}
	if len(latest) > 0 {
		data.Latest = &latest[0]
	}
	return data, nil
}

// writeFailure maps validation errors to 400 and everything else to 500 with a generic message.
func (c *weatherControllerImpl) writeFailure(w http.ResponseWriter, r *http.Request, err error, generic string) {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		utils.WriteError(w, http.StatusBadRequest, ve.Error())
		return
	}

	slog.Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	if c.devMode {
		utils.WriteErrorDetails(w, http.StatusInternalServerError, generic, err.Error())
		return
	}
	utils.WriteError(w, http.StatusInternalServerError, generic)
}
