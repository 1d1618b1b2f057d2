package controller

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"sensorhub-server/internal/modules/weather/types"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
	// One leap year.
	maxHours = 8784
)

type listQuery struct {
	Limit int
	// Hours, when non-zero, selects a time-range query and Limit is ignored.
	Hours int
}

func parseListQuery(r *http.Request) (listQuery, error) {
	q := r.URL.Query()
	out := listQuery{Limit: defaultLimit}

	if s := q.Get("hours"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return listQuery{}, errors.New("invalid 'hours' (expected integer)")
		}
		if n <= 0 {
			return listQuery{}, errors.New("'hours' must be > 0")
		}
		if n > maxHours {
			return listQuery{}, errors.New("'hours' must be <= 8784")
		}
		out.Hours = n
		return out, nil
	}

	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return listQuery{}, errors.New("invalid 'limit' (expected integer)")
		}
		if n <= 0 {
			return listQuery{}, errors.New("'limit' must be > 0")
		}
		if n > maxLimit {
			return listQuery{}, errors.New("'limit' must be <= 1000")
		}
		out.Limit = n
	}
	return out, nil
}

// roundStats rounds the averages for display: temperature and humidity to one decimal,
// light to the nearest integer. Counts, minima, maxima and timestamps pass through.
func roundStats(s types.StatsWindow) types.RoundedStats {
	out := types.RoundedStats{
		TotalReadings: s.TotalReadings,
		MinTemp:       s.MinTemp,
		MaxTemp:       s.MaxTemp,
		MinHumidity:   s.MinHumidity,
		MaxHumidity:   s.MaxHumidity,
		MinLight:      s.MinLight,
		MaxLight:      s.MaxLight,
		FirstReading:  s.FirstReading,
		LastReading:   s.LastReading,
	}
	if s.AvgTemp != nil {
		v := roundTo(*s.AvgTemp, 1)
		out.AvgTemp = &v
	}
	if s.AvgHumidity != nil {
		v := roundTo(*s.AvgHumidity, 1)
		out.AvgHumidity = &v
	}
	if s.AvgLight != nil {
		v := int64(math.Round(*s.AvgLight))
		out.AvgLight = &v
	}
	return out
}

func roundTo(v float64, digits int) float64 {
	p := math.Pow(10, float64(digits))
	return math.Round(v*p) / p
}
