package types

import "time"

const (
	MinTemperature = -50.0
	MaxTemperature = 70.0
	MinHumidity    = 0.0
	MaxHumidity    = 100.0
)

// Reading is one persisted sensor sample.
type Reading struct {
	ID          int64     `json:"id"`
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	LightValue  int64     `json:"light_value"`
	Timestamp   time.Time `json:"timestamp"`
}

// NewReading is a validated submission ready to be stored. A nil Timestamp means
// the storage layer assigns the insertion time.
type NewReading struct {
	Temperature float64
	Humidity    float64
	LightValue  int64
	Timestamp   *time.Time
}

// StatsWindow aggregates the readings inside a trailing window. Every pointer
// field is nil when the window holds no readings.
type StatsWindow struct {
	TotalReadings int64      `json:"total_readings"`
	AvgTemp       *float64   `json:"avg_temp"`
	MinTemp       *float64   `json:"min_temp"`
	MaxTemp       *float64   `json:"max_temp"`
	AvgHumidity   *float64   `json:"avg_humidity"`
	MinHumidity   *float64   `json:"min_humidity"`
	MaxHumidity   *float64   `json:"max_humidity"`
	AvgLight      *float64   `json:"avg_light"`
	MinLight      *int64     `json:"min_light"`
	MaxLight      *int64     `json:"max_light"`
	FirstReading  *time.Time `json:"first_reading"`
	LastReading   *time.Time `json:"last_reading"`
}

// RoundedStats is StatsWindow as served to clients: averages rounded for display,
// everything else passed through unchanged.
type RoundedStats struct {
	TotalReadings int64      `json:"total_readings"`
	AvgTemp       *float64   `json:"avg_temp"`
	MinTemp       *float64   `json:"min_temp"`
	MaxTemp       *float64   `json:"max_temp"`
	AvgHumidity   *float64   `json:"avg_humidity"`
	MinHumidity   *float64   `json:"min_humidity"`
	MaxHumidity   *float64   `json:"max_humidity"`
	AvgLight      *int64     `json:"avg_light"`
	MinLight      *int64     `json:"min_light"`
	MaxLight      *int64     `json:"max_light"`
	FirstReading  *time.Time `json:"first_reading"`
	LastReading   *time.Time `json:"last_reading"`
}
