package service

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"sensorhub-server/internal/modules/weather/types"
)

// maxClockSkew bounds how far into the future a device-supplied timestamp may be.
const maxClockSkew = time.Minute

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

// Field names accepted in a submission; the second name is what the original firmware sends.
var submissionFields = []struct {
	name  string
	alias string
}{
	{name: "temperature", alias: "suhu"},
	{name: "humidity", alias: "kelembapan"},
	{name: "light", alias: "cahaya"},
}

// ParseSubmission decodes a JSON submission. Each sensor field must be present and a JSON number;
// strings, booleans and null are rejected rather than coerced.
func ParseSubmission(body []byte, now time.Time) (types.NewReading, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil || raw == nil {
		return types.NewReading{}, &ValidationError{Field: "body", Message: "expected a JSON object"}
	}

	values := make([]float64, len(submissionFields))
	for i, f := range submissionFields {
		msg, ok := raw[f.name]
		if !ok {
			msg, ok = raw[f.alias]
		}
		if !ok {
			return types.NewReading{}, &ValidationError{Field: f.name, Message: "is required"}
		}
		v, err := parseNumber(msg)
		if err != nil {
			return types.NewReading{}, &ValidationError{Field: f.name, Message: err.Error()}
		}
		values[i] = v
	}

	light := math.Round(values[2])
	if light < math.MinInt32 || light > math.MaxInt32 {
		return types.NewReading{}, &ValidationError{Field: "light", Message: "must fit a 32-bit integer"}
	}

	out := types.NewReading{
		Temperature: values[0],
		Humidity:    values[1],
		LightValue:  int64(light),
	}

	if msg, ok := raw["timestamp"]; ok && !isNull(msg) {
		var s string
		if err := json.Unmarshal(msg, &s); err != nil {
			return types.NewReading{}, &ValidationError{Field: "timestamp", Message: "must be an RFC 3339 string"}
		}
		ts, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return types.NewReading{}, &ValidationError{Field: "timestamp", Message: "must be an RFC 3339 string"}
		}
		if ts.After(now.Add(maxClockSkew)) {
			return types.NewReading{}, &ValidationError{Field: "timestamp", Message: "is in the future"}
		}
		ts = ts.UTC()
		out.Timestamp = &ts
	}

	return out, nil
}

// Validate enforces the physical sensor ranges, bounds inclusive.
func Validate(r types.NewReading) error {
	if math.IsNaN(r.Temperature) || r.Temperature < types.MinTemperature || r.Temperature > types.MaxTemperature {
		return &ValidationError{
			Field:   "temperature",
			Message: fmt.Sprintf("must be between %g and %g", types.MinTemperature, types.MaxTemperature),
		}
	}
	if math.IsNaN(r.Humidity) || r.Humidity < types.MinHumidity || r.Humidity > types.MaxHumidity {
		return &ValidationError{
			Field:   "humidity",
			Message: fmt.Sprintf("must be between %g and %g", types.MinHumidity, types.MaxHumidity),
		}
	}
	return nil
}

func parseNumber(msg json.RawMessage) (float64, error) {
	trimmed := bytes.TrimSpace(msg)
	if len(trimmed) == 0 || isNull(trimmed) {
		return 0, fmt.Errorf("is required")
	}
	switch c := trimmed[0]; {
	case c == '-' || (c >= '0' && c <= '9'):
	default:
		return 0, fmt.Errorf("must be a number")
	}
	var v float64
	if err := json.Unmarshal(trimmed, &v); err != nil {
		return 0, fmt.Errorf("must be a number")
	}
	return v, nil
}

func isNull(msg json.RawMessage) bool {
	return strings.TrimSpace(string(msg)) == "null"
}
