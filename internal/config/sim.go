package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"
)

const (
	SimModeHTTP = "http"
	SimModeMQTT = "mqtt"
)

// SimConfig drives cmd/sensorsim, the stand-in for the ESP32 device.
type SimConfig struct {
	AppEnv   string
	LogLevel slog.Level

	Mode      string
	Interval  time.Duration
	DeviceID  string
	ServerURL string
	// Seed 0 means a time-based seed.
	Seed int64
	// DeviceFieldNames sends suhu/kelembapan/cahaya like the original firmware.
	DeviceFieldNames bool

	MQTT MQTTConfig
}

// Logging returns the subset of Config the logger needs.
func (c SimConfig) Logging() Config {
	return Config{AppEnv: c.AppEnv, LogLevel: c.LogLevel}
}

// Topic is the per-device topic the server's wildcard subscription matches.
func (c SimConfig) Topic() string {
	return "sensors/" + c.DeviceID + "/readings"
}

func LoadSimFromEnv() (SimConfig, error) {
	base, err := LoadFromEnv()
	if err != nil {
		return SimConfig{}, err
	}

	mode := strings.ToLower(envOr("SIM_MODE", SimModeHTTP))
	switch mode {
	case SimModeHTTP, SimModeMQTT:
	default:
		return SimConfig{}, fmt.Errorf("invalid SIM_MODE %q (allowed: %s, %s)", mode, SimModeHTTP, SimModeMQTT)
	}

	intervalStr := envOr("SIM_INTERVAL", "10s")
	interval, err := time.ParseDuration(intervalStr)
	if err != nil {
		return SimConfig{}, fmt.Errorf("invalid SIM_INTERVAL %q: %w", intervalStr, err)
	}
	if interval <= 0 {
		return SimConfig{}, fmt.Errorf("SIM_INTERVAL must be positive, got %v", interval)
	}

	serverURL := envOr("SIM_SERVER_URL", "http://localhost:8080")
	if u, err := url.Parse(serverURL); err != nil || u.Scheme == "" || u.Host == "" {
		return SimConfig{}, fmt.Errorf("invalid SIM_SERVER_URL %q", serverURL)
	}

	seed, err := envInt("SIM_SEED", 0)
	if err != nil {
		return SimConfig{}, err
	}
	deviceNames, err := envBool("SIM_DEVICE_FIELD_NAMES", false)
	if err != nil {
		return SimConfig{}, err
	}

	mqttCfg := base.MQTT
	mqttCfg.ClientID = envOr("SIM_MQTT_CLIENT_ID", "sensorhub-sim")

	return SimConfig{
		AppEnv:           base.AppEnv,
		LogLevel:         base.LogLevel,
		Mode:             mode,
		Interval:         interval,
		DeviceID:         envOr("SIM_DEVICE_ID", "esp32-01"),
		ServerURL:        strings.TrimRight(serverURL, "/"),
		Seed:             int64(seed),
		DeviceFieldNames: deviceNames,
		MQTT:             mqttCfg,
	}, nil
}
