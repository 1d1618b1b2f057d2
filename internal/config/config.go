package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	DriverSQLite = "sqlite3"
	DriverMySQL  = "mysql"
)

const (
	EnvDev  = "dev"
	EnvProd = "prod"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// DevMode exposes internal error detail in 500 responses. Never enable in production.
	DevMode bool

	DB   DBConfig
	MQTT MQTTConfig
}

type DBConfig struct {
	Driver string
	// DSN, when set, is passed to the driver verbatim and overrides Path and the MySQL fields.
	DSN  string
	Path string

	Host     string
	Port     int
	User     string
	Password string
	Name     string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	AutoMigrate bool
	LogQueries  bool
}

type MQTTConfig struct {
	Enabled  bool
	Broker   string
	Port     int
	ClientID string
	Topic    string
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = EnvDev
	}
	switch appEnv {
	case EnvDev, EnvProd:
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	level, err := parseLogLevel(envOr("LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, err
	}

	devMode, err := envBool("DEV_MODE", false)
	if err != nil {
		return Config{}, err
	}

	dbCfg, err := loadDBConfig()
	if err != nil {
		return Config{}, err
	}

	mqttCfg, err := loadMQTTConfig()
	if err != nil {
		return Config{}, err
	}

	return Config{
		AppEnv:   appEnv,
		LogLevel: level,
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		DevMode:  devMode,
		DB:       dbCfg,
		MQTT:     mqttCfg,
	}, nil
}

func loadDBConfig() (DBConfig, error) {
	driver := envOr("DB_DRIVER", DriverSQLite)
	switch driver {
	case DriverSQLite, DriverMySQL:
	default:
		return DBConfig{}, fmt.Errorf("invalid DB_DRIVER %q (allowed: %s, %s)", driver, DriverSQLite, DriverMySQL)
	}

	port, err := envInt("DB_PORT", 3306)
	if err != nil {
		return DBConfig{}, err
	}
	maxOpenConns, err := envInt("DB_MAX_OPEN_CONNS", 10)
	if err != nil {
		return DBConfig{}, err
	}
	maxIdleConns, err := envInt("DB_MAX_IDLE_CONNS", 10)
	if err != nil {
		return DBConfig{}, err
	}

	connMaxLifetimeStr := envOr("DB_CONN_MAX_LIFETIME", "0s")
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return DBConfig{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	autoMigrate, err := envBool("DB_AUTO_MIGRATE", true)
	if err != nil {
		return DBConfig{}, err
	}
	logQueries, err := envBool("DB_LOG_QUERIES", false)
	if err != nil {
		return DBConfig{}, err
	}

	return DBConfig{
		Driver:          driver,
		DSN:             strings.TrimSpace(os.Getenv("DB_DSN")),
		Path:            envOr("SQLITE_PATH", "data/weather.db"),
		Host:            envOr("DB_HOST", "localhost"),
		Port:            port,
		User:            envOr("DB_USER", "root"),
		Password:        os.Getenv("DB_PASSWORD"),
		Name:            envOr("DB_NAME", "esp32_weather"),
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		AutoMigrate:     autoMigrate,
		LogQueries:      logQueries,
	}, nil
}

func loadMQTTConfig() (MQTTConfig, error) {
	enabled, err := envBool("MQTT_ENABLED", false)
	if err != nil {
		return MQTTConfig{}, err
	}
	port, err := envInt("MQTT_PORT", 1883)
	if err != nil {
		return MQTTConfig{}, err
	}
	return MQTTConfig{
		Enabled:  enabled,
		Broker:   envOr("MQTT_BROKER", "localhost"),
		Port:     port,
		ClientID: envOr("MQTT_CLIENT_ID", "sensorhub-server"),
		Topic:    envOr("MQTT_TOPIC", "sensors/+/readings"),
	}, nil
}

func envOr(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s %q: %w", key, s, err)
	}
	return b, nil
}

func parseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid LOG_LEVEL %q (allowed: debug, info, warn, error)", s)
	}
}
