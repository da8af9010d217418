package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	AppEnv   string
	LogLevel slog.Level
	HTTPAddr string

	// DBPath is the sqlite database file. The parent directory is created on
	// open if it does not exist.
	DBPath          string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// APIKey enables token authentication when non-empty. Auth is opt-in:
	// with no key configured every request is allowed.
	APIKey string

	// SensorsPath points at a YAML sensor registry; empty means the built-in
	// default registry.
	SensorsPath string

	// MaxRequestSize caps the POST /log body in bytes.
	MaxRequestSize int64

	// RateLimit is the per-origin request ceiling per minute; 0 disables it.
	RateLimit int

	// MQTTBroker enables the MQTT ingestion bridge when non-empty.
	MQTTBroker   string
	MQTTPort     int
	MQTTTopic    string
	MQTTClientID string
}

// MQTTEnabled reports whether the optional MQTT bridge is configured.
func (c Config) MQTTEnabled() bool {
	return c.MQTTBroker != ""
}

// AuthEnabled reports whether token authentication is configured.
func (c Config) AuthEnabled() bool {
	return c.APIKey != ""
}

func LoadFromEnv() (Config, error) {
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = "dev"
	}
	switch appEnv {
	case "dev", "prod":
	default:
		return Config{}, fmt.Errorf("invalid APP_ENV %q (allowed: dev, prod)", appEnv)
	}

	logLevelStr := strings.TrimSpace(os.Getenv("LOG_LEVEL"))
	if logLevelStr == "" {
		logLevelStr = "info"
	}
	level, err := parseLogLevel(logLevelStr)
	if err != nil {
		return Config{}, err
	}

	host := strings.TrimSpace(os.Getenv("HOMEKIT_HOST"))
	if host == "" {
		host = "0.0.0.0"
	}
	portStr := strings.TrimSpace(os.Getenv("HOMEKIT_PORT"))
	if portStr == "" {
		portStr = "5000"
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return Config{}, fmt.Errorf("invalid HOMEKIT_PORT %q", portStr)
	}

	dbPath := strings.TrimSpace(os.Getenv("HOMEKIT_DB_PATH"))
	if dbPath == "" {
		dbPath = "homekit_data.db"
	}

	maxOpenConnsStr := strings.TrimSpace(os.Getenv("DB_MAX_OPEN_CONNS"))
	if maxOpenConnsStr == "" {
		maxOpenConnsStr = "1"
	}
	maxOpenConns, err := strconv.Atoi(maxOpenConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_OPEN_CONNS %q: %w", maxOpenConnsStr, err)
	}

	maxIdleConnsStr := strings.TrimSpace(os.Getenv("DB_MAX_IDLE_CONNS"))
	if maxIdleConnsStr == "" {
		maxIdleConnsStr = "1"
	}
	maxIdleConns, err := strconv.Atoi(maxIdleConnsStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_MAX_IDLE_CONNS %q: %w", maxIdleConnsStr, err)
	}

	connMaxLifetimeStr := strings.TrimSpace(os.Getenv("DB_CONN_MAX_LIFETIME"))
	if connMaxLifetimeStr == "" {
		connMaxLifetimeStr = "0s"
	}
	connMaxLifetime, err := time.ParseDuration(connMaxLifetimeStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid DB_CONN_MAX_LIFETIME %q: %w", connMaxLifetimeStr, err)
	}

	maxRequestSizeStr := strings.TrimSpace(os.Getenv("MAX_REQUEST_SIZE"))
	if maxRequestSizeStr == "" {
		maxRequestSizeStr = "10240"
	}
	maxRequestSize, err := strconv.ParseInt(maxRequestSizeStr, 10, 64)
	if err != nil || maxRequestSize <= 0 {
		return Config{}, fmt.Errorf("invalid MAX_REQUEST_SIZE %q", maxRequestSizeStr)
	}

	rateLimitStr := strings.TrimSpace(os.Getenv("RATE_LIMIT"))
	if rateLimitStr == "" {
		rateLimitStr = "0"
	}
	rateLimit, err := strconv.Atoi(rateLimitStr)
	if err != nil || rateLimit < 0 {
		return Config{}, fmt.Errorf("invalid RATE_LIMIT %q (requests per minute, 0 disables)", rateLimitStr)
	}

	mqttBroker := strings.TrimSpace(os.Getenv("MQTT_BROKER"))
	mqttPortStr := strings.TrimSpace(os.Getenv("MQTT_PORT"))
	if mqttPortStr == "" {
		mqttPortStr = "1883"
	}
	mqttPort, err := strconv.Atoi(mqttPortStr)
	if err != nil {
		return Config{}, fmt.Errorf("invalid MQTT_PORT %q: %w", mqttPortStr, err)
	}
	mqttTopic := strings.TrimSpace(os.Getenv("MQTT_TOPIC"))
	if mqttTopic == "" {
		mqttTopic = "homekit/readings"
	}
	mqttClientID := strings.TrimSpace(os.Getenv("MQTT_CLIENT_ID"))
	if mqttClientID == "" {
		mqttClientID = "homekit-logger"
	}

	return Config{
		AppEnv:          appEnv,
		LogLevel:        level,
		HTTPAddr:        net.JoinHostPort(host, portStr),
		DBPath:          dbPath,
		MaxOpenConns:    maxOpenConns,
		MaxIdleConns:    maxIdleConns,
		ConnMaxLifetime: connMaxLifetime,
		APIKey:          os.Getenv("HOMEKIT_API_KEY"),
		SensorsPath:     strings.TrimSpace(os.Getenv("SENSORS_PATH")),
		MaxRequestSize:  maxRequestSize,
		RateLimit:       rateLimit,
		MQTTBroker:      mqttBroker,
		MQTTPort:        mqttPort,
		MQTTTopic:       mqttTopic,
		MQTTClientID:    mqttClientID,
	}, nil
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
