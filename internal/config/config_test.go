package config

import (
	"log/slog"
	"testing"
	"time"
)

func TestLoadFromEnv_Defaults(t *testing.T) {
	for _, key := range []string{
		"APP_ENV", "LOG_LEVEL", "HOMEKIT_HOST", "HOMEKIT_PORT", "HOMEKIT_DB_PATH",
		"HOMEKIT_API_KEY", "SENSORS_PATH", "MAX_REQUEST_SIZE", "RATE_LIMIT",
		"DB_MAX_OPEN_CONNS", "DB_MAX_IDLE_CONNS", "DB_CONN_MAX_LIFETIME",
		"MQTT_BROKER", "MQTT_PORT", "MQTT_TOPIC", "MQTT_CLIENT_ID",
	} {
		t.Setenv(key, "")
	}

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.AppEnv != "dev" {
		t.Errorf("AppEnv = %q; want dev", cfg.AppEnv)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel = %v; want info", cfg.LogLevel)
	}
	if cfg.HTTPAddr != "0.0.0.0:5000" {
		t.Errorf("HTTPAddr = %q; want 0.0.0.0:5000", cfg.HTTPAddr)
	}
	if cfg.DBPath != "homekit_data.db" {
		t.Errorf("DBPath = %q; want homekit_data.db", cfg.DBPath)
	}
	if cfg.MaxRequestSize != 10240 {
		t.Errorf("MaxRequestSize = %d; want 10240", cfg.MaxRequestSize)
	}
	if cfg.RateLimit != 0 {
		t.Errorf("RateLimit = %d; want 0", cfg.RateLimit)
	}
	if cfg.AuthEnabled() {
		t.Error("AuthEnabled() = true with no key")
	}
	if cfg.MQTTEnabled() {
		t.Error("MQTTEnabled() = true with no broker")
	}
	if cfg.ConnMaxLifetime != 0 {
		t.Errorf("ConnMaxLifetime = %v; want 0", cfg.ConnMaxLifetime)
	}
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HOMEKIT_HOST", "127.0.0.1")
	t.Setenv("HOMEKIT_PORT", "8080")
	t.Setenv("HOMEKIT_DB_PATH", "/data/readings.db")
	t.Setenv("HOMEKIT_API_KEY", "secret")
	t.Setenv("MAX_REQUEST_SIZE", "2048")
	t.Setenv("RATE_LIMIT", "30")
	t.Setenv("DB_CONN_MAX_LIFETIME", "5m")
	t.Setenv("MQTT_BROKER", "broker.local")

	cfg, err := LoadFromEnv()
	if err != nil {
		t.Fatalf("LoadFromEnv: %v", err)
	}
	if cfg.HTTPAddr != "127.0.0.1:8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if !cfg.AuthEnabled() || cfg.APIKey != "secret" {
		t.Errorf("APIKey = %q; want secret", cfg.APIKey)
	}
	if cfg.RateLimit != 30 {
		t.Errorf("RateLimit = %d; want 30", cfg.RateLimit)
	}
	if cfg.MaxRequestSize != 2048 {
		t.Errorf("MaxRequestSize = %d; want 2048", cfg.MaxRequestSize)
	}
	if cfg.ConnMaxLifetime != 5*time.Minute {
		t.Errorf("ConnMaxLifetime = %v; want 5m", cfg.ConnMaxLifetime)
	}
	if !cfg.MQTTEnabled() || cfg.MQTTPort != 1883 {
		t.Errorf("mqtt = %q:%d; want broker.local:1883", cfg.MQTTBroker, cfg.MQTTPort)
	}
}

func TestLoadFromEnv_Invalid(t *testing.T) {
	cases := map[string]string{
		"APP_ENV":      "staging",
		"LOG_LEVEL":    "verbose",
		"HOMEKIT_PORT": "notaport",
		"RATE_LIMIT":   "-1",
	}
	for key, val := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, val)
			if _, err := LoadFromEnv(); err == nil {
				t.Errorf("LoadFromEnv with %s=%q: expected error", key, val)
			}
		})
	}
}
