package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"homekit-logger/internal/config"
	"homekit-logger/internal/db"
	"homekit-logger/internal/httpapi"
	"homekit-logger/internal/ingest"
	"homekit-logger/internal/mqtt"
	"homekit-logger/internal/registry"
	"homekit-logger/internal/store"
	"homekit-logger/internal/views"
)

func Run(ctx context.Context, cfg config.Config) error {
	slog.Info("config loaded",
		"appEnv", cfg.AppEnv,
		"logLevel", cfg.LogLevel.String(),
		"httpAddr", cfg.HTTPAddr,
		"dbPath", cfg.DBPath,
		"sensorsPath", cfg.SensorsPath,
		"authentication", cfg.AuthEnabled(),
		"rateLimit", cfg.RateLimit,
		"maxRequestSize", cfg.MaxRequestSize,
		"mqttEnabled", cfg.MQTTEnabled(),
	)

	reg, err := loadRegistry(cfg)
	if err != nil {
		return err
	}
	slog.Info("sensor configuration validated", "sensors", reg.Fields())

	dbConn, err := db.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(dbConn); closeErr != nil {
			slog.Error("db close", "error", closeErr)
		}
	}()

	st := store.New(dbConn, reg)
	if err := st.Init(ctx); err != nil {
		return err
	}
	slog.Info("database initialized", "path", cfg.DBPath)

	if err := views.LoadTemplates(); err != nil {
		return err
	}

	svc := ingest.NewService(reg, st)
	mux := httpapi.NewMux(cfg, reg, st, svc)
	srv := httpapi.NewServer(cfg, mux)

	var subscriber *mqtt.Subscriber
	if cfg.MQTTEnabled() {
		subscriber = mqtt.NewSubscriber(cfg, svc)
		// Short timeout so a dead broker doesn't block startup; the client
		// keeps retrying in the background.
		connectCtx, connectCancel := context.WithTimeout(ctx, 5*time.Second)
		err := subscriber.Connect(connectCtx)
		connectCancel()
		if err != nil {
			slog.Warn("mqtt connection failed (continuing without mqtt)", "error", err)
		}
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if subscriber != nil {
		slog.Info("mqtt disconnecting")
		subscriber.Disconnect()
	}

	slog.Info("http shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	err = <-errCh
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return ctx.Err()
}

func loadRegistry(cfg config.Config) (*registry.Registry, error) {
	if cfg.SensorsPath == "" {
		return registry.Default(), nil
	}
	return registry.Load(cfg.SensorsPath)
}
