// Package ingest implements the validate→parse→store pipeline shared by the
// HTTP endpoint and the MQTT bridge.
package ingest

import (
	"context"
	"errors"
	"log/slog"

	"homekit-logger/internal/measure"
	"homekit-logger/internal/registry"
	"homekit-logger/internal/store"
)

var (
	// ErrNoData means the payload was empty.
	ErrNoData = errors.New("no data received")
	// ErrNoKnownFields means the payload contained no registered sensor field.
	ErrNoKnownFields = errors.New("no valid sensor data found")
)

// Result is a successful ingestion: the assigned row id and the parsed
// values. Fields that were present but failed to parse appear as nil so the
// caller can see which fields parsed.
type Result struct {
	ID     int64
	Values map[string]*float64
}

type Service struct {
	reg   *registry.Registry
	store *store.Store
}

func NewService(reg *registry.Registry, st *store.Store) *Service {
	return &Service{reg: reg, store: st}
}

// Ingest filters the payload to registered fields, parses each value, and
// persists one reading. Unknown payload keys are silently ignored; a payload
// with nothing recognizable fails with ErrNoKnownFields and stores nothing.
// Posting the same payload twice creates two distinct readings.
func (s *Service) Ingest(ctx context.Context, payload map[string]any) (Result, error) {
	if len(payload) == 0 {
		return Result{}, ErrNoData
	}

	parsed := make(map[string]*float64)
	for _, field := range s.reg.Fields() {
		raw, ok := payload[field]
		if !ok {
			continue
		}
		parsed[field] = measure.Parse(raw)
	}
	if len(parsed) == 0 {
		return Result{}, ErrNoKnownFields
	}

	id, err := s.store.Insert(ctx, parsed)
	if err != nil {
		return Result{}, err
	}

	slog.Info("logged reading", "reading_id", id, "fields", len(parsed))
	return Result{ID: id, Values: parsed}, nil
}
