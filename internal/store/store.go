// Package store owns the readings table: schema migration, inserts and reads.
//
// The table is one wide row per reading: id, timestamp, and one nullable REAL
// column per registered sensor field. Migration is additive only — a sensor
// removed from the registry keeps its column so historical data survives.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"homekit-logger/internal/registry"
)

const (
	tableName = "readings"

	// DefaultLimit applies when a query does not specify one.
	DefaultLimit = 100
	// MaxLimit caps a single query regardless of what the caller asks for.
	MaxLimit = 10000

	// defaultExportBatch is how many rows Export fetches per page.
	defaultExportBatch = 1000
)

// Reading is one stored row. Timestamp keeps the storage form (RFC3339-style
// UTC text, lexicographic order equals chronological order); Values holds
// every sensor column of the table, nil where the row has no value.
type Reading struct {
	ID        int64
	Timestamp string
	Values    map[string]*float64
}

type Store struct {
	db  *sql.DB
	reg *registry.Registry
}

func New(db *sql.DB, reg *registry.Registry) *Store {
	return &Store{db: db, reg: reg}
}

// Init creates the readings table if absent, otherwise adds a column for any
// registered field the table is missing. Existing columns are never dropped
// or renamed. The timestamp index is ensured either way. Errors here must
// abort startup.
func (s *Store) Init(ctx context.Context) error {
	exists, err := s.tableExists(ctx)
	if err != nil {
		return fmt.Errorf("check readings table: %w", err)
	}

	if !exists {
		cols := make([]string, 0, s.reg.Len())
		for _, field := range s.reg.Fields() {
			cols = append(cols, quoteIdent(field)+" REAL")
		}
		stmt := fmt.Sprintf(`CREATE TABLE %s (
  id        INTEGER PRIMARY KEY AUTOINCREMENT,
  timestamp TEXT NOT NULL DEFAULT (strftime('%%Y-%%m-%%dT%%H:%%M:%%fZ','now')),
  %s
)`, tableName, strings.Join(cols, ",\n  "))
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create readings table: %w", err)
		}
		slog.Info("created readings table", "sensors", s.reg.Fields())
	} else {
		existing, err := s.Columns(ctx)
		if err != nil {
			return fmt.Errorf("introspect readings table: %w", err)
		}
		present := make(map[string]struct{}, len(existing))
		for _, c := range existing {
			present[c] = struct{}{}
		}
		for _, field := range s.reg.Fields() {
			if _, ok := present[field]; ok {
				continue
			}
			stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s REAL`, tableName, quoteIdent(field))
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("add column %s: %w", field, err)
			}
			slog.Info("added sensor column", "field", field)
		}
	}

	if _, err := s.db.ExecContext(ctx,
		`CREATE INDEX IF NOT EXISTS idx_readings_timestamp ON readings(timestamp)`); err != nil {
		return fmt.Errorf("create timestamp index: %w", err)
	}
	return nil
}

func (s *Store) tableExists(ctx context.Context) (bool, error) {
	var name string
	err := s.db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type='table' AND name=?`, tableName).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Insert writes one reading with the supplied subset of sensor values and
// returns the assigned id. Columns not present in values stay NULL. Keys must
// be registered fields; the ingestion layer filters the payload beforehand.
func (s *Store) Insert(ctx context.Context, values map[string]*float64) (int64, error) {
	if len(values) == 0 {
		return 0, errors.New("insert: no values")
	}

	cols := make([]string, 0, len(values))
	args := make([]any, 0, len(values))
	for _, field := range s.reg.Fields() {
		v, ok := values[field]
		if !ok {
			continue
		}
		cols = append(cols, quoteIdent(field))
		args = append(args, v)
	}
	if len(cols) != len(values) {
		return 0, fmt.Errorf("insert: %d of %d values are not registered fields", len(values)-len(cols), len(values))
	}

	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		tableName, strings.Join(cols, ", "), placeholders(len(cols)))
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("insert reading: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert reading id: %w", err)
	}
	return id, nil
}

// Query returns the most recent readings, newest first. The limit is clamped
// to [1, MaxLimit].
func (s *Store) Query(ctx context.Context, limit int) ([]Reading, error) {
	if limit < 1 {
		limit = 1
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT * FROM readings ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query readings: %w", err)
	}
	defer closeRows(rows, "readings")

	return scanReadings(rows)
}

// Export streams every reading, oldest first, to fn in pages of batch rows
// (defaultExportBatch when batch < 1), so arbitrarily large tables never sit
// in memory at once. It stops early when fn or ctx reports an error.
func (s *Store) Export(ctx context.Context, batch int, fn func(Reading) error) error {
	if batch < 1 {
		batch = defaultExportBatch
	}

	var lastTS string
	var lastID int64
	first := true
	for {
		var (
			rows *sql.Rows
			err  error
		)
		if first {
			rows, err = s.db.QueryContext(ctx,
				`SELECT * FROM readings ORDER BY timestamp ASC, id ASC LIMIT ?`, batch)
		} else {
			rows, err = s.db.QueryContext(ctx,
				`SELECT * FROM readings
				 WHERE timestamp > ? OR (timestamp = ? AND id > ?)
				 ORDER BY timestamp ASC, id ASC LIMIT ?`,
				lastTS, lastTS, lastID, batch)
		}
		if err != nil {
			return fmt.Errorf("export readings: %w", err)
		}

		page, err := scanReadings(rows)
		closeRows(rows, "export")
		if err != nil {
			return fmt.Errorf("export readings: %w", err)
		}
		if len(page) == 0 {
			return nil
		}

		for _, r := range page {
			if err := fn(r); err != nil {
				return err
			}
		}

		last := page[len(page)-1]
		lastTS, lastID = last.Timestamp, last.ID
		first = false

		if len(page) < batch {
			return nil
		}
	}
}

// Columns returns the table's column names in schema order, including
// historical sensor columns no longer in the registry.
func (s *Store) Columns(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `PRAGMA table_info(readings)`)
	if err != nil {
		return nil, fmt.Errorf("table_info: %w", err)
	}
	defer closeRows(rows, "table_info")

	var cols []string
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			deflt      sql.NullString
			primaryKey int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &deflt, &primaryKey); err != nil {
			return nil, err
		}
		cols = append(cols, name)
	}
	return cols, rows.Err()
}

// Count returns the number of stored readings. Used by the health endpoint
// as a cheap connectivity probe.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM readings`).Scan(&n)
	return n, err
}

func scanReadings(rows *sql.Rows) ([]Reading, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out []Reading
	for rows.Next() {
		var (
			id      int64
			ts      sql.NullString
			sensors = make([]sql.NullFloat64, len(cols))
		)
		dests := make([]any, len(cols))
		for i, c := range cols {
			switch c {
			case "id":
				dests[i] = &id
			case "timestamp":
				dests[i] = &ts
			default:
				dests[i] = &sensors[i]
			}
		}
		if err := rows.Scan(dests...); err != nil {
			return nil, err
		}

		r := Reading{ID: id, Timestamp: ts.String, Values: make(map[string]*float64, len(cols)-2)}
		for i, c := range cols {
			if c == "id" || c == "timestamp" {
				continue
			}
			if sensors[i].Valid {
				v := sensors[i].Float64
				r.Values[c] = &v
			} else {
				r.Values[c] = nil
			}
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func closeRows(rows *sql.Rows, what string) {
	if err := rows.Close(); err != nil {
		slog.Error("close rows", "what", what, "error", err)
	}
}

// quoteIdent wraps a validated identifier in double quotes for use in DDL and
// column lists. Field names are constrained to [a-z][a-z0-9_]* by the
// registry, so no escaping is needed.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
