package httpapi

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"homekit-logger/internal/config"
	"homekit-logger/internal/ingest"
	"homekit-logger/internal/registry"
	"homekit-logger/internal/store"
	"homekit-logger/internal/views"
)

// exportBatch is how many rows the CSV export pulls per page before flushing.
const exportBatch = 1000

type API struct {
	cfg     config.Config
	reg     *registry.Registry
	store   *store.Store
	ingest  *ingest.Service
	auth    Authorizer
	limiter *rateLimiter
}

func NewAPI(cfg config.Config, reg *registry.Registry, st *store.Store, svc *ingest.Service) *API {
	api := &API{
		cfg:    cfg,
		reg:    reg,
		store:  st,
		ingest: svc,
		auth:   NewAuthorizer(cfg.APIKey),
	}
	if cfg.RateLimit > 0 {
		api.limiter = newRateLimiter(cfg.RateLimit, time.Minute)
	}
	return api
}

func (a *API) RegisterRoutes(mux *http.ServeMux) {
	protect := func(h http.HandlerFunc) http.HandlerFunc {
		return limitRate(a.limiter, requireAuth(a.auth, h))
	}
	mux.HandleFunc("POST /log", protect(a.handleLog))
	mux.HandleFunc("GET /readings", protect(a.handleReadings))
	mux.HandleFunc("GET /readings/csv", protect(a.handleExportCSV))
	mux.HandleFunc("GET /health", a.handleHealth)
	mux.HandleFunc("GET /", a.handleDashboard)
}

// handleLog ingests one reading posted as a form or a JSON object whose keys
// are registry fields.
func (a *API) handleLog(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.cfg.MaxRequestSize)

	payload, err := decodePayload(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "No data received")
		return
	}

	res, err := a.ingest.Ingest(r.Context(), payload)
	switch {
	case errors.Is(err, ingest.ErrNoData):
		writeError(w, http.StatusBadRequest, "No data received")
		return
	case errors.Is(err, ingest.ErrNoKnownFields):
		writeError(w, http.StatusBadRequest, "No valid sensor data found")
		return
	case err != nil:
		slog.Error("insert reading failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"id":     res.ID,
		"data":   res.Values,
	})
}

func decodePayload(r *http.Request) (map[string]any, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if ct == "application/json" {
		dec := json.NewDecoder(r.Body)
		dec.UseNumber()
		var payload map[string]any
		if err := dec.Decode(&payload); err != nil {
			return nil, err
		}
		return payload, nil
	}

	if err := r.ParseForm(); err != nil {
		return nil, err
	}
	payload := make(map[string]any, len(r.PostForm))
	for key, vals := range r.PostForm {
		if len(vals) > 0 {
			payload[key] = vals[0]
		}
	}
	return payload, nil
}

// handleReadings returns the most recent readings, newest first, as a flat
// JSON array of row objects.
func (a *API) handleReadings(w http.ResponseWriter, r *http.Request) {
	limit := store.DefaultLimit
	if s := strings.TrimSpace(r.URL.Query().Get("limit")); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	readings, err := a.store.Query(r.Context(), limit)
	if err != nil {
		slog.Error("query readings failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	out := make([]map[string]any, 0, len(readings))
	for _, rec := range readings {
		out = append(out, flattenReading(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func flattenReading(r store.Reading) map[string]any {
	row := make(map[string]any, len(r.Values)+2)
	row["id"] = r.ID
	row["timestamp"] = r.Timestamp
	for field, v := range r.Values {
		if v != nil {
			row[field] = *v
		} else {
			row[field] = nil
		}
	}
	return row
}

// handleExportCSV streams every stored reading as CSV, oldest first. Rows are
// paged out of the store and flushed incrementally so the full result set is
// never held in memory.
func (a *API) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	cols, err := a.store.Columns(r.Context())
	if err != nil {
		slog.Error("export: introspect columns failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Database error")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename=homekit_readings.csv`)

	cw := csv.NewWriter(w)
	if err := cw.Write(cols); err != nil {
		slog.Error("export: write header failed", "error", err)
		return
	}

	flusher, _ := w.(http.Flusher)
	written := 0
	err = a.store.Export(r.Context(), exportBatch, func(rec store.Reading) error {
		record := make([]string, len(cols))
		for i, col := range cols {
			switch col {
			case "id":
				record[i] = strconv.FormatInt(rec.ID, 10)
			case "timestamp":
				record[i] = rec.Timestamp
			default:
				if v := rec.Values[col]; v != nil {
					record[i] = strconv.FormatFloat(*v, 'f', -1, 64)
				}
			}
		}
		if err := cw.Write(record); err != nil {
			return err
		}
		written++
		if written%exportBatch == 0 {
			cw.Flush()
			if flusher != nil {
				flusher.Flush()
			}
		}
		return nil
	})
	if err != nil {
		// Headers are gone; all we can do is log and stop the stream.
		slog.Error("export readings failed", "error", err)
		return
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		slog.Error("export: flush failed", "error", err)
	}
}

// handleHealth reports liveness and verifies database connectivity.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := a.store.Count(r.Context())
	if err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status":    "error",
			"message":   "Database connection failed",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"readings_count": count,
		"rate_limiting":  a.limiter != nil,
		"authentication": a.cfg.AuthEnabled(),
	})
}

func (a *API) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	sensors := make([]views.Sensor, 0, a.reg.Len())
	for _, d := range a.reg.Descriptors() {
		sensors = append(sensors, views.Sensor{Field: d.Field, Name: d.Name, Unit: d.Unit})
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := views.RenderDashboard(w, views.DashboardData{Sensors: sensors}); err != nil {
		slog.Error("dashboard template render failed", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to render page")
	}
}
