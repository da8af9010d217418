package httpapi

import (
	"net/http"

	"homekit-logger/internal/config"
	"homekit-logger/internal/ingest"
	"homekit-logger/internal/registry"
	"homekit-logger/internal/store"
)

func NewMux(cfg config.Config, reg *registry.Registry, st *store.Store, svc *ingest.Service) *http.ServeMux {
	mux := http.NewServeMux()
	NewAPI(cfg, reg, st, svc).RegisterRoutes(mux)
	return mux
}
