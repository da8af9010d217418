package httpapi

import (
	"net/http"

	"homekit-logger/internal/config"
)

func NewServer(cfg config.Config, mux *http.ServeMux) *http.Server {
	return &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: requestLogger(recoverPanics(mux)),
	}
}
