package server

import (
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/affmigrate/internal/shared"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter builds the service router with batch endpoints, /metrics from gatherer and /healthz.
// Principals are resolved from cfg.
func NewRouter(logger *log.Logger, cfg shared.ServerConfig, batches *BatchHandler, gatherer prometheus.Gatherer) *BasicRouter {
	router := NewBasicRouter()
	router.Use(RecoverMiddleware(logger), RequestIDMiddleware, LoggingMiddleware(logger), PrincipalMiddleware(cfg, logger))

	router.Handler(batches)
	router.Handle(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	router.Handle(http.MethodGet, "/healthz", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}))

	return router
}
