package router

import (
	"net/http"
	"time"

	"github.com/afikmenashe/patient-alerting/pkg/metrics"
	"github.com/afikmenashe/patient-alerting/services/monitoring/internal/handlers"
)

// NewServer creates a new HTTP server with the router configured.
func NewServer(port string, h *handlers.Handlers, collector *metrics.Collector) *http.Server {
	router := NewRouter(h, collector)
	return &http.Server{
		Addr:         ":" + port,
		Handler:      router.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
