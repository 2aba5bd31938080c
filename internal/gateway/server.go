package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux. All endpoints are read-only.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", g.handleHealth())
	r.Get("/status", g.handleStatus())
	r.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(g.metrics.Registry(), promhttp.HandlerOpts{}))

	return r
}
