package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pdalogistics-backend/api/controllers"
	"github.com/angelmondragon/pdalogistics-backend/api/middleware"
	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

// Params configure the operational router every binary exposes.
type Params struct {
	Env      string
	Logger   *logger.Logger
	Checks   []controllers.Check
	Gatherer prometheus.Gatherer
}

// NewRouter serves liveness, readiness and Prometheus metrics. Business
// endpoints are not exposed over HTTP.
func NewRouter(params Params) http.Handler {
	gatherer := params.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(params.Logger),
		middleware.RequestID(params.Logger),
		middleware.Logging(params.Logger),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(params.Env))
		r.Get("/ready", controllers.HealthReady(params.Env, params.Logger, params.Checks))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return r
}
