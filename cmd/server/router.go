package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	credhandler "shebacred/internal/credential/handler"
	platformmetrics "shebacred/internal/platform/metrics"
	"shebacred/internal/platform/middleware"
	"shebacred/internal/platform/ratelimit"
	dochandler "shebacred/internal/verification/handler"
	"shebacred/pkg/platform/httputil"
)

type healthCheck struct {
	name  string
	check func(ctx context.Context) error
}

type routerDeps struct {
	logger      *slog.Logger
	metrics     *platformmetrics.Metrics
	gatherer    prometheus.Gatherer
	validator   middleware.TokenValidator
	limiter     ratelimit.Store
	submitLimit int
	submitEvery time.Duration
	documents   *dochandler.Handler
	credentials *credhandler.Handler
	checks      []healthCheck
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.logger, d.metrics))

	r.Get("/healthz", healthHandler(d.checks))
	r.Handle("/metrics", promhttp.HandlerFor(d.gatherer, promhttp.HandlerOpts{}))
	d.documents.RegisterPublic(r)

	r.Group(func(r chi.Router) {
		r.Use(middleware.RequireAuth(d.validator, d.metrics, d.logger))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RateLimit(d.limiter, d.submitLimit, d.submitEvery, d.metrics, d.logger))
			d.documents.Register(r)
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireIssuer(d.logger))
			d.credentials.Register(r)
		})
	})
	return r
}

func healthHandler(checks []healthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		status := http.StatusOK
		body := map[string]string{"status": "ok"}
		for _, c := range checks {
			if err := c.check(ctx); err != nil {
				status = http.StatusServiceUnavailable
				body["status"] = "degraded"
				body[c.name] = "unreachable"
				continue
			}
			body[c.name] = "ok"
		}
		httputil.WriteJSON(w, status, body)
	}
}
