// Package http assembles the API surface: middleware chain, versioned routes,
// and the unauthenticated operational endpoints.
package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"vaultdao/internal/activity"
	"vaultdao/internal/export"
	"vaultdao/internal/platform/middleware"
	vaulthandler "vaultdao/internal/vault/handler"
)

// HealthChecker reports a dependency's liveness for /healthz.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Deps carries everything the router mounts.
type Deps struct {
	Vault    *vaulthandler.Handler
	Activity *activity.Handler
	Export   *export.Handler
	Verifier *middleware.Verifier
	Logger   *slog.Logger
	Health   map[string]HealthChecker
}

// New builds the complete router. Everything under /api/v1 requires a valid
// bearer token; /healthz and /metrics stay open for probes and scrapers.
func New(d Deps) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestID)

	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middleware.RequireAuth(d.Verifier, d.Logger))
		d.Vault.Register(api)
		d.Activity.Register(api)
		d.Export.Register(api)
	})

	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", healthz(d))
	return r
}

func healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := http.StatusOK
		checks := make(map[string]string, len(d.Health))
		for name, checker := range d.Health {
			if err := checker.Health(r.Context()); err != nil {
				checks[name] = err.Error()
				status = http.StatusServiceUnavailable
				continue
			}
			checks[name] = "ok"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": http.StatusText(status),
			"checks": checks,
		})
	}
}
