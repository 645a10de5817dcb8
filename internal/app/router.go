package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/usergate/usergate/internal/auth"
	"github.com/usergate/usergate/internal/observability"
	"github.com/usergate/usergate/internal/platform/httpx"
	"github.com/usergate/usergate/internal/users"
	"github.com/usergate/usergate/jobs"
)

// ReadinessCheck reports whether a dependency is usable.
type ReadinessCheck func(ctx context.Context) error

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger       *slog.Logger
	Config       *Config
	Tokens       *auth.Tokens
	UsersHandler *users.Handler
	JobHandler   *jobs.Handler
	Metrics      *observability.Metrics
	Readiness    map[string]ReadinessCheck
}

// NewRouter constructs the chi.Router with usergate defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Tokens:  params.Tokens,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", readyHandler(params.Logger, params.Readiness))

	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}

func readyHandler(logger *slog.Logger, checks map[string]ReadinessCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		results := make(map[string]string, len(checks))
		failed := make([]bool, 0, len(checks))
		names := make([]string, 0, len(checks))
		for name := range checks {
			names = append(names, name)
			failed = append(failed, false)
		}
		g, gctx := errgroup.WithContext(ctx)
		for i, name := range names {
			check := checks[name]
			g.Go(func() error {
				if err := check(gctx); err != nil {
					failed[i] = true
					if logger != nil {
						logger.Warn("readiness check failed", slog.String("check", name), slog.Any("error", err))
					}
				}
				return nil
			})
		}
		_ = g.Wait()

		status := http.StatusOK
		for i, name := range names {
			if failed[i] {
				results[name] = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			results[name] = "ok"
		}
		httpx.JSON(w, status, results)
	}
}
