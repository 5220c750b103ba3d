package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fabline/fabline/internal/auth"
	"github.com/fabline/fabline/internal/inquiries"
	"github.com/fabline/fabline/internal/notifications"
	"github.com/fabline/fabline/internal/observability"
	"github.com/fabline/fabline/internal/orders"
	"github.com/fabline/fabline/internal/platform/httpx"
	"github.com/fabline/fabline/internal/quotations"
	"github.com/fabline/fabline/internal/rbac"
	"github.com/fabline/fabline/internal/sequence"
	"github.com/fabline/fabline/internal/users"
	"github.com/fabline/fabline/jobs"
)

// HealthCheck probes one backing service.
type HealthCheck struct {
	Name  string
	Probe func(ctx context.Context) error
	// Optional checks report degraded instead of failing the endpoint.
	Optional bool
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger  *slog.Logger
	Config  *Config
	Metrics *observability.Metrics

	AuthMiddleware auth.Middleware
	RBACMiddleware rbac.Middleware

	AuthHandler         *auth.Handler
	InquiryHandler      *inquiries.Handler
	QuotationHandler    *quotations.Handler
	OrderHandler        *orders.Handler
	SequenceHandler     *sequence.Handler
	NotificationHandler *notifications.Handler
	RealtimeHandler     http.Handler
	JobHandler          *jobs.Handler
	HealthChecks        []HealthCheck
}

// NewRouter constructs the chi.Router with Fabline defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", healthHandler(params.HealthChecks))
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}

	r.Route("/api", func(r chi.Router) {
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "")
		})

		r.Group(func(r chi.Router) {
			r.Use(RequestTimeout(params.Config))
			r.Route("/auth", params.AuthHandler.MountRoutes)
		})

		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.Authenticate)
			if params.RealtimeHandler != nil {
				r.Method(http.MethodGet, "/realtime/stream", params.RealtimeHandler)
			}

			r.Group(func(r chi.Router) {
				r.Use(RequestTimeout(params.Config))
				r.Route("/inquiries", params.InquiryHandler.MountRoutes)
				r.Route("/quotations", params.QuotationHandler.MountRoutes)
				r.Route("/orders", params.OrderHandler.MountRoutes)
				r.Route("/payments", params.OrderHandler.MountCheckout)
				r.Route("/notifications", params.NotificationHandler.MountRoutes)
				r.Route("/sequences", func(r chi.Router) {
					r.Use(params.RBACMiddleware.RequireAny(users.RoleAdmin))
					params.SequenceHandler.MountRoutes(r)
				})
			})
		})
	})
	return r
}

type healthReport struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

func healthHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()
		report := healthReport{Status: "ok", Checks: map[string]string{}}
		status := http.StatusOK
		for _, c := range checks {
			if err := c.Probe(ctx); err != nil {
				report.Checks[c.Name] = err.Error()
				if c.Optional {
					if report.Status == "ok" {
						report.Status = "degraded"
					}
					continue
				}
				report.Status = "unavailable"
				status = http.StatusServiceUnavailable
				continue
			}
			report.Checks[c.Name] = "ok"
		}
		httpx.JSON(w, status, report)
	}
}
