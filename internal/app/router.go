package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/thebenmerlin/material-management-api/internal/auth"
	"github.com/thebenmerlin/material-management-api/internal/dashboard"
	"github.com/thebenmerlin/material-management-api/internal/indents"
	"github.com/thebenmerlin/material-management-api/internal/materials"
	"github.com/thebenmerlin/material-management-api/internal/observability"
	"github.com/thebenmerlin/material-management-api/internal/orders"
	"github.com/thebenmerlin/material-management-api/internal/receipts"
	"github.com/thebenmerlin/material-management-api/internal/reports"
	"github.com/thebenmerlin/material-management-api/internal/shared"
	"github.com/thebenmerlin/material-management-api/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	AuthHandler      *auth.Handler
	AuthMiddleware   *auth.Middleware
	MaterialsHandler *materials.Handler
	IndentsHandler   *indents.Handler
	OrdersHandler    *orders.Handler
	ReceiptsHandler  *receipts.Handler
	DashboardHandler *dashboard.Handler
	ReportsHandler   *reports.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with application defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", params.AuthHandler.MountRoutes)

		// Everything below requires a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(params.AuthMiddleware.Authenticate)
			r.Route("/materials", params.MaterialsHandler.MountRoutes)
			r.Route("/indents", params.IndentsHandler.MountRoutes)
			r.Route("/orders", params.OrdersHandler.MountRoutes)
			r.Route("/receipts", params.ReceiptsHandler.MountRoutes)
			r.Route("/dashboard", params.DashboardHandler.MountRoutes)
			r.Route("/reports", func(r chi.Router) {
				r.Use(auth.RequireRole(shared.RolePurchaseTeam, shared.RoleDirector))
				params.ReportsHandler.MountRoutes(r)
			})
			if params.JobsHandler != nil {
				r.Route("/jobs", params.JobsHandler.MountRoutes)
			}
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
