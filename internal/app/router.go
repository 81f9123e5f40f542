package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/meridian-interiors/meridian-quotes/internal/approval"
	"github.com/meridian-interiors/meridian-quotes/internal/audit"
	"github.com/meridian-interiors/meridian-quotes/internal/changeorders"
	"github.com/meridian-interiors/meridian-quotes/internal/observability"
	"github.com/meridian-interiors/meridian-quotes/internal/quotes"
	"github.com/meridian-interiors/meridian-quotes/internal/rules"
	"github.com/meridian-interiors/meridian-quotes/internal/templates"
	"github.com/meridian-interiors/meridian-quotes/jobs"
	"github.com/meridian-interiors/meridian-quotes/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	QuotesHandler      *quotes.Handler
	TemplatesHandler   *templates.Handler
	ApprovalHandler    *approval.Handler
	ChangeOrderHandler *changeorders.Handler
	RulesHandler       *rules.Handler
	AuditHandler       *audit.Handler
	ReportHandler      *report.Handler
	JobHandler         *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router.
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
		r.Route("/quotations", params.QuotesHandler.MountRoutes)
		r.Route("/templates", params.TemplatesHandler.MountRoutes)
		r.Route("/approval", params.ApprovalHandler.MountRoutes)
		r.Route("/change-orders", params.ChangeOrderHandler.MountRoutes)
		if params.RulesHandler != nil {
			r.Route("/rules", params.RulesHandler.MountRoutes)
		}
		if params.AuditHandler != nil {
			r.Route("/audit", params.AuditHandler.MountRoutes)
		}
	})

	if params.ReportHandler != nil {
		r.Route("/report", params.ReportHandler.MountRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
