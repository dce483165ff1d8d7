package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tradewind-oms/tradewind-oms/internal/challans"
	"github.com/tradewind-oms/tradewind-oms/internal/dashboard"
	"github.com/tradewind-oms/tradewind-oms/internal/observability"
	"github.com/tradewind-oms/tradewind-oms/internal/purchaseorders"
	"github.com/tradewind-oms/tradewind-oms/internal/redemption"
	"github.com/tradewind-oms/tradewind-oms/internal/vendors"
	"github.com/tradewind-oms/tradewind-oms/jobs"
	"github.com/tradewind-oms/tradewind-oms/report"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	PurchaseOrderHandler *purchaseorders.Handler
	VendorHandler        *vendors.Handler
	RedemptionHandler    *redemption.Handler
	ChallanHandler       *challans.Handler
	DashboardHandler     *dashboard.Handler
	ReportHandler        *report.Handler
	JobHandler           *jobs.Handler
	Metrics              *observability.Metrics
}

// NewRouter constructs the chi.Router with Tradewind defaults.
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

	r.Mount("/purchase-orders", params.PurchaseOrderHandler.Routes())
	r.Mount("/vendors", params.VendorHandler.Routes())
	params.RedemptionHandler.Mount(r)
	r.Mount("/delivery-challans", params.ChallanHandler.Routes())
	r.Mount("/dashboard", params.DashboardHandler.Routes())
	r.Mount("/invoices", params.ReportHandler.Routes())
	r.Route("/jobs", params.JobHandler.MountRoutes)

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	return r
}
