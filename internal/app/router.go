package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/ghalla-erp/ghalla-erp/internal/auth"
	"github.com/ghalla-erp/ghalla-erp/internal/b2b"
	"github.com/ghalla-erp/ghalla-erp/internal/marketplace"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/customers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/products"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/receivers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/suppliers"
	"github.com/ghalla-erp/ghalla-erp/internal/masterdata/warehouses"
	"github.com/ghalla-erp/ghalla-erp/internal/observability"
	"github.com/ghalla-erp/ghalla-erp/internal/proforma"
	"github.com/ghalla-erp/ghalla-erp/internal/warehouse"
	"github.com/ghalla-erp/ghalla-erp/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	AuthHandler        *auth.Handler
	CustomerHandler    *customers.Handler
	ReceiverHandler    *receivers.Handler
	SupplierHandler    *suppliers.Handler
	ProductHandler     *products.Handler
	WarehouseHandler   *warehouses.Handler
	InventoryHandler   *warehouse.Handler
	ProformaHandler    *proforma.Handler
	B2BHandler         *b2b.Handler
	MarketplaceHandler *marketplace.Handler
	JobsHandler        *jobs.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router. Everything except the login endpoint,
// the health probe and /metrics sits behind bearer authentication.
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
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	params.AuthHandler.MountRoutes(r)

	r.Group(func(r chi.Router) {
		r.Use(params.AuthHandler.Middleware)

		r.Route("/masterdata", func(r chi.Router) {
			params.CustomerHandler.MountRoutes(r)
			params.ReceiverHandler.MountRoutes(r)
			params.SupplierHandler.MountRoutes(r)
			params.ProductHandler.MountRoutes(r)
			params.WarehouseHandler.MountRoutes(r)
		})
		r.Route("/warehouse", params.InventoryHandler.MountRoutes)
		params.ProformaHandler.MountRoutes(r)
		params.B2BHandler.MountRoutes(r)
		params.MarketplaceHandler.MountRoutes(r)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
