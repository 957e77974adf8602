package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/almacen-erp/almacen/internal/auth"
	"github.com/almacen-erp/almacen/internal/catalog/products"
	"github.com/almacen-erp/almacen/internal/catalog/rooms"
	"github.com/almacen-erp/almacen/internal/catalog/suppliers"
	"github.com/almacen-erp/almacen/internal/observability"
	"github.com/almacen-erp/almacen/internal/shared"
	"github.com/almacen-erp/almacen/internal/stats"
	"github.com/almacen-erp/almacen/internal/stock"
	"github.com/almacen-erp/almacen/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	ProductsHandler  *products.Handler
	RoomsHandler     *rooms.Handler
	SuppliersHandler *suppliers.Handler
	StockHandler     *stock.Handler
	StatsHandler     *stats.Handler
	JobsHandler      *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with almacen defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
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

	r.Route("/auth", params.AuthHandler.MountRoutes)

	r.Group(func(r chi.Router) {
		r.Use(RequirePrincipal)

		r.Route("/catalog/products", params.ProductsHandler.MountRoutes)
		r.Route("/catalog/rooms", params.RoomsHandler.MountRoutes)
		r.Route("/catalog/suppliers", params.SuppliersHandler.MountRoutes)
		r.Route("/stock", params.StockHandler.MountRoutes)
		r.Route("/stats", params.StatsHandler.MountRoutes)
		if params.JobsHandler != nil {
			r.Route("/jobs", params.JobsHandler.MountRoutes)
		}
	})

	return r
}
