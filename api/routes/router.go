package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stockline/backoffice/api/controllers"
	"github.com/stockline/backoffice/api/middleware"
	"github.com/stockline/backoffice/internal/alerts"
	"github.com/stockline/backoffice/internal/analytics"
	"github.com/stockline/backoffice/internal/customers"
	"github.com/stockline/backoffice/internal/orders"
	"github.com/stockline/backoffice/internal/products"
	"github.com/stockline/backoffice/internal/sales"
	"github.com/stockline/backoffice/pkg/config"
	"github.com/stockline/backoffice/pkg/logger"
	"github.com/stockline/backoffice/pkg/metrics"
)

// Base carries what every service router shares.
type Base struct {
	Config  *config.Config
	Service string
	Logger  *logger.Logger
	// Registry backs /metrics and the HTTP duration histogram. Nil skips both.
	Registry *prometheus.Registry
	// Ready lists the dependencies probed by /health/ready.
	Ready map[string]controllers.Pinger
}

func newRouter(b Base) chi.Router {
	r := chi.NewRouter()

	var httpMetrics *metrics.HTTPMetrics
	if b.Registry != nil {
		httpMetrics = metrics.NewHTTPMetrics(b.Registry)
	}
	r.Use(
		middleware.Recoverer(b.Logger),
		middleware.RequestID(b.Logger),
		middleware.Logging(b.Logger, httpMetrics),
		middleware.CORS(b.Config.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(b.Config, b.Service))
		r.Get("/ready", controllers.HealthReady(b.Service, b.Ready, b.Logger))
	})
	if b.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(b.Registry, promhttp.HandlerOpts{Registry: b.Registry}))
	}
	return r
}

// NewOrderRouter serves orders, the sales rollups and the dashboard socket.
// Order creation honours an Idempotency-Key header when replay is set.
func NewOrderRouter(b Base, orderSvc orders.Service, salesSvc sales.Service, replay middleware.ReplayStore, hub http.Handler) http.Handler {
	r := newRouter(b)
	if hub != nil {
		r.Handle("/ws", hub)
	}

	r.Route("/api/orders", func(r chi.Router) {
		r.With(middleware.Idempotency(replay, 0, b.Logger)).Post("/", controllers.CreateOrder(orderSvc, b.Logger))
		r.Get("/", controllers.ListOrders(orderSvc, b.Logger))
		r.Get("/query", controllers.QueryOrders(orderSvc, b.Logger))
		r.Get("/{orderId}", controllers.GetOrder(orderSvc, b.Logger))
		r.Patch("/{orderId}/status", controllers.UpdateOrderStatus(orderSvc, b.Logger))
	})

	r.Route("/api/sales", func(r chi.Router) {
		r.Get("/overview", controllers.SalesOverview(salesSvc, b.Logger))
		r.Get("/monthly", controllers.MonthlySales(salesSvc, b.Logger))
		r.Get("/yearly", controllers.YearlySales(salesSvc, b.Logger))
		r.Get("/top-products", controllers.TopProducts(salesSvc, b.Logger))
		r.Get("/low-products", controllers.LowProducts(salesSvc, b.Logger))
		r.Get("/overall", controllers.OverallMetrics(salesSvc, b.Logger))
	})
	return r
}

// NewProductRouter serves the catalog. Fixed paths are registered before
// the {productId} patterns.
func NewProductRouter(b Base, productSvc products.Service, categorySvc products.CategoryService) http.Handler {
	r := newRouter(b)

	r.Route("/api/products", func(r chi.Router) {
		r.Post("/", controllers.CreateProduct(productSvc, b.Logger))
		r.Get("/", controllers.ListProducts(productSvc, b.Logger))
		r.Get("/paginated", controllers.PaginatedProducts(productSvc, b.Logger))
		r.Get("/counts", controllers.ProductCounts(productSvc, b.Logger))
		r.Get("/bulk", controllers.BulkProducts(productSvc, b.Logger))
		r.Patch("/bulk-delete", controllers.BulkDeleteProducts(productSvc, b.Logger))
		r.Route("/{productId}", func(r chi.Router) {
			r.Get("/", controllers.GetProduct(productSvc, b.Logger))
			r.Patch("/", controllers.UpdateProduct(productSvc, b.Logger))
			r.Patch("/inventory", controllers.SetProductInventory(productSvc, b.Logger))
			r.Patch("/decrease-stock", controllers.DecreaseStock(productSvc, b.Logger))
			r.Patch("/restore-stock", controllers.RestoreStock(productSvc, b.Logger))
		})
	})

	r.Route("/api/categories", func(r chi.Router) {
		r.Post("/", controllers.CreateCategory(categorySvc, b.Logger))
		r.Get("/", controllers.ListCategories(categorySvc, b.Logger))
		r.Get("/{categoryId}", controllers.GetCategory(categorySvc, b.Logger))
	})
	return r
}

func NewAlertRouter(b Base, svc alerts.Service, hub http.Handler) http.Handler {
	r := newRouter(b)
	if hub != nil {
		r.Handle("/ws", hub)
	}

	r.Route("/api/alerts", func(r chi.Router) {
		r.Get("/", controllers.ListAlerts(svc, b.Logger))
		r.Post("/", controllers.CreateAlert(svc, b.Logger))
		r.Delete("/", controllers.ClearAlerts(svc, b.Logger))
		r.Patch("/{alertId}/resolve", controllers.ResolveAlert(svc, b.Logger))
		r.Delete("/{alertId}", controllers.DeleteAlert(svc, b.Logger))
	})
	return r
}

func NewCustomerRouter(b Base, svc customers.Service) http.Handler {
	r := newRouter(b)

	r.Route("/api/customers", func(r chi.Router) {
		r.Get("/", controllers.ListCustomers(svc, b.Logger))
		r.Post("/", controllers.CreateCustomer(svc, b.Logger))
		r.Get("/query", controllers.QueryCustomers(svc, b.Logger))
		r.Route("/{customerId}", func(r chi.Router) {
			r.Get("/", controllers.GetCustomer(svc, b.Logger))
			r.Put("/", controllers.ReplaceCustomer(svc, b.Logger))
			r.Patch("/", controllers.PatchCustomer(svc, b.Logger))
			r.Patch("/block", controllers.BlockCustomer(svc, b.Logger))
			r.Delete("/", controllers.DeleteCustomer(svc, b.Logger))
		})
	})
	return r
}

func NewAnalyticsRouter(b Base, svc analytics.Service) http.Handler {
	r := newRouter(b)

	r.Route("/api/analytics", func(r chi.Router) {
		r.Get("/", controllers.RecentAnalyticsEvents(svc, b.Logger))
		r.Get("/rollups", controllers.RollupSnapshots(svc, b.Logger))
	})
	return r
}
