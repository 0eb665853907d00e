package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Luis3c4/IMEI/api/controllers"
	"github.com/Luis3c4/IMEI/api/middleware"
	"github.com/Luis3c4/IMEI/internal/analytics"
	"github.com/Luis3c4/IMEI/internal/catalog"
	"github.com/Luis3c4/IMEI/internal/devices"
	"github.com/Luis3c4/IMEI/pkg/bigquery"
	"github.com/Luis3c4/IMEI/pkg/config"
	"github.com/Luis3c4/IMEI/pkg/db"
	"github.com/Luis3c4/IMEI/pkg/logger"
	"github.com/Luis3c4/IMEI/pkg/metrics"
	"github.com/Luis3c4/IMEI/pkg/redis"
)

// NewRouter wires the HTTP surface: the reconciliation pipeline, device
// listings, the catalog hierarchy view and the analytics queries, plus
// the health and metrics endpoints the platform scrapes.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger db.Pinger,
	redisPinger redis.Pinger,
	idemStore redis.IdempotencyStore,
	bigqueryPinger bigquery.Pinger,
	catalogService catalog.Service,
	deviceService devices.Service,
	analyticsService analytics.Service,
	pipeline *metrics.PipelineMetrics,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.CORSOrigins),
		middleware.Idempotency(idemStore, logg),
	)

	r.Get("/livez", controllers.HealthLive(cfg))
	r.Get("/readyz", controllers.HealthReady(cfg, logg,
		controllers.Check("postgres", dbPinger),
		controllers.Check("redis", redisPinger),
		controllers.Check("bigquery", bigqueryPinger),
	))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/devices", func(r chi.Router) {
			r.Post("/reconcile", controllers.DeviceReconcile(catalogService, deviceService, pipeline, logg))
			r.Post("/parse", controllers.DeviceParse(logg))
			r.Post("/validate", controllers.DeviceValidate(logg))
			r.Get("/", controllers.DeviceList(deviceService, logg))
			r.Get("/{serial}", controllers.DeviceDetail(deviceService, logg))
			r.Get("/{serial}/lookups", controllers.DeviceLookups(deviceService, logg))
		})

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/hierarchy", controllers.CatalogHierarchy(catalogService, logg))
			r.Patch("/items/{itemId}/status", controllers.CatalogItemStatus(catalogService, logg))
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Get("/sightings", controllers.SightingsAnalytics(analyticsService, logg))
		})
	})

	return r
}
