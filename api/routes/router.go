package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/kitstock-backend/api/controllers"
	"github.com/angelmondragon/kitstock-backend/api/middleware"
	"github.com/angelmondragon/kitstock-backend/internal/availability"
	"github.com/angelmondragon/kitstock-backend/internal/cart"
	"github.com/angelmondragon/kitstock-backend/internal/checkout"
	"github.com/angelmondragon/kitstock-backend/internal/ledger"
	"github.com/angelmondragon/kitstock-backend/internal/orders"
	"github.com/angelmondragon/kitstock-backend/internal/providers"
	"github.com/angelmondragon/kitstock-backend/internal/sets"
	"github.com/angelmondragon/kitstock-backend/pkg/config"
	"github.com/angelmondragon/kitstock-backend/pkg/enums"
	"github.com/angelmondragon/kitstock-backend/pkg/logger"
	"github.com/angelmondragon/kitstock-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/kitstock-backend/pkg/redis"
)

// Services is everything the HTTP surface dispatches to.
type Services struct {
	Availability availability.Service
	Cart         cart.Service
	Checkout     checkout.Service
	Orders       orders.Service
	Ledger       ledger.Service
	Catalog      sets.Service
	Providers    providers.Service
}

// Infra carries the shared clients the middleware stack and probes use.
type Infra struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	RateLimit   middleware.RateLimitStore
	Gatherer    prometheus.Gatherer
	HTTPMetrics *metrics.HTTPMetrics
}

func NewRouter(cfg *config.Config, logg *logger.Logger, infra Infra, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Recoverer(logg),
		middleware.Observe(logg, infra.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": infra.DB,
			"redis":    infra.Redis,
		}))
	})
	if infra.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(infra.Gatherer, promhttp.HandlerOpts{}))
	}

	limits := cfg.RateLimit
	reserveLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("reserve", limits.Window, limits.ReserveActorLimit, limits.ReserveIPLimit),
		infra.RateLimit, logg,
	)
	checkoutLimit := middleware.RateLimit(
		middleware.NewRateLimitPolicy("checkout", limits.Window, limits.CheckoutActorLimit, limits.CheckoutIPLimit),
		infra.RateLimit, logg,
	)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sets", func(r chi.Router) {
			r.Get("/availability", controllers.SetAvailabilityBatch(svc.Availability, logg))
			r.Get("/{setID}/availability", controllers.SetAvailability(svc.Availability, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(
				middleware.Auth(cfg.JWT, logg),
				middleware.Idempotency(infra.Idempotency, logg),
			)

			r.Route("/cart/reservations", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleCustomer, enums.ActorRoleAdmin))
				r.With(reserveLimit).Post("/", controllers.CartReserve(svc.Cart, logg))
				r.Get("/", controllers.CartList(svc.Cart, logg))
				r.Delete("/", controllers.CartReleaseAll(svc.Cart, logg))
				r.Delete("/{setID}", controllers.CartRelease(svc.Cart, logg))
			})

			r.Route("/orders", func(r chi.Router) {
				r.With(middleware.RequireRole(logg, enums.ActorRoleCustomer, enums.ActorRoleAdmin), checkoutLimit).
					Post("/", controllers.OrderCreate(svc.Checkout, logg))
				r.Get("/", controllers.OrderList(svc.Orders, logg))
				r.Get("/{orderID}", controllers.OrderDetail(svc.Orders, logg))
				r.Patch("/{orderID}/status", controllers.OrderUpdateStatus(svc.Orders, logg))
			})

			r.Route("/provider", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleProvider))
				r.Post("/offerings", controllers.ProviderCreateOffering(svc.Providers, logg))
				r.Get("/offerings", controllers.OfferingList(svc.Providers, logg))
				r.Patch("/offerings/{offeringID}/quantity", controllers.ProviderUpdateQuantity(svc.Providers, logg))
				r.Patch("/offerings/{offeringID}/visibility", controllers.OfferingSetVisibility(svc.Providers, logg))
				r.Get("/orders", controllers.ProviderOrderList(svc.Orders, logg))
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.RequireRole(logg, enums.ActorRoleAdmin))
				r.Get("/orders", controllers.AdminOrderList(svc.Orders, logg))
				r.Delete("/orders/{orderID}", controllers.AdminOrderDelete(svc.Orders, logg))
				r.Post("/parts", controllers.AdminCreatePart(svc.Catalog, logg))
				r.Post("/parts/{partID}/adjustments", controllers.AdminAdjustPart(svc.Ledger, logg))
				r.Get("/parts/{partID}/transactions", controllers.AdminPartTransactions(svc.Ledger, logg))
				r.Post("/sets", controllers.AdminCreateSet(svc.Catalog, logg))
				r.Get("/offerings", controllers.OfferingList(svc.Providers, logg))
				r.Patch("/offerings/{offeringID}/status", controllers.AdminOfferingStatus(svc.Providers, logg))
				r.Patch("/offerings/{offeringID}/visibility", controllers.OfferingSetVisibility(svc.Providers, logg))
			})
		})
	})

	return r
}
