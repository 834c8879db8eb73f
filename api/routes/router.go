package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anshgupta/storekart-backend/api/handlers"
	"github.com/anshgupta/storekart-backend/api/middleware"
	"github.com/anshgupta/storekart-backend/internal/cart"
	"github.com/anshgupta/storekart-backend/internal/orders"
	"github.com/anshgupta/storekart-backend/internal/payments"
	"github.com/anshgupta/storekart-backend/internal/returns"
	"github.com/anshgupta/storekart-backend/internal/settings"
	"github.com/anshgupta/storekart-backend/pkg/config"
	"github.com/anshgupta/storekart-backend/pkg/db"
	"github.com/anshgupta/storekart-backend/pkg/logger"
	"github.com/anshgupta/storekart-backend/pkg/redis"
)

// Services bundles everything the router mounts.
type Services struct {
	Cart     cart.Service
	Orders   orders.Service
	Payments payments.Service
	Returns  returns.Service
	Settings settings.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", handlers.HealthLive(cfg))
		r.Get("/ready", handlers.HealthReady(cfg, logg, dbP, redisP))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.RequireUser(logg))

		r.Route("/cart", func(r chi.Router) {
			r.Get("/", handlers.CartGet(svcs.Cart, logg))
			r.Post("/items", handlers.CartAddItem(svcs.Cart, logg))
			r.Patch("/items/{itemID}", handlers.CartUpdateItem(svcs.Cart, logg))
			r.Delete("/items/{itemID}", handlers.CartRemoveItem(svcs.Cart, logg))
			r.Delete("/", handlers.CartClear(svcs.Cart, logg))
		})

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", handlers.OrderCreate(svcs.Orders, logg))
			r.Get("/", handlers.OrderList(svcs.Orders, logg))
			r.Get("/{orderID}", handlers.OrderGet(svcs.Orders, logg))
			r.Post("/{orderID}/cancel", handlers.OrderCancel(svcs.Orders, logg))
			r.Post("/{orderID}/complete-payment", handlers.OrderCompletePayment(svcs.Orders, logg))
			r.Get("/{orderID}/history", handlers.OrderHistory(svcs.Orders, logg))
		})

		r.Route("/payments", func(r chi.Router) {
			r.Post("/initiate", handlers.PaymentInitiate(svcs.Payments, logg))
			r.Post("/verify", handlers.PaymentVerify(svcs.Payments, logg))
			r.Get("/cards", handlers.SavedCardList(svcs.Payments, logg))
		})

		r.Post("/coupons/validate", handlers.CouponValidate(svcs.Orders, logg))

		r.Route("/returns", func(r chi.Router) {
			r.Post("/", handlers.ReturnCreate(svcs.Returns, logg))
			r.Get("/", handlers.ReturnList(svcs.Returns, logg))
			r.Get("/{returnID}", handlers.ReturnGet(svcs.Returns, logg))
		})
	})

	// ops surface; fronted by the internal gateway, not exposed publicly
	r.Route("/api/ops/v1", func(r chi.Router) {
		r.Post("/orders/{orderID}/ship", handlers.OrderShip(svcs.Orders, logg))
		r.Post("/orders/{orderID}/deliver", handlers.OrderDeliver(svcs.Orders, logg))

		r.Get("/returns/pending", handlers.ReturnListPending(svcs.Returns, logg))
		r.Post("/returns/{returnID}/approve", handlers.ReturnApprove(svcs.Returns, logg))
		r.Post("/returns/{returnID}/reject", handlers.ReturnReject(svcs.Returns, logg))

		r.Get("/settings/{key}", handlers.SettingGet(svcs.Settings, logg))
		r.Put("/settings/{key}", handlers.SettingSet(svcs.Settings, logg))
	})

	return r
}
