package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry groups the counters the order and payment pipeline emits.
type Registry struct {
	OrdersCreated       *prometheus.CounterVec
	OrdersCancelled     prometheus.Counter
	PaymentVerification *prometheus.CounterVec
	CouponRedemptions   prometheus.Counter
	GatewayErrors       prometheus.Counter
}

// New registers the pipeline collectors on the given registerer. Passing
// nil registers on the default registry.
func New(reg prometheus.Registerer) *Registry {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Registry{
		OrdersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storekart_orders_created_total",
			Help: "Orders created, labeled by payment method and initial status.",
		}, []string{"method", "status"}),
		OrdersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "storekart_orders_cancelled_total",
			Help: "Orders cancelled.",
		}),
		PaymentVerification: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storekart_payment_verifications_total",
			Help: "Payment callback verifications, labeled by outcome.",
		}, []string{"outcome"}),
		CouponRedemptions: factory.NewCounter(prometheus.CounterOpts{
			Name: "storekart_coupon_redemptions_total",
			Help: "Coupon usages recorded against completed orders.",
		}),
		GatewayErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "storekart_gateway_errors_total",
			Help: "Failed calls to the payment gateway.",
		}),
	}
}
