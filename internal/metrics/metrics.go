package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	OrdersCreated   prometheus.Counter
	OrdersFailed    *prometheus.CounterVec
	OrdersCancelled prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		OrdersCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_created_total",
			Help: "Orders successfully created.",
		}),
		OrdersFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "storefront_orders_failed_total",
			Help: "Order creation attempts that failed, by reason.",
		}, []string{"reason"}),
		OrdersCancelled: factory.NewCounter(prometheus.CounterOpts{
			Name: "storefront_orders_cancelled_total",
			Help: "Orders cancelled with stock restored.",
		}),
	}
}
