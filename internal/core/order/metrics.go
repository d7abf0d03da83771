package order

import "github.com/prometheus/client_golang/prometheus"

var (
	ordersPlaced = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spares_orders_placed",
			Help: "Number of orders successfully placed",
		},
	)

	ordersRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "spares_orders_rejected",
			Help: "Number of order placements rejected, by reason",
		},
		[]string{"reason"},
	)

	ordersCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "spares_orders_cancelled",
			Help: "Number of orders cancelled",
		},
	)
)

func init() {
	prometheus.MustRegister(ordersPlaced)
	prometheus.MustRegister(ordersRejected)
	prometheus.MustRegister(ordersCancelled)
}
