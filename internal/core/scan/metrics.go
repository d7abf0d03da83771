package scan

import "github.com/prometheus/client_golang/prometheus"

var (
	challengesIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spares_scan_challenges_issued",
		Help: "Number of scan challenges issued",
	})
	challengesTriggered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spares_scan_challenges_triggered",
		Help: "Number of scan challenges satisfied by a scan",
	})
	challengesClaimed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spares_scan_challenges_claimed",
		Help: "Number of scan challenges claimed by an order submission",
	})
	challengesExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "spares_scan_challenges_expired",
		Help: "Number of scan challenges that expired before use",
	})
)

func init() {
	prometheus.MustRegister(challengesIssued, challengesTriggered, challengesClaimed, challengesExpired)
}
