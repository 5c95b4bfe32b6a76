package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// OnlineUsers number of users holding a registered connection
	OnlineUsers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "bytetalk_online_users",
			Help: "Users currently registered in the connection registry.",
		},
	)

	// RelayEvents relay attempts by event and result (delivered, offline, dropped)
	RelayEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytetalk_relay_events_total",
			Help: "Server pushed events by event name and result.",
		},
		[]string{"event", "result"},
	)

	// StatusTransitions message status requests by target status and result (applied, ignored, missing)
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bytetalk_status_transitions_total",
			Help: "Message status transition requests by target status and result.",
		},
		[]string{"status", "result"},
	)
)

func init() {
	prometheus.MustRegister(OnlineUsers)
	prometheus.MustRegister(RelayEvents)
	prometheus.MustRegister(StatusTransitions)
}
