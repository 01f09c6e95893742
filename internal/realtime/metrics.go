package realtime

import "github.com/prometheus/client_golang/prometheus"

// Event outcomes recorded by chat_events_total.
const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeDropped  = "dropped"
	outcomeLimited  = "rate_limited"
	unknownEventTag = "unknown"
)

var (
	// wsConnections gauges open realtime connections.
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_connections",
			Help: "Current number of open realtime connections.",
		},
	)

	// eventsTotal counts inbound events by canonical name and outcome. Unknown
	// names collapse into a single label value.
	eventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_events_total",
			Help: "Inbound realtime events by event name and outcome.",
		},
		[]string{"event", "outcome"},
	)

	// fanoutTotal counts per-subscriber deliveries by outbound event name.
	fanoutTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_total",
			Help: "Events delivered to room subscribers by event name.",
		},
		[]string{"event"},
	)

	// fanoutFailures counts deliveries that failed and were dropped.
	fanoutFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_fanout_failures_total",
			Help: "Room deliveries dropped because the subscriber could not accept them.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, eventsTotal, fanoutTotal, fanoutFailures)
}
