package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	circuitsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "caserver",
			Subsystem: "tcp",
			Name:      "circuits_active",
			Help:      "Open client circuits.",
		},
	)
	channelsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "caserver",
			Subsystem: "tcp",
			Name:      "channels_active",
			Help:      "Channels created and not yet cleared.",
		},
	)
	searchRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caserver",
			Subsystem: "udp",
			Name:      "search_requests_total",
			Help:      "Name search requests received.",
		},
		[]string{"server", "found"},
	)
	readRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caserver",
			Subsystem: "tcp",
			Name:      "read_requests_total",
			Help:      "Read-notify requests handled.",
		},
		[]string{"server", "status"},
	)
	writeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caserver",
			Subsystem: "tcp",
			Name:      "write_requests_total",
			Help:      "Write and write-notify requests handled.",
		},
		[]string{"server", "status"},
	)
	monitorEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caserver",
			Subsystem: "monitor",
			Name:      "events_total",
			Help:      "Monitor snapshots forwarded to subscribers.",
		},
		[]string{"source"},
	)
	monitorDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "caserver",
			Subsystem: "monitor",
			Name:      "events_dropped_total",
			Help:      "Monitor snapshots dropped on full subscriber buffers.",
		},
		[]string{"source"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			circuitsActive, channelsActive,
			searchRequests, readRequests, writeRequests,
			monitorEvents, monitorDrops,
		)
	})
}

func CircuitOpened() {
	RegisterMetrics()
	circuitsActive.Inc()
}

func CircuitClosed() {
	RegisterMetrics()
	circuitsActive.Dec()
}

func ChannelCreated() {
	RegisterMetrics()
	channelsActive.Inc()
}

func ChannelCleared() {
	RegisterMetrics()
	channelsActive.Dec()
}

func RecordSearch(server string, found bool) {
	RegisterMetrics()
	label := "miss"
	if found {
		label = "hit"
	}
	searchRequests.WithLabelValues(server, label).Inc()
}

func RecordRead(server string, ok bool) {
	RegisterMetrics()
	readRequests.WithLabelValues(server, statusLabel(ok)).Inc()
}

func RecordWrite(server string, ok bool) {
	RegisterMetrics()
	writeRequests.WithLabelValues(server, statusLabel(ok)).Inc()
}

// RecordMonitorEvents counts monitor snapshots by what happened to
// them. Circuits record deliveries; providers record the snapshots
// they had to drop on full subscriber buffers.
func RecordMonitorEvents(source string, delivered, dropped int) {
	RegisterMetrics()
	if delivered > 0 {
		monitorEvents.WithLabelValues(source).Add(float64(delivered))
	}
	if dropped > 0 {
		monitorDrops.WithLabelValues(source).Add(float64(dropped))
	}
}

func statusLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}
