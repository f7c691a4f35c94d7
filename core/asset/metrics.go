package asset

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	resolved    *prometheus.CounterVec
	stale       prometheus.Counter
	fetchFailed prometheus.Counter
	installs    *prometheus.CounterVec
	deduped     prometheus.Counter
}

// newMetrics registers on reg; a nil reg leaves the collectors unregistered.
func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		resolved: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clipforge",
			Subsystem: "asset",
			Name:      "resolved_total",
			Help:      "Resolutions by the tier that supplied the bytes.",
		}, []string{"tier", "kind"}),
		stale: f.NewCounter(prometheus.CounterOpts{
			Namespace: "clipforge",
			Subsystem: "asset",
			Name:      "stale_entries_total",
			Help:      "Cached entries whose source name no longer matched.",
		}),
		fetchFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: "clipforge",
			Subsystem: "asset",
			Name:      "fetch_failures_total",
			Help:      "Network fetches that failed.",
		}),
		installs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clipforge",
			Subsystem: "asset",
			Name:      "installs_total",
			Help:      "Finished package installs by outcome.",
		}, []string{"result"}),
		deduped: f.NewCounter(prometheus.CounterOpts{
			Namespace: "clipforge",
			Subsystem: "asset",
			Name:      "deduplicated_total",
			Help:      "Resolve calls that joined an in-flight resolution.",
		}),
	}
}
