// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "spendtrack"

// Metrics groups the collectors recorded by the document service.
type Metrics struct {
	// RPCRequests counts finished RPCs by procedure and Connect code.
	RPCRequests *prometheus.CounterVec
	// RPCDuration observes handler latency by procedure. For streams this
	// is the lifetime of the stream.
	RPCDuration *prometheus.HistogramVec
	// ActiveSubscriptions is the number of open expense streams.
	ActiveSubscriptions prometheus.Gauge
	// SnapshotsSent counts expense snapshots pushed to subscribers.
	SnapshotsSent prometheus.Counter
	// ExpenseWrites counts successful writes by op ("add", "remove").
	ExpenseWrites *prometheus.CounterVec
}

// New registers the collectors with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RPCRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_requests_total",
			Help:      "Finished RPCs by procedure and code.",
		}, []string{"procedure", "code"}),
		RPCDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_duration_seconds",
			Help:      "RPC handler duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"procedure"}),
		ActiveSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_subscriptions",
			Help:      "Open expense subscription streams.",
		}),
		SnapshotsSent: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_sent_total",
			Help:      "Expense snapshots sent to subscribers.",
		}),
		ExpenseWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "expense_writes_total",
			Help:      "Successful expense writes by operation.",
		}, []string{"op"}),
	}
}

// NewNop returns metrics registered on a private registry, for callers
// that do not export them.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
