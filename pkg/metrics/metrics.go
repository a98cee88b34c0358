// Package metrics holds the Prometheus collectors the transaction manager
// records into.
package metrics

import (
	"time"
	"txmanager/pkg/concurrency/lock"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "txmanager"

// Lock request outcomes
const (
	OutcomeGranted   = "granted"
	OutcomeReentrant = "reentrant"
	OutcomeWaited    = "waited"
	OutcomeFailed    = "failed"
)

// Transaction outcomes
const (
	OutcomeCommitted = "committed"
	OutcomeAborted   = "aborted"
)

// Metrics is the set of collectors for one manager.
type Metrics struct {
	LockRequests        *prometheus.CounterVec
	Transactions        *prometheus.CounterVec
	ActiveTransactions  prometheus.Gauge
	WaitingTransactions prometheus.Gauge
	LockWait            prometheus.Histogram
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		LockRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lock_requests_total",
			Help:      "Lock requests by mode and outcome.",
		}, []string{"mode", "outcome"}),
		Transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transactions_total",
			Help:      "Terminated transactions by outcome.",
		}, []string{"outcome"}),
		ActiveTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_transactions",
			Help:      "Transactions currently in the registry.",
		}),
		WaitingTransactions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "waiting_transactions",
			Help:      "Transactions parked behind a conflicting lock holder.",
		}),
		LockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "lock_wait_seconds",
			Help:      "Time a lock request spent blocked before it was granted.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		}),
	}

	if reg == nil {
		return m, nil
	}
	for _, c := range m.collectors() {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MustNew is New that panics on a registration conflict.
func MustNew(reg prometheus.Registerer) *Metrics {
	m, err := New(reg)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.LockRequests,
		m.Transactions,
		m.ActiveTransactions,
		m.WaitingTransactions,
		m.LockWait,
	}
}

func (m *Metrics) LockRequest(mode lock.LockType, outcome string) {
	m.LockRequests.WithLabelValues(mode.String(), outcome).Inc()
}

func (m *Metrics) Began() {
	m.ActiveTransactions.Inc()
}

func (m *Metrics) Terminated(committed bool) {
	outcome := OutcomeAborted
	if committed {
		outcome = OutcomeCommitted
	}
	m.Transactions.WithLabelValues(outcome).Inc()
	m.ActiveTransactions.Dec()
}

func (m *Metrics) StartWait() {
	m.WaitingTransactions.Inc()
}

func (m *Metrics) EndWait(waited time.Duration) {
	m.WaitingTransactions.Dec()
	m.LockWait.Observe(waited.Seconds())
}
