// Package metrics holds the Prometheus instruments of the escrow core.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "metaads"

// Result labels.
const (
	ResultOK       = "ok"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
	ResultUnknown  = "unknown"
)

// Metrics holds all escrow metrics, registered on one registry.
type Metrics struct {
	registry *prometheus.Registry

	// Registry metrics
	RecordsRegistered *prometheus.CounterVec

	// Agreement metrics
	AgreementsFormed   prometheus.Counter
	AgreementsRejected *prometheus.CounterVec
	EscrowedUnits      prometheus.Counter

	// Settlement metrics
	Settlements       *prometheus.CounterVec
	TransfersDispatch *prometheus.CounterVec
	TransfersPending  prometheus.Gauge
	DispatchDuration  prometheus.Histogram
}

// New creates the metrics on a fresh registry, together with the Go and
// process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{registry: reg}

	m.RecordsRegistered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "records_registered_total",
		Help:      "Total number of records stored, by kind",
	}, []string{"kind"})

	m.AgreementsFormed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agreements_formed_total",
		Help:      "Total number of signed agreements",
	})
	m.AgreementsRejected = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "agreements_rejected_total",
		Help:      "Total number of rejected agreement requests, by reason",
	}, []string{"reason"})
	// Float counter, so large deposits lose precision here. The record
	// store keeps the exact amounts.
	m.EscrowedUnits = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "escrowed_units_total",
		Help:      "Sum of deposits taken into escrow, in smallest units",
	})

	m.Settlements = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "settlements_total",
		Help:      "Total number of settlement attempts, by result",
	}, []string{"result"})
	m.TransfersDispatch = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transfers_dispatched_total",
		Help:      "Total number of ledger deliveries, by result",
	}, []string{"result"})
	m.TransfersPending = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "transfers_pending",
		Help:      "Transfers seen pending on the last dispatch pass",
	})
	m.DispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_duration_seconds",
		Help:      "Duration of one dispatch pass",
		Buckets:   prometheus.DefBuckets,
	})

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RecordsRegistered,
		m.AgreementsFormed,
		m.AgreementsRejected,
		m.EscrowedUnits,
		m.Settlements,
		m.TransfersDispatch,
		m.TransfersPending,
		m.DispatchDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
