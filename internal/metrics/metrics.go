package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ingest pipeline instruments.
type Metrics struct {
	Received       prometheus.Counter
	Skipped        prometheus.Counter
	Invalid        prometheus.Counter
	Duplicates     prometheus.Counter
	Upserted       *prometheus.CounterVec // result=inserted|updated|rejected
	HistoryWrites  *prometheus.CounterVec // status=ok|error
	Flushes        *prometheus.CounterVec // status=ok|error
	PendingBacklog prometheus.Gauge
}

// New builds the instruments and registers them on reg when it is non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatdb",
			Name:      "observations_received_total",
			Help:      "Observations handed to the persister.",
		}),
		Skipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatdb",
			Name:      "observations_skipped_total",
			Help:      "Observations dropped by domain validity rules.",
		}),
		Invalid: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatdb",
			Name:      "observations_invalid_total",
			Help:      "Observations dropped for malformed identifiers.",
		}),
		Duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "floatdb",
			Name:      "observations_duplicate_total",
			Help:      "Observations dropped by batch-local deduplication.",
		}),
		Upserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatdb",
			Name:      "items_upserted_total",
			Help:      "Items written by bulk upserts.",
		}, []string{"result"}),
		HistoryWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatdb",
			Name:      "history_writes_total",
			Help:      "History entries appended.",
		}, []string{"status"}),
		Flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "floatdb",
			Name:      "batches_total",
			Help:      "Batches submitted to the store.",
		}, []string{"status"}),
		PendingBacklog: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "floatdb",
			Name:      "ingest_pending",
			Help:      "Observations waiting for the next flush.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Received, m.Skipped, m.Invalid, m.Duplicates, m.Upserted, m.HistoryWrites, m.Flushes, m.PendingBacklog)
	}
	return m
}

// Nop returns unregistered instruments, handy for tests.
func Nop() *Metrics {
	return New(nil)
}
