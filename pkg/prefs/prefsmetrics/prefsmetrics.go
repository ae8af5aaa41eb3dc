// Package prefsmetrics exports prefs load and write activity as Prometheus
// metrics by implementing [prefs.Observer].
//
//	reg := prometheus.NewRegistry()
//	opts := prefs.Options{Observer: prefsmetrics.New(reg)}
package prefsmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/calvinalkan/prefstore/pkg/prefs"
)

const namespace = "prefs"

// Observer records prefs events. Safe for concurrent use.
type Observer struct {
	// Loads counts successful loads.
	// Labels: schema, source (document, defaults, fallback, ephemeral)
	Loads *prometheus.CounterVec

	// Persists counts document writes.
	// Labels: schema, result (ok, unsynced, error)
	Persists *prometheus.CounterVec

	// PersistDuration measures write latency, failures included.
	// Labels: schema
	PersistDuration *prometheus.HistogramVec

	// DocumentBytes is the size of the last document written.
	// Labels: schema
	DocumentBytes *prometheus.GaugeVec
}

var _ prefs.Observer = (*Observer)(nil)

// New creates the metrics and registers them with reg. A nil reg means
// [prometheus.DefaultRegisterer]. Panics if the metrics are already
// registered with reg.
func New(reg prometheus.Registerer) *Observer {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	return &Observer{
		Loads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Records loaded, by where their values came from.",
		}, []string{"schema", "source"}),

		Persists: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persists_total",
			Help:      "Document writes, by result.",
		}, []string{"schema", "result"}),

		PersistDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "persist_duration_seconds",
			Help:      "Time spent writing a document.",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1},
		}, []string{"schema"}),

		DocumentBytes: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "document_bytes",
			Help:      "Size of the last document written.",
		}, []string{"schema"}),
	}
}

// ObserveLoad implements [prefs.Observer].
func (o *Observer) ObserveLoad(ev prefs.LoadEvent) {
	o.Loads.WithLabelValues(ev.Schema, string(ev.Source)).Inc()
}

// ObservePersist implements [prefs.Observer].
func (o *Observer) ObservePersist(ev prefs.PersistEvent) {
	o.Persists.WithLabelValues(ev.Schema, string(ev.Result)).Inc()
	o.PersistDuration.WithLabelValues(ev.Schema).Observe(ev.Duration.Seconds())

	if ev.Result != prefs.PersistFailed {
		o.DocumentBytes.WithLabelValues(ev.Schema).Set(float64(ev.Bytes))
	}
}
