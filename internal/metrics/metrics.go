// Package metrics exposes engine activity as Prometheus metrics.
//
// Recorder implements engine.Observer; register it on the registry that the
// HTTP server exposes on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"txengine/internal/engine"
)

const namespace = "txengine"

// Recorder counts processed records by type and outcome.
type Recorder struct {
	records *prometheus.CounterVec
	locked  prometheus.Counter
}

// NewRecorder creates the collectors and registers them on reg.
func NewRecorder(reg prometheus.Registerer) (*Recorder, error) {
	r := &Recorder{
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_total",
			Help:      "Transaction records processed, by type and outcome.",
		}, []string{"type", "outcome"}),
		locked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "accounts_locked_total",
			Help:      "Accounts locked by a chargeback.",
		}),
	}
	for _, c := range []prometheus.Collector{r.records, r.locked} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	// 預先建立每種交易的 applied 序列，未出現的型別也會以 0 輸出
	for _, k := range engine.Kinds {
		r.records.WithLabelValues(string(k), engine.Reason(nil))
	}
	return r, nil
}

// Observe implements engine.Observer.
func (r *Recorder) Observe(tx engine.Transaction, err error) {
	r.records.WithLabelValues(string(tx.Kind()), engine.Reason(err)).Inc()
	// a successful chargeback always locks a previously unlocked account
	if err == nil && tx.Kind() == engine.KindChargeback {
		r.locked.Inc()
	}
}

var _ engine.Observer = (*Recorder)(nil)
