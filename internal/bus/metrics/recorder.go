package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dshills/cascade/internal/bus"
)

// DefaultNamespace is used when New is given an empty namespace.
const DefaultNamespace = "cascade"

// Recorder counts engine activity. It is safe for concurrent use.
type Recorder struct {
	dispatches  *prometheus.CounterVec
	deliveries  *prometheus.CounterVec
	failures    *prometheus.CounterVec
	subscribers *prometheus.GaugeVec
}

var _ bus.Recorder = (*Recorder)(nil)

// NewRegistry creates a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// New creates a Recorder and registers its collectors with reg.
func New(reg prometheus.Registerer, namespace string) (*Recorder, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	r := &Recorder{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "dispatches_total",
				Help:      "Total number of dispatch walks that visited at least one entry",
			},
			[]string{"engine"},
		),
		deliveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "deliveries_total",
				Help:      "Total number of completed subscriber reactions",
			},
			[]string{"engine"},
		),
		failures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "failures_total",
				Help:      "Total number of subscriber reactions that panicked",
			},
			[]string{"engine", "key"},
		),
		subscribers: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "engine",
				Name:      "subscribers",
				Help:      "Current number of subscriber registrations",
			},
			[]string{"engine"},
		),
	}

	for _, c := range []prometheus.Collector{r.dispatches, r.deliveries, r.failures, r.subscribers} {
		if err := reg.Register(c); err != nil {
			var already prometheus.AlreadyRegisteredError
			if errors.As(err, &already) {
				return nil, fmt.Errorf("metrics namespace %q already registered: %w", namespace, err)
			}
			return nil, fmt.Errorf("register engine metrics: %w", err)
		}
	}
	return r, nil
}

// Dispatched implements bus.Recorder.
func (r *Recorder) Dispatched(engine string) {
	r.dispatches.WithLabelValues(engine).Inc()
}

// Delivered implements bus.Recorder.
func (r *Recorder) Delivered(engine string) {
	r.deliveries.WithLabelValues(engine).Inc()
}

// Failed implements bus.Recorder.
func (r *Recorder) Failed(engine string, key bus.Key) {
	r.failures.WithLabelValues(engine, key.String()).Inc()
}

// Subscribers implements bus.Recorder.
func (r *Recorder) Subscribers(engine string, count int) {
	r.subscribers.WithLabelValues(engine).Set(float64(count))
}
