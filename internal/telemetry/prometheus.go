package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

// PromSink counts events and observes their durations.
type PromSink struct {
	events   *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewPromSink creates the collectors and registers them with reg.
func NewPromSink(reg prometheus.Registerer) (*PromSink, error) {
	s := &PromSink{
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bibleai_events_total",
				Help: "Analytics events by name and status.",
			},
			[]string{"event", "status"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bibleai_model_call_duration_seconds",
				Help:    "Duration of model calls in seconds.",
				Buckets: []float64{.25, .5, 1, 2, 4, 8, 16, 32},
			},
			[]string{"event"},
		),
	}
	for _, c := range []prometheus.Collector{s.events, s.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return s, nil
}

func (s *PromSink) Track(_ context.Context, ev Event) {
	status := ev.Status
	if status == "" {
		status = StatusSuccess
	}
	s.events.WithLabelValues(ev.Name, status).Inc()
	if ev.Duration > 0 {
		s.duration.WithLabelValues(ev.Name).Observe(ev.Duration.Seconds())
	}
}
