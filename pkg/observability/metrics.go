package observability

import (
	"context"
	"fmt"

	"github.com/aretw0/tessera/pkg/domain"
	"github.com/prometheus/client_golang/prometheus"
)

// DefaultNamespace prefixes every metric name.
const DefaultNamespace = "tessera"

// Metrics records dispatches and segment loads.
type Metrics struct {
	dispatches       *prometheus.CounterVec
	dispatchDuration prometheus.Histogram
	segmentLoads     *prometheus.CounterVec
	segmentDuration  *prometheus.HistogramVec
	segmentsLoading  prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg.
// An empty namespace uses DefaultNamespace.
func NewMetrics(namespace string, reg prometheus.Registerer) (*Metrics, error) {
	if namespace == "" {
		namespace = DefaultNamespace
	}

	m := &Metrics{
		dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatches_total",
				Help:      "Total number of dispatched actions",
			},
			[]string{"action_type", "changed"},
		),
		dispatchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Time spent in the composite reducer",
				Buckets:   []float64{.00001, .0001, .001, .01, .1},
			},
		),
		segmentLoads: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "segment_loads_total",
				Help:      "Finished segment loads by outcome",
			},
			[]string{"segment_id", "result"},
		),
		segmentDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "segment_load_duration_seconds",
				Help:      "Duration of segment loads, loader to onLoaded",
			},
			[]string{"segment_id"},
		),
		segmentsLoading: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "segments_loading",
				Help:      "Segment loads currently in flight",
			},
		),
	}

	if reg != nil {
		for _, c := range []prometheus.Collector{m.dispatches, m.dispatchDuration, m.segmentLoads, m.segmentDuration, m.segmentsLoading} {
			if err := reg.Register(c); err != nil {
				return nil, fmt.Errorf("failed to register metric: %w", err)
			}
		}
	}
	return m, nil
}

// Hooks returns lifecycle hooks feeding the collectors.
func (m *Metrics) Hooks() domain.LifecycleHooks {
	return domain.LifecycleHooks{
		OnDispatch: func(_ context.Context, e *domain.DispatchEvent) {
			m.dispatches.WithLabelValues(e.ActionType, fmt.Sprint(e.Changed)).Inc()
			m.dispatchDuration.Observe(e.Duration.Seconds())
		},
		OnSegmentLoading: func(context.Context, *domain.SegmentEvent) {
			m.segmentsLoading.Inc()
		},
		OnSegmentLoaded: func(_ context.Context, e *domain.SegmentEvent) {
			m.segmentsLoading.Dec()
			m.segmentLoads.WithLabelValues(e.SegmentID, "loaded").Inc()
			m.segmentDuration.WithLabelValues(e.SegmentID).Observe(e.Duration.Seconds())
		},
		OnSegmentFailed: func(_ context.Context, e *domain.SegmentEvent) {
			m.segmentsLoading.Dec()
			m.segmentLoads.WithLabelValues(e.SegmentID, "failed").Inc()
		},
	}
}
