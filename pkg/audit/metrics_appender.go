package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsAppender turns entries into Prometheus metrics:
//
//	bulkmerge_operations_total{operation,backend,status}
//	bulkmerge_records_total{operation,backend}
//	bulkmerge_operation_duration_seconds{operation,backend}
type MetricsAppender struct {
	operations *prometheus.CounterVec
	records    *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetricsAppender registers the collectors with reg. Collectors already
// registered by another appender are reused.
func NewMetricsAppender(reg prometheus.Registerer) (*MetricsAppender, error) {
	m := &MetricsAppender{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkmerge_operations_total",
			Help: "Bulk operations by outcome.",
		}, []string{"operation", "backend", "status"}),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bulkmerge_records_total",
			Help: "Records passed to successful bulk operations.",
		}, []string{"operation", "backend"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bulkmerge_operation_duration_seconds",
			Help:    "Wall time of bulk operations.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 14),
		}, []string{"operation", "backend"}),
	}

	var err error
	if m.operations, err = register(reg, m.operations); err != nil {
		return nil, err
	}
	if m.records, err = register(reg, m.records); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, fmt.Errorf("failed to register metrics: %w", err)
	}
	return c, nil
}

func (m *MetricsAppender) Append(ctx context.Context, entry *Entry) error {
	op := string(entry.Operation)
	m.operations.WithLabelValues(op, entry.Backend, string(entry.Status)).Inc()
	m.duration.WithLabelValues(op, entry.Backend).Observe(entry.Duration.Seconds())
	if entry.Status != StatusFailure {
		m.records.WithLabelValues(op, entry.Backend).Add(float64(entry.Records))
	}
	return nil
}

func (m *MetricsAppender) Close() error { return nil }
