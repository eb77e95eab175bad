package telemetry

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/quesgenie/internal/generator"
)

var (
	generatorCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quesgenie_generator_calls_total",
			Help: "Total number of generation backend calls",
		},
		[]string{"operation", "status"},
	)

	generatorDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quesgenie_generator_duration_seconds",
			Help:    "Generation backend call duration in seconds",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"operation"},
	)
)

// MonitorGenerator records the outcome and latency of every generation call.
func MonitorGenerator(g generator.Generator) generator.Generator {
	return monitoredGenerator{next: g}
}

type monitoredGenerator struct {
	next generator.Generator
}

func (m monitoredGenerator) GenerateTopics(ctx context.Context, text string) ([]string, error) {
	start := time.Now()
	ts, err := m.next.GenerateTopics(ctx, text)
	recordGeneration("topics", start, err)
	return ts, err
}

func (m monitoredGenerator) GenerateQuestions(ctx context.Context, req generator.GenerateQuestionsRequest) ([]generator.GeneratedQuestion, error) {
	start := time.Now()
	qs, err := m.next.GenerateQuestions(ctx, req)
	recordGeneration("questions", start, err)
	return qs, err
}

func recordGeneration(op string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}

	generatorCallsTotal.WithLabelValues(op, status).Inc()
	generatorDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
