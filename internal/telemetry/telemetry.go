// Package telemetry holds the OpenTelemetry instruments for attempt scoring.
// Instruments use the global providers, so they are no-ops until the
// embedding process registers an SDK.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
)

// ScopeName is the instrumentation scope of every instrument and span.
const ScopeName = "github.com/ayusman/strokerehab"

// Metrics groups the scoring instruments.
type Metrics struct {
	attempts        metric.Int64Counter
	frames          metric.Int64Counter
	scoringDuration metric.Float64Histogram
	liveAttempts    metric.Int64UpDownCounter
}

// New creates the instruments from the given meter provider. A nil provider
// selects the global one.
func New(mp metric.MeterProvider) (*Metrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(ScopeName)

	attempts, err := meter.Int64Counter("strokerehab.attempts",
		metric.WithDescription("Scored attempts by outcome"))
	if err != nil {
		return nil, err
	}

	frames, err := meter.Int64Counter("strokerehab.frames",
		metric.WithDescription("Pose frames processed by the extractor"))
	if err != nil {
		return nil, err
	}

	scoringDuration, err := meter.Float64Histogram("strokerehab.scoring.duration",
		metric.WithDescription("Time to score one attempt"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	liveAttempts, err := meter.Int64UpDownCounter("strokerehab.live_attempts",
		metric.WithDescription("Open live streaming attempts"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		attempts:        attempts,
		frames:          frames,
		scoringDuration: scoringDuration,
		liveAttempts:    liveAttempts,
	}, nil
}

// Noop returns instruments that record nothing.
func Noop() *Metrics {
	m, _ := New(noop.NewMeterProvider())
	return m
}

// RecordAttempt counts one scoring outcome and its duration.
func (m *Metrics) RecordAttempt(ctx context.Context, outcome string, frames int, elapsed time.Duration) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.attempts.Add(ctx, 1, attrs)
	m.frames.Add(ctx, int64(frames))
	m.scoringDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// LiveAttemptOpened tracks a new streaming attempt.
func (m *Metrics) LiveAttemptOpened(ctx context.Context) {
	m.liveAttempts.Add(ctx, 1)
}

// LiveAttemptClosed tracks the end of a streaming attempt.
func (m *Metrics) LiveAttemptClosed(ctx context.Context) {
	m.liveAttempts.Add(ctx, -1)
}

// Tracer returns the tracer for scoring spans.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}
