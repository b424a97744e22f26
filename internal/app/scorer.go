// Package app scores exercise attempts: per-frame biomechanics, aggregation
// into the feature vector, and model prediction.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ayusman/strokerehab/internal/biomech"
	"github.com/ayusman/strokerehab/internal/features"
	"github.com/ayusman/strokerehab/internal/model"
	"github.com/ayusman/strokerehab/internal/pose"
	"github.com/ayusman/strokerehab/internal/store"
	"github.com/ayusman/strokerehab/internal/telemetry"
)

// Publisher receives every scored result.
type Publisher interface {
	PublishResult(ctx context.Context, r *Result) error
}

// Config holds the collaborators of a Scorer. Only Predictor is required for
// scoring; Store, Publisher and Metrics are optional.
type Config struct {
	Predictor model.Predictor
	Alpha     float64
	Store     *store.Store
	Publisher Publisher
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

// Scorer turns attempts into results. It holds no per-attempt state and is
// safe for concurrent use.
type Scorer struct {
	predictor model.Predictor
	alpha     float64
	store     *store.Store
	publisher Publisher
	metrics   *telemetry.Metrics
	log       *slog.Logger
}

// NewScorer creates a Scorer. A zero Alpha selects biomech.DefaultAlpha.
func NewScorer(cfg Config) (*Scorer, error) {
	alpha := cfg.Alpha
	if alpha == 0 {
		alpha = biomech.DefaultAlpha
	}
	if err := biomech.ValidateAlpha(alpha); err != nil {
		return nil, err
	}

	s := &Scorer{
		predictor: cfg.Predictor,
		alpha:     alpha,
		store:     cfg.Store,
		publisher: cfg.Publisher,
		metrics:   cfg.Metrics,
		log:       cfg.Logger,
	}
	if s.metrics == nil {
		s.metrics = telemetry.Noop()
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	return s, nil
}

// Alpha returns the smoothing factor used for new attempts.
func (s *Scorer) Alpha() float64 {
	return s.alpha
}

// ScoreFrames scores a complete recorded attempt. Every frame yields a
// record, including frames without landmarks. Failures are returned as
// *NoResultError, except for storage errors after a successful prediction.
func (s *Scorer) ScoreFrames(ctx context.Context, meta Meta, frames []pose.Frame) (res *Result, err error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "app.ScoreFrames")
	defer span.End()
	defer s.guard(ctx, &res, &err, len(frames), start)

	records, err := biomech.Run(s.alpha, frames)
	if err != nil {
		return nil, &NoResultError{Reason: ReasonMalformedFrame, Err: err}
	}

	return s.complete(ctx, meta, frames, records, nil)
}

// ScoreVector scores an attempt whose features were computed elsewhere.
func (s *Scorer) ScoreVector(ctx context.Context, meta Meta, v features.Vector) (res *Result, err error) {
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "app.ScoreVector")
	defer span.End()
	defer s.guard(ctx, &res, &err, 0, start)

	return s.complete(ctx, meta, nil, nil, &v)
}

// complete aggregates records unless a vector is given, predicts, then
// persists and publishes the result.
func (s *Scorer) complete(ctx context.Context, meta Meta, frames []pose.Frame, records []biomech.FrameRecord, v *features.Vector) (*Result, error) {
	var vec features.Vector
	if v != nil {
		vec = *v
	} else {
		var err error
		vec, err = features.Aggregate(records)
		if err != nil {
			return nil, &NoResultError{Reason: ReasonInsufficientData, Err: err}
		}
	}

	if bad := vec.NonFinite(); len(bad) > 0 {
		return nil, &NoResultError{
			Reason: ReasonInvalidFeatures,
			Err:    fmt.Errorf("non-finite features: %v", bad),
		}
	}

	if s.predictor == nil {
		return nil, &NoResultError{Reason: ReasonModelUnavailable, Err: model.ErrModelNotFound}
	}
	pred, err := s.predictor.Predict(ctx, vec)
	if err != nil {
		return nil, &NoResultError{Reason: ReasonModelUnavailable, Err: err}
	}

	res := &Result{
		AttemptID:  uuid.New().String(),
		Username:   meta.Username,
		Exercise:   meta.Exercise,
		Vector:     vec,
		Prediction: pred,
		FrameCount: len(frames),
		Records:    records,
	}

	if s.store != nil {
		err := s.store.Attempts().Create(&store.Attempt{
			ID:            res.AttemptID,
			Username:      res.Username,
			Exercise:      res.Exercise,
			SchemaVersion: features.SchemaVersion,
			Features:      vec.Slice(),
			Score:         pred.Score,
			Label:         pred.Label,
			Model:         pred.Model,
		}, frames)
		if err != nil {
			return nil, fmt.Errorf("save attempt: %w", err)
		}
	}

	if s.publisher != nil {
		if err := s.publisher.PublishResult(ctx, res); err != nil {
			s.log.WarnContext(ctx, "failed to publish result", "attempt_id", res.AttemptID, "error", err)
		}
	}

	return res, nil
}

// guard converts a panic into a NoResultError and records the outcome.
func (s *Scorer) guard(ctx context.Context, res **Result, err *error, frames int, start time.Time) {
	if p := recover(); p != nil {
		s.log.ErrorContext(ctx, "panic while scoring attempt", "panic", p)
		*res = nil
		*err = &NoResultError{Reason: ReasonInternal, Err: fmt.Errorf("panic: %v", p)}
	}

	outcome := "scored"
	if *err != nil {
		outcome = "error"
		if reason, ok := ReasonOf(*err); ok {
			outcome = string(reason)
		}
	}
	s.metrics.RecordAttempt(ctx, outcome, frames, time.Since(start))

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("outcome", outcome), attribute.Int("frames", frames))
	if *err != nil {
		span.RecordError(*err)
		span.SetStatus(codes.Error, outcome)
		level := slog.LevelInfo
		var nr *NoResultError
		if !errors.As(*err, &nr) || nr.Reason == ReasonInternal || nr.Reason == ReasonModelUnavailable {
			level = slog.LevelWarn
		}
		s.log.Log(ctx, level, "attempt not scored", "outcome", outcome, "frames", frames, "error", *err)
		return
	}

	s.log.InfoContext(ctx, "attempt scored",
		"attempt_id", (*res).AttemptID,
		"username", (*res).Username,
		"score", (*res).Prediction.Score,
		"label", (*res).Prediction.Label,
		"frames", frames,
		"elapsed", time.Since(start))
}
