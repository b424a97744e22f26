package app

import (
	"context"
	"time"

	"github.com/ayusman/strokerehab/internal/biomech"
	"github.com/ayusman/strokerehab/internal/pose"
	"github.com/ayusman/strokerehab/internal/telemetry"
)

// LiveAttempt buffers the frames of one attempt as they stream in.
// It owns its extractor and must be used by a single goroutine.
type LiveAttempt struct {
	scorer    *Scorer
	meta      Meta
	extractor *biomech.Extractor
	frames    []pose.Frame
	records   []biomech.FrameRecord
	closed    bool
}

// NewLiveAttempt starts a streaming attempt.
func (s *Scorer) NewLiveAttempt(ctx context.Context, meta Meta) (*LiveAttempt, error) {
	ex, err := biomech.NewExtractor(s.alpha)
	if err != nil {
		return nil, err
	}
	s.metrics.LiveAttemptOpened(ctx)
	return &LiveAttempt{
		scorer:    s,
		meta:      meta,
		extractor: ex,
	}, nil
}

// Meta returns the attempt's identity.
func (a *LiveAttempt) Meta() Meta {
	return a.meta
}

// Add processes one frame and returns its record. A malformed frame is
// rejected and not buffered; the attempt stays usable.
func (a *LiveAttempt) Add(frame pose.Frame) (biomech.FrameRecord, error) {
	if a.closed {
		return biomech.FrameRecord{}, ErrAttemptClosed
	}

	rec, err := a.extractor.Process(frame)
	if err != nil {
		return biomech.FrameRecord{}, err
	}
	a.frames = append(a.frames, frame)
	a.records = append(a.records, rec)
	return rec, nil
}

// Len returns the number of buffered frames.
func (a *LiveAttempt) Len() int {
	return len(a.frames)
}

// Finish scores the buffered frames and closes the attempt.
func (a *LiveAttempt) Finish(ctx context.Context) (res *Result, err error) {
	if a.closed {
		return nil, ErrAttemptClosed
	}
	a.Close(ctx)

	s := a.scorer
	start := time.Now()
	ctx, span := telemetry.Tracer().Start(ctx, "app.LiveAttempt.Finish")
	defer span.End()
	defer s.guard(ctx, &res, &err, len(a.frames), start)

	return s.complete(ctx, a.meta, a.frames, a.records, nil)
}

// Close abandons the attempt without scoring it. It is safe to call more than once.
func (a *LiveAttempt) Close(ctx context.Context) {
	if a.closed {
		return
	}
	a.closed = true
	a.scorer.metrics.LiveAttemptClosed(ctx)
}
