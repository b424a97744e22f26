package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gocv.io/x/gocv"

	"github.com/ayusman/strokerehab/internal/pose"
)

// Stop reasons reported in Stats.
const (
	StopCanceled    = "canceled"
	StopMaxDuration = "max_duration"
	StopIdle        = "idle"
	StopEndOfStream = "end_of_stream"
)

// Detector estimates the pose in one image. It returns no landmarks when
// nobody is in view.
type Detector interface {
	Detect(img *gocv.Mat) ([]pose.Landmark, error)
}

// Options controls when a recording ends.
type Options struct {
	// MaxDuration caps the recording length. Zero means no cap.
	MaxDuration time.Duration
	// IdleTimeout ends the recording once the patient has moved and then
	// stayed still this long. Zero disables idle detection.
	IdleTimeout time.Duration
	// MotionThreshold is the changed-pixel percentage counted as movement.
	MotionThreshold float64
	// Now defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// Stats summarizes a finished recording.
type Stats struct {
	Frames     int           `json:"frames"`
	Detected   int           `json:"detected"`
	Duration   time.Duration `json:"duration"`
	StopReason string        `json:"stop_reason"`
}

// Recorder turns camera images into timestamped pose frames.
type Recorder struct {
	camera   Camera
	detector Detector
	opts     Options
}

func NewRecorder(camera Camera, detector Detector, opts Options) *Recorder {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.MotionThreshold <= 0 {
		opts.MotionThreshold = 1.0
	}
	return &Recorder{camera: camera, detector: detector, opts: opts}
}

// Record reads images until ctx is done, the stream ends, or a stop
// condition in Options fires, passing each pose to sink in capture order.
// Images with nobody in view are passed as empty frames. Cancellation is a
// normal way to stop and does not return an error.
func (r *Recorder) Record(ctx context.Context, sink func(pose.Frame) error) (Stats, error) {
	var stats Stats

	if err := r.camera.Open(); err != nil {
		return stats, fmt.Errorf("open camera: %w", err)
	}
	defer r.camera.Close()

	activity := NewActivityMeter(r.opts.MotionThreshold)
	defer activity.Close()

	start := r.opts.Now()
	var lastMove time.Time
	moved := false

	finish := func(reason string, now time.Time) (Stats, error) {
		stats.StopReason = reason
		stats.Duration = now.Sub(start)
		r.opts.Logger.Info("recording stopped",
			"reason", reason, "frames", stats.Frames, "detected", stats.Detected, "duration", stats.Duration)
		return stats, nil
	}

	for {
		if ctx.Err() != nil {
			return finish(StopCanceled, r.opts.Now())
		}

		img, err := r.camera.ReadFrame()
		if errors.Is(err, ErrEndOfStream) {
			return finish(StopEndOfStream, r.opts.Now())
		}
		if err != nil {
			return stats, fmt.Errorf("read frame %d: %w", stats.Frames, err)
		}

		now := r.opts.Now()
		moving, _ := activity.Measure(img)
		landmarks, err := r.detector.Detect(img)
		img.Close()
		if err != nil {
			return stats, fmt.Errorf("detect pose in frame %d: %w", stats.Frames, err)
		}

		frame := pose.Frame{Landmarks: landmarks, Timestamp: now.UnixMilli()}
		if err := sink(frame); err != nil {
			return stats, fmt.Errorf("frame %d: %w", stats.Frames, err)
		}
		stats.Frames++
		if !frame.Empty() {
			stats.Detected++
		}

		if moving {
			moved = true
			lastMove = now
		}

		switch {
		case r.opts.MaxDuration > 0 && now.Sub(start) >= r.opts.MaxDuration:
			return finish(StopMaxDuration, now)
		case r.opts.IdleTimeout > 0 && moved && now.Sub(lastMove) >= r.opts.IdleTimeout:
			return finish(StopIdle, now)
		}
	}
}
