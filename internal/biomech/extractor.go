package biomech

import (
	"errors"
	"fmt"
	"math"

	"github.com/ayusman/strokerehab/internal/pose"
)

const (
	// DefaultAlpha is the default EMA smoothing factor.
	DefaultAlpha = 0.35

	// MinDeltaSeconds is the smallest frame interval that is differentiated.
	// Shorter or non-increasing intervals yield zero derivatives.
	MinDeltaSeconds = 1e-6
)

var (
	// ErrMalformedFrame is returned when a non-empty frame lacks arm landmarks.
	ErrMalformedFrame = errors.New("malformed frame")

	// ErrInvalidAlpha is returned when the smoothing factor is outside (0, 1].
	ErrInvalidAlpha = errors.New("smoothing factor must be in (0, 1]")
)

// Side indexes the left and right arm.
type Side int

const (
	Left Side = iota
	Right
)

// String returns "left" or "right".
func (s Side) String() string {
	if s == Left {
		return "left"
	}
	return "right"
}

// Arm holds the positions of one arm's joints.
type Arm struct {
	Shoulder Vec2 `json:"shoulder"`
	Elbow    Vec2 `json:"elbow"`
	Wrist    Vec2 `json:"wrist"`
}

// FrameRecord holds the biomechanics computed for a single frame.
// Angles are in degrees, speeds in normalized units per second, angular
// velocities in degrees per second and jerk in normalized units per second cubed.
type FrameRecord struct {
	LeftElbowAngle         float64 `json:"left_elbow_angle"`
	RightElbowAngle        float64 `json:"right_elbow_angle"`
	LeftShoulderAngle      float64 `json:"left_shoulder_angle"`
	RightShoulderAngle     float64 `json:"right_shoulder_angle"`
	LeftShoulderSpeed      float64 `json:"left_shoulder_speed"`
	RightShoulderSpeed     float64 `json:"right_shoulder_speed"`
	LeftAngleVel           float64 `json:"left_angle_vel"`
	RightAngleVel          float64 `json:"right_angle_vel"`
	LeftJerk               float64 `json:"left_jerk"`
	RightJerk              float64 `json:"right_jerk"`
	LeftShoulderSpeedNorm  float64 `json:"left_shoulder_speed_norm"`
	RightShoulderSpeedNorm float64 `json:"right_shoulder_speed_norm"`
}

// State is the differentiation and smoothing state of one exercise attempt.
// It is an immutable value: Step returns the successor state and never
// modifies its receiver. A State must not be carried over to another attempt.
type State struct {
	alpha float64

	// primed is set by the first frame with landmarks. From then on the
	// smoothed joints, previous time, shoulders and elbow angles are valid.
	primed bool
	arms   [2]Arm

	prevTime       int64
	prevShoulder   [2]Vec2
	prevElbowAngle [2]float64

	// Velocity and acceleration start at zero and only advance on frames
	// with a usable time delta.
	prevVel [2]Vec2
	prevAcc [2]Vec2
}

// ValidateAlpha checks that alpha is a usable smoothing factor.
func ValidateAlpha(alpha float64) error {
	if !(alpha > 0 && alpha <= 1) {
		return fmt.Errorf("%w: got %v", ErrInvalidAlpha, alpha)
	}
	return nil
}

// NewState returns the initial state for an attempt.
func NewState(alpha float64) (State, error) {
	if err := ValidateAlpha(alpha); err != nil {
		return State{}, err
	}
	return State{alpha: alpha}, nil
}

// Alpha returns the smoothing factor.
func (s State) Alpha() float64 {
	return s.alpha
}

// Primed reports whether at least one frame with landmarks has been processed.
func (s State) Primed() bool {
	return s.primed
}

// Smoothed returns the current smoothed joint positions of one arm.
func (s State) Smoothed(side Side) Arm {
	return s.arms[side]
}

// Step processes one frame and returns the successor state and the frame's record.
//
// A frame without landmarks yields a zero record and the unchanged state, so
// the next frame is differentiated against the last frame that had landmarks.
// A non-empty frame missing any arm landmark is rejected with ErrMalformedFrame.
func (s State) Step(frame pose.Frame) (State, FrameRecord, error) {
	if frame.Empty() {
		return s, FrameRecord{}, nil
	}
	if !frame.Complete() {
		return s, FrameRecord{}, fmt.Errorf("%w: got %d landmarks, need at least %d",
			ErrMalformedFrame, len(frame.Landmarks), pose.MinLandmarks)
	}

	next := s
	raw := readArms(frame)
	for side := range raw {
		if s.primed {
			next.arms[side] = Arm{
				Shoulder: EMA(raw[side].Shoulder, s.arms[side].Shoulder, s.alpha),
				Elbow:    EMA(raw[side].Elbow, s.arms[side].Elbow, s.alpha),
				Wrist:    EMA(raw[side].Wrist, s.arms[side].Wrist, s.alpha),
			}
		} else {
			next.arms[side] = raw[side]
		}
	}

	var elbowAngle, shoulderAngle, speed, jerk, angleVel [2]float64
	for side, arm := range next.arms {
		elbowAngle[side] = Angle(arm.Shoulder, arm.Elbow, arm.Wrist)
		shoulderAngle[side] = Angle(arm.Elbow, arm.Shoulder, arm.Wrist)
	}

	if s.primed {
		dt := float64(frame.Timestamp-s.prevTime) / 1000
		if dt > MinDeltaSeconds {
			for side := range next.arms {
				vel := next.arms[side].Shoulder.Sub(s.prevShoulder[side]).Div(dt)
				acc := vel.Sub(s.prevVel[side]).Div(dt)

				speed[side] = vel.Norm()
				jerk[side] = acc.Sub(s.prevAcc[side]).Div(dt).Norm()
				angleVel[side] = math.Abs(elbowAngle[side]-s.prevElbowAngle[side]) / dt

				next.prevVel[side] = vel
				next.prevAcc[side] = acc
			}
		}
	}

	span := next.arms[Left].Shoulder.Sub(next.arms[Right].Shoulder).Norm() + Epsilon

	rec := FrameRecord{
		LeftElbowAngle:         elbowAngle[Left],
		RightElbowAngle:        elbowAngle[Right],
		LeftShoulderAngle:      shoulderAngle[Left],
		RightShoulderAngle:     shoulderAngle[Right],
		LeftShoulderSpeed:      speed[Left],
		RightShoulderSpeed:     speed[Right],
		LeftAngleVel:           angleVel[Left],
		RightAngleVel:          angleVel[Right],
		LeftJerk:               jerk[Left],
		RightJerk:              jerk[Right],
		LeftShoulderSpeedNorm:  speed[Left] / span,
		RightShoulderSpeedNorm: speed[Right] / span,
	}

	for side := range next.arms {
		next.prevShoulder[side] = next.arms[side].Shoulder
		next.prevElbowAngle[side] = elbowAngle[side]
	}
	next.prevTime = frame.Timestamp
	next.primed = true

	return next, rec, nil
}

// readArms extracts the raw arm joints from a complete frame.
func readArms(frame pose.Frame) [2]Arm {
	at := func(i int) Vec2 {
		x, y := frame.XY(i)
		return Vec2{X: x, Y: y}
	}
	return [2]Arm{
		Left: {
			Shoulder: at(pose.LeftShoulder),
			Elbow:    at(pose.LeftElbow),
			Wrist:    at(pose.LeftWrist),
		},
		Right: {
			Shoulder: at(pose.RightShoulder),
			Elbow:    at(pose.RightElbow),
			Wrist:    at(pose.RightWrist),
		},
	}
}

// Extractor processes the frames of one attempt in order, holding the state
// between calls. It is not safe for concurrent use and must not be reused
// for a second attempt.
type Extractor struct {
	state State
}

// NewExtractor creates an Extractor with the given smoothing factor.
func NewExtractor(alpha float64) (*Extractor, error) {
	s, err := NewState(alpha)
	if err != nil {
		return nil, err
	}
	return &Extractor{state: s}, nil
}

// Process advances the extractor by one frame.
// On error the state is left as it was before the call.
func (e *Extractor) Process(frame pose.Frame) (FrameRecord, error) {
	next, rec, err := e.state.Step(frame)
	if err != nil {
		return FrameRecord{}, err
	}
	e.state = next
	return rec, nil
}

// State returns a snapshot of the current state.
func (e *Extractor) State() State {
	return e.state
}

// Run processes a complete frame sequence with a fresh state and returns one
// record per frame. It stops at the first malformed frame.
func Run(alpha float64, frames []pose.Frame) ([]FrameRecord, error) {
	s, err := NewState(alpha)
	if err != nil {
		return nil, err
	}

	records := make([]FrameRecord, 0, len(frames))
	for i, f := range frames {
		var rec FrameRecord
		s, rec, err = s.Step(f)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}
