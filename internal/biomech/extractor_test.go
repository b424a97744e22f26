package biomech

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/strokerehab/internal/pose"
)

func TestNewState_Alpha(t *testing.T) {
	for _, alpha := range []float64{0, -0.1, 1.01, math.NaN(), math.Inf(1)} {
		_, err := NewState(alpha)
		assert.ErrorIs(t, err, ErrInvalidAlpha, "alpha %v", alpha)
	}

	for _, alpha := range []float64{0.01, DefaultAlpha, 1} {
		s, err := NewState(alpha)
		require.NoError(t, err)
		assert.Equal(t, alpha, s.Alpha())
		assert.False(t, s.Primed())
	}
}

func TestStep_StationaryArms(t *testing.T) {
	frames := pose.RestingArmsSequence(5, 33)

	records, err := Run(DefaultAlpha, frames)
	require.NoError(t, err)
	require.Len(t, records, 5)

	for i, rec := range records {
		// Collinear joints: the elbow is fully extended and the wrist lies
		// along the upper arm as seen from the shoulder. The epsilon in the
		// angle denominator keeps both a fraction of a degree from the limit.
		assert.InDelta(t, 180, rec.LeftElbowAngle, 0.1, "frame %d", i)
		assert.InDelta(t, 180, rec.RightElbowAngle, 0.1, "frame %d", i)
		assert.InDelta(t, 0, rec.LeftShoulderAngle, 0.1, "frame %d", i)
		assert.InDelta(t, 0, rec.RightShoulderAngle, 0.1, "frame %d", i)

		assert.InDelta(t, records[0].LeftElbowAngle, rec.LeftElbowAngle, 1e-9)
		assert.InDelta(t, records[0].RightShoulderAngle, rec.RightShoulderAngle, 1e-9)

		assert.InDelta(t, 0, rec.LeftShoulderSpeed, 1e-9, "frame %d", i)
		assert.InDelta(t, 0, rec.RightShoulderSpeed, 1e-9, "frame %d", i)
		assert.InDelta(t, 0, rec.LeftAngleVel, 1e-6, "frame %d", i)
		assert.InDelta(t, 0, rec.RightAngleVel, 1e-6, "frame %d", i)
		assert.InDelta(t, 0, rec.LeftJerk, 1e-6, "frame %d", i)
		assert.InDelta(t, 0, rec.RightJerk, 1e-6, "frame %d", i)
		assert.InDelta(t, 0, rec.LeftShoulderSpeedNorm, 1e-6, "frame %d", i)
		assert.InDelta(t, 0, rec.RightShoulderSpeedNorm, 1e-6, "frame %d", i)
	}
}

func TestStep_FirstFrame(t *testing.T) {
	s, err := NewState(DefaultAlpha)
	require.NoError(t, err)

	frame := pose.ElbowFlexionSequence(10, 33, 0.5)[3]
	next, rec, err := s.Step(frame)
	require.NoError(t, err)

	assert.True(t, next.Primed())
	// The first sample seeds the filter exactly
	assert.Equal(t, Vec2{X: frame.Landmarks[pose.LeftWrist].X, Y: frame.Landmarks[pose.LeftWrist].Y},
		next.Smoothed(Left).Wrist)
	assert.Equal(t, Vec2{X: frame.Landmarks[pose.RightElbow].X, Y: frame.Landmarks[pose.RightElbow].Y},
		next.Smoothed(Right).Elbow)

	assert.Zero(t, rec.LeftShoulderSpeed)
	assert.Zero(t, rec.RightJerk)
	assert.Zero(t, rec.LeftAngleVel)
	assert.Zero(t, rec.RightShoulderSpeedNorm)
	assert.Greater(t, rec.LeftElbowAngle, 0.0)
}

func TestStep_AlphaOneTracksRaw(t *testing.T) {
	s, err := NewState(1)
	require.NoError(t, err)

	for _, f := range pose.ElbowFlexionSequence(20, 33, 0.6) {
		s, _, err = s.Step(f)
		require.NoError(t, err)

		for _, side := range []Side{Left, Right} {
			sh, el, wr := pose.LeftShoulder, pose.LeftElbow, pose.LeftWrist
			if side == Right {
				sh, el, wr = pose.RightShoulder, pose.RightElbow, pose.RightWrist
			}
			arm := s.Smoothed(side)
			assert.Equal(t, Vec2{X: f.Landmarks[sh].X, Y: f.Landmarks[sh].Y}, arm.Shoulder)
			assert.Equal(t, Vec2{X: f.Landmarks[el].X, Y: f.Landmarks[el].Y}, arm.Elbow)
			assert.Equal(t, Vec2{X: f.Landmarks[wr].X, Y: f.Landmarks[wr].Y}, arm.Wrist)
		}
	}
}

func TestStep_FiniteDifferences(t *testing.T) {
	s, err := NewState(1)
	require.NoError(t, err)

	first := pose.Frame{Landmarks: pose.RestingArmsLandmarks(), Timestamp: 1000}
	second := pose.Frame{Landmarks: pose.RestingArmsLandmarks(), Timestamp: 1100}
	second.Landmarks[pose.LeftShoulder].X += 0.01

	s, _, err = s.Step(first)
	require.NoError(t, err)
	_, rec, err := s.Step(second)
	require.NoError(t, err)

	// 0.01 over 0.1s, from rest
	assert.InDelta(t, 0.1, rec.LeftShoulderSpeed, 1e-9)
	assert.InDelta(t, 0, rec.RightShoulderSpeed, 1e-12)
	// acceleration (1, 0) from zero, then jerk |(1, 0) / 0.1|
	assert.InDelta(t, 10, rec.LeftJerk, 1e-6)
	// inter-shoulder span shrinks to 0.09
	assert.InDelta(t, 0.1/0.09, rec.LeftShoulderSpeedNorm, 1e-6)

	before := Angle(Vec2{0.5, 0.5}, Vec2{0.5, 0.6}, Vec2{0.5, 0.7})
	after := Angle(Vec2{0.51, 0.5}, Vec2{0.5, 0.6}, Vec2{0.5, 0.7})
	assert.InDelta(t, math.Abs(after-before)/0.1, rec.LeftAngleVel, 1e-6)
	assert.InDelta(t, 0, rec.RightAngleVel, 1e-9)
}

func TestStep_SmallDeltaSkipsDerivatives(t *testing.T) {
	frames := pose.ElbowFlexionSequence(6, 33, 1)
	frames[3].Timestamp = frames[2].Timestamp
	frames[4].Timestamp = frames[2].Timestamp - 10

	s, err := NewState(DefaultAlpha)
	require.NoError(t, err)

	var rec FrameRecord
	for i := 0; i < 3; i++ {
		s, _, err = s.Step(frames[i])
		require.NoError(t, err)
	}
	vel, acc := s.prevVel, s.prevAcc

	for i := 3; i < 5; i++ {
		prevWrist := s.Smoothed(Left).Wrist
		s, rec, err = s.Step(frames[i])
		require.NoError(t, err)

		assert.Zero(t, rec.LeftShoulderSpeed, "frame %d", i)
		assert.Zero(t, rec.LeftJerk, "frame %d", i)
		assert.Zero(t, rec.LeftAngleVel, "frame %d", i)
		assert.Zero(t, rec.RightShoulderSpeedNorm, "frame %d", i)

		// Velocity and acceleration are kept, positions and angles still move
		assert.Equal(t, vel, s.prevVel)
		assert.Equal(t, acc, s.prevAcc)
		assert.NotEqual(t, prevWrist, s.Smoothed(Left).Wrist)
		assert.Equal(t, frames[i].Timestamp, s.prevTime)
	}
}

func TestStep_EmptyFrameFreezesState(t *testing.T) {
	frames := pose.ElbowFlexionSequence(8, 33, 0.7)

	s, err := NewState(DefaultAlpha)
	require.NoError(t, err)
	for _, f := range frames[:4] {
		s, _, err = s.Step(f)
		require.NoError(t, err)
	}

	frozen, rec, err := s.Step(pose.Frame{Timestamp: frames[4].Timestamp})
	require.NoError(t, err)
	assert.Equal(t, FrameRecord{}, rec)
	assert.Equal(t, s, frozen)

	// The next frame is differentiated against the last frame with landmarks
	_, withGap, err := frozen.Step(frames[5])
	require.NoError(t, err)
	_, withoutGap, err := s.Step(frames[5])
	require.NoError(t, err)
	assert.Equal(t, withoutGap, withGap)
}

func TestStep_EmptyFirstFrame(t *testing.T) {
	s, err := NewState(DefaultAlpha)
	require.NoError(t, err)

	next, rec, err := s.Step(pose.Frame{Landmarks: []pose.Landmark{}, Timestamp: 0})
	require.NoError(t, err)
	assert.Equal(t, FrameRecord{}, rec)
	assert.False(t, next.Primed())
}

func TestStep_MalformedFrame(t *testing.T) {
	frames := pose.RestingArmsSequence(3, 33)

	s, err := NewState(DefaultAlpha)
	require.NoError(t, err)
	s, _, err = s.Step(frames[0])
	require.NoError(t, err)

	short := pose.Frame{Landmarks: frames[1].Landmarks[:pose.RightWrist], Timestamp: 33}
	next, rec, err := s.Step(short)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedFrame))
	assert.Contains(t, err.Error(), "got 16 landmarks")
	assert.Equal(t, FrameRecord{}, rec)
	assert.Equal(t, s, next)

	_, err = Run(DefaultAlpha, []pose.Frame{frames[0], short})
	assert.ErrorIs(t, err, ErrMalformedFrame)
	assert.Contains(t, err.Error(), "frame 1")
}

func TestStep_NaNInputDoesNotFail(t *testing.T) {
	frames := pose.RestingArmsSequence(3, 33)
	frames[1].Landmarks[pose.LeftElbow].X = math.NaN()

	records, err := Run(DefaultAlpha, frames)
	require.NoError(t, err)
	assert.True(t, math.IsNaN(records[1].LeftElbowAngle))
	assert.False(t, math.IsNaN(records[1].RightElbowAngle))
}

func TestRun_Deterministic(t *testing.T) {
	frames := pose.ElbowFlexionSequence(40, 33, 0.4)

	first, err := Run(DefaultAlpha, frames)
	require.NoError(t, err)
	second, err := Run(DefaultAlpha, frames)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestExtractor(t *testing.T) {
	frames := pose.ElbowFlexionSequence(12, 33, 0.5)

	want, err := Run(DefaultAlpha, frames)
	require.NoError(t, err)

	ex, err := NewExtractor(DefaultAlpha)
	require.NoError(t, err)
	for i, f := range frames {
		rec, err := ex.Process(f)
		require.NoError(t, err)
		assert.Equal(t, want[i], rec)
	}
	assert.True(t, ex.State().Primed())

	before := ex.State()
	_, err = ex.Process(pose.Frame{Landmarks: make([]pose.Landmark, 3), Timestamp: 9999})
	assert.ErrorIs(t, err, ErrMalformedFrame)
	assert.Equal(t, before, ex.State())

	_, err = NewExtractor(0)
	assert.ErrorIs(t, err, ErrInvalidAlpha)
}

func TestSide_String(t *testing.T) {
	assert.Equal(t, "left", Left.String())
	assert.Equal(t, "right", Right.String())
}
