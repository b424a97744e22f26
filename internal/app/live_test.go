package app

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/strokerehab/internal/biomech"
	"github.com/ayusman/strokerehab/internal/model"
	"github.com/ayusman/strokerehab/internal/pose"
)

func TestLiveAttempt(t *testing.T) {
	s := newScorer(t, Config{Predictor: model.NewMockPredictor(66, "moderate")})
	ctx := context.Background()

	frames := pose.ElbowFlexionSequence(20, 33, 0.6)
	want, err := biomech.Run(s.Alpha(), frames)
	require.NoError(t, err)

	live, err := s.NewLiveAttempt(ctx, meta)
	require.NoError(t, err)
	assert.Equal(t, meta, live.Meta())

	for i, f := range frames {
		rec, err := live.Add(f)
		require.NoError(t, err)
		assert.Equal(t, want[i], rec)
	}
	assert.Equal(t, 20, live.Len())

	res, err := live.Finish(ctx)
	require.NoError(t, err)
	assert.Equal(t, 66.0, res.Prediction.Score)
	assert.Equal(t, 20, res.FrameCount)

	batch, err := s.ScoreFrames(ctx, meta, frames)
	require.NoError(t, err)
	assert.Equal(t, batch.Vector, res.Vector)

	_, err = live.Add(frames[0])
	assert.ErrorIs(t, err, ErrAttemptClosed)
	_, err = live.Finish(ctx)
	assert.ErrorIs(t, err, ErrAttemptClosed)
}

func TestLiveAttempt_MalformedFrameNotBuffered(t *testing.T) {
	s := newScorer(t, Config{Predictor: model.NewMockPredictor(66, "moderate")})
	ctx := context.Background()

	live, err := s.NewLiveAttempt(ctx, meta)
	require.NoError(t, err)

	frames := pose.RestingArmsSequence(5, 33)
	for _, f := range frames[:3] {
		_, err := live.Add(f)
		require.NoError(t, err)
	}

	_, err = live.Add(pose.Frame{Landmarks: make([]pose.Landmark, 5), Timestamp: 80})
	assert.ErrorIs(t, err, biomech.ErrMalformedFrame)
	assert.Equal(t, 3, live.Len())

	for _, f := range frames[3:] {
		_, err := live.Add(f)
		require.NoError(t, err)
	}
	_, err = live.Finish(ctx)
	assert.NoError(t, err)
}

func TestLiveAttempt_TooShort(t *testing.T) {
	predictor := model.NewMockPredictor(66, "moderate")
	s := newScorer(t, Config{Predictor: predictor})
	ctx := context.Background()

	live, err := s.NewLiveAttempt(ctx, meta)
	require.NoError(t, err)
	for _, f := range pose.RestingArmsSequence(2, 33) {
		_, err := live.Add(f)
		require.NoError(t, err)
	}

	_, err = live.Finish(ctx)
	reason, ok := ReasonOf(err)
	assert.True(t, ok)
	assert.Equal(t, ReasonInsufficientData, reason)
	assert.Empty(t, predictor.Calls())
}

func TestLiveAttempt_Close(t *testing.T) {
	s := newScorer(t, Config{})
	ctx := context.Background()

	live, err := s.NewLiveAttempt(ctx, meta)
	require.NoError(t, err)

	live.Close(ctx)
	live.Close(ctx)

	_, err = live.Add(pose.Frame{Landmarks: pose.RestingArmsLandmarks()})
	assert.ErrorIs(t, err, ErrAttemptClosed)
}
