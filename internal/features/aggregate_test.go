package features

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayusman/strokerehab/internal/biomech"
	"github.com/ayusman/strokerehab/internal/pose"
)

// rampRecords returns n records whose signals follow simple known patterns.
func rampRecords(n int) []biomech.FrameRecord {
	records := make([]biomech.FrameRecord, n)
	for i := range records {
		x := float64(i)
		records[i] = biomech.FrameRecord{
			LeftElbowAngle:         100 + x,
			RightElbowAngle:        50 + 2*x,
			LeftShoulderAngle:      30,
			RightShoulderAngle:     10 + x,
			LeftShoulderSpeed:      0.1 * x,
			RightShoulderSpeed:     0,
			LeftAngleVel:           5,
			RightAngleVel:          10,
			LeftJerk:               x,
			RightJerk:              0,
			LeftShoulderSpeedNorm:  1,
			RightShoulderSpeedNorm: 2,
		}
	}
	return records
}

func get(t *testing.T, v Vector, name string) float64 {
	t.Helper()
	x, ok := v.Get(name)
	require.True(t, ok, "unknown feature %s", name)
	return x
}

func TestAggregate_InsufficientData(t *testing.T) {
	for _, n := range []int{0, 1, 4} {
		_, err := Aggregate(rampRecords(n))
		assert.ErrorIs(t, err, ErrInsufficientData, "n=%d", n)
	}

	_, err := Aggregate(rampRecords(MinRecords))
	assert.NoError(t, err)
}

func TestAggregate_Statistics(t *testing.T) {
	v, err := Aggregate(rampRecords(5))
	require.NoError(t, err)

	sampleStd := math.Sqrt(2.5) // of 0,1,2,3,4 with divisor N-1

	assert.InDelta(t, 102, get(t, v, "L_elbow_angle_mean"), 1e-12)
	assert.InDelta(t, sampleStd, get(t, v, "L_elbow_angle_std"), 1e-12)
	assert.Equal(t, 104.0, get(t, v, "L_elbow_angle_max"))
	assert.Equal(t, 100.0, get(t, v, "L_elbow_angle_min"))
	assert.Equal(t, 4.0, get(t, v, "L_elbow_angle_range"))
	assert.Equal(t, 4.0, get(t, v, "L_elbow_rom"))

	assert.InDelta(t, 54, get(t, v, "R_elbow_angle_mean"), 1e-12)
	assert.InDelta(t, 2*sampleStd, get(t, v, "R_elbow_angle_std"), 1e-12)
	assert.Equal(t, 8.0, get(t, v, "R_elbow_angle_range"))
	assert.Equal(t, 8.0, get(t, v, "R_elbow_rom"))

	assert.Equal(t, 0.0, get(t, v, "L_shoulder_angle_std"))
	assert.Equal(t, 0.0, get(t, v, "L_shoulder_angle_range"))
	assert.Equal(t, 4.0, get(t, v, "R_shoulder_angle_range"))

	assert.InDelta(t, 0.2, get(t, v, "L_shoulder_speed_mean"), 1e-12)
	assert.InDelta(t, 0.4, get(t, v, "L_shoulder_speed_max"), 1e-12)
	assert.Equal(t, 0.0, get(t, v, "R_shoulder_speed_max"))

	assert.Equal(t, 5.0, get(t, v, "L_angle_vel_mean"))
	assert.Equal(t, 10.0, get(t, v, "R_angle_vel_min"))

	assert.InDelta(t, 2, get(t, v, "L_smoothness_mean"), 1e-12)
	assert.Equal(t, 4.0, get(t, v, "L_smoothness_max"))

	assert.Equal(t, 1.0, get(t, v, "L_shoulder_speed_norm_mean"))
	assert.Equal(t, 0.0, get(t, v, "R_shoulder_speed_norm_std"))
}

func TestAggregate_Smoothness(t *testing.T) {
	v, err := Aggregate(rampRecords(5))
	require.NoError(t, err)

	left := -math.Log(2 + 1e-8)
	right := -math.Log(1e-8)

	assert.InDelta(t, left, get(t, v, "L_smoothness_sparc"), 1e-12)
	assert.InDelta(t, right, get(t, v, "R_smoothness_sparc"), 1e-12)
	assert.InDelta(t, 18.420680743952367, right, 1e-9)

	assert.Equal(t, get(t, v, "L_smoothness_sparc"), get(t, v, "L_sparc_smoothness"))
	assert.Equal(t, get(t, v, "R_smoothness_sparc"), get(t, v, "R_sparc_smoothness"))

	assert.InDelta(t, left-right, get(t, v, "smoothness_mean_LR_diff"), 1e-12)
	assert.Equal(t, get(t, v, "smoothness_mean_LR_diff"), get(t, v, "sparc_smoothness_LR_diff"))
	assert.Equal(t, get(t, v, "smoothness_mean_LR_ratio"), get(t, v, "sparc_smoothness_LR_ratio"))
}

func TestAggregate_Bilateral(t *testing.T) {
	v, err := Aggregate(rampRecords(5))
	require.NoError(t, err)

	assert.InDelta(t, 48, get(t, v, "elbow_angle_mean_LR_diff"), 1e-12)
	assert.InDelta(t, 102/(54+1e-8), get(t, v, "elbow_angle_mean_LR_ratio"), 1e-12)
	assert.InDelta(t, 18, get(t, v, "shoulder_angle_mean_LR_diff"), 1e-12)
	assert.InDelta(t, -5, get(t, v, "angle_vel_mean_LR_diff"), 1e-12)
	assert.InDelta(t, 0.5, get(t, v, "angle_vel_mean_LR_ratio"), 1e-9)
	assert.InDelta(t, -1, get(t, v, "shoulder_speed_norm_mean_LR_diff"), 1e-12)
	assert.InDelta(t, 0.5, get(t, v, "shoulder_speed_norm_mean_LR_ratio"), 1e-9)
	assert.InDelta(t, -math.Sqrt(2.5), get(t, v, "elbow_angle_std_LR_diff"), 1e-12)
	assert.InDelta(t, 0.5, get(t, v, "elbow_angle_std_LR_ratio"), 1e-9)
	assert.InDelta(t, -math.Sqrt(2.5), get(t, v, "shoulder_angle_std_LR_diff"), 1e-12)

	// Right side speed is exactly zero
	ratio := get(t, v, "shoulder_speed_mean_LR_ratio")
	assert.False(t, math.IsInf(ratio, 0) || math.IsNaN(ratio))
	assert.InDelta(t, 0.2/1e-8, ratio, 1)
	assert.Empty(t, v.NonFinite())
}

func TestAggregate_LengthIndependentOfInput(t *testing.T) {
	for _, n := range []int{5, 6, 31, 300} {
		v, err := Aggregate(rampRecords(n))
		require.NoError(t, err)
		assert.Len(t, v.Slice(), NumFeatures)
		assert.Len(t, v.Named(), NumFeatures)
	}
}

func TestAggregate_StationaryAttempt(t *testing.T) {
	records, err := biomech.Run(biomech.DefaultAlpha, pose.RestingArmsSequence(5, 33))
	require.NoError(t, err)

	v, err := Aggregate(records)
	require.NoError(t, err)

	// Collinear joints sit a fraction of a degree below 180 because of the
	// epsilon in the angle denominator.
	assert.InDelta(t, 180, get(t, v, "L_elbow_angle_mean"), 0.1)
	assert.InDelta(t, 180, get(t, v, "R_elbow_angle_mean"), 0.1)
	assert.InDelta(t, 0, get(t, v, "elbow_angle_mean_LR_diff"), 1e-9)
	assert.InDelta(t, 1, get(t, v, "elbow_angle_mean_LR_ratio"), 1e-9)

	for _, name := range []string{
		"L_elbow_angle_std", "R_elbow_angle_std", "L_elbow_angle_range", "R_elbow_angle_range",
		"L_elbow_rom", "R_elbow_rom", "L_shoulder_angle_std", "R_shoulder_angle_range",
		"L_shoulder_speed_std", "R_shoulder_speed_max", "L_angle_vel_std", "R_angle_vel_max",
		"L_smoothness_std", "R_smoothness_max", "L_shoulder_speed_norm_std", "R_shoulder_speed_norm_std",
	} {
		assert.InDelta(t, 0, get(t, v, name), 1e-6, name)
	}
	assert.Empty(t, v.NonFinite())
}

func TestAggregate_Deterministic(t *testing.T) {
	frames := pose.ElbowFlexionSequence(60, 33, 0.5)

	run := func() Vector {
		records, err := biomech.Run(biomech.DefaultAlpha, frames)
		require.NoError(t, err)
		v, err := Aggregate(records)
		require.NoError(t, err)
		return v
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)

	// The affected right arm flexes less than the left
	assert.Greater(t, get(t, first, "L_elbow_rom"), get(t, first, "R_elbow_rom"))
	assert.Greater(t, get(t, first, "L_angle_vel_mean"), get(t, first, "R_angle_vel_mean"))
}
