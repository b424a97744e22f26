package features

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ayusman/strokerehab/internal/biomech"
)

// MinRecords is the fewest per-frame records an attempt can be scored from.
const MinRecords = 5

// ErrInsufficientData is returned when an attempt has too few records to aggregate.
var ErrInsufficientData = errors.New("insufficient data")

// summary holds the descriptive statistics of one signal over an attempt.
type summary struct {
	mean, std, max, min float64
}

// summarize computes the mean, sample standard deviation (N-1), max and min.
func summarize(x []float64) summary {
	return summary{
		mean: stat.Mean(x, nil),
		std:  stat.StdDev(x, nil),
		max:  floats.Max(x),
		min:  floats.Min(x),
	}
}

func (s summary) rng() float64 {
	return s.max - s.min
}

// armSummary holds the statistics of every signal for one arm.
type armSummary struct {
	elbow     summary
	shoulder  summary
	speed     summary
	angleVel  summary
	jerk      summary
	speedNorm summary
}

// sparc maps mean jerk to a higher-is-smoother score.
func (a armSummary) sparc() float64 {
	return -math.Log(a.jerk.mean + biomech.Epsilon)
}

func summarizeArm(records []biomech.FrameRecord, side biomech.Side) armSummary {
	n := len(records)
	elbow := make([]float64, n)
	shoulder := make([]float64, n)
	speed := make([]float64, n)
	angleVel := make([]float64, n)
	jerk := make([]float64, n)
	speedNorm := make([]float64, n)

	for i, r := range records {
		if side == biomech.Left {
			elbow[i], shoulder[i] = r.LeftElbowAngle, r.LeftShoulderAngle
			speed[i], angleVel[i] = r.LeftShoulderSpeed, r.LeftAngleVel
			jerk[i], speedNorm[i] = r.LeftJerk, r.LeftShoulderSpeedNorm
		} else {
			elbow[i], shoulder[i] = r.RightElbowAngle, r.RightShoulderAngle
			speed[i], angleVel[i] = r.RightShoulderSpeed, r.RightAngleVel
			jerk[i], speedNorm[i] = r.RightJerk, r.RightShoulderSpeedNorm
		}
	}

	return armSummary{
		elbow:     summarize(elbow),
		shoulder:  summarize(shoulder),
		speed:     summarize(speed),
		angleVel:  summarize(angleVel),
		jerk:      summarize(jerk),
		speedNorm: summarize(speedNorm),
	}
}

// Aggregate reduces the records of one attempt to its feature vector.
// It needs at least MinRecords records and is deterministic for a given input.
func Aggregate(records []biomech.FrameRecord) (Vector, error) {
	if len(records) < MinRecords {
		return Vector{}, fmt.Errorf("%w: got %d frames, need at least %d",
			ErrInsufficientData, len(records), MinRecords)
	}

	l := summarizeArm(records, biomech.Left)
	r := summarizeArm(records, biomech.Right)

	vals := make([]float64, 0, NumFeatures)
	full := func(s summary) {
		vals = append(vals, s.mean, s.std, s.max, s.min)
	}
	pair := func(left, right float64) {
		vals = append(vals, left-right, left/(right+biomech.Epsilon))
	}

	for _, a := range []armSummary{l, r} {
		full(a.elbow)
		full(a.shoulder)
		full(a.speed)
		full(a.angleVel)
		full(a.jerk)
		vals = append(vals, a.speedNorm.mean, a.speedNorm.std)
	}

	vals = append(vals, l.elbow.rng(), r.elbow.rng())
	vals = append(vals, l.sparc(), r.sparc(), l.elbow.rng(), r.elbow.rng())

	pair(l.elbow.mean, r.elbow.mean)
	pair(l.shoulder.mean, r.shoulder.mean)
	pair(l.speed.mean, r.speed.mean)
	pair(l.sparc(), r.sparc())
	pair(l.angleVel.mean, r.angleVel.mean)
	pair(l.speedNorm.mean, r.speedNorm.mean)
	pair(l.elbow.std, r.elbow.std)
	pair(l.shoulder.std, r.shoulder.std)
	pair(l.speed.std, r.speed.std)
	pair(l.sparc(), r.sparc())

	vals = append(vals, l.shoulder.rng(), r.shoulder.rng())
	vals = append(vals, l.sparc(), r.sparc())

	return FromSlice(vals)
}
