package api

import "math"

// Score categories, lowest first.
const (
	CategoryPoor      = "poor"
	CategoryAverage   = "average"
	CategoryGood      = "good"
	CategoryExcellent = "excellent"
)

// Category buckets a 0-100 recovery score.
func Category(score float64) string {
	switch {
	case score >= 80:
		return CategoryExcellent
	case score >= 60:
		return CategoryGood
	case score >= 40:
		return CategoryAverage
	default:
		return CategoryPoor
	}
}

func validCategory(c string) bool {
	switch c {
	case CategoryPoor, CategoryAverage, CategoryGood, CategoryExcellent:
		return true
	}
	return false
}

// CombineScores returns the mean of the non-nil scores rounded to two
// decimals. It reports false when every score is nil.
func CombineScores(scores ...*float64) (float64, bool) {
	var sum float64
	var n int
	for _, s := range scores {
		if s != nil {
			sum += *s
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return math.Round(sum/float64(n)*100) / 100, true
}
