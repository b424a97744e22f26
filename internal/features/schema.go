// Package features reduces the per-frame records of one exercise attempt to
// the fixed, positionally ordered vector consumed by the trained models.
package features

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

// SchemaVersion identifies the name and order of the vector fields.
// Any change to Names requires a new version.
const SchemaVersion = "rehab-arm-v1"

// NumFeatures is the length of the aggregated vector.
const NumFeatures = 74

var (
	// ErrSchemaMismatch is returned when a schema or feature set differs from
	// the canonical names in length, order or version.
	ErrSchemaMismatch = errors.New("feature schema mismatch")
)

var names = [NumFeatures]string{
	// Per-signal statistics, left arm
	"L_elbow_angle_mean", "L_elbow_angle_std", "L_elbow_angle_max", "L_elbow_angle_min",
	"L_shoulder_angle_mean", "L_shoulder_angle_std", "L_shoulder_angle_max", "L_shoulder_angle_min",
	"L_shoulder_speed_mean", "L_shoulder_speed_std", "L_shoulder_speed_max", "L_shoulder_speed_min",
	"L_angle_vel_mean", "L_angle_vel_std", "L_angle_vel_max", "L_angle_vel_min",
	"L_smoothness_mean", "L_smoothness_std", "L_smoothness_max", "L_smoothness_min",
	"L_shoulder_speed_norm_mean", "L_shoulder_speed_norm_std",

	// Per-signal statistics, right arm
	"R_elbow_angle_mean", "R_elbow_angle_std", "R_elbow_angle_max", "R_elbow_angle_min",
	"R_shoulder_angle_mean", "R_shoulder_angle_std", "R_shoulder_angle_max", "R_shoulder_angle_min",
	"R_shoulder_speed_mean", "R_shoulder_speed_std", "R_shoulder_speed_max", "R_shoulder_speed_min",
	"R_angle_vel_mean", "R_angle_vel_std", "R_angle_vel_max", "R_angle_vel_min",
	"R_smoothness_mean", "R_smoothness_std", "R_smoothness_max", "R_smoothness_min",
	"R_shoulder_speed_norm_mean", "R_shoulder_speed_norm_std",

	"L_elbow_angle_range", "R_elbow_angle_range",
	"L_smoothness_sparc", "R_smoothness_sparc", "L_elbow_rom", "R_elbow_rom",

	// Bilateral comparison
	"elbow_angle_mean_LR_diff", "elbow_angle_mean_LR_ratio",
	"shoulder_angle_mean_LR_diff", "shoulder_angle_mean_LR_ratio",
	"shoulder_speed_mean_LR_diff", "shoulder_speed_mean_LR_ratio",
	"smoothness_mean_LR_diff", "smoothness_mean_LR_ratio",
	"angle_vel_mean_LR_diff", "angle_vel_mean_LR_ratio",
	"shoulder_speed_norm_mean_LR_diff", "shoulder_speed_norm_mean_LR_ratio",
	"elbow_angle_std_LR_diff", "elbow_angle_std_LR_ratio",
	"shoulder_angle_std_LR_diff", "shoulder_angle_std_LR_ratio",
	"shoulder_speed_std_LR_diff", "shoulder_speed_std_LR_ratio",
	"sparc_smoothness_LR_diff", "sparc_smoothness_LR_ratio",

	"L_shoulder_angle_range", "R_shoulder_angle_range",
	"L_sparc_smoothness", "R_sparc_smoothness",
}

var index = func() map[string]int {
	m := make(map[string]int, NumFeatures)
	for i, n := range names {
		m[n] = i
	}
	return m
}()

// Names returns the canonical field names in vector order.
func Names() []string {
	out := make([]string, NumFeatures)
	copy(out, names[:])
	return out
}

// Index returns the position of a named field.
func Index(name string) (int, bool) {
	i, ok := index[name]
	return i, ok
}

// ValidateSchema checks that names matches the canonical order exactly.
func ValidateSchema(got []string) error {
	if len(got) != NumFeatures {
		return fmt.Errorf("%w: got %d names, want %d", ErrSchemaMismatch, len(got), NumFeatures)
	}
	for i, n := range got {
		if want := names[i]; n != want {
			return fmt.Errorf("%w: position %d is %q, want %q", ErrSchemaMismatch, i, n, want)
		}
	}
	return nil
}

// ValidateVersion checks a schema version and field count declared by a consumer.
func ValidateVersion(version string, count int) error {
	if version != SchemaVersion {
		return fmt.Errorf("%w: version %q, want %q", ErrSchemaMismatch, version, SchemaVersion)
	}
	if count != NumFeatures {
		return fmt.Errorf("%w: %d features, want %d", ErrSchemaMismatch, count, NumFeatures)
	}
	return nil
}

// Vector is an aggregated feature vector in canonical order.
type Vector [NumFeatures]float64

// Get returns the value of a named field.
func (v Vector) Get(name string) (float64, bool) {
	i, ok := index[name]
	if !ok {
		return 0, false
	}
	return v[i], true
}

// Named returns the vector keyed by field name.
func (v Vector) Named() map[string]float64 {
	m := make(map[string]float64, NumFeatures)
	for i, n := range names {
		m[n] = v[i]
	}
	return m
}

// Slice returns the positional form sent to models.
func (v Vector) Slice() []float64 {
	out := make([]float64, NumFeatures)
	copy(out, v[:])
	return out
}

// NonFinite returns the names of fields holding NaN or an infinity.
func (v Vector) NonFinite() []string {
	var bad []string
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			bad = append(bad, names[i])
		}
	}
	return bad
}

// FromSlice builds a vector from its positional form.
func FromSlice(values []float64) (Vector, error) {
	var v Vector
	if len(values) != NumFeatures {
		return v, fmt.Errorf("%w: got %d values, want %d", ErrSchemaMismatch, len(values), NumFeatures)
	}
	copy(v[:], values)
	return v, nil
}

// FromMap builds a vector from named values. Every canonical field must be
// present and no other names are accepted.
func FromMap(values map[string]float64) (Vector, error) {
	var v Vector

	var unknown []string
	for n := range values {
		if _, ok := index[n]; !ok {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		slices.Sort(unknown)
		return v, fmt.Errorf("%w: unknown features %s", ErrSchemaMismatch, strings.Join(unknown, ", "))
	}

	var missing []string
	for i, n := range names {
		x, ok := values[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		v[i] = x
	}
	if len(missing) > 0 {
		return v, fmt.Errorf("%w: missing %d features (first %s)", ErrSchemaMismatch, len(missing), missing[0])
	}
	return v, nil
}
