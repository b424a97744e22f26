// Package biomech computes per-frame arm biomechanics from pose landmarks.
package biomech

import "math"

// Epsilon guards divisions against zero-length vectors and zero spans.
const Epsilon = 1e-8

// Vec2 is a 2D point or vector in normalized image coordinates.
type Vec2 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Sub returns v - o.
func (v Vec2) Sub(o Vec2) Vec2 {
	return Vec2{X: v.X - o.X, Y: v.Y - o.Y}
}

// Div divides each component by d.
func (v Vec2) Div(d float64) Vec2 {
	return Vec2{X: v.X / d, Y: v.Y / d}
}

// Dot returns the dot product of v and o.
func (v Vec2) Dot(o Vec2) float64 {
	return v.X*o.X + v.Y*o.Y
}

// Norm returns the Euclidean length of v.
func (v Vec2) Norm() float64 {
	return math.Sqrt(v.X*v.X + v.Y*v.Y)
}

// Angle returns the angle in degrees at vertex b between the rays b->a and
// b->c. The cosine is clamped to [-1, 1] so rounding on near-parallel rays
// cannot produce NaN. The result is in [0, 180].
func Angle(a, b, c Vec2) float64 {
	ba := a.Sub(b)
	bc := c.Sub(b)

	denom := ba.Norm()*bc.Norm() + Epsilon
	cos := ba.Dot(bc) / denom
	cos = math.Max(-1, math.Min(1, cos))

	return math.Acos(cos) * (180 / math.Pi)
}

// EMA performs one exponential moving average step.
// Higher alpha follows the raw sample more closely.
func EMA(raw, prev Vec2, alpha float64) Vec2 {
	return Vec2{
		X: alpha*raw.X + (1-alpha)*prev.X,
		Y: alpha*raw.Y + (1-alpha)*prev.Y,
	}
}
