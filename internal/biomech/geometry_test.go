package biomech

import (
	"math"
	"testing"
)

func TestAngle(t *testing.T) {
	tests := []struct {
		name    string
		a, b, c Vec2
		want    float64
		tol     float64
	}{
		{"right angle", Vec2{1, 0}, Vec2{0, 0}, Vec2{0, 1}, 90, 1e-9},
		{"opposite rays", Vec2{-100, 0}, Vec2{0, 0}, Vec2{100, 0}, 180, 1e-3},
		{"same direction", Vec2{100, 0}, Vec2{0, 0}, Vec2{200, 0}, 0, 1e-3},
		{"45 degrees", Vec2{1, 0}, Vec2{0, 0}, Vec2{1, 1}, 45, 1e-6},
		{"offset vertex", Vec2{3, 2}, Vec2{2, 2}, Vec2{2, 5}, 90, 1e-9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Angle(tt.a, tt.b, tt.c)
			if math.Abs(got-tt.want) > tt.tol {
				t.Errorf("Angle() = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestAngle_Symmetric(t *testing.T) {
	points := []Vec2{
		{0.5, 0.5}, {0.5, 0.6}, {0.6, 0.7}, {0.1, 0.9}, {0.33, 0.12}, {0.71, 0.44},
	}

	for i, a := range points {
		for j, c := range points {
			if i == j {
				continue
			}
			b := Vec2{0.4, 0.4}
			if Angle(a, b, c) != Angle(c, b, a) {
				t.Errorf("Angle(%v, b, %v) not symmetric: %f vs %f", a, c, Angle(a, b, c), Angle(c, b, a))
			}
		}
	}
}

func TestAngle_RangeAndNoNaN(t *testing.T) {
	cases := [][3]Vec2{
		// Nearly parallel rays where rounding can push the cosine past 1
		{{1, 0}, {0, 0}, {1, 1e-12}},
		{{0.3, 0.3}, {0.1, 0.1}, {0.7, 0.7}},
		// Nearly antiparallel rays
		{{-1, 1e-12}, {0, 0}, {1, 0}},
		{{0.1, 0.1}, {0.3, 0.3}, {0.7, 0.7}},
		// Coincident vertex and endpoint
		{{0.5, 0.5}, {0.5, 0.5}, {0.9, 0.1}},
		{{0, 0}, {0, 0}, {0, 0}},
	}

	for _, c := range cases {
		got := Angle(c[0], c[1], c[2])
		if math.IsNaN(got) {
			t.Errorf("Angle(%v) = NaN", c)
			continue
		}
		if got < 0 || got > 180 {
			t.Errorf("Angle(%v) = %f, outside [0, 180]", c, got)
		}
	}
}

func TestEMA(t *testing.T) {
	t.Run("alpha 1 returns raw", func(t *testing.T) {
		raw := Vec2{0.123, 0.987}
		got := EMA(raw, Vec2{0.9, 0.1}, 1)
		if got != raw {
			t.Errorf("EMA() = %v, want %v", got, raw)
		}
	})

	t.Run("blends towards raw", func(t *testing.T) {
		got := EMA(Vec2{1, 0}, Vec2{0, 1}, 0.35)
		if math.Abs(got.X-0.35) > 1e-12 || math.Abs(got.Y-0.65) > 1e-12 {
			t.Errorf("EMA() = %v, want {0.35 0.65}", got)
		}
	})
}

func TestVec2(t *testing.T) {
	v := Vec2{3, 4}
	if v.Norm() != 5 {
		t.Errorf("Norm() = %f, want 5", v.Norm())
	}
	if got := v.Sub(Vec2{1, 1}); got != (Vec2{2, 3}) {
		t.Errorf("Sub() = %v", got)
	}
	if got := v.Div(2); got != (Vec2{1.5, 2}) {
		t.Errorf("Div() = %v", got)
	}
	if got := v.Dot(Vec2{1, 2}); got != 11 {
		t.Errorf("Dot() = %f, want 11", got)
	}
}
