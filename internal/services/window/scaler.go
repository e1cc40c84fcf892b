package window

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Scaler is a fitted min-max transform onto [0, 1].
type Scaler struct {
	Min float64
	Max float64
}

// FitScaler fits a scaler to xs.
func FitScaler(xs []float64) (Scaler, error) {
	if len(xs) == 0 {
		return Scaler{}, fmt.Errorf("fit scaler: empty input")
	}
	return Scaler{Min: floats.Min(xs), Max: floats.Max(xs)}, nil
}

func (s Scaler) span() float64 {
	d := s.Max - s.Min
	if d == 0 {
		// constant input maps to 0 and back to Min
		return 1
	}
	return d
}

// Transform maps one raw value into scaled space.
func (s Scaler) Transform(x float64) float64 { return (x - s.Min) / s.span() }

// Inverse maps one scaled value back to raw space.
func (s Scaler) Inverse(y float64) float64 { return y*s.span() + s.Min }

// TransformAll returns a scaled copy of xs.
func (s Scaler) TransformAll(xs []float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = s.Transform(x)
	}
	return out
}
