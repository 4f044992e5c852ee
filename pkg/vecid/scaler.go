package vecid

import (
	"fmt"
	"math"
)

// Scaler standardizes vectors to zero mean and unit variance per
// dimension, using statistics fit on a reference window. Dimensions with
// zero variance are centered but not scaled.
type Scaler struct {
	Mean  []float64
	Scale []float64
}

// FitScaler computes per-dimension mean and population standard
// deviation over vectors.
func FitScaler(vectors [][]float64) (*Scaler, error) {
	if err := checkMatrix(vectors); err != nil {
		return nil, err
	}
	mean := Centroid(vectors)
	scale := make([]float64, len(mean))
	for _, v := range vectors {
		for d, x := range v {
			dx := x - mean[d]
			scale[d] += dx * dx
		}
	}
	n := float64(len(vectors))
	for d := range scale {
		scale[d] = math.Sqrt(scale[d] / n)
		if scale[d] == 0 {
			scale[d] = 1
		}
		if math.IsInf(scale[d], 0) || math.IsNaN(scale[d]) {
			return nil, fmt.Errorf("%w: dimension %d overflows", ErrIllConditioned, d)
		}
	}
	return &Scaler{Mean: mean, Scale: scale}, nil
}

// Transform returns a standardized copy of v.
func (s *Scaler) Transform(v []float64) []float64 {
	out := make([]float64, len(v))
	for d, x := range v {
		out[d] = (x - s.Mean[d]) / s.Scale[d]
	}
	return out
}

// TransformAll standardizes every vector.
func (s *Scaler) TransformAll(vectors [][]float64) [][]float64 {
	out := make([][]float64, len(vectors))
	for i, v := range vectors {
		out[i] = s.Transform(v)
	}
	return out
}
