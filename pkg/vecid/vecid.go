// Package vecid groups feature vectors into identities.
//
// It provides the numeric building blocks used for online speaker
// labeling: Euclidean distance and centroids, a per-dimension
// standardizer fit on a window of vectors, nearest-neighbor lookup, and
// DBSCAN density clustering that labels each vector with a cluster index
// or Noise.
//
// # Usage
//
//	sc, err := vecid.FitScaler(window)
//	if err != nil {
//	    // window is empty, ragged or not finite
//	}
//	z := sc.TransformAll(window)
//	labels := vecid.DBSCAN(z, 0.3, 3)
//	i, _ := vecid.Nearest(z, sc.Transform(query))
//	label := labels[i] // vecid.Noise when the neighbor fits no cluster
//
// All functions are pure; vectors passed in are never modified.
package vecid

import (
	"errors"
	"math"
)

// ErrIllConditioned is returned when input vectors cannot be clustered:
// empty input, mismatched dimensions or non-finite values.
var ErrIllConditioned = errors.New("vecid: ill-conditioned input")

// Euclidean returns the L2 distance between a and b. The vectors must
// have equal length.
func Euclidean(a, b []float64) float64 {
	var sum float64
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return math.Sqrt(sum)
}

// Centroid returns the element-wise mean of vectors, or nil when there
// are none.
func Centroid(vectors [][]float64) []float64 {
	if len(vectors) == 0 {
		return nil
	}
	c := make([]float64, len(vectors[0]))
	for _, v := range vectors {
		for d := range c {
			c[d] += v[d]
		}
	}
	n := float64(len(vectors))
	for d := range c {
		c[d] /= n
	}
	return c
}

// Nearest returns the index of the vector closest to q and its distance.
// Ties resolve to the lowest index. Returns -1 for an empty set.
func Nearest(vectors [][]float64, q []float64) (int, float64) {
	best, bestDist := -1, math.Inf(1)
	for i, v := range vectors {
		if d := Euclidean(v, q); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best, bestDist
}

// checkMatrix verifies a non-empty rectangular matrix of finite values.
func checkMatrix(vectors [][]float64) error {
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return ErrIllConditioned
	}
	dim := len(vectors[0])
	for _, v := range vectors {
		if len(v) != dim {
			return ErrIllConditioned
		}
		for _, x := range v {
			if math.IsNaN(x) || math.IsInf(x, 0) {
				return ErrIllConditioned
			}
		}
	}
	return nil
}
