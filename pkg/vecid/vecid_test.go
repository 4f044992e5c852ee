package vecid

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

// makeCluster generates n vectors around a centroid with Gaussian noise.
func makeCluster(centroid []float64, n int, noise float64, rng *rand.Rand) [][]float64 {
	var out [][]float64
	for range n {
		v := make([]float64, len(centroid))
		for d := range v {
			v[d] = centroid[d] + rng.NormFloat64()*noise
		}
		out = append(out, v)
	}
	return out
}

func filled(dim int, x float64) []float64 {
	v := make([]float64, dim)
	for i := range v {
		v[i] = x
	}
	return v
}

func TestDBSCAN(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 0))
	dim := 8

	var data [][]float64
	data = append(data, makeCluster(filled(dim, 0), 10, 0.05, rng)...)
	data = append(data, makeCluster(filled(dim, 5), 10, 0.05, rng)...)
	data = append(data, makeCluster(filled(dim, -5), 10, 0.05, rng)...)

	labels := DBSCAN(data, 0.5, 3)

	if got := NumClusters(labels); got != 3 {
		t.Fatalf("NumClusters = %d, want 3 (labels=%v)", got, labels)
	}
	for i := 0; i < 10; i++ {
		if labels[i] != labels[0] {
			t.Errorf("cluster 1: point %d has label %d, expected %d", i, labels[i], labels[0])
		}
		if labels[10+i] != labels[10] {
			t.Errorf("cluster 2: point %d has label %d, expected %d", 10+i, labels[10+i], labels[10])
		}
		if labels[20+i] != labels[20] {
			t.Errorf("cluster 3: point %d has label %d, expected %d", 20+i, labels[20+i], labels[20])
		}
	}
	// Labels are zero-based in discovery order.
	if labels[0] != 0 || labels[10] != 1 || labels[20] != 2 {
		t.Errorf("labels = %d, %d, %d; want 0, 1, 2", labels[0], labels[10], labels[20])
	}
}

func TestDBSCANNoise(t *testing.T) {
	rng := rand.New(rand.NewPCG(99, 0))
	dim := 4

	data := makeCluster(filled(dim, 1), 6, 0.01, rng)
	for i := range 3 {
		data = append(data, filled(dim, float64(100*(i+1))))
	}

	labels := DBSCAN(data, 0.3, 3)
	for i := 0; i < 6; i++ {
		if labels[i] != 0 {
			t.Errorf("point %d label = %d, want 0", i, labels[i])
		}
	}
	for i := 6; i < 9; i++ {
		if labels[i] != Noise {
			t.Errorf("outlier %d label = %d, want Noise", i, labels[i])
		}
	}
}

func TestDBSCANBorderPoint(t *testing.T) {
	// Three tight core points plus one point reachable only from the edge.
	data := [][]float64{{0}, {0.1}, {0.2}, {0.45}}
	labels := DBSCAN(data, 0.3, 3)
	want := []int{0, 0, 0, 0}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("labels = %v, want %v", labels, want)
		}
	}
}

func TestDBSCANTooFewPoints(t *testing.T) {
	labels := DBSCAN([][]float64{{0}, {0}}, 0.3, 3)
	for i, l := range labels {
		if l != Noise {
			t.Errorf("labels[%d] = %d, want Noise", i, l)
		}
	}
	if DBSCAN(nil, 0.3, 3) != nil {
		t.Error("DBSCAN(nil) should be nil")
	}
	if NumClusters(labels) != 0 {
		t.Errorf("NumClusters = %d, want 0", NumClusters(labels))
	}
}

func TestEuclidean(t *testing.T) {
	if d := Euclidean([]float64{0, 0}, []float64{3, 4}); d != 5 {
		t.Errorf("Euclidean = %f, want 5", d)
	}
	if d := Euclidean([]float64{1, 2, 3}, []float64{1, 2, 3}); d != 0 {
		t.Errorf("Euclidean(same) = %f, want 0", d)
	}
}

func TestCentroid(t *testing.T) {
	c := Centroid([][]float64{{1, 2}, {3, 4}, {5, 6}})
	if c[0] != 3 || c[1] != 4 {
		t.Errorf("Centroid = %v, want [3 4]", c)
	}
	if Centroid(nil) != nil {
		t.Error("Centroid(nil) should be nil")
	}
}

func TestNearest(t *testing.T) {
	vectors := [][]float64{{0, 0}, {10, 0}, {0, 10}, {10, 0}}
	tests := []struct {
		name string
		q    []float64
		want int
	}{
		{"origin", []float64{1, 1}, 0},
		{"right tie resolves low", []float64{9, 0}, 1},
		{"up", []float64{0, 8}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got, _ := Nearest(vectors, tt.q); got != tt.want {
				t.Errorf("Nearest = %d, want %d", got, tt.want)
			}
		})
	}
	if i, d := Nearest(nil, []float64{0}); i != -1 || !math.IsInf(d, 1) {
		t.Errorf("Nearest(empty) = %d, %f", i, d)
	}
}

func TestScaler(t *testing.T) {
	data := [][]float64{{1, 7}, {3, 7}, {5, 7}}
	sc, err := FitScaler(data)
	if err != nil {
		t.Fatal(err)
	}
	if sc.Mean[0] != 3 || sc.Mean[1] != 7 {
		t.Errorf("Mean = %v", sc.Mean)
	}
	// Constant dimension keeps unit scale.
	if sc.Scale[1] != 1 {
		t.Errorf("Scale[1] = %f, want 1", sc.Scale[1])
	}

	z := sc.TransformAll(data)
	var sum, sq float64
	for _, v := range z {
		sum += v[0]
		sq += v[0] * v[0]
		if v[1] != 0 {
			t.Errorf("constant dimension transformed to %f", v[1])
		}
	}
	if math.Abs(sum) > 1e-12 {
		t.Errorf("standardized mean = %f, want 0", sum/3)
	}
	if math.Abs(sq/3-1) > 1e-12 {
		t.Errorf("standardized variance = %f, want 1", sq/3)
	}
	if data[0][0] != 1 {
		t.Error("TransformAll modified its input")
	}
}

func TestScalerIllConditioned(t *testing.T) {
	tests := []struct {
		name string
		data [][]float64
	}{
		{"empty", nil},
		{"zero dim", [][]float64{{}}},
		{"ragged", [][]float64{{1, 2}, {3}}},
		{"nan", [][]float64{{1, math.NaN()}}},
		{"inf", [][]float64{{math.Inf(1), 0}}},
		{"overflow", [][]float64{{-1e308, 0}, {1e308, 0}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FitScaler(tt.data); !errors.Is(err, ErrIllConditioned) {
				t.Errorf("FitScaler err = %v, want ErrIllConditioned", err)
			}
		})
	}
}
