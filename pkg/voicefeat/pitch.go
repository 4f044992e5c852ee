package voicefeat

import "math"

const (
	yinThreshold = 0.1

	// Frames quieter than this (mean square, normalized) are unvoiced.
	silenceFloor = 1e-8

	// defaultPitch is returned by the autocorrelation estimator when the
	// chunk is too short to cover the lowest period.
	defaultPitch = 150
)

// yinTrack estimates F0 with the YIN algorithm on frames advanced by hop
// samples. Each frame spans two periods of minHz so the integration
// window always covers the longest lag; shorter chunks are analyzed as a
// single frame. Unvoiced frames are omitted from the result.
func yinTrack(x []float64, sampleRate, hop int, minHz, maxHz float64) []float64 {
	tauMin := int(float64(sampleRate) / maxHz)
	tauMax := int(float64(sampleRate) / minHz)
	frame := 2 * tauMax
	if len(x) < frame {
		frame = len(x)
	}
	w := frame - tauMax
	if w <= tauMin {
		return nil
	}

	var out []float64
	d := make([]float64, tauMax+1)
	for start := 0; start+frame <= len(x); start += hop {
		f0, ok := yinFrame(x[start:start+frame], w, tauMin, tauMax, d)
		if ok {
			out = append(out, float64(sampleRate)/f0)
		}
	}
	return out
}

// yinFrame returns the refined period in samples for one frame.
func yinFrame(x []float64, w, tauMin, tauMax int, d []float64) (float64, bool) {
	if meanSquare(x[:w]) < silenceFloor {
		return 0, false
	}

	// Difference function.
	for tau := 1; tau <= tauMax; tau++ {
		var sum float64
		for j := 0; j < w; j++ {
			diff := x[j] - x[j+tau]
			sum += diff * diff
		}
		d[tau] = sum
	}

	// Cumulative mean normalized difference, in place.
	d[0] = 1
	var running float64
	for tau := 1; tau <= tauMax; tau++ {
		running += d[tau]
		if running == 0 {
			d[tau] = 1
			continue
		}
		d[tau] *= float64(tau) / running
	}

	best := -1
	for tau := tauMin; tau <= tauMax; tau++ {
		if d[tau] < yinThreshold {
			for tau+1 <= tauMax && d[tau+1] < d[tau] {
				tau++
			}
			best = tau
			break
		}
	}
	if best < 0 {
		best = tauMin
		for tau := tauMin + 1; tau <= tauMax; tau++ {
			if d[tau] < d[best] {
				best = tau
			}
		}
	}

	period := float64(best)
	if best > tauMin && best < tauMax {
		a, b, c := d[best-1], d[best], d[best+1]
		if den := a - 2*b + c; den != 0 {
			period += 0.5 * (a - c) / den
		}
	}
	if period <= 0 || math.IsNaN(period) {
		return 0, false
	}
	return period, true
}

// autocorrPitch picks the autocorrelation peak between the periods of
// maxHz and minHz over the whole chunk.
func autocorrPitch(x []float64, sampleRate int, minHz, maxHz float64) float64 {
	minPeriod := int(float64(sampleRate) / maxHz)
	maxPeriod := int(float64(sampleRate) / minHz)
	if len(x) <= maxPeriod {
		return defaultPitch
	}

	bestLag := -1
	bestCorr := math.Inf(-1)
	for lag := minPeriod; lag < maxPeriod; lag++ {
		var sum float64
		for i := 0; i+lag < len(x); i++ {
			sum += x[i] * x[i+lag]
		}
		if sum > bestCorr {
			bestCorr = sum
			bestLag = lag
		}
	}
	if bestLag <= 0 {
		return defaultPitch
	}
	return float64(sampleRate) / float64(bestLag)
}
