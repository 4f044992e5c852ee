package voicefeat

import (
	"math"

	"github.com/haivivi/diarize/pkg/audio/fbank"
)

const rolloffPercent = 0.85

// spectralShape averages per-frame centroid, rolloff and bandwidth of the
// magnitude spectrum. Silent frames contribute zeros.
func (e *Extractor) spectralShape(power [][]float64) (centroid, rolloff, bandwidth float64) {
	n := float64(len(power))
	for _, p := range power {
		c, r, b := e.frameShape(p)
		centroid += c
		rolloff += r
		bandwidth += b
	}
	return centroid / n, rolloff / n, bandwidth / n
}

func (e *Extractor) frameShape(power []float64) (centroid, rolloff, bandwidth float64) {
	mag := make([]float64, len(power))
	var total, weighted float64
	for k, p := range power {
		m := math.Sqrt(p)
		mag[k] = m
		total += m
		weighted += m * e.spectra.BinFrequency(k)
	}
	if total == 0 {
		return 0, 0, 0
	}
	centroid = weighted / total

	target := rolloffPercent * total
	var acc float64
	for k, m := range mag {
		acc += m
		if acc >= target {
			rolloff = e.spectra.BinFrequency(k)
			break
		}
	}

	var spread float64
	for k, m := range mag {
		d := e.spectra.BinFrequency(k) - centroid
		spread += m * d * d
	}
	bandwidth = math.Sqrt(spread / total)
	return centroid, rolloff, bandwidth
}

// simpleCentroid is the magnitude-weighted mean frequency of the whole
// chunk, used when framed analysis is unavailable.
func simpleCentroid(x []float64, sampleRate int) float64 {
	mag, nfft := fbank.MagnitudeSpectrum(x)
	var total, weighted float64
	// Skip the Nyquist bin to mirror a one-sided half spectrum.
	for k := 0; k < nfft/2; k++ {
		f := float64(k) * float64(sampleRate) / float64(nfft)
		total += mag[k]
		weighted += f * mag[k]
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// columnStats returns the per-column mean and population standard
// deviation of a [T][D] matrix.
func columnStats(m [][]float64) (mean, std []float64) {
	if len(m) == 0 {
		return nil, nil
	}
	d := len(m[0])
	mean = make([]float64, d)
	std = make([]float64, d)
	n := float64(len(m))
	for _, row := range m {
		for j, v := range row {
			mean[j] += v
		}
	}
	for j := range mean {
		mean[j] /= n
	}
	for _, row := range m {
		for j, v := range row {
			dv := v - mean[j]
			std[j] += dv * dv
		}
	}
	for j := range std {
		std[j] = math.Sqrt(std[j] / n)
	}
	return mean, std
}

// meanStd returns the mean and population standard deviation of xs, or
// zeros for an empty slice.
func meanStd(xs []float64) (mean, std float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	for _, v := range xs {
		mean += v
	}
	mean /= float64(len(xs))
	for _, v := range xs {
		d := v - mean
		std += d * d
	}
	return mean, math.Sqrt(std / float64(len(xs)))
}
