package fbank

import "math"

// FFT performs an in-place radix-2 Cooley-Tukey FFT.
// real and imag must have the same power-of-2 length.
func FFT(real, imag []float64) {
	n := len(real)
	if n <= 1 {
		return
	}

	// Bit-reversal permutation
	j := 0
	for i := 0; i < n-1; i++ {
		if i < j {
			real[i], real[j] = real[j], real[i]
			imag[i], imag[j] = imag[j], imag[i]
		}
		k := n >> 1
		for k <= j {
			j -= k
			k >>= 1
		}
		j += k
	}

	for size := 2; size <= n; size <<= 1 {
		half := size >> 1
		angle := -2.0 * math.Pi / float64(size)
		wR := math.Cos(angle)
		wI := math.Sin(angle)

		for start := 0; start < n; start += size {
			tR, tI := 1.0, 0.0
			for k := 0; k < half; k++ {
				u := start + k
				v := u + half

				tmpR := tR*real[v] - tI*imag[v]
				tmpI := tR*imag[v] + tI*real[v]

				real[v] = real[u] - tmpR
				imag[v] = imag[u] - tmpI
				real[u] += tmpR
				imag[u] += tmpI

				tR, tI = tR*wR-tI*wI, tR*wI+tI*wR
			}
		}
	}
}

// isPow2 reports whether n is a positive power of two.
func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// NextPow2 returns the smallest power of two >= n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// MagnitudeSpectrum zero-pads x to the next power of two and returns
// the magnitudes of the non-negative frequency bins together with the
// FFT size used.
func MagnitudeSpectrum(x []float64) ([]float64, int) {
	nfft := NextPow2(len(x))
	re := make([]float64, nfft)
	im := make([]float64, nfft)
	copy(re, x)
	FFT(re, im)
	half := nfft/2 + 1
	mag := make([]float64, half)
	for i := range mag {
		mag[i] = math.Hypot(re[i], im[i])
	}
	return mag, nfft
}
