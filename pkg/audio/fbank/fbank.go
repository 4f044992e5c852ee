// Package fbank computes short-time spectra, log mel filterbank energies
// and mel-frequency cepstral coefficients from PCM audio.
//
// Frames are cut with a Hamming window and advanced by a fixed hop. The
// defaults match a 25 ms window with a 10 ms hop at 16 kHz:
//
//	SampleRate:  16000
//	WindowSize:  400 (25 ms)
//	HopSize:     160 (10 ms)
//	FFTSize:     512
//	NumMels:     40
//	NumCeps:     13
//	LowFreq:     20
//	HighFreq:  7600
package fbank

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidConfig is returned by New for unusable frame parameters.
var ErrInvalidConfig = errors.New("fbank: invalid config")

// Config controls framing and filterbank parameters.
type Config struct {
	SampleRate  int     // audio sample rate in Hz (default 16000)
	WindowSize  int     // window length in samples (default 400 = 25ms)
	HopSize     int     // hop length in samples (default 160 = 10ms)
	FFTSize     int     // FFT size, power of two >= WindowSize (default 512)
	NumMels     int     // number of mel bins (default 40)
	NumCeps     int     // number of cepstral coefficients (default 13)
	LowFreq     float64 // lowest mel frequency (default 20)
	HighFreq    float64 // highest mel frequency (default 7600)
	PreEmphasis float64 // pre-emphasis coefficient applied before MFCC (default 0)
}

// DefaultConfig returns the 16 kHz analysis config.
func DefaultConfig() Config {
	return Config{
		SampleRate: 16000,
		WindowSize: 400,
		HopSize:    160,
		FFTSize:    512,
		NumMels:    40,
		NumCeps:    13,
		LowFreq:    20,
		HighFreq:   7600,
	}
}

func (c Config) validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalidConfig, c.SampleRate)
	case c.WindowSize <= 0 || c.HopSize <= 0:
		return fmt.Errorf("%w: window %d hop %d", ErrInvalidConfig, c.WindowSize, c.HopSize)
	case !isPow2(c.FFTSize) || c.FFTSize < c.WindowSize:
		return fmt.Errorf("%w: fft size %d for window %d", ErrInvalidConfig, c.FFTSize, c.WindowSize)
	case c.NumMels <= 0 || c.NumCeps <= 0 || c.NumCeps > c.NumMels:
		return fmt.Errorf("%w: mels %d ceps %d", ErrInvalidConfig, c.NumMels, c.NumCeps)
	case c.HighFreq <= c.LowFreq || c.HighFreq > float64(c.SampleRate)/2:
		return fmt.Errorf("%w: band [%g, %g]", ErrInvalidConfig, c.LowFreq, c.HighFreq)
	}
	return nil
}

// Extractor computes frame spectra and cepstra from PCM samples.
// It is immutable after construction and safe for concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64
	dct     [][]float64
}

// New creates an Extractor, validating cfg.
func New(cfg Config) (*Extractor, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Extractor{
		cfg:     cfg,
		window:  hammingWindow(cfg.WindowSize),
		melBank: melFilterBank(cfg.NumMels, cfg.FFTSize, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
		dct:     dctMatrix(cfg.NumCeps, cfg.NumMels),
	}, nil
}

// Config returns the extractor configuration.
func (e *Extractor) Config() Config {
	return e.cfg
}

// NumFrames returns the number of full frames in n samples.
func (e *Extractor) NumFrames(n int) int {
	if n < e.cfg.WindowSize {
		return 0
	}
	return (n-e.cfg.WindowSize)/e.cfg.HopSize + 1
}

// BinFrequency returns the center frequency in Hz of FFT bin k.
func (e *Extractor) BinFrequency(k int) float64 {
	return float64(k) * float64(e.cfg.SampleRate) / float64(e.cfg.FFTSize)
}

// PowerSpectra returns the windowed power spectrum of every frame in
// pcm, shaped [T][FFTSize/2+1]. pcm is expected in [-1, 1]. Returns nil
// when pcm is shorter than one window.
func (e *Extractor) PowerSpectra(pcm []float64) [][]float64 {
	return e.spectra(pcm, 0)
}

func (e *Extractor) spectra(pcm []float64, preEmphasis float64) [][]float64 {
	cfg := e.cfg
	numFrames := e.NumFrames(len(pcm))
	if numFrames == 0 {
		return nil
	}
	nfft := cfg.FFTSize
	halfFFT := nfft/2 + 1

	out := make([][]float64, numFrames)
	re := make([]float64, nfft)
	im := make([]float64, nfft)

	for t := range numFrames {
		start := t * cfg.HopSize
		for i := 0; i < cfg.WindowSize; i++ {
			s := pcm[start+i]
			if preEmphasis != 0 && i > 0 {
				s -= preEmphasis * pcm[start+i-1]
			}
			re[i] = s * e.window[i]
		}
		for i := cfg.WindowSize; i < nfft; i++ {
			re[i] = 0
		}
		for i := range im {
			im[i] = 0
		}
		FFT(re, im)

		power := make([]float64, halfFFT)
		for i := range power {
			power[i] = re[i]*re[i] + im[i]*im[i]
		}
		out[t] = power
	}
	return out
}

// LogMel applies the mel filterbank to power spectra and takes the
// natural log, floored at 1e-10.
func (e *Extractor) LogMel(power [][]float64) [][]float64 {
	out := make([][]float64, len(power))
	for t, p := range power {
		mel := make([]float64, e.cfg.NumMels)
		for m, filter := range e.melBank {
			sum := 0.0
			for k, w := range filter {
				sum += w * p[k]
			}
			if sum < 1e-10 {
				sum = 1e-10
			}
			mel[m] = math.Log(sum)
		}
		out[t] = mel
	}
	return out
}

// MFCC returns cepstral coefficients [T][NumCeps] for pcm, or nil when
// pcm is shorter than one window.
func (e *Extractor) MFCC(pcm []float64) [][]float64 {
	power := e.spectra(pcm, e.cfg.PreEmphasis)
	if power == nil {
		return nil
	}
	return e.Cepstra(e.LogMel(power))
}

// Cepstra projects log mel frames onto the DCT-II basis.
func (e *Extractor) Cepstra(logMel [][]float64) [][]float64 {
	out := make([][]float64, len(logMel))
	for t, mel := range logMel {
		c := make([]float64, e.cfg.NumCeps)
		for k, basis := range e.dct {
			sum := 0.0
			for n, b := range basis {
				sum += b * mel[n]
			}
			c[k] = sum
		}
		out[t] = c
	}
	return out
}
