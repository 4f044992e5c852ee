// Package voicefeat turns a short PCM chunk into a fixed-length acoustic
// feature vector for speaker discrimination.
//
// # Vector layout
//
// For NumCeps cepstral coefficients the vector has 8 + 2*NumCeps entries:
//
//	[0]  energy             mean of squared normalized samples
//	[1]  rms                sqrt(energy)
//	[2]  zcr                sign changes / (2 * N)
//	[3]  spectral centroid  Hz
//	[4]  spectral rolloff   Hz (85% of magnitude)
//	[5]  spectral bandwidth Hz
//	[6]  pitch mean         Hz, voiced frames only, 0 if none
//	[7]  pitch std          Hz
//	[8 : 8+N]       MFCC means
//	[8+N : 8+2N]    MFCC standard deviations
//
// Spectral descriptors and cepstra are computed over 25 ms Hamming frames
// with a 10 ms hop. When that path produces non-finite values the
// extractor switches to cheaper whole-chunk estimators for this chunk
// and counts the event in Fallbacks.
package voicefeat

import (
	"errors"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/haivivi/diarize/pkg/audio/fbank"
	"github.com/haivivi/diarize/pkg/audio/pcm"
)

// Fixed positions in Record.Vector.
const (
	IdxEnergy = iota
	IdxRMS
	IdxZCR
	IdxCentroid
	IdxRolloff
	IdxBandwidth
	IdxPitchMean
	IdxPitchStd
	idxMFCC
)

// errNonFinite marks an advanced-path result that cannot be used.
var errNonFinite = errors.New("voicefeat: non-finite feature")

// Record is an immutable per-chunk feature snapshot.
type Record struct {
	Vector           []float64 `json:"vector" msgpack:"vector"`
	Energy           float64   `json:"energy" msgpack:"energy"`
	RMS              float64   `json:"rms" msgpack:"rms"`
	Pitch            float64   `json:"pitch" msgpack:"pitch"`
	SpectralCentroid float64   `json:"spectral_centroid" msgpack:"spectral_centroid"`
	Timestamp        time.Time `json:"timestamp" msgpack:"timestamp"`
}

// Config controls extraction.
type Config struct {
	// SampleRate of the incoming PCM. Default: 16000.
	SampleRate int

	// FrameMs is the analysis frame length. Default: 25.
	FrameMs int

	// HopMs is the hop between frames. Default: 10.
	HopMs int

	// NumCeps is the number of cepstral coefficients. Default: 13.
	NumCeps int

	// NumMels is the number of mel bands feeding the cepstra. Default: 40.
	NumMels int

	// FFTSize overrides the FFT length. Default: next power of two of the
	// frame length.
	FFTSize int

	// PitchMin and PitchMax bound the F0 search in Hz. Defaults: 50, 400.
	PitchMin float64
	PitchMax float64

	// Now stamps records. Default: time.Now.
	Now func() time.Time

	// Logger receives fallback warnings. Default: slog.Default().
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.SampleRate == 0 {
		c.SampleRate = 16000
	}
	if c.FrameMs == 0 {
		c.FrameMs = 25
	}
	if c.HopMs == 0 {
		c.HopMs = 10
	}
	if c.NumCeps == 0 {
		c.NumCeps = 13
	}
	if c.NumMels == 0 {
		c.NumMels = 40
	}
	if c.PitchMin == 0 {
		c.PitchMin = 50
	}
	if c.PitchMax == 0 {
		c.PitchMax = 400
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Extractor computes Records from PCM chunks. Apart from the fallback
// counter it holds no mutable state.
type Extractor struct {
	cfg        Config
	frameLen   int
	hopLen     int
	spectra    *fbank.Extractor
	spectraErr error
	fallbacks  atomic.Int64
}

// New creates an Extractor. An unusable spectral configuration is not an
// error: every chunk then takes the fallback path.
func New(cfg Config) *Extractor {
	cfg.defaults()
	e := &Extractor{
		cfg:      cfg,
		frameLen: cfg.SampleRate * cfg.FrameMs / 1000,
		hopLen:   cfg.SampleRate * cfg.HopMs / 1000,
	}
	fftSize := cfg.FFTSize
	if fftSize == 0 {
		fftSize = fbank.NextPow2(e.frameLen)
	}
	e.spectra, e.spectraErr = fbank.New(fbank.Config{
		SampleRate: cfg.SampleRate,
		WindowSize: e.frameLen,
		HopSize:    e.hopLen,
		FFTSize:    fftSize,
		NumMels:    cfg.NumMels,
		NumCeps:    cfg.NumCeps,
		LowFreq:    20,
		HighFreq:   0.475 * float64(cfg.SampleRate),
	})
	if e.spectraErr != nil {
		cfg.Logger.Warn("voicefeat: spectral analysis unavailable, using fallback estimators",
			"error", e.spectraErr)
	}
	return e
}

// Dim returns the fixed feature vector length.
func (e *Extractor) Dim() int {
	return idxMFCC + 2*e.cfg.NumCeps
}

// Fallbacks returns how many chunks used the fallback estimators.
func (e *Extractor) Fallbacks() int64 {
	return e.fallbacks.Load()
}

// Extract computes the feature record of a 16-bit little-endian mono
// chunk. It returns false when the chunk is shorter than one frame.
func (e *Extractor) Extract(chunk []byte) (Record, bool) {
	x := pcm.Normalize(chunk)
	if len(x) < e.frameLen || len(x) == 0 {
		return Record{}, false
	}

	energy := meanSquare(x)
	rms := math.Sqrt(energy)
	zcr := zeroCrossingRate(x)

	sp, err := e.advanced(x)
	if err != nil {
		e.fallbacks.Add(1)
		e.cfg.Logger.Warn("voicefeat: advanced extraction failed, using fallback", "error", err)
		sp = e.fallback(x)
	}

	v := make([]float64, e.Dim())
	v[IdxEnergy] = energy
	v[IdxRMS] = rms
	v[IdxZCR] = zcr
	v[IdxCentroid] = sp.centroid
	v[IdxRolloff] = sp.rolloff
	v[IdxBandwidth] = sp.bandwidth
	v[IdxPitchMean] = sp.pitchMean
	v[IdxPitchStd] = sp.pitchStd
	copy(v[idxMFCC:], sp.mfccMean)
	copy(v[idxMFCC+e.cfg.NumCeps:], sp.mfccStd)

	return Record{
		Vector:           v,
		Energy:           energy,
		RMS:              rms,
		Pitch:            sp.pitchMean,
		SpectralCentroid: sp.centroid,
		Timestamp:        e.cfg.Now(),
	}, true
}

// spectralSummary is the part of the vector that has two estimators.
type spectralSummary struct {
	centroid, rolloff, bandwidth float64
	pitchMean, pitchStd          float64
	mfccMean, mfccStd            []float64
}

func (e *Extractor) advanced(x []float64) (spectralSummary, error) {
	if e.spectra == nil {
		return spectralSummary{}, e.spectraErr
	}
	power := e.spectra.PowerSpectra(x)
	if len(power) == 0 {
		return spectralSummary{}, errors.New("voicefeat: no analysis frames")
	}

	var s spectralSummary
	s.centroid, s.rolloff, s.bandwidth = e.spectralShape(power)

	ceps := e.spectra.Cepstra(e.spectra.LogMel(power))
	s.mfccMean, s.mfccStd = columnStats(ceps)

	pitches := yinTrack(x, e.cfg.SampleRate, e.hopLen, e.cfg.PitchMin, e.cfg.PitchMax)
	s.pitchMean, s.pitchStd = meanStd(pitches)

	if !finite(s.centroid, s.rolloff, s.bandwidth, s.pitchMean, s.pitchStd) ||
		!finite(s.mfccMean...) || !finite(s.mfccStd...) {
		return spectralSummary{}, errNonFinite
	}
	return s, nil
}

func (e *Extractor) fallback(x []float64) spectralSummary {
	centroid := simpleCentroid(x, e.cfg.SampleRate)
	pitch := autocorrPitch(x, e.cfg.SampleRate, e.cfg.PitchMin, e.cfg.PitchMax)
	return spectralSummary{
		centroid:  centroid,
		rolloff:   centroid * 1.2,
		bandwidth: centroid * 0.5,
		pitchMean: pitch,
		pitchStd:  pitch * 0.1,
		mfccMean:  make([]float64, e.cfg.NumCeps),
		mfccStd:   make([]float64, e.cfg.NumCeps),
	}
}

func meanSquare(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return sum / float64(len(x))
}

// zeroCrossingRate returns sum(|sign(x[i]) - sign(x[i-1])|) / 2N, so a
// full flip adds 2 and a touch of zero adds 1.
func zeroCrossingRate(x []float64) float64 {
	var sum float64
	for i := 1; i < len(x); i++ {
		sum += math.Abs(sign(x[i]) - sign(x[i-1]))
	}
	return sum / (2 * float64(len(x)))
}

func sign(v float64) float64 {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
