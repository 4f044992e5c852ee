package diarize

import (
	"log/slog"
	"math"
	"time"

	"github.com/haivivi/diarize/pkg/speaker"
	"github.com/haivivi/diarize/pkg/vad"
)

// Defaults for zero-valued Config fields.
const (
	DefaultSampleRate        = 16000
	DefaultFrameMs           = 25
	DefaultHopMs             = 10
	DefaultNumCeps           = 13
	DefaultSensitivity       = 0.4
	DefaultHistorySize       = 200
	DefaultClusterWindow     = 50
	DefaultClusterEps        = 0.3
	DefaultClusterMinSamples = 3
	DefaultMinClusterHistory = 10
	DefaultStabilityWindow   = 5
	DefaultStabilityVotes    = 3

	MinSensitivity = 0.1
	MaxSensitivity = 1.0
)

// Config configures an Engine. Zero values select the defaults above;
// out-of-range values are clamped, never rejected.
type Config struct {
	SampleRate int `yaml:"sample_rate,omitempty" json:"sample_rate,omitempty"`
	FrameMs    int `yaml:"frame_ms,omitempty" json:"frame_ms,omitempty"`
	HopMs      int `yaml:"hop_ms,omitempty" json:"hop_ms,omitempty"`
	NumCeps    int `yaml:"num_ceps,omitempty" json:"num_ceps,omitempty"`

	// VADThreshold is compared with the mean squared raw int16 sample
	// value of a chunk. Default: 300.
	VADThreshold float64 `yaml:"vad_threshold,omitempty" json:"vad_threshold,omitempty"`

	// Sensitivity is the baseline new-speaker distance threshold, in
	// [0.1, 1.0]. Default: 0.4.
	Sensitivity float64 `yaml:"sensitivity,omitempty" json:"sensitivity,omitempty"`

	// HistorySize bounds the shared feature history. Default: 200.
	HistorySize int `yaml:"history_size,omitempty" json:"history_size,omitempty"`

	// SpeakerCapacity bounds samples kept per profile. Default: 50.
	SpeakerCapacity int `yaml:"speaker_capacity,omitempty" json:"speaker_capacity,omitempty"`

	ClusterWindow     int     `yaml:"cluster_window,omitempty" json:"cluster_window,omitempty"`
	ClusterEps        float64 `yaml:"cluster_eps,omitempty" json:"cluster_eps,omitempty"`
	ClusterMinSamples int     `yaml:"cluster_min_samples,omitempty" json:"cluster_min_samples,omitempty"`

	// MinClusterHistory is the history length at which clustering mode
	// starts. Default: 10.
	MinClusterHistory int `yaml:"min_cluster_history,omitempty" json:"min_cluster_history,omitempty"`

	StabilityWindow int `yaml:"stability_window,omitempty" json:"stability_window,omitempty"`
	StabilityVotes  int `yaml:"stability_votes,omitempty" json:"stability_votes,omitempty"`

	// Logger defaults to slog.Default().
	Logger *slog.Logger `yaml:"-" json:"-"`

	// Now stamps feature records. Default: time.Now.
	Now func() time.Time `yaml:"-" json:"-"`
}

// withDefaults returns a copy of c with defaults and clamping applied.
func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.FrameMs <= 0 {
		c.FrameMs = DefaultFrameMs
	}
	if c.HopMs <= 0 {
		c.HopMs = DefaultHopMs
	}
	if c.NumCeps <= 0 {
		c.NumCeps = DefaultNumCeps
	}
	if c.VADThreshold <= 0 {
		c.VADThreshold = vad.DefaultThreshold
	}
	if c.Sensitivity == 0 {
		c.Sensitivity = DefaultSensitivity
	}
	c.Sensitivity = ClampSensitivity(c.Sensitivity)
	if c.HistorySize <= 0 {
		c.HistorySize = DefaultHistorySize
	}
	if c.SpeakerCapacity <= 0 {
		c.SpeakerCapacity = speaker.DefaultCapacity
	}
	if c.ClusterWindow <= 0 {
		c.ClusterWindow = DefaultClusterWindow
	}
	c.ClusterWindow = min(c.ClusterWindow, c.HistorySize)
	if c.ClusterEps <= 0 {
		c.ClusterEps = DefaultClusterEps
	}
	if c.ClusterMinSamples <= 0 {
		c.ClusterMinSamples = DefaultClusterMinSamples
	}
	if c.MinClusterHistory <= 0 {
		c.MinClusterHistory = DefaultMinClusterHistory
	}
	if c.StabilityWindow <= 0 {
		c.StabilityWindow = DefaultStabilityWindow
	}
	if c.StabilityVotes <= 0 {
		c.StabilityVotes = DefaultStabilityVotes
	}
	c.StabilityVotes = min(c.StabilityVotes, c.StabilityWindow)
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// ClampSensitivity limits v to [MinSensitivity, MaxSensitivity]. NaN
// maps to DefaultSensitivity.
func ClampSensitivity(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultSensitivity
	}
	return max(MinSensitivity, min(MaxSensitivity, v))
}
