// Package speaker holds the per-session speaker registry and its
// persistence.
//
// A [Registry] owns every [Profile] discovered in a session. Profiles
// keep a bounded, time-ordered list of feature records and a centroid
// that always equals the mean of the current samples. A [Snapshot]
// captures the registry together with the engine's identity counter and
// sensitivity; it can be encoded with msgpack or JSON and kept in any
// [Store].
package speaker

import (
	"math"
	"slices"
	"time"

	"github.com/haivivi/diarize/pkg/voicefeat"
)

// Profile is one discovered speaker.
type Profile struct {
	// ID is the display identity, e.g. "Speaker 3". Never reused.
	ID string `json:"id" msgpack:"id"`

	// Samples is ordered oldest first and bounded by the registry
	// capacity.
	Samples []voicefeat.Record `json:"samples" msgpack:"samples"`

	// Centroid is the element-wise mean of Samples[*].Vector.
	Centroid []float64 `json:"centroid" msgpack:"centroid"`

	LastSeen time.Time `json:"last_seen" msgpack:"last_seen"`

	// ClusterID links the profile to the most recent clustering label
	// that produced it. Nil until clustering assigns one.
	ClusterID *int `json:"cluster_id,omitempty" msgpack:"cluster_id,omitempty"`

	// TotalSpeech accumulates the duration of admitted chunks.
	TotalSpeech time.Duration `json:"total_speech" msgpack:"total_speech"`
}

// Clone returns a deep copy of p.
func (p *Profile) Clone() Profile {
	c := *p
	c.Samples = make([]voicefeat.Record, len(p.Samples))
	for i, r := range p.Samples {
		r.Vector = slices.Clone(r.Vector)
		c.Samples[i] = r
	}
	c.Centroid = slices.Clone(p.Centroid)
	if p.ClusterID != nil {
		id := *p.ClusterID
		c.ClusterID = &id
	}
	return c
}

// VoiceType is a coarse pitch class.
type VoiceType string

const (
	VoiceHigh    VoiceType = "high"
	VoiceMedium  VoiceType = "medium"
	VoiceLow     VoiceType = "low"
	VoiceUnknown VoiceType = "unknown"
)

// ClassifyPitch maps a mean pitch in Hz to a VoiceType. Non-positive
// pitch means no voiced samples.
func ClassifyPitch(hz float64) VoiceType {
	switch {
	case hz <= 0:
		return VoiceUnknown
	case hz > 200:
		return VoiceHigh
	case hz > 150:
		return VoiceMedium
	default:
		return VoiceLow
	}
}

// Characteristics summarizes a profile's samples.
type Characteristics struct {
	ID           string        `json:"id" yaml:"id"`
	PitchMean    float64       `json:"pitch_mean" yaml:"pitch_mean"`
	PitchStd     float64       `json:"pitch_std" yaml:"pitch_std"`
	EnergyMean   float64       `json:"energy_mean" yaml:"energy_mean"`
	EnergyStd    float64       `json:"energy_std" yaml:"energy_std"`
	CentroidMean float64       `json:"centroid_mean" yaml:"centroid_mean"`
	VoiceType    VoiceType     `json:"voice_type" yaml:"voice_type"`
	LastSeen     time.Time     `json:"last_seen" yaml:"last_seen"`
	Samples      int           `json:"samples" yaml:"samples"`
	TotalSpeech  time.Duration `json:"total_speech" yaml:"total_speech"`
	ClusterID    *int          `json:"cluster_id,omitempty" yaml:"cluster_id,omitempty"`
}

// Characteristics computes pitch statistics over voiced samples (pitch
// above zero) and energy/centroid statistics over all samples.
func (p *Profile) Characteristics() Characteristics {
	var pitches, energies, centroids []float64
	for _, r := range p.Samples {
		if r.Pitch > 0 {
			pitches = append(pitches, r.Pitch)
		}
		energies = append(energies, r.Energy)
		centroids = append(centroids, r.SpectralCentroid)
	}
	pm, ps := meanStd(pitches)
	em, es := meanStd(energies)
	cm, _ := meanStd(centroids)

	c := Characteristics{
		ID:           p.ID,
		PitchMean:    pm,
		PitchStd:     ps,
		EnergyMean:   em,
		EnergyStd:    es,
		CentroidMean: cm,
		VoiceType:    ClassifyPitch(pm),
		LastSeen:     p.LastSeen,
		Samples:      len(p.Samples),
		TotalSpeech:  p.TotalSpeech,
	}
	if p.ClusterID != nil {
		id := *p.ClusterID
		c.ClusterID = &id
	}
	return c
}

// meanStd returns the mean and population standard deviation, or zeros
// for an empty slice.
func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}
