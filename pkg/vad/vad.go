// Package vad gates PCM chunks on sustained energy before they reach
// feature extraction.
//
// Each chunk yields a raw decision (mean squared int16 sample value above
// the threshold). The gate keeps the last raw decisions in a ring and
// reports speech when at least two of the last three were loud; until
// three decisions exist it reports the raw value.
package vad

import (
	"github.com/haivivi/diarize/pkg/audio/pcm"
	"github.com/haivivi/diarize/pkg/buffer"
)

const (
	// DefaultThreshold is the raw int16 mean-square energy above which a
	// chunk counts as loud.
	DefaultThreshold = 300

	// HistorySize is the number of raw decisions retained.
	HistorySize = 10

	smoothWindow = 3
	smoothVotes  = 2
)

// Gate is a stateful voice activity detector. It is not safe for
// concurrent use.
type Gate struct {
	threshold float64
	flags     *buffer.RingBuffer[bool]
}

// New creates a Gate. A non-positive threshold selects DefaultThreshold.
func New(threshold float64) *Gate {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Gate{
		threshold: threshold,
		flags:     buffer.RingN[bool](HistorySize),
	}
}

// Threshold returns the raw energy threshold.
func (g *Gate) Threshold() float64 {
	return g.threshold
}

// Detect records the raw decision for chunk and returns the smoothed
// decision. An empty chunk is never speech and is not recorded.
func (g *Gate) Detect(chunk []byte) bool {
	if len(chunk) < 2 {
		return false
	}
	return g.Observe(pcm.MeanSquare(chunk) > g.threshold)
}

// Observe feeds a precomputed raw decision and returns the smoothed one.
func (g *Gate) Observe(loud bool) bool {
	g.flags.Add(loud)
	if g.flags.Len() < smoothWindow {
		return loud
	}
	votes := 0
	for _, f := range g.flags.Last(smoothWindow) {
		if f {
			votes++
		}
	}
	return votes >= smoothVotes
}

// Len returns the number of recorded raw decisions.
func (g *Gate) Len() int {
	return g.flags.Len()
}

// Reset forgets all recorded decisions.
func (g *Gate) Reset() {
	g.flags.Reset()
}
