package diarize

import "github.com/haivivi/diarize/pkg/buffer"

// Stability suppresses identity flicker. It keeps the last N raw
// classifier outputs and switches the reported speaker only when one
// identity holds at least K of them.
//
// With the default 3-of-5 rule at most one identity can qualify at a
// time, so the switch is unambiguous.
type Stability struct {
	recent  *buffer.RingBuffer[string]
	votes   int
	current string
}

// StabilityOption configures a Stability filter.
type StabilityOption func(*stabilityOptions)

type stabilityOptions struct {
	window, votes int
}

// WithWindow sets how many raw outputs are kept (default 5).
func WithWindow(n int) StabilityOption {
	return func(o *stabilityOptions) {
		if n > 0 {
			o.window = n
		}
	}
}

// WithVotes sets how many of the window must agree (default 3). Values
// above the window size are capped to it.
func WithVotes(k int) StabilityOption {
	return func(o *stabilityOptions) {
		if k > 0 {
			o.votes = k
		}
	}
}

// NewStability creates a filter with no current speaker.
func NewStability(opts ...StabilityOption) *Stability {
	o := stabilityOptions{window: DefaultStabilityWindow, votes: DefaultStabilityVotes}
	for _, opt := range opts {
		opt(&o)
	}
	return &Stability{
		recent: buffer.RingN[string](o.window),
		votes:  min(o.votes, o.window),
	}
}

// Observe records one raw identity and returns the reported speaker and
// whether it changed on this call.
func (s *Stability) Observe(id string) (current string, changed bool) {
	s.recent.Add(id)

	items := s.recent.Items()
	counts := make(map[string]int, len(items))
	for _, r := range items {
		counts[r]++
	}
	// Ties keep the current speaker, then favor the most recent identity.
	best, bestCount := s.current, counts[s.current]
	for i := len(items) - 1; i >= 0; i-- {
		if c := counts[items[i]]; c > bestCount {
			best, bestCount = items[i], c
		}
	}

	if bestCount >= s.votes && best != s.current {
		s.current = best
		return s.current, true
	}
	return s.current, false
}

// Current returns the reported speaker, or "" before the first switch.
func (s *Stability) Current() string { return s.current }

// Reset forgets all observations and the current speaker.
func (s *Stability) Reset() {
	s.recent.Reset()
	s.current = ""
}
