package speaker

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/haivivi/diarize/pkg/vecid"
	"github.com/haivivi/diarize/pkg/voicefeat"
)

// DefaultCapacity is the per-profile sample bound.
const DefaultCapacity = 50

var (
	// ErrExists is returned by Create for an identity already present.
	ErrExists = errors.New("speaker: profile exists")

	// ErrUnknown is returned for operations on an absent identity.
	ErrUnknown = errors.New("speaker: unknown profile")
)

// Registry owns the profiles of one session. Profiles live in a slice in
// creation order with an identity index beside it.
//
// Registry is not safe for concurrent use.
type Registry struct {
	capacity int
	profiles []*Profile
	index    map[string]int
}

// NewRegistry creates an empty registry. A non-positive capacity selects
// DefaultCapacity.
func NewRegistry(capacity int) *Registry {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Registry{
		capacity: capacity,
		index:    make(map[string]int),
	}
}

// Capacity returns the per-profile sample bound.
func (r *Registry) Capacity() int { return r.capacity }

// Len returns the number of profiles.
func (r *Registry) Len() int { return len(r.profiles) }

// Get returns the profile for id. The returned profile is owned by the
// registry and must not be modified.
func (r *Registry) Get(id string) (*Profile, bool) {
	i, ok := r.index[id]
	if !ok {
		return nil, false
	}
	return r.profiles[i], true
}

// Profiles returns all profiles in creation order. The slice is a copy;
// the profiles are not.
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, len(r.profiles))
	copy(out, r.profiles)
	return out
}

// Create adds a profile seeded with rec. speech is the duration of the
// chunk rec was extracted from.
func (r *Registry) Create(id string, rec voicefeat.Record, speech time.Duration) (*Profile, error) {
	if _, ok := r.index[id]; ok {
		return nil, fmt.Errorf("%w: %s", ErrExists, id)
	}
	p := &Profile{ID: id}
	r.index[id] = len(r.profiles)
	r.profiles = append(r.profiles, p)
	r.add(p, rec, speech)
	return p, nil
}

// Append adds rec to an existing profile, evicting the oldest sample when
// the profile is full.
func (r *Registry) Append(id string, rec voicefeat.Record, speech time.Duration) (*Profile, error) {
	p, ok := r.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	r.add(p, rec, speech)
	return p, nil
}

func (r *Registry) add(p *Profile, rec voicefeat.Record, speech time.Duration) {
	p.Samples = append(p.Samples, rec)
	if over := len(p.Samples) - r.capacity; over > 0 {
		p.Samples = append(p.Samples[:0], p.Samples[over:]...)
	}
	p.Centroid = centroid(p.Samples)
	p.LastSeen = rec.Timestamp
	p.TotalSpeech += speech
}

// SetCluster records the clustering label that produced id.
func (r *Registry) SetCluster(id string, label int) error {
	p, ok := r.Get(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	p.ClusterID = &label
	return nil
}

// Nearest returns the profile whose centroid is closest to v by
// Euclidean distance. Equal distances resolve to the most recently seen
// profile. Returns nil when the registry is empty.
func (r *Registry) Nearest(v []float64) (*Profile, float64) {
	var best *Profile
	bestDist := math.Inf(1)
	for _, p := range r.profiles {
		d := vecid.Euclidean(p.Centroid, v)
		switch {
		case d < bestDist:
			best, bestDist = p, d
		case d == bestDist && best != nil && p.LastSeen.After(best.LastSeen):
			best = p
		}
	}
	return best, bestDist
}

// Characteristics summarizes the profile for id.
func (r *Registry) Characteristics(id string) (Characteristics, bool) {
	p, ok := r.Get(id)
	if !ok {
		return Characteristics{}, false
	}
	return p.Characteristics(), true
}

// Reset removes every profile.
func (r *Registry) Reset() {
	r.profiles = nil
	r.index = make(map[string]int)
}

// Snapshot returns deep copies of all profiles in creation order.
func (r *Registry) Snapshot() []Profile {
	out := make([]Profile, len(r.profiles))
	for i, p := range r.profiles {
		out[i] = p.Clone()
	}
	return out
}

// Restore replaces the registry contents with profiles. Samples beyond
// capacity are trimmed from the oldest end and centroids are recomputed.
// Restore fails without modifying the registry if an identity repeats or
// is empty, a profile has no samples, or vectors differ in length.
func (r *Registry) Restore(profiles []Profile) error {
	dim := -1
	index := make(map[string]int, len(profiles))
	restored := make([]*Profile, 0, len(profiles))
	for _, src := range profiles {
		if src.ID == "" {
			return errors.New("speaker: restore: empty identity")
		}
		if _, dup := index[src.ID]; dup {
			return fmt.Errorf("speaker: restore: %w: %s", ErrExists, src.ID)
		}
		if len(src.Samples) == 0 {
			return fmt.Errorf("speaker: restore %s: no samples", src.ID)
		}
		p := src.Clone()
		for _, s := range p.Samples {
			if dim < 0 {
				dim = len(s.Vector)
			}
			if len(s.Vector) != dim || dim == 0 {
				return fmt.Errorf("speaker: restore %s: inconsistent vector length", src.ID)
			}
		}
		if over := len(p.Samples) - r.capacity; over > 0 {
			p.Samples = p.Samples[over:]
		}
		p.Centroid = centroid(p.Samples)
		index[p.ID] = len(restored)
		restored = append(restored, &p)
	}
	r.profiles = restored
	r.index = index
	return nil
}

func centroid(samples []voicefeat.Record) []float64 {
	vs := make([][]float64, len(samples))
	for i, s := range samples {
		vs[i] = s.Vector
	}
	return vecid.Centroid(vs)
}
