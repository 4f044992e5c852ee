package speaker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// SnapshotVersion is written into every encoded snapshot.
const SnapshotVersion = 1

// ErrCorrupt is returned when encoded data cannot be decoded into a
// usable snapshot.
var ErrCorrupt = errors.New("speaker: corrupt snapshot")

// Snapshot is the persisted state of one diarization session.
type Snapshot struct {
	Version     int       `json:"version" msgpack:"version"`
	Counter     int       `json:"counter" msgpack:"counter"`
	Sensitivity float64   `json:"sensitivity" msgpack:"sensitivity"`
	SavedAt     time.Time `json:"saved_at" msgpack:"saved_at"`
	Profiles    []Profile `json:"profiles" msgpack:"profiles"`
}

// Dim returns the feature vector length used by the snapshot, or 0 when
// it holds no samples.
func (s *Snapshot) Dim() int {
	for _, p := range s.Profiles {
		if len(p.Samples) > 0 {
			return len(p.Samples[0].Vector)
		}
	}
	return 0
}

func (s *Snapshot) validate() error {
	if s.Version != SnapshotVersion {
		return fmt.Errorf("%w: version %d", ErrCorrupt, s.Version)
	}
	if s.Counter < 0 {
		return fmt.Errorf("%w: negative counter", ErrCorrupt)
	}
	if err := NewRegistry(0).Restore(s.Profiles); err != nil {
		return fmt.Errorf("%w: %w", ErrCorrupt, err)
	}
	return nil
}

// Codec selects the snapshot wire format.
type Codec int

const (
	Msgpack Codec = iota
	JSON
)

func (c Codec) String() string {
	switch c {
	case Msgpack:
		return "msgpack"
	case JSON:
		return "json"
	default:
		return fmt.Sprintf("Codec(%d)", int(c))
	}
}

// Ext returns the file extension for c, without the dot.
func (c Codec) Ext() string { return c.String() }

// ParseCodec parses "msgpack" or "json".
func ParseCodec(s string) (Codec, error) {
	switch strings.ToLower(s) {
	case "", "msgpack", "mp":
		return Msgpack, nil
	case "json":
		return JSON, nil
	default:
		return 0, fmt.Errorf("speaker: unknown codec %q", s)
	}
}

// Encode writes snap to w. Version is filled in.
func (c Codec) Encode(w io.Writer, snap Snapshot) error {
	snap.Version = SnapshotVersion
	var err error
	switch c {
	case Msgpack:
		err = msgpack.NewEncoder(w).Encode(&snap)
	case JSON:
		enc := json.NewEncoder(w)
		err = enc.Encode(&snap)
	default:
		return fmt.Errorf("speaker: encode: unknown codec %d", int(c))
	}
	if err != nil {
		return fmt.Errorf("speaker: encode %s: %w", c, err)
	}
	return nil
}

// Decode reads a snapshot from r and validates it. Any decoding or
// validation failure wraps ErrCorrupt.
func (c Codec) Decode(r io.Reader) (Snapshot, error) {
	var snap Snapshot
	var err error
	switch c {
	case Msgpack:
		err = msgpack.NewDecoder(r).Decode(&snap)
	case JSON:
		err = json.NewDecoder(r).Decode(&snap)
	default:
		return Snapshot{}, fmt.Errorf("speaker: decode: unknown codec %d", int(c))
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %s: %w", ErrCorrupt, c, err)
	}
	if err := snap.validate(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}
