package diarize

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/haivivi/diarize/pkg/buffer"
	"github.com/haivivi/diarize/pkg/speaker"
	"github.com/haivivi/diarize/pkg/vad"
	"github.com/haivivi/diarize/pkg/voicefeat"
)

// ErrProfilesUnavailable is returned by Load when saved profiles could
// not be used. The engine is left with an empty registry and stays
// usable.
var ErrProfilesUnavailable = errors.New("diarize: saved profiles unavailable")

// Mode is the classifier path that produced a raw identity.
type Mode uint8

const (
	ModeNone Mode = iota
	ModeBaseline
	ModeClustering
)

func (m Mode) String() string {
	switch m {
	case ModeNone:
		return "none"
	case ModeBaseline:
		return "baseline"
	case ModeClustering:
		return "clustering"
	default:
		return "Mode(" + strconv.Itoa(int(m)) + ")"
	}
}

// MarshalText encodes the mode name for JSON and YAML output.
func (m Mode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

func (m *Mode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "none", "":
		*m = ModeNone
	case "baseline":
		*m = ModeBaseline
	case "clustering":
		*m = ModeClustering
	default:
		return fmt.Errorf("diarize: unknown mode %q", b)
	}
	return nil
}

// Result is the outcome of one chunk.
type Result struct {
	// Raw is the classifier identity for this chunk, or "" when the
	// chunk was rejected by the gate or too short to analyze.
	Raw string `json:"raw,omitempty" yaml:"raw,omitempty"`

	// Current is the stabilized speaker after this chunk.
	Current string `json:"current,omitempty" yaml:"current,omitempty"`

	// Speech reports the gate decision.
	Speech bool `json:"speech" yaml:"speech"`

	// Changed is set when Current switched on this chunk.
	Changed bool `json:"changed,omitempty" yaml:"changed,omitempty"`

	Mode Mode `json:"mode" yaml:"mode"`
}

// Engine is one diarization session.
type Engine struct {
	cfg Config
	log *slog.Logger

	gate      *vad.Gate
	extractor *voicefeat.Extractor
	history   *buffer.RingBuffer[voicefeat.Record]
	registry  *speaker.Registry
	stability *Stability

	counter     int
	sensitivity float64
	counters    Counters
}

// New creates an Engine with an empty registry.
func New(cfg Config) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg: cfg,
		log: cfg.Logger,
		gate: vad.New(cfg.VADThreshold),
		extractor: voicefeat.New(voicefeat.Config{
			SampleRate: cfg.SampleRate,
			FrameMs:    cfg.FrameMs,
			HopMs:      cfg.HopMs,
			NumCeps:    cfg.NumCeps,
			Now:        cfg.Now,
			Logger:     cfg.Logger,
		}),
		history:     buffer.RingN[voicefeat.Record](cfg.HistorySize),
		registry:    speaker.NewRegistry(cfg.SpeakerCapacity),
		stability:   NewStability(WithWindow(cfg.StabilityWindow), WithVotes(cfg.StabilityVotes)),
		sensitivity: cfg.Sensitivity,
	}
	return e
}

// Config returns the effective configuration.
func (e *Engine) Config() Config { return e.cfg }

// Dim returns the feature vector length.
func (e *Engine) Dim() int { return e.extractor.Dim() }

// Process runs one chunk of 16-bit little-endian mono PCM through the
// pipeline.
func (e *Engine) Process(chunk []byte) Result {
	e.counters.Chunks++

	if !e.gate.Detect(chunk) {
		return Result{Current: e.stability.Current()}
	}
	e.counters.Speech++

	rec, ok := e.extractor.Extract(chunk)
	if !ok {
		e.counters.TooShort++
		return Result{Current: e.stability.Current(), Speech: true}
	}
	e.counters.Admitted++
	e.history.Add(rec)

	raw, mode := e.classify(rec, e.chunkDuration(chunk))

	prev := e.stability.Current()
	current, changed := e.stability.Observe(raw)
	if changed {
		e.counters.SpeakerChanges++
		e.log.Info("speaker changed", "from", prev, "to", current, "mode", mode)
	}
	return Result{
		Raw:     raw,
		Current: current,
		Speech:  true,
		Changed: changed,
		Mode:    mode,
	}
}

func (e *Engine) chunkDuration(chunk []byte) time.Duration {
	return time.Duration(len(chunk)/2) * time.Second / time.Duration(e.cfg.SampleRate)
}

// CurrentSpeaker returns the stabilized speaker, or "" if none yet.
func (e *Engine) CurrentSpeaker() string { return e.stability.Current() }

// Characteristics summarizes one speaker.
func (e *Engine) Characteristics(id string) (speaker.Characteristics, bool) {
	return e.registry.Characteristics(id)
}

// Profiles returns the registry's profiles in creation order. The
// profiles are owned by the engine and must not be modified.
func (e *Engine) Profiles() []*speaker.Profile { return e.registry.Profiles() }

// Sensitivity returns the baseline new-speaker threshold.
func (e *Engine) Sensitivity() float64 { return e.sensitivity }

// SetSensitivity sets the baseline new-speaker threshold, clamped to
// [0.1, 1.0].
func (e *Engine) SetSensitivity(v float64) {
	e.sensitivity = ClampSensitivity(v)
	e.log.Debug("sensitivity set", "value", e.sensitivity)
}

// Counter returns the identity counter. It only grows until Reset.
func (e *Engine) Counter() int { return e.counter }

// Reset forgets every speaker and all temporal state. Sensitivity and
// counters are kept.
func (e *Engine) Reset() {
	e.registry.Reset()
	e.history.Reset()
	e.gate.Reset()
	e.stability.Reset()
	e.counter = 0
	e.log.Info("speakers reset")
}

// Snapshot returns a deep copy of the persisted state, safe to hand to
// another goroutine.
func (e *Engine) Snapshot() speaker.Snapshot {
	return speaker.Snapshot{
		Version:     speaker.SnapshotVersion,
		Counter:     e.counter,
		Sensitivity: e.sensitivity,
		SavedAt:     e.cfg.Now(),
		Profiles:    e.registry.Snapshot(),
	}
}

// Save writes a snapshot to store.
func (e *Engine) Save(ctx context.Context, store speaker.Store) error {
	snap := e.Snapshot()
	if err := store.Save(ctx, snap); err != nil {
		return fmt.Errorf("diarize: save: %w", err)
	}
	e.log.Info("speaker profiles saved", "profiles", len(snap.Profiles))
	return nil
}

// Load replaces the registry with the snapshot in store. On any failure
// the engine starts from an empty registry and Load returns an error
// wrapping ErrProfilesUnavailable; the engine remains usable either way.
// Temporal state (history, gate, stability) is cleared. The identity
// counter never moves backwards, so numbers minted before Load are not
// handed out again.
func (e *Engine) Load(ctx context.Context, store speaker.Store) (int, error) {
	e.registry.Reset()
	e.history.Reset()
	e.gate.Reset()
	e.stability.Reset()

	snap, err := store.Load(ctx)
	if err == nil && snap.Dim() != 0 && snap.Dim() != e.Dim() {
		err = fmt.Errorf("vector length %d, engine uses %d", snap.Dim(), e.Dim())
	}
	if err == nil {
		err = e.registry.Restore(snap.Profiles)
	}
	if err != nil {
		e.registry.Reset()
		if errors.Is(err, speaker.ErrNoSnapshot) {
			e.log.Info("no saved speaker profiles")
		} else {
			e.log.Warn("speaker profiles unavailable, starting empty", "error", err)
		}
		return 0, fmt.Errorf("%w: %w", ErrProfilesUnavailable, err)
	}

	e.counter = max(e.counter, snap.Counter, maxIdentityNumber(snap.Profiles))
	if snap.Sensitivity != 0 {
		e.sensitivity = ClampSensitivity(snap.Sensitivity)
	}
	e.log.Info("speaker profiles loaded", "profiles", e.registry.Len(), "counter", e.counter)
	return e.registry.Len(), nil
}

// identity formats the display name for identity number n.
func identity(n int) string {
	return "Speaker " + strconv.Itoa(n)
}

// maxIdentityNumber returns the largest N among "Speaker N" identities.
func maxIdentityNumber(profiles []speaker.Profile) int {
	n := 0
	for _, p := range profiles {
		s, ok := strings.CutPrefix(p.ID, "Speaker ")
		if !ok {
			continue
		}
		if v, err := strconv.Atoi(s); err == nil && v > n {
			n = v
		}
	}
	return n
}
