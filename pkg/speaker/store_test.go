package speaker

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/haivivi/diarize/pkg/storage"
	"github.com/haivivi/diarize/pkg/voicefeat"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// testSnapshot builds a snapshot with n profiles of random 34-dim samples.
func testSnapshot(n int) Snapshot {
	rng := rand.New(rand.NewPCG(7, 0))
	r := NewRegistry(DefaultCapacity)
	for i := range n {
		id := "Speaker " + string(rune('1'+i))
		for j := range 3 + i {
			v := make([]float64, 34)
			for d := range v {
				v[d] = rng.NormFloat64()
			}
			rc := voicefeat.Record{
				Vector:           v,
				Energy:           v[0] * v[0],
				RMS:              v[0],
				Pitch:            120 + 10*float64(i),
				SpectralCentroid: 900,
				Timestamp:        epoch.Add(time.Duration(i*10+j) * time.Second),
			}
			if j == 0 {
				r.Create(id, rc, 100*time.Millisecond)
			} else {
				r.Append(id, rc, 100*time.Millisecond)
			}
		}
	}
	if n > 0 {
		r.SetCluster("Speaker 1", 0)
	}
	return Snapshot{
		Counter:     n + 2,
		Sensitivity: 0.4,
		SavedAt:     epoch,
		Profiles:    r.Snapshot(),
	}
}

func assertSnapshotEqual(t *testing.T, got, want Snapshot) {
	t.Helper()
	if got.Counter != want.Counter || got.Sensitivity != want.Sensitivity {
		t.Fatalf("meta = %d/%f, want %d/%f", got.Counter, got.Sensitivity, want.Counter, want.Sensitivity)
	}
	if !got.SavedAt.Equal(want.SavedAt) {
		t.Errorf("SavedAt = %v, want %v", got.SavedAt, want.SavedAt)
	}
	if len(got.Profiles) != len(want.Profiles) {
		t.Fatalf("profiles = %d, want %d", len(got.Profiles), len(want.Profiles))
	}
	for i := range want.Profiles {
		g, w := got.Profiles[i], want.Profiles[i]
		if g.ID != w.ID || len(g.Samples) != len(w.Samples) {
			t.Fatalf("profile %d = %s/%d, want %s/%d", i, g.ID, len(g.Samples), w.ID, len(w.Samples))
		}
		for d := range w.Centroid {
			if g.Centroid[d] != w.Centroid[d] {
				t.Fatalf("profile %s centroid[%d] = %v, want %v", w.ID, d, g.Centroid[d], w.Centroid[d])
			}
		}
		if !g.LastSeen.Equal(w.LastSeen) || g.TotalSpeech != w.TotalSpeech {
			t.Errorf("profile %s last seen/total = %v/%v", w.ID, g.LastSeen, g.TotalSpeech)
		}
		if (g.ClusterID == nil) != (w.ClusterID == nil) || (g.ClusterID != nil && *g.ClusterID != *w.ClusterID) {
			t.Errorf("profile %s cluster = %v, want %v", w.ID, g.ClusterID, w.ClusterID)
		}
		for j := range w.Samples {
			if !g.Samples[j].Timestamp.Equal(w.Samples[j].Timestamp) || g.Samples[j].Pitch != w.Samples[j].Pitch {
				t.Errorf("profile %s sample %d differs", w.ID, j)
			}
		}
	}
}

func TestCodecRoundTrip(t *testing.T) {
	want := testSnapshot(3)
	for _, c := range []Codec{Msgpack, JSON} {
		t.Run(c.String(), func(t *testing.T) {
			var buf bytes.Buffer
			if err := c.Encode(&buf, want); err != nil {
				t.Fatal(err)
			}
			got, err := c.Decode(&buf)
			if err != nil {
				t.Fatal(err)
			}
			if got.Version != SnapshotVersion {
				t.Errorf("Version = %d", got.Version)
			}
			assertSnapshotEqual(t, got, want)
			if got.Dim() != 34 {
				t.Errorf("Dim = %d, want 34", got.Dim())
			}
		})
	}
}

func TestCodecCorrupt(t *testing.T) {
	var good bytes.Buffer
	if err := JSON.Encode(&good, testSnapshot(1)); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name  string
		codec Codec
		data  []byte
	}{
		{"msgpack garbage", Msgpack, []byte{0xc1, 0xff, 0x00}},
		{"json garbage", JSON, []byte("{not json")},
		{"empty", Msgpack, nil},
		{"wrong version", JSON, []byte(`{"version":99,"profiles":[]}`)},
		{"negative counter", JSON, []byte(`{"version":1,"counter":-1}`)},
		{"profile without samples", JSON, []byte(`{"version":1,"profiles":[{"id":"Speaker 1"}]}`)},
		{"truncated", JSON, good.Bytes()[:good.Len()/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.codec.Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, ErrCorrupt) {
				t.Fatalf("err = %v, want ErrCorrupt", err)
			}
		})
	}
}

func TestParseCodec(t *testing.T) {
	tests := []struct {
		in      string
		want    Codec
		wantErr bool
	}{
		{"", Msgpack, false},
		{"msgpack", Msgpack, false},
		{"JSON", JSON, false},
		{"xml", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseCodec(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseCodec(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestFileStore(t *testing.T) {
	local, err := storage.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	st := NewFileStore(local, "room/profiles.msgpack", Msgpack)

	if _, err := st.Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load before save err = %v, want ErrNoSnapshot", err)
	}

	want := testSnapshot(2)
	if err := st.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertSnapshotEqual(t, got, want)

	if err := local.Put(ctx, "room/profiles.msgpack", []byte{0xc1, 0x00}); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(ctx); !errors.Is(err, ErrCorrupt) {
		t.Fatalf("Load corrupt err = %v, want ErrCorrupt", err)
	}

	if err := st.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := st.Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load after clear err = %v, want ErrNoSnapshot", err)
	}
}

func newTestKV(t *testing.T) *KV {
	t.Helper()
	kv, err := OpenKV(KVOptions{InMemory: true, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })
	return kv
}

func TestKVStoreRoundTrip(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()
	st, err := kv.Session("room-1")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := st.Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load before save err = %v, want ErrNoSnapshot", err)
	}

	want := testSnapshot(3)
	if err := st.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertSnapshotEqual(t, got, want)

	// A smaller snapshot replaces the old one entirely.
	smaller := testSnapshot(1)
	if err := st.Save(ctx, smaller); err != nil {
		t.Fatal(err)
	}
	got, err = st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertSnapshotEqual(t, got, smaller)
}

func TestKVSessions(t *testing.T) {
	kv := newTestKV(t)
	ctx := context.Background()

	for _, name := range []string{"b", "a"} {
		st, err := kv.Session(name)
		if err != nil {
			t.Fatal(err)
		}
		if err := st.Save(ctx, testSnapshot(1)); err != nil {
			t.Fatal(err)
		}
	}
	names, err := kv.Sessions(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("Sessions = %v, want [a b]", names)
	}

	a, _ := kv.Session("a")
	if err := a.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if _, err := a.Load(ctx); !errors.Is(err, ErrNoSnapshot) {
		t.Fatalf("Load after clear err = %v", err)
	}
	b, _ := kv.Session("b")
	if _, err := b.Load(ctx); err != nil {
		t.Fatalf("other session lost: %v", err)
	}
	names, _ = kv.Sessions(ctx)
	if len(names) != 1 || names[0] != "b" {
		t.Fatalf("Sessions after clear = %v", names)
	}
}

func TestKVSessionName(t *testing.T) {
	kv := newTestKV(t)
	for _, name := range []string{"", "a:b"} {
		if _, err := kv.Session(name); err == nil {
			t.Errorf("Session(%q) should fail", name)
		}
	}
}

func TestOpenKVRequiresDir(t *testing.T) {
	if _, err := OpenKV(KVOptions{}); err == nil {
		t.Fatal("OpenKV without dir should fail")
	}
}

func TestOpenKVOnDisk(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	want := testSnapshot(2)

	kv, err := OpenKV(KVOptions{Dir: dir, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	st, _ := kv.Session("default")
	if err := st.Save(ctx, want); err != nil {
		t.Fatal(err)
	}
	if err := kv.Close(); err != nil {
		t.Fatal(err)
	}

	kv, err = OpenKV(KVOptions{Dir: dir, Logger: quiet})
	if err != nil {
		t.Fatal(err)
	}
	defer kv.Close()
	st, _ = kv.Session("default")
	got, err := st.Load(ctx)
	if err != nil {
		t.Fatal(err)
	}
	assertSnapshotEqual(t, got, want)
}
