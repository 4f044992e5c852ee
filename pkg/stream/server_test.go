package stream

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/diarize/pkg/audio/pcm"
	"github.com/haivivi/diarize/pkg/diarize"
	"github.com/haivivi/diarize/pkg/speaker"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func tone(freq, amp float64, n int) []byte {
	s := make([]int16, n)
	for i := range s {
		s[i] = int16(amp * 32767 * math.Sin(2*math.Pi*freq*float64(i)/16000))
	}
	return pcm.Encode(s)
}

var (
	voice   = tone(140, 0.3, 1600)
	silence = make([]byte, 3200)
)

type memStore struct {
	mu    sync.Mutex
	snap  *speaker.Snapshot
	saves int
}

func (m *memStore) Load(context.Context) (speaker.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return speaker.Snapshot{}, speaker.ErrNoSnapshot
	}
	return *m.snap, nil
}

func (m *memStore) Save(_ context.Context, snap speaker.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = &snap
	m.saves++
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snap = nil
	return nil
}

func (m *memStore) profiles() []speaker.Profile {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snap == nil {
		return nil
	}
	return m.snap.Profiles
}

func newTestServer(t *testing.T, open Opener) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(Config{
		Engine:    diarize.Config{Logger: quiet},
		Open:      open,
		SaveEvery: 2,
		Logger:    quiet,
	})
	hs := httptest.NewServer(s)
	t.Cleanup(func() {
		s.Close()
		hs.Close()
	})
	return s, hs
}

func dial(t *testing.T, hs *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(wsURL(hs, session), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func wsURL(hs *httptest.Server, session string) string {
	u := "ws" + strings.TrimPrefix(hs.URL, "http") + "/ws"
	if session != "" {
		u += "?session=" + session
	}
	return u
}

func readEvent(t *testing.T, ws *websocket.Conn) Event {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev Event
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return ev
}

func send(t *testing.T, ws *websocket.Conn, mt int, data []byte) Event {
	t.Helper()
	if err := ws.WriteMessage(mt, data); err != nil {
		t.Fatalf("write: %v", err)
	}
	return readEvent(t, ws)
}

func hangUp(ws *websocket.Conn) {
	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()
}

func TestSessionLifecycle(t *testing.T) {
	store := &memStore{}
	open := func(_ context.Context, name string) (speaker.Store, error) {
		if name != "room" {
			return nil, errors.New("unexpected session " + name)
		}
		return store, nil
	}

	s, hs := newTestServer(t, open)
	ws := dial(t, hs, "room")

	ev := readEvent(t, ws)
	if ev.Type != EventSession || ev.Session != "room" || ev.Restored != 0 {
		t.Fatalf("first event = %+v", ev)
	}
	if ev.Sensitivity != diarize.DefaultSensitivity {
		t.Errorf("Sensitivity = %v", ev.Sensitivity)
	}

	ev = send(t, ws, websocket.BinaryMessage, silence)
	if ev.Type != EventResult || ev.Result == nil || ev.Result.Speech {
		t.Fatalf("silence event = %+v", ev)
	}
	for i := range 3 {
		ev = send(t, ws, websocket.BinaryMessage, voice)
		if ev.Result == nil || ev.Result.Raw != "Speaker 1" || ev.Result.Mode != diarize.ModeBaseline {
			t.Fatalf("voice event %d = %+v", i, ev)
		}
	}
	if !ev.Result.Changed || ev.Result.Current != "Speaker 1" {
		t.Errorf("third voice chunk should switch current, got %+v", ev.Result)
	}

	ev = send(t, ws, websocket.TextMessage, []byte(`{"type":"stats"}`))
	if ev.Type != EventStats || ev.Stats == nil {
		t.Fatalf("stats event = %+v", ev)
	}
	if ev.Stats.TotalSpeakers != 1 || ev.Stats.Counters.Chunks != 4 || ev.Stats.Counters.Admitted != 3 {
		t.Errorf("stats = %+v", ev.Stats)
	}

	ev = send(t, ws, websocket.TextMessage, []byte(`{"type":"sensitivity","value":5}`))
	if ev.Sensitivity != diarize.MaxSensitivity {
		t.Errorf("clamped sensitivity = %v", ev.Sensitivity)
	}

	ev = send(t, ws, websocket.TextMessage, []byte(`{"type":"save"}`))
	if ev.Type != EventSaved {
		t.Fatalf("save event = %+v", ev)
	}

	for _, bad := range []string{`not json`, `{"type":"bogus"}`} {
		if ev := send(t, ws, websocket.TextMessage, []byte(bad)); ev.Type != EventError || ev.Error == "" {
			t.Errorf("%s: event = %+v", bad, ev)
		}
	}

	hangUp(ws)
	s.Close()

	profiles := store.profiles()
	if len(profiles) != 1 || profiles[0].ID != "Speaker 1" || len(profiles[0].Samples) != 3 {
		t.Fatalf("saved profiles = %+v", profiles)
	}

	// A new server restores the saved profiles for the same session.
	_, hs2 := newTestServer(t, open)
	ws2 := dial(t, hs2, "room")
	ev = readEvent(t, ws2)
	if ev.Restored != 1 || ev.Sensitivity != diarize.MaxSensitivity {
		t.Fatalf("restored event = %+v", ev)
	}
	ev = send(t, ws2, websocket.BinaryMessage, voice)
	if ev.Result.Raw != "Speaker 1" {
		t.Errorf("restored speaker = %q", ev.Result.Raw)
	}
}

func TestResetClearsStore(t *testing.T) {
	store := &memStore{}
	s, hs := newTestServer(t, func(context.Context, string) (speaker.Store, error) { return store, nil })
	ws := dial(t, hs, "a")
	readEvent(t, ws)

	for range 2 {
		send(t, ws, websocket.BinaryMessage, voice)
	}
	if ev := send(t, ws, websocket.TextMessage, []byte(`{"type":"reset"}`)); ev.Type != EventReset {
		t.Fatalf("reset event = %+v", ev)
	}
	ev := send(t, ws, websocket.TextMessage, []byte(`{"type":"stats"}`))
	if ev.Stats.TotalSpeakers != 0 {
		t.Errorf("speakers after reset = %d", ev.Stats.TotalSpeakers)
	}

	hangUp(ws)
	s.Close()
	if got := store.profiles(); len(got) != 0 {
		t.Errorf("profiles after reset = %d", len(got))
	}
}

func TestSessionInUse(t *testing.T) {
	_, hs := newTestServer(t, nil)
	ws := dial(t, hs, "busy")
	readEvent(t, ws)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(hs, "busy"), nil)
	if err == nil {
		t.Fatal("second connection to a busy session should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusConflict {
		t.Fatalf("response = %v", resp)
	}
}

func TestGeneratedSessionName(t *testing.T) {
	s, hs := newTestServer(t, nil)
	ws := dial(t, hs, "")
	ev := readEvent(t, ws)
	if _, err := uuid.Parse(ev.Session); err != nil {
		t.Errorf("session %q is not a UUID: %v", ev.Session, err)
	}
	if s.Sessions() != 1 {
		t.Errorf("Sessions() = %d, want 1", s.Sessions())
	}
	if ev := send(t, ws, websocket.TextMessage, []byte(`{"type":"save"}`)); ev.Type != EventError {
		t.Errorf("save without store = %+v", ev)
	}
}

func TestOpenFailure(t *testing.T) {
	_, hs := newTestServer(t, func(context.Context, string) (speaker.Store, error) {
		return nil, errors.New("store offline")
	})
	ws := dial(t, hs, "x")
	ev := readEvent(t, ws)
	if ev.Type != EventError || !strings.Contains(ev.Error, "store offline") {
		t.Fatalf("event = %+v", ev)
	}
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := ws.ReadMessage(); err == nil {
		t.Error("connection should be closed after open failure")
	}
}

func TestHealthz(t *testing.T) {
	_, hs := newTestServer(t, nil)
	resp, err := http.Get(hs.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}
}

func TestClosedServerRejects(t *testing.T) {
	s, hs := newTestServer(t, nil)
	s.Close()
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(hs, "late"), nil)
	if err == nil {
		t.Fatal("dial after Close should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("response = %v", resp)
	}
}

func TestCloseDuringUpgrade(t *testing.T) {
	s := NewServer(Config{Logger: quiet})
	if _, err := s.claim("pending"); err != nil {
		t.Fatal(err)
	}

	done := make(chan error, 1)
	go func() { done <- s.Close() }()

	// The in-flight handler finds the server closed and gives up its claim.
	deadline := time.Now().Add(5 * time.Second)
	for s.attach("pending", nil) {
		if time.Now().After(deadline) {
			t.Fatal("server never closed")
		}
		time.Sleep(time.Millisecond)
	}
	s.release("pending")

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Close = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
	if s.Sessions() != 0 {
		t.Errorf("Sessions = %d", s.Sessions())
	}
}

func TestResetDropsStaleSave(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	s := NewServer(Config{Engine: diarize.Config{Logger: quiet}, Logger: quiet})
	ss := newSession(s, "room", nil)
	ss.store = store

	ss.saves = make(chan queuedSave, 1)
	ss.engine.Process(voice)
	ss.queueSave()
	stale := <-ss.saves // taken by the saver but not yet written

	if ev := ss.command(ctx, []byte(`{"type":"reset"}`)); ev.Type != EventReset {
		t.Fatalf("reset event = %+v", ev)
	}
	ss.saves <- stale
	close(ss.saves)
	ss.saverDone = make(chan struct{})
	ss.saver(ctx)
	if store.saves != 0 || store.profiles() != nil {
		t.Fatalf("stale snapshot written: saves=%d profiles=%d", store.saves, len(store.profiles()))
	}

	ss.saves = make(chan queuedSave, 1)
	ss.saverDone = make(chan struct{})
	ss.engine.Process(voice)
	ss.queueSave()
	close(ss.saves)
	ss.saver(ctx)
	if got := store.profiles(); len(got) != 1 {
		t.Errorf("profiles after post-reset save = %d, want 1", len(got))
	}
}
