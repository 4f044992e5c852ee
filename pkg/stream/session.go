package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/haivivi/diarize/pkg/diarize"
	"github.com/haivivi/diarize/pkg/speaker"
)

// Event is a server message.
type Event struct {
	Type string `json:"type"`

	Session     string              `json:"session,omitempty"`
	Restored    int                 `json:"restored,omitempty"`
	Sensitivity float64             `json:"sensitivity,omitempty"`
	Result      *diarize.Result     `json:"result,omitempty"`
	Stats       *diarize.Statistics `json:"stats,omitempty"`
	Error       string              `json:"error,omitempty"`
}

// Command is a client control message.
type Command struct {
	Type  string  `json:"type"`
	Value float64 `json:"value,omitempty"`
}

// Event types.
const (
	EventSession = "session"
	EventResult  = "result"
	EventStats   = "stats"
	EventSaved   = "saved"
	EventReset   = "reset"
	EventError   = "error"
)

type session struct {
	name   string
	ws     *websocket.Conn
	log    *slog.Logger
	engine *diarize.Engine
	store  speaker.Store
	open   Opener

	saveEvery int
	pending   int
	saves     chan queuedSave
	saverDone chan struct{}

	// storeMu orders background saves against explicit save and reset.
	// generation is bumped under it on reset; queued snapshots from an
	// older generation are dropped.
	storeMu    sync.Mutex
	generation uint64
}

type queuedSave struct {
	generation uint64
	snap       speaker.Snapshot
}

func newSession(s *Server, name string, ws *websocket.Conn) *session {
	return &session{
		name:      name,
		ws:        ws,
		log:       s.log.With("session", name),
		engine:    diarize.New(s.cfg.Engine),
		open:      s.cfg.Open,
		saveEvery: s.cfg.SaveEvery,
	}
}

func (ss *session) run(ctx context.Context) {
	restored := 0
	if ss.open != nil {
		store, err := ss.open(ctx, ss.name)
		if err != nil {
			ss.log.Warn("open profile store", "error", err)
			ss.send(Event{Type: EventError, Session: ss.name, Error: err.Error()})
			return
		}
		ss.store = store
		// Load failures leave the engine empty and are logged by it.
		restored, _ = ss.engine.Load(ctx, store)

		ss.saves = make(chan queuedSave, 1)
		ss.saverDone = make(chan struct{})
		go ss.saver(ctx)
		defer ss.finish()
	}

	ss.log.Info("session started", "restored", restored)
	if err := ss.send(Event{
		Type:        EventSession,
		Session:     ss.name,
		Restored:    restored,
		Sensitivity: ss.engine.Sensitivity(),
	}); err != nil {
		return
	}

	for {
		mt, data, err := ss.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				ss.log.Warn("read failed", "error", err)
			}
			return
		}
		var ev Event
		switch mt {
		case websocket.BinaryMessage:
			ev = ss.process(data)
		case websocket.TextMessage:
			ev = ss.command(ctx, data)
		default:
			continue
		}
		if err := ss.send(ev); err != nil {
			ss.log.Warn("write failed", "error", err)
			return
		}
	}
}

func (ss *session) process(chunk []byte) Event {
	res := ss.engine.Process(chunk)
	if res.Raw != "" && ss.store != nil {
		ss.pending++
		if ss.pending >= ss.saveEvery {
			ss.queueSave()
		}
	}
	return Event{Type: EventResult, Result: &res}
}

func (ss *session) command(ctx context.Context, data []byte) Event {
	var cmd Command
	if err := json.Unmarshal(data, &cmd); err != nil {
		return Event{Type: EventError, Error: fmt.Sprintf("invalid command: %v", err)}
	}
	switch cmd.Type {
	case "stats":
		st := ss.engine.Statistics()
		return Event{Type: EventStats, Stats: &st}
	case "reset":
		ss.engine.Reset()
		if ss.store != nil {
			ss.pending = 0
			select {
			case <-ss.saves:
			default:
			}
			ss.storeMu.Lock()
			ss.generation++
			err := ss.store.Clear(ctx)
			ss.storeMu.Unlock()
			if err != nil {
				return Event{Type: EventError, Error: err.Error()}
			}
		}
		return Event{Type: EventReset}
	case "save":
		if ss.store == nil {
			return Event{Type: EventError, Error: "persistence disabled"}
		}
		ss.pending = 0
		ss.storeMu.Lock()
		err := ss.engine.Save(ctx, ss.store)
		ss.storeMu.Unlock()
		if err != nil {
			return Event{Type: EventError, Error: err.Error()}
		}
		return Event{Type: EventSaved}
	case "sensitivity":
		ss.engine.SetSensitivity(cmd.Value)
		return Event{Type: EventSession, Session: ss.name, Sensitivity: ss.engine.Sensitivity()}
	default:
		return Event{Type: EventError, Error: fmt.Sprintf("unknown command %q", cmd.Type)}
	}
}

func (ss *session) send(ev Event) error {
	return ss.ws.WriteJSON(ev)
}

// queueSave hands the latest snapshot to the saver, replacing one that
// has not been written yet.
func (ss *session) queueSave() {
	ss.pending = 0
	snap := queuedSave{generation: ss.generation, snap: ss.engine.Snapshot()}
	select {
	case ss.saves <- snap:
	default:
		select {
		case <-ss.saves:
		default:
		}
		ss.saves <- snap
	}
}

func (ss *session) saver(ctx context.Context) {
	defer close(ss.saverDone)
	for q := range ss.saves {
		ss.storeMu.Lock()
		if q.generation != ss.generation {
			ss.storeMu.Unlock()
			ss.log.Debug("dropped snapshot taken before reset")
			continue
		}
		err := ss.store.Save(ctx, q.snap)
		ss.storeMu.Unlock()
		if err != nil {
			ss.log.Warn("save profiles", "error", err)
			continue
		}
		ss.log.Debug("profiles saved", "speakers", len(q.snap.Profiles))
	}
}

// finish writes the final snapshot and waits for the saver to drain.
func (ss *session) finish() {
	ss.queueSave()
	close(ss.saves)
	<-ss.saverDone
	ss.log.Info("session ended", "speakers", len(ss.engine.Profiles()))
}
