package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/haivivi/diarize/pkg/diarize"
	"github.com/haivivi/diarize/pkg/speaker"
)

// DefaultSaveEvery is the number of classified chunks between
// background saves.
const DefaultSaveEvery = 50

// ErrClosed is returned for connections arriving after Close.
var ErrClosed = errors.New("stream: server closed")

// Opener returns the profile store for a session.
type Opener func(ctx context.Context, session string) (speaker.Store, error)

// Config configures a Server.
type Config struct {
	// Engine is the template for per-connection engines.
	Engine diarize.Config

	// Open resolves session stores. Nil disables persistence.
	Open Opener

	// SaveEvery is the number of classified chunks between background
	// saves. Zero uses DefaultSaveEvery.
	SaveEvery int

	Logger *slog.Logger
}

// Server is an http.Handler for diarization sessions.
type Server struct {
	cfg      Config
	log      *slog.Logger
	mux      *http.ServeMux
	upgrader websocket.Upgrader

	mu     sync.Mutex
	active map[string]*websocket.Conn
	closed bool
	wg     sync.WaitGroup
}

// NewServer creates a Server.
func NewServer(cfg Config) *Server {
	if cfg.SaveEvery <= 0 {
		cfg.SaveEvery = DefaultSaveEvery
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Engine.Logger == nil {
		cfg.Engine.Logger = cfg.Logger
	}
	s := &Server{
		cfg:    cfg,
		log:    cfg.Logger,
		mux:    http.NewServeMux(),
		active: make(map[string]*websocket.Conn),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	s.mux.HandleFunc("/ws", s.handleWS)
	s.mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Sessions returns the number of connected sessions.
func (s *Server) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

// Close disconnects all sessions and waits for their final saves.
func (s *Server) Close() error {
	s.mu.Lock()
	s.closed = true
	for _, ws := range s.active {
		// nil while the upgrade is still in progress; attach then refuses it.
		if ws != nil {
			ws.Close()
		}
	}
	s.mu.Unlock()
	s.wg.Wait()
	return nil
}

// claim reserves a session name. A session may only be open on one
// connection at a time.
func (s *Server) claim(name string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return http.StatusServiceUnavailable, ErrClosed
	}
	if _, ok := s.active[name]; ok {
		return http.StatusConflict, errors.New("stream: session in use")
	}
	s.active[name] = nil
	s.wg.Add(1)
	return 0, nil
}

func (s *Server) attach(name string, ws *websocket.Conn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.active[name] = ws
	return true
}

func (s *Server) release(name string) {
	s.mu.Lock()
	delete(s.active, name)
	s.mu.Unlock()
	s.wg.Done()
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("session")
	if name == "" {
		name = uuid.New().String()
	}
	if code, err := s.claim(name); err != nil {
		http.Error(w, err.Error(), code)
		return
	}
	defer s.release(name)

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", "session", name, "error", err)
		return
	}
	defer ws.Close()
	if !s.attach(name, ws) {
		return
	}

	sess := newSession(s, name, ws)
	sess.run(context.WithoutCancel(r.Context()))
}
