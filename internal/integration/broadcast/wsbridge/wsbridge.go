// Package wsbridge receives session broadcasts from a userscript running in
// the host page. The script forwards every message it sees on the page's
// broadcast channel to a local WebSocket endpoint.
package wsbridge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/hay-kot/dtfchat/internal/core/session"
)

const (
	// pongWait bounds how long a quiet connection is kept open.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	writeWait  = 10 * time.Second

	maxMessageSize = 64 * 1024
)

// Options configures a Server.
type Options struct {
	Listen         string
	Path           string
	AllowedOrigins []string
}

// Server is a session.EventSource backed by a local WebSocket endpoint.
type Server struct {
	opts     Options
	log      zerolog.Logger
	upgrader websocket.Upgrader

	mu       sync.Mutex
	handlers map[int]session.Handler
	nextID   int
	httpSrv  *http.Server
	addr     string
}

// New creates a Server. Nothing listens until the first Subscribe.
func New(opts Options, log zerolog.Logger) *Server {
	if opts.Path == "" {
		opts.Path = "/events"
	}

	s := &Server{
		opts:     opts,
		log:      log,
		handlers: make(map[int]session.Handler),
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

// checkOrigin allows requests without an Origin header (local tools) and
// those from the allow-list.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.opts.AllowedOrigins, origin)
}

// Subscribe registers handler and starts the listener if it is not running.
// The listener is stopped when ctx is done.
func (s *Server) Subscribe(ctx context.Context, handler session.Handler) (func(), error) {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.handlers[id] = handler
	running := s.httpSrv != nil
	s.mu.Unlock()

	if !running {
		if err := s.listen(ctx); err != nil {
			s.remove(id)
			return nil, err
		}
	}

	return func() { s.remove(id) }, nil
}

func (s *Server) remove(id int) {
	s.mu.Lock()
	delete(s.handlers, id)
	s.mu.Unlock()
}

func (s *Server) listen(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.opts.Listen, err)
	}

	mux := http.NewServeMux()
	mux.Handle(s.opts.Path, s.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	s.mu.Lock()
	s.httpSrv = srv
	s.addr = ln.Addr().String()
	s.mu.Unlock()

	s.log.Info().Str("addr", s.addr).Str("path", s.opts.Path).Msg("session bridge listening")

	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("session bridge stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return nil
}

// Addr returns the address the listener is bound to, empty before Subscribe.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Handler returns the WebSocket endpoint.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("origin", r.Header.Get("Origin")).Msg("rejected bridge connection")
		return
	}
	defer func() { _ = conn.Close() }()

	s.log.Debug().Str("remote", r.RemoteAddr).Msg("bridge connected")

	done := make(chan struct{})
	defer close(done)
	go s.ping(conn, done)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error { return conn.SetReadDeadline(time.Now().Add(pongWait)) })

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.log.Warn().Err(err).Msg("bridge connection closed")
			}
			return
		}

		ev, err := session.DecodeEvent(data)
		if err != nil {
			s.log.Debug().Err(err).Msg("ignoring malformed bridge message")
			continue
		}
		s.dispatch(ev)
	}
}

func (s *Server) ping(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (s *Server) dispatch(ev session.Event) {
	s.mu.Lock()
	handlers := make([]session.Handler, 0, len(s.handlers))
	for _, h := range s.handlers {
		handlers = append(handlers, h)
	}
	s.mu.Unlock()

	for _, h := range handlers {
		h(ev)
	}
}
