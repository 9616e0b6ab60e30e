// Package viewserver streams panel snapshots to external renderers over a
// websocket and applies the UI commands they send back.
package viewserver

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/dshills/dbgview/internal/event"
	"github.com/dshills/dbgview/internal/logging"
	"github.com/dshills/dbgview/internal/loop"
	"github.com/dshills/dbgview/internal/panel"
)

// Defaults.
const (
	DefaultPushInterval = 50 * time.Millisecond
	writeWait           = 5 * time.Second
	maxMessageSize      = 64 * 1024
)

// ErrClosed is returned by Serve after Close.
var ErrClosed = errors.New("view server closed")

// Options configures a Server.
type Options struct {
	Loop   *loop.Loop
	Panel  *panel.Panel
	Logger *logging.Logger

	// PushInterval throttles snapshot broadcasts.
	PushInterval time.Duration
}

// Server is the websocket endpoint.
type Server struct {
	loop     *loop.Loop
	panel    *panel.Panel
	log      *logging.Logger
	interval time.Duration
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*client]struct{}
	timer   *time.Timer
	closed  bool
	sub     event.Subscription
	http    *http.Server
}

// New creates a server. Start must be called on the loop before clients
// receive change broadcasts.
func New(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = logging.Null()
	}
	if opts.PushInterval <= 0 {
		opts.PushInterval = DefaultPushInterval
	}
	return &Server{
		loop:     opts.Loop,
		panel:    opts.Panel,
		log:      opts.Logger.WithComponent("viewserver"),
		interval: opts.PushInterval,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// Renderers are local tools, not browsers on other origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[*client]struct{}),
	}
}

// Start subscribes to panel changes. It must run on the loop.
func (s *Server) Start() {
	s.sub = s.panel.OnChange(func(*panel.Panel) { s.schedule() })
}

// Handler returns the websocket handler.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.handleSocket)
}

// Serve accepts connections on l until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context, l net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/ws", s.Handler())

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.http = &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	srv := s.http
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	s.log.Info("listening on %s", l.Addr())
	err := srv.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// ListenAndServe listens on addr and serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	var lc net.ListenConfig
	l, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, l)
}

// Clients returns the number of connected renderers.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close disconnects every client and stops broadcasting.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	clients := s.clients
	s.clients = make(map[*client]struct{})
	srv := s.http
	s.mu.Unlock()

	if s.sub != nil {
		s.sub.Dispose()
	}
	for c := range clients {
		c.close()
	}
	if srv != nil {
		return srv.Close()
	}
	return nil
}

// schedule coalesces changes into one broadcast per interval.
func (s *Server) schedule() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.timer != nil {
		return
	}
	s.timer = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		s.timer = nil
		s.mu.Unlock()
		_ = s.loop.Post(s.broadcast)
	})
}

// broadcast sends the current snapshot to every client. Runs on the loop.
func (s *Server) broadcast() {
	data, err := s.snapshotMessage()
	if err != nil {
		s.log.Error("encode snapshot: %v", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.sendLatest(data)
	}
}

func (s *Server) snapshotMessage() ([]byte, error) {
	snap := s.panel.Snapshot()
	return json.Marshal(Message{Type: MsgSnapshot, Snapshot: &snap})
}

func (s *Server) handleSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("upgrade failed: %v", err)
		return
	}
	c := newClient(conn)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		c.close()
		return
	}
	s.clients[c] = struct{}{}
	s.mu.Unlock()
	s.log.Debug("renderer connected from %s", r.RemoteAddr)

	go c.writePump(s.log)
	_ = s.loop.Post(func() {
		data, err := s.snapshotMessage()
		if err != nil {
			s.log.Error("encode snapshot: %v", err)
			return
		}
		c.sendLatest(data)
	})
	s.readCommands(c)

	s.mu.Lock()
	delete(s.clients, c)
	s.mu.Unlock()
	c.close()
	s.log.Debug("renderer disconnected")
}

// readCommands decodes commands until the connection fails.
func (s *Server) readCommands(c *client) {
	c.conn.SetReadLimit(maxMessageSize)
	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if messageType != websocket.TextMessage {
			continue
		}

		var cmd Command
		if err := json.Unmarshal(data, &cmd); err != nil {
			c.sendResult(Message{Type: MsgResult, Error: "invalid command: " + err.Error()})
			continue
		}
		_ = s.loop.Post(func() {
			res := Message{Type: MsgResult, ID: cmd.ID, OK: true}
			if err := Execute(s.panel, cmd); err != nil {
				s.log.Debug("command %s failed: %v", cmd.Name, err)
				res.OK = false
				res.Error = err.Error()
			}
			c.sendResult(res)
		})
	}
}
