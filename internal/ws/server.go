package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	diag "github.com/coreman2200/ledsmooth/internal/diagnostics"
	"github.com/coreman2200/ledsmooth/internal/effect"
	"github.com/coreman2200/ledsmooth/internal/layout"
	"github.com/coreman2200/ledsmooth/internal/smoothing"
)

const (
	writeWait = 200 * time.Millisecond
	// sendQueue is the number of messages buffered per client before new
	// ones are dropped.
	sendQueue = 16
)

type client struct {
	id   string
	conn *websocket.Conn
	wmu  sync.Mutex

	out     chan []byte
	done    chan struct{}
	dropped atomic.Uint64
}

func newClient(conn *websocket.Conn) *client {
	return &client{
		id:   uuid.NewString(),
		conn: conn,
		out:  make(chan []byte, sendQueue),
		done: make(chan struct{}),
	}
}

// enqueue hands b to the client's writer without blocking. It reports
// false when b was dropped.
func (c *client) enqueue(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- b:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

// writeLoop sends queued messages until the client goes away. A failed
// write closes the connection so the reader side unregisters it.
func (c *client) writeLoop() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.out:
			if err := c.send(b); err != nil {
				c.conn.Close()
				return
			}
		}
	}
}

func (c *client) send(b []byte) error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, b)
}

// Server exposes the engine over HTTP: preview frames, diagnostics, a
// control channel and a health endpoint.
type Server struct {
	Engine *smoothing.Engine
	Player *effect.Player
	Layout layout.Layout
	// Reload re-reads the settings document and applies it; nil disables
	// the reload command.
	Reload func() error
	Driver string

	log      zerolog.Logger
	upgrader websocket.Upgrader
	diagCh   chan diag.Diagnostic

	mu          sync.RWMutex
	frameID     uint64
	startTime   time.Time
	clients     map[*client]bool
	diagClients map[*client]bool
}

func NewServer(e *smoothing.Engine, p *effect.Player, l layout.Layout, log zerolog.Logger) *Server {
	return &Server{
		Engine:      e,
		Player:      p,
		Layout:      l,
		log:         log.With().Str("component", "ws").Logger(),
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		diagCh:      make(chan diag.Diagnostic, 64),
		startTime:   time.Now(),
		clients:     map[*client]bool{},
		diagClients: map[*client]bool{},
	}
}

// Handler returns the routes served by s.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
	return mux
}

// Diagnostics queues d for the /diag clients. It never blocks; when the
// queue is full d is dropped.
func (s *Server) Diagnostics(d diag.Diagnostic) {
	select {
	case s.diagCh <- d:
	default:
		s.log.Debug().Str("code", d.Code).Msg("diagnostic dropped")
	}
}

// Run forwards queued diagnostics until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case d := <-s.diagCh:
			s.pushDiag(d)
		}
	}
}

func (s *Server) accept(w http.ResponseWriter, r *http.Request) (*client, bool) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Str("path", r.URL.Path).Msg("upgrade")
		return nil, false
	}
	c := newClient(conn)
	s.log.Debug().Str("client", c.id).Str("path", r.URL.Path).Msg("client connected")
	return c, true
}

// subscribe queues greeting ahead of any broadcast, registers c in set and
// starts its reader and writer.
func (s *Server) subscribe(c *client, set map[*client]bool, greeting []byte) {
	c.enqueue(greeting)
	s.join(c, set)
	go c.writeLoop()
	go s.drain(c, set)
}

func (s *Server) join(c *client, set map[*client]bool) {
	s.mu.Lock()
	set[c] = true
	s.mu.Unlock()
}

// drain reads until the client goes away, then unregisters it and stops
// its writer.
func (s *Server) drain(c *client, set map[*client]bool) {
	defer func() {
		s.mu.Lock()
		delete(set, c)
		s.mu.Unlock()
		close(c.done)
		c.conn.Close()
		s.log.Debug().Str("client", c.id).Uint64("dropped", c.dropped.Load()).Msg("client disconnected")
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.accept(w, r)
	if !ok {
		return
	}
	s.subscribe(c, s.clients, s.topology(c.id))
}

func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.accept(w, r)
	if !ok {
		return
	}
	b, _ := json.Marshal(map[string]string{"type": "hello", "client": c.id})
	s.subscribe(c, s.diagClients, b)
}

func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	c, ok := s.accept(w, r)
	if !ok {
		return
	}
	defer c.conn.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg Command
		var reply Reply
		if err := json.Unmarshal(data, &msg); err != nil {
			reply = Reply{Error: "invalid json: " + err.Error()}
		} else {
			reply = s.Apply(msg)
		}
		b, _ := json.Marshal(reply)
		if err := c.send(b); err != nil {
			return
		}
	}
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"count":    s.Layout.Count(),
		"driver":   s.Driver,
		"clients":  len(s.clients),
	}
	s.mu.RUnlock()
	if s.Player != nil {
		resp["effect"] = s.Player.Current()
	}
	resp["engine"] = s.Engine.Stats()
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) topology(id string) []byte {
	top := map[string]any{
		"type":       "topology",
		"client":     id,
		"dim":        map[string]int{"x": s.Layout.Dim.X, "y": s.Layout.Dim.Y, "z": s.Layout.Dim.Z},
		"order":      map[string]bool{"xFlipEveryRow": s.Layout.Order.XFlipEveryRow, "yFlipEveryPanel": s.Layout.Order.YFlipEveryPanel},
		"panelGapMM": s.Layout.PanelGapMM,
		"pitchMM":    s.Layout.PitchMM,
		"driver":     s.Driver,
	}
	b, _ := json.Marshal(top)
	return b
}

func (s *Server) broadcastFrame(rgb []byte) {
	s.mu.Lock()
	s.frameID++
	id := s.frameID
	targets := make([]*client, 0, len(s.clients))
	for c := range s.clients {
		targets = append(targets, c)
	}
	s.mu.Unlock()

	type frame struct {
		Type    string `json:"type"`
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		RGB     []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frame{Type: "frame", T: time.Now().UnixNano(), FrameID: id, RGB: rgb})
	for _, c := range targets {
		if !c.enqueue(b) {
			s.log.Trace().Str("client", c.id).Uint64("frame_id", id).Msg("frame dropped")
		}
	}
}

func (s *Server) pushDiag(d diag.Diagnostic) {
	b, _ := json.Marshal(d)
	s.mu.RLock()
	targets := make([]*client, 0, len(s.diagClients))
	for c := range s.diagClients {
		targets = append(targets, c)
	}
	s.mu.RUnlock()
	for _, c := range targets {
		c.enqueue(b)
	}
}
