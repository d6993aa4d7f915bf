package stream

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// FrameSnapshot is the type of a frame carrying a RenderSnapshot.
const FrameSnapshot = "snapshot"

// ErrClosed is returned when connecting to a closed hub.
var ErrClosed = errors.New("stream hub closed")

// Frame is the JSON envelope written to viewers.
type Frame struct {
	Type string               `json:"type"`
	Data model.RenderSnapshot `json:"data"`
}

// Config holds hub configuration.
type Config struct {
	Path         string        // WebSocket endpoint path
	ViewerBuffer int           // Frames queued per viewer before dropping
	WriteTimeout time.Duration // Per-frame write deadline
	PingInterval time.Duration // Keepalive ping period
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Path:         "/ws",
		ViewerBuffer: 16,
		WriteTimeout: 5 * time.Second,
		PingInterval: 30 * time.Second,
	}
}

// Selection reports the currently watched symbol.
type Selection interface {
	Watched() (string, bool)
}

// SelectionFunc adapts a function to Selection.
type SelectionFunc func() (string, bool)

func (f SelectionFunc) Watched() (string, bool) {
	return f()
}

type viewer struct {
	id   string
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	once sync.Once
}

func (v *viewer) close() {
	v.once.Do(func() {
		close(v.done)
		if v.conn != nil {
			v.conn.Close()
		}
	})
}

// Hub tracks connected viewers and broadcasts snapshots to them.
type Hub struct {
	cfg       Config
	selection Selection
	logger    *slog.Logger
	upgrader  websocket.Upgrader

	mu      sync.RWMutex
	viewers map[string]*viewer
	last    []byte
	closed  bool

	frames  atomic.Uint64
	dropped atomic.Uint64
}

// NewHub creates a Hub. selection may be nil.
func NewHub(cfg Config, selection Selection, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.ViewerBuffer <= 0 {
		cfg.ViewerBuffer = def.ViewerBuffer
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}

	return &Hub{
		cfg:       cfg,
		selection: selection,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		viewers: make(map[string]*viewer),
	}
}

// HandleSnapshot broadcasts a snapshot. It never blocks.
func (h *Hub) HandleSnapshot(s model.RenderSnapshot) {
	data, err := json.Marshal(Frame{Type: FrameSnapshot, Data: s})
	if err != nil {
		h.logger.Error("failed to encode frame", "symbol", s.Symbol, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.last = data
	h.frames.Add(1)

	for _, v := range h.viewers {
		select {
		case v.send <- data:
		default:
			h.dropped.Add(1)
			h.logger.Debug("viewer buffer full, dropping frame", "viewer", v.id)
		}
	}
}

// Handler returns a mux serving the WebSocket endpoint and /health.
func (h *Hub) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle(h.cfg.Path, h)
	mux.HandleFunc("/health", h.health)
	return mux
}

// ServeHTTP upgrades the request and registers the viewer.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}

	v := &viewer{
		id:   uuid.NewString(),
		conn: conn,
		send: make(chan []byte, h.cfg.ViewerBuffer),
		done: make(chan struct{}),
	}

	if err := h.register(v); err != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, err.Error()),
			time.Now().Add(time.Second),
		)
		conn.Close()
		return
	}

	h.logger.Info("viewer connected", "viewer", v.id, "remote", r.RemoteAddr)

	go h.writeLoop(v)
	go h.readLoop(v)
}

func (h *Hub) register(v *viewer) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return ErrClosed
	}
	if h.last != nil {
		v.send <- h.last
	}
	h.viewers[v.id] = v
	return nil
}

func (h *Hub) remove(v *viewer) {
	h.mu.Lock()
	_, ok := h.viewers[v.id]
	delete(h.viewers, v.id)
	h.mu.Unlock()

	v.close()
	if ok {
		h.logger.Info("viewer disconnected", "viewer", v.id)
	}
}

// writeLoop drains the viewer's queue and keeps the connection alive.
func (h *Hub) writeLoop(v *viewer) {
	ticker := time.NewTicker(h.cfg.PingInterval)
	defer ticker.Stop()
	defer h.remove(v)

	for {
		select {
		case <-v.done:
			return
		case data := <-v.send:
			v.conn.SetWriteDeadline(time.Now().Add(h.cfg.WriteTimeout))
			if err := v.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				h.logger.Debug("viewer write failed", "viewer", v.id, "error", err)
				return
			}
		case <-ticker.C:
			deadline := time.Now().Add(h.cfg.WriteTimeout)
			if err := v.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				h.logger.Debug("failed to send ping", "viewer", v.id, "error", err)
				return
			}
		}
	}
}

// readLoop discards inbound messages until the viewer goes away.
func (h *Hub) readLoop(v *viewer) {
	defer h.remove(v)
	for {
		if _, _, err := v.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Viewers returns the number of connected viewers.
func (h *Hub) Viewers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.viewers)
}

// Dropped returns the number of frames skipped for slow viewers.
func (h *Hub) Dropped() uint64 {
	return h.dropped.Load()
}

// Close disconnects every viewer and rejects new ones.
func (h *Hub) Close() error {
	h.mu.Lock()
	h.closed = true
	viewers := make([]*viewer, 0, len(h.viewers))
	for _, v := range h.viewers {
		viewers = append(viewers, v)
	}
	h.viewers = make(map[string]*viewer)
	h.mu.Unlock()

	for _, v := range viewers {
		if v.conn != nil {
			v.conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second),
			)
		}
		v.close()
	}
	return nil
}

// Health is the /health response body.
type Health struct {
	Status  string `json:"status"`
	Watched string `json:"watched,omitempty"`
	Viewers int    `json:"viewers"`
	Frames  uint64 `json:"frames"`
	Dropped uint64 `json:"dropped"`
}

func (h *Hub) health(w http.ResponseWriter, r *http.Request) {
	resp := Health{
		Status:  "ok",
		Viewers: h.Viewers(),
		Frames:  h.frames.Load(),
		Dropped: h.Dropped(),
	}
	if h.selection != nil {
		resp.Watched, _ = h.selection.Watched()
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
