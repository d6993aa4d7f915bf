package stream

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Tail errors.
var (
	ErrStaleConnection = errors.New("connection stale (no pong)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// TailConfig configures a Tail.
type TailConfig struct {
	URL              string
	BufferSize       int
	HandshakeTimeout time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
}

// DefaultTailConfig returns defaults for the given stream URL.
func DefaultTailConfig(url string) TailConfig {
	return TailConfig{
		URL:              url,
		BufferSize:       64,
		HandshakeTimeout: 10 * time.Second,
		PingInterval:     15 * time.Second,
		PongTimeout:      45 * time.Second,
	}
}

// ReceivedFrame is a decoded frame with its local receive time.
type ReceivedFrame struct {
	Frame
	ReceivedAt time.Time
}

// Tail is a viewer-side client of a Hub.
type Tail struct {
	cfg    TailConfig
	logger *slog.Logger

	conn *websocket.Conn

	frames chan ReceivedFrame
	errors chan error
	done   chan struct{}

	mu         sync.RWMutex
	connected  bool
	lastPongAt time.Time
	closed     bool
}

// NewTail creates a Tail. Call Connect to start receiving.
func NewTail(cfg TailConfig, logger *slog.Logger) *Tail {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultTailConfig(cfg.URL)
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = def.BufferSize
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.PongTimeout <= 0 {
		cfg.PongTimeout = def.PongTimeout
	}

	return &Tail{
		cfg:    cfg,
		logger: logger,
		frames: make(chan ReceivedFrame, cfg.BufferSize),
		errors: make(chan error, 1),
		done:   make(chan struct{}),
	}
}

// Connect dials the stream and starts the read and heartbeat loops.
func (t *Tail) Connect(ctx context.Context) error {
	t.mu.RLock()
	closed := t.closed
	t.mu.RUnlock()
	if closed {
		return ErrAlreadyClosed
	}

	dialer := websocket.Dialer{
		HandshakeTimeout: t.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, t.cfg.URL, nil)
	if err != nil {
		return err
	}

	conn.SetPongHandler(func(string) error {
		t.mu.Lock()
		t.lastPongAt = time.Now()
		t.mu.Unlock()
		return nil
	})

	t.mu.Lock()
	t.conn = conn
	t.connected = true
	t.lastPongAt = time.Now()
	t.mu.Unlock()

	go t.readLoop()
	go t.heartbeatLoop()

	t.logger.Debug("stream connected", "url", t.cfg.URL)
	return nil
}

// Close sends a close frame and shuts the connection.
func (t *Tail) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.connected = false
	conn := t.conn
	t.mu.Unlock()

	close(t.done)

	if conn != nil {
		conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		return conn.Close()
	}
	return nil
}

// Frames returns decoded snapshot frames.
func (t *Tail) Frames() <-chan ReceivedFrame {
	return t.frames
}

// Errors returns terminal connection errors.
func (t *Tail) Errors() <-chan error {
	return t.errors
}

// IsConnected returns the current connection state.
func (t *Tail) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected
}

func (t *Tail) fail(err error) {
	select {
	case t.errors <- err:
	default:
	}
}

func (t *Tail) readLoop() {
	defer func() {
		t.mu.Lock()
		t.connected = false
		t.mu.Unlock()
	}()

	for {
		_, data, err := t.conn.ReadMessage()
		receivedAt := time.Now()

		if err != nil {
			select {
			case <-t.done:
			default:
				t.fail(err)
			}
			return
		}

		var f Frame
		if err := json.Unmarshal(data, &f); err != nil {
			t.logger.Warn("failed to decode frame", "error", err)
			continue
		}
		if f.Type != FrameSnapshot {
			t.logger.Debug("skipping frame", "type", f.Type)
			continue
		}

		select {
		case t.frames <- ReceivedFrame{Frame: f, ReceivedAt: receivedAt}:
		case <-t.done:
			return
		default:
			t.logger.Warn("frame buffer full, dropping frame", "symbol", f.Data.Symbol)
		}
	}
}

// heartbeatLoop pings the hub and watches for missing pongs.
func (t *Tail) heartbeatLoop() {
	ticker := time.NewTicker(t.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(time.Second)
			if err := t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.RLock()
			lastPong := t.lastPongAt
			t.mu.RUnlock()

			if time.Since(lastPong) > t.cfg.PongTimeout {
				t.logger.Warn("no pong received, connection stale",
					"last_pong", lastPong,
					"timeout", t.cfg.PongTimeout,
				)
				t.fail(ErrStaleConnection)
				return
			}
		}
	}
}
