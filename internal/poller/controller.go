package poller

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// DefaultInterval is the refresh period while a symbol is watched.
const DefaultInterval = 1500 * time.Millisecond

// Errors
var (
	ErrNotStarted = errors.New("controller not started")
	ErrStopped    = errors.New("controller stopped")
)

// SnapshotHandler receives published snapshots.
// It is called with the controller's lock held: it must not block and must
// not call back into the Controller.
type SnapshotHandler interface {
	HandleSnapshot(snapshot model.RenderSnapshot)
}

// SnapshotHandlerFunc is a function adapter for SnapshotHandler.
type SnapshotHandlerFunc func(model.RenderSnapshot)

func (f SnapshotHandlerFunc) HandleSnapshot(s model.RenderSnapshot) {
	f(s)
}

// Handlers fans a snapshot out to several handlers in order. Nil entries are skipped.
func Handlers(hs ...SnapshotHandler) SnapshotHandler {
	return SnapshotHandlerFunc(func(s model.RenderSnapshot) {
		for _, h := range hs {
			if h != nil {
				h.HandleSnapshot(s)
			}
		}
	})
}

// Config holds controller configuration.
type Config struct {
	Interval time.Duration // Tick period (default: 1.5s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: DefaultInterval,
	}
}

// State is the controller's selection state.
type State int

const (
	StateIdle State = iota
	StateWatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	default:
		return "unknown"
	}
}

// Stats counts tick outcomes since the controller was created.
type Stats struct {
	Ticks     int64 // Ticks launched
	Published int64 // Snapshots handed to the handler
	Failed    int64 // Current-generation ticks that returned a PartialFetchError
	Discarded int64 // Results dropped as stale
}

// Settled reports whether every launched tick has resolved.
func (s Stats) Settled() bool {
	return s.Ticks == s.Published+s.Failed+s.Discarded
}

// cycle is the recurring timer of one generation.
type cycle struct {
	gen    uint64
	symbol string
	seq    atomic.Uint64
	cancel context.CancelFunc
	done   chan struct{}
}

// Controller owns the watched symbol and drives the refresh cycle.
type Controller struct {
	cfg     Config
	agg     *Aggregator
	handler SnapshotHandler
	logger  *slog.Logger

	// Fetches run on ctx; cancelling a cycle never reaches them.
	ctx    context.Context
	cancel context.CancelFunc
	ticks  sync.WaitGroup

	mu         sync.Mutex
	symbol     string
	generation uint64
	lastSeq    uint64
	latest     model.RenderSnapshot
	hasLatest  bool
	cycle      *cycle
	stopped    bool

	activeCycles atomic.Int32
	launched     atomic.Int64
	published    atomic.Int64
	failed       atomic.Int64
	discarded    atomic.Int64
}

// New creates a new Controller.
func New(cfg Config, fetcher Fetcher, handler SnapshotHandler, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	return &Controller{
		cfg:     cfg,
		agg:     NewAggregator(fetcher),
		handler: handler,
		logger:  logger,
	}
}

// Start binds the controller to ctx. Fetches use ctx; cancelling it aborts them.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.ctx == nil {
		c.ctx, c.cancel = context.WithCancel(ctx)
		c.logger.Info("polling controller started", "interval", c.cfg.Interval)
	}
	return nil
}

// Select watches symbol, replacing any current selection. The previous
// cycle's timer is stopped before Select returns; its in-flight fetches are
// left to finish and their results discarded. An empty symbol enters Idle.
func (c *Controller) Select(symbol string) error {
	symbol = strings.TrimSpace(symbol)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.stopped {
		return ErrStopped
	}
	if c.ctx == nil {
		return ErrNotStarted
	}

	prev := c.symbol
	c.stopCycleLocked()

	c.generation++
	c.symbol = symbol
	c.lastSeq = 0
	c.latest = model.RenderSnapshot{}
	c.hasLatest = false

	if symbol == "" {
		c.logger.Info("polling stopped", "previous", prev)
		return nil
	}

	c.startCycleLocked(symbol, c.generation)

	c.logger.Info("watching symbol",
		"symbol", symbol,
		"previous", prev,
		"generation", c.generation,
	)

	return nil
}

// Deselect stops polling and enters Idle.
func (c *Controller) Deselect() error {
	return c.Select("")
}

// Stop tears the controller down: the timer stops, in-flight fetches are
// cancelled, and Stop waits for them or for ctx.
func (c *Controller) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.stopped {
		c.stopped = true
		c.stopCycleLocked()
		c.generation++
		c.symbol = ""
	}
	cancel := c.cancel
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		c.ticks.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.logger.Info("polling controller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Watched returns the watched symbol, if any.
func (c *Controller) Watched() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.symbol, c.symbol != ""
}

// State returns Idle or Watching.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.symbol == "" {
		return StateIdle
	}
	return StateWatching
}

// Generation returns the current selection generation.
func (c *Controller) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Latest returns the most recent snapshot for the watched symbol.
func (c *Controller) Latest() (model.RenderSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.latest, c.hasLatest
}

// ActiveCycles returns the number of running timers (0 or 1).
func (c *Controller) ActiveCycles() int {
	return int(c.activeCycles.Load())
}

// Stats returns tick counters.
func (c *Controller) Stats() Stats {
	return Stats{
		Ticks:     c.launched.Load(),
		Published: c.published.Load(),
		Failed:    c.failed.Load(),
		Discarded: c.discarded.Load(),
	}
}

// startCycleLocked launches the timer goroutine for gen (caller must hold mu).
func (c *Controller) startCycleLocked(symbol string, gen uint64) {
	ctx, cancel := context.WithCancel(c.ctx)
	cyc := &cycle{
		gen:    gen,
		symbol: symbol,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	c.cycle = cyc

	c.activeCycles.Add(1)
	go c.run(ctx, cyc)
}

// stopCycleLocked cancels the active timer and waits for its goroutine to
// exit (caller must hold mu). The timer goroutine never takes mu.
func (c *Controller) stopCycleLocked() {
	if c.cycle == nil {
		return
	}
	c.cycle.cancel()
	<-c.cycle.done
	c.cycle = nil
}

// run is the timer loop of one cycle.
func (c *Controller) run(ctx context.Context, cyc *cycle) {
	defer close(cyc.done)
	defer c.activeCycles.Add(-1)

	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	// Tick immediately on selection.
	c.launchTick(cyc)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			c.launchTick(cyc)
		}
	}
}

// launchTick starts one tick without waiting for it, so a slow fetch never
// delays the timer.
func (c *Controller) launchTick(cyc *cycle) {
	seq := cyc.seq.Add(1)
	c.launched.Add(1)
	c.ticks.Add(1)

	go func() {
		defer c.ticks.Done()
		snap, err := c.agg.Tick(c.ctx, cyc.symbol)
		c.publish(cyc.gen, seq, cyc.symbol, snap, err)
	}()
}

// publish applies a tick result if it still belongs to the current
// generation and is newer than the last published tick.
func (c *Controller) publish(gen, seq uint64, symbol string, snap model.RenderSnapshot, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.generation {
		c.discarded.Add(1)
		c.logger.Debug("discarded stale tick",
			"symbol", symbol,
			"generation", gen,
			"current_generation", c.generation,
		)
		return
	}

	if err != nil {
		c.failed.Add(1)
		c.logger.Warn("tick failed", "symbol", symbol, "seq", seq, "err", err)
		return
	}

	if seq <= c.lastSeq {
		c.discarded.Add(1)
		c.logger.Debug("discarded out-of-order tick",
			"symbol", symbol,
			"seq", seq,
			"last_seq", c.lastSeq,
		)
		return
	}

	snap.Generation = gen
	c.lastSeq = seq
	c.latest = snap
	c.hasLatest = true
	c.published.Add(1)

	if c.handler != nil {
		c.handler.HandleSnapshot(snap)
	}
}
