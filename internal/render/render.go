// Package render formats the render model as text.
//
// Prices and indicator values are shown with two decimals. An indicator the
// backend could not compute is shown as a placeholder, never as zero.
package render

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// Placeholders for unavailable values.
const (
	Unavailable = "--"
	NotReported = "N/A"
)

// TimeLayout is used for every rendered timestamp.
const TimeLayout = "2006-01-02 15:04:05"

// Price formats a number with two decimals.
func Price(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// Signed formats a number with two decimals and an explicit sign.
func Signed(v float64) string {
	d := decimal.NewFromFloat(v).Round(2)
	if d.IsPositive() {
		return "+" + d.StringFixed(2)
	}
	return d.StringFixed(2)
}

// Value formats an optional number, using placeholder when it is absent.
func Value(o model.Optional, placeholder string) string {
	v, ok := o.Get()
	if !ok {
		return placeholder
	}
	return Price(v)
}

// Percent is Value with a percent suffix.
func Percent(o model.Optional, placeholder string) string {
	if !o.Valid {
		return placeholder
	}
	return Value(o, placeholder) + "%"
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLocation sets the time zone timestamps are shown in.
func WithLocation(loc *time.Location) Option {
	return func(r *Renderer) {
		r.loc = loc
	}
}

// WithQueue moves writes onto a background goroutine fed by a buffer of
// size blocks. HandleSnapshot never blocks on the writer: when the buffer
// is full the snapshot is dropped and counted. Other writes wait for room.
// A queued Renderer must be closed with Close.
func WithQueue(size int) Option {
	return func(r *Renderer) {
		if size > 0 {
			r.queue = make(chan string, size)
		}
	}
}

// Renderer writes snapshots and notices to an io.Writer. It is safe for
// concurrent use; each write is emitted whole.
type Renderer struct {
	mu  sync.Mutex
	w   io.Writer
	loc *time.Location

	queue    chan string
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
	dropped  atomic.Uint64
}

// New creates a Renderer writing to w.
func New(w io.Writer, opts ...Option) *Renderer {
	r := &Renderer{
		w:   w,
		loc: time.Local,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.queue != nil {
		r.stop = make(chan struct{})
		r.done = make(chan struct{})
		go r.drain()
	}
	return r
}

// HandleSnapshot renders a polled snapshot.
func (r *Renderer) HandleSnapshot(s model.RenderSnapshot) {
	r.offer(r.FormatSnapshot(s))
}

// Point renders an on-demand snapshot.
func (r *Renderer) Point(p model.PointSnapshot) {
	r.write(r.FormatPoint(p))
}

// Notice renders a user-facing error or status message.
func (r *Renderer) Notice(msg string) {
	r.write("! " + msg + "\n")
}

// Printf writes a formatted line.
func (r *Renderer) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if !strings.HasSuffix(line, "\n") {
		line += "\n"
	}
	r.write(line)
}

// Dropped reports how many snapshots were discarded because the queue was
// full or already closed.
func (r *Renderer) Dropped() uint64 {
	return r.dropped.Load()
}

// Close flushes queued output and stops the background writer. Writes made
// after Close go straight to the writer. It is a no-op without WithQueue.
func (r *Renderer) Close(ctx context.Context) error {
	if r.queue == nil {
		return nil
	}
	r.stopOnce.Do(func() { close(r.stop) })
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// offer queues s without blocking.
func (r *Renderer) offer(s string) {
	if r.queue == nil {
		r.emit(s)
		return
	}
	select {
	case <-r.stop:
		r.dropped.Add(1)
		return
	default:
	}
	select {
	case r.queue <- s:
	default:
		r.dropped.Add(1)
	}
}

func (r *Renderer) write(s string) {
	if r.queue == nil {
		r.emit(s)
		return
	}
	select {
	case <-r.stop:
		r.emit(s)
		return
	default:
	}
	select {
	case r.queue <- s:
	case <-r.stop:
		r.emit(s)
	}
}

func (r *Renderer) drain() {
	defer close(r.done)
	for {
		select {
		case s := <-r.queue:
			r.emit(s)
		case <-r.stop:
			for {
				select {
				case s := <-r.queue:
					r.emit(s)
				default:
					return
				}
			}
		}
	}
}

func (r *Renderer) emit(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	io.WriteString(r.w, s)
}

// Timestamp formats t in the renderer's location.
func (r *Renderer) Timestamp(t time.Time) string {
	if t.IsZero() {
		return Unavailable
	}
	return t.In(r.loc).Format(TimeLayout)
}

// FormatSnapshot returns the text block for a polled snapshot.
func (r *Renderer) FormatSnapshot(s model.RenderSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] LTP %s @ %s\n", s.Symbol, Price(s.LTP), r.Timestamp(s.Timestamp))
	fmt.Fprintf(&b, "  Entry %s  Current %s  Qty %d  P&L %s\n",
		Price(s.EntryPrice), Price(s.CurrentPrice), s.Quantity, Signed(s.PnL))
	b.WriteString("  " + indicatorLine(s.Indicators, Unavailable) + "\n")
	return b.String()
}

// FormatPoint returns the text block for an on-demand snapshot.
func (r *Renderer) FormatPoint(p model.PointSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Snapshot %s\n", p.Symbol)
	fmt.Fprintf(&b, "  LTP %s @ %s\n", Price(p.LTP), r.Timestamp(p.Timestamp))
	b.WriteString("  " + indicatorLine(p.Indicators, NotReported) + "\n")
	return b.String()
}

func indicatorLine(ind model.IndicatorSet, placeholder string) string {
	return fmt.Sprintf("SMA20 %s  EMA10 %s  ROC %s  Volatility %s  VWAP %s",
		Value(ind.SMA20, placeholder),
		Value(ind.EMA10, placeholder),
		Percent(ind.ROC, placeholder),
		Value(ind.Volatility, placeholder),
		Value(ind.VWAP, placeholder),
	)
}
