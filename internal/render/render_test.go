package render

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rickgao/quantpulse-monitor/internal/model"
)

func TestValue(t *testing.T) {
	tests := []struct {
		name string
		in   model.Optional
		want string
	}{
		{"absent", model.None(), Unavailable},
		{"zero is a value", model.Some(0), "0.00"},
		{"rounds", model.Some(149.126), "149.13"},
		{"negative", model.Some(-1.5), "-1.50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Value(tt.in, Unavailable); got != tt.want {
				t.Errorf("Value() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	if got := Percent(model.Some(1.234), Unavailable); got != "1.23%" {
		t.Errorf("Percent() = %q, want 1.23%%", got)
	}
	if got := Percent(model.None(), NotReported); got != NotReported {
		t.Errorf("Percent(none) = %q, want %q", got, NotReported)
	}
}

func TestSigned(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{50, "+50.00"},
		{-12.5, "-12.50"},
		{0, "0.00"},
		{-0.001, "0.00"},
	}

	for _, tt := range tests {
		if got := Signed(tt.in); got != tt.want {
			t.Errorf("Signed(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRenderer_HandleSnapshot(t *testing.T) {
	var out strings.Builder
	r := New(&out, WithLocation(time.UTC))

	r.HandleSnapshot(model.RenderSnapshot{
		Symbol:       "AAPL",
		LTP:          155,
		Timestamp:    time.Unix(1700000000, 0),
		EntryPrice:   150,
		CurrentPrice: 155,
		Quantity:     10,
		PnL:          50,
		Indicators: model.IndicatorSet{
			EMA10: model.Some(0),
			ROC:   model.Some(3.333),
			VWAP:  model.Some(152.4),
		},
	})

	want := "[AAPL] LTP 155.00 @ 2023-11-14 22:13:20\n" +
		"  Entry 150.00  Current 155.00  Qty 10  P&L +50.00\n" +
		"  SMA20 --  EMA10 0.00  ROC 3.33%  Volatility --  VWAP 152.40\n"
	if out.String() != want {
		t.Errorf("output =\n%s\nwant\n%s", out.String(), want)
	}
}

func TestRenderer_Point(t *testing.T) {
	var out strings.Builder
	r := New(&out, WithLocation(time.UTC))

	r.Point(model.PointSnapshot{
		Symbol:     "MSFT",
		LTP:        310.5,
		Indicators: model.IndicatorSet{SMA20: model.Some(0)},
	})

	got := out.String()
	if !strings.Contains(got, "LTP 310.50 @ --") {
		t.Errorf("missing price line:\n%s", got)
	}
	if !strings.Contains(got, "SMA20 0.00  EMA10 N/A") {
		t.Errorf("zero indicator should render as a value:\n%s", got)
	}
}

func TestRenderer_Notice(t *testing.T) {
	var out strings.Builder
	r := New(&out)

	r.Notice("no symbol selected")
	r.Printf("watching %s", "AAPL")

	if want := "! no symbol selected\nwatching AAPL\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

// lineCounter records whether every write is a whole block.
type lineCounter struct {
	mu    sync.Mutex
	lines int
	torn  bool
}

func (w *lineCounter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines += strings.Count(string(p), "\n")
	if !strings.HasPrefix(string(p), "[") {
		w.torn = true
	}
	return len(p), nil
}

func TestRenderer_ConcurrentWrites(t *testing.T) {
	w := &lineCounter{}
	r := New(w)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r.HandleSnapshot(model.RenderSnapshot{Symbol: "AAPL"})
		}()
	}
	wg.Wait()

	if w.torn {
		t.Error("snapshot block was split across writes")
	}
	if w.lines != 60 {
		t.Errorf("lines = %d, want 60", w.lines)
	}
}

// gatedWriter holds every write until release is closed.
type gatedWriter struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once

	mu  sync.Mutex
	buf strings.Builder
}

func newGatedWriter() *gatedWriter {
	return &gatedWriter{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (w *gatedWriter) Write(p []byte) (int, error) {
	w.once.Do(func() { close(w.entered) })
	<-w.release
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *gatedWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func TestRenderer_QueueDoesNotBlockOnWriter(t *testing.T) {
	w := newGatedWriter()
	r := New(w, WithQueue(2))

	r.HandleSnapshot(model.RenderSnapshot{Symbol: "S0"})
	select {
	case <-w.entered:
	case <-time.After(time.Second):
		t.Fatal("background writer never reached the writer")
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for _, sym := range []string{"S1", "S2", "S3", "S4", "S5"} {
			r.HandleSnapshot(model.RenderSnapshot{Symbol: sym})
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("HandleSnapshot blocked on a stalled writer")
	}

	if got := r.Dropped(); got != 3 {
		t.Errorf("Dropped() = %d, want 3", got)
	}

	close(w.release)
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	out := w.String()
	for _, sym := range []string{"[S0]", "[S1]", "[S2]"} {
		if !strings.Contains(out, sym) {
			t.Errorf("output missing %s:\n%s", sym, out)
		}
	}
	if strings.Contains(out, "[S3]") {
		t.Errorf("dropped snapshot was rendered:\n%s", out)
	}
}

func TestRenderer_CloseFlushes(t *testing.T) {
	var out strings.Builder
	r := New(&out, WithQueue(8))

	r.Printf("watching %s", "AAPL")
	r.Notice("fetch failed")
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	r.Printf("bye")
	r.HandleSnapshot(model.RenderSnapshot{Symbol: "AAPL"})

	if want := "watching AAPL\n! fetch failed\nbye\n"; out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
	if got := r.Dropped(); got != 1 {
		t.Errorf("Dropped() = %d, want 1", got)
	}
}

func TestRenderer_CloseTimeout(t *testing.T) {
	w := newGatedWriter()
	defer close(w.release)
	r := New(w, WithQueue(1))

	r.Printf("stuck")
	<-w.entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := r.Close(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Close() = %v, want deadline exceeded", err)
	}
}

func TestRenderer_CloseWithoutQueue(t *testing.T) {
	r := New(&strings.Builder{})
	if err := r.Close(context.Background()); err != nil {
		t.Errorf("Close() = %v, want nil", err)
	}
}
