package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/rickgao/quantpulse-monitor/internal/api"
	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// newTestBackend returns a fake market-data backend and a request counter.
func newTestBackend(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()

	var requests atomic.Int32
	mux := http.NewServeMux()

	mux.HandleFunc("/instruments/load", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var body []model.Instrument
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		symbols := make([]string, 0, len(body))
		for _, inst := range body {
			symbols = append(symbols, inst.Symbol)
		}
		json.NewEncoder(w).Encode(map[string]any{"symbols": symbols})
	})

	mux.HandleFunc("/instruments/list", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"instruments": {"AAPL": {"entry_price": 150.0, "quantity": 10}}}`))
	})

	mux.HandleFunc("/subscribe", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		var req api.SubscribeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusUnprocessableEntity)
			return
		}
		results := make([]model.SubscribeResult, 0, len(req.Symbols))
		for _, sym := range req.Symbols {
			if sym == "AAPL" {
				results = append(results, model.SubscribeResult{Symbol: sym, Status: model.StatusSubscribed, Mode: req.Mode + "|" + req.CSVFile})
			} else {
				results = append(results, model.SubscribeResult{Symbol: sym, Status: model.StatusError, Message: "Instrument not loaded"})
			}
		}
		json.NewEncoder(w).Encode(map[string]any{"results": results})
	})

	mux.HandleFunc("/unsubscribe/", func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"message": "Unsubscribed"}`))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &requests
}

func TestRegisterInstruments(t *testing.T) {
	server, requests := newTestBackend(t)
	c := New(api.NewClient(server.URL), nil)

	t.Run("empty input never reaches network", func(t *testing.T) {
		_, err := c.RegisterInstruments(context.Background(), nil)
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("err = %v, want ErrEmptyInput", err)
		}
		if requests.Load() != 0 {
			t.Errorf("requests = %d, want 0", requests.Load())
		}
	})

	t.Run("returns confirmed symbols", func(t *testing.T) {
		symbols, err := c.RegisterInstruments(context.Background(), []model.Instrument{
			{Symbol: "AAPL", EntryPrice: 150, Quantity: 10},
			{Symbol: "AAPL", EntryPrice: 160, Quantity: 1},
		})
		if err != nil {
			t.Fatalf("RegisterInstruments failed: %v", err)
		}
		if len(symbols) != 2 || symbols[0] != "AAPL" {
			t.Errorf("symbols = %v, want [AAPL AAPL]", symbols)
		}
	})
}

func TestRegisterInstruments_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	c := New(api.NewClient(url), nil)
	_, err := c.RegisterInstruments(context.Background(), []model.Instrument{{Symbol: "AAPL", EntryPrice: 1, Quantity: 1}})
	if !api.IsNetworkError(err) {
		t.Errorf("err = %v, want network error", err)
	}
}

func TestSubscribe(t *testing.T) {
	server, requests := newTestBackend(t)
	c := New(api.NewClient(server.URL), nil)
	ctx := context.Background()

	t.Run("empty symbols", func(t *testing.T) {
		_, err := c.Subscribe(ctx, []string{" ", ""}, ModeSimulation, "")
		if !errors.Is(err, ErrEmptyInput) {
			t.Fatalf("err = %v, want ErrEmptyInput", err)
		}
		if requests.Load() != 0 {
			t.Errorf("requests = %d, want 0", requests.Load())
		}
	})

	t.Run("invalid mode", func(t *testing.T) {
		_, err := c.Subscribe(ctx, []string{"AAPL"}, Mode("websocket"), "")
		if !errors.Is(err, ErrInvalidMode) {
			t.Fatalf("err = %v, want ErrInvalidMode", err)
		}
	})

	t.Run("per-symbol results", func(t *testing.T) {
		results, err := c.Subscribe(ctx, []string{"AAPL", "MSFT"}, ModeSimulation, "ignored.csv")
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		by := results.BySymbol()
		if !by["AAPL"].Accepted() {
			t.Error("AAPL should be accepted")
		}
		if by["AAPL"].Mode != "simulation|" {
			t.Errorf("csv file must not be sent outside csv mode, got %q", by["AAPL"].Mode)
		}
		if by["MSFT"].Accepted() {
			t.Error("MSFT should be rejected")
		}
	})

	t.Run("csv mode sends file", func(t *testing.T) {
		results, err := c.Subscribe(ctx, []string{"AAPL"}, ModeCSV, " data/ticks.csv ")
		if err != nil {
			t.Fatalf("Subscribe failed: %v", err)
		}
		if got := results.BySymbol()["AAPL"].Mode; got != "csv|data/ticks.csv" {
			t.Errorf("Mode = %q, want %q", got, "csv|data/ticks.csv")
		}
	})
}

func TestSubscribe_ServerErrorIsWholesale(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(api.NewClient(server.URL), nil)
	results, err := c.Subscribe(context.Background(), []string{"AAPL", "MSFT"}, ModeSimulation, "")
	if !api.IsServerError(err) {
		t.Fatalf("err = %v, want server error", err)
	}
	if results != nil {
		t.Errorf("results = %v, want nil", results)
	}
}

func TestUnsubscribeAndLoaded(t *testing.T) {
	server, _ := newTestBackend(t)
	c := New(api.NewClient(server.URL), nil)
	ctx := context.Background()

	if _, err := c.Unsubscribe(ctx, ""); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("Unsubscribe(\"\") err = %v, want ErrEmptyInput", err)
	}

	msg, err := c.Unsubscribe(ctx, "AAPL")
	if err != nil {
		t.Fatalf("Unsubscribe failed: %v", err)
	}
	if msg != "Unsubscribed" {
		t.Errorf("msg = %q", msg)
	}

	loaded, err := c.Loaded(ctx)
	if err != nil {
		t.Fatalf("Loaded failed: %v", err)
	}
	if loaded["AAPL"].Quantity != 10 {
		t.Errorf("loaded = %+v", loaded)
	}
}

func TestParseMode(t *testing.T) {
	for _, s := range []string{"simulation", "CSV", " csv "} {
		if _, err := ParseMode(s); err != nil {
			t.Errorf("ParseMode(%q) failed: %v", s, err)
		}
	}
	if _, err := ParseMode("live"); !errors.Is(err, ErrInvalidMode) {
		t.Errorf("ParseMode(live) err = %v, want ErrInvalidMode", err)
	}
}

func TestParseSymbols(t *testing.T) {
	got := ParseSymbols(" AAPL, MSFT ,,GOOGL ")
	want := []string{"AAPL", "MSFT", "GOOGL"}
	if len(got) != len(want) {
		t.Fatalf("ParseSymbols = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ParseSymbols[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}
