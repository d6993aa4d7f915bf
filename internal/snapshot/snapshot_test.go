package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rickgao/quantpulse-monitor/internal/api"
)

type fixedSelection struct {
	symbol string
}

func (f fixedSelection) Watched() (string, bool) {
	return f.symbol, f.symbol != ""
}

func TestService_Fetch_NoSelection(t *testing.T) {
	var requests int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer server.Close()

	tests := []struct {
		name      string
		selection Selection
	}{
		{"nil selection", nil},
		{"idle", fixedSelection{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := New(api.NewClient(server.URL), tt.selection, nil)
			_, err := svc.Fetch(context.Background(), time.Time{})
			if !errors.Is(err, ErrNoSelection) {
				t.Errorf("err = %v, want ErrNoSelection", err)
			}
		})
	}

	if requests != 0 {
		t.Errorf("requests = %d, want 0", requests)
	}
}

func TestService_Fetch_Latest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/snapshot/AAPL" {
			t.Errorf("path = %s, want /snapshot/AAPL", r.URL.Path)
		}
		if r.URL.RawQuery != "" {
			t.Errorf("query = %q, want empty", r.URL.RawQuery)
		}
		w.Write([]byte(`{"symbol": "AAPL", "ltp": 150.25, "timestamp": 1700000000.5, "indicators": {"sma_20": 149.1, "ema_10": null, "roc": null, "volatility": null, "vwap": null}}`))
	}))
	defer server.Close()

	svc := New(api.NewClient(server.URL), fixedSelection{"AAPL"}, nil)
	snap, err := svc.Fetch(context.Background(), time.Time{})
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}

	if snap.Symbol != "AAPL" || snap.LTP != 150.25 {
		t.Errorf("snap = %+v", snap)
	}
	if want := time.Unix(1700000000, 500000000); !snap.Timestamp.Equal(want) {
		t.Errorf("Timestamp = %v, want %v", snap.Timestamp, want)
	}
	if v, ok := snap.Indicators.SMA20.Get(); !ok || v != 149.1 {
		t.Errorf("SMA20 = (%v, %v)", v, ok)
	}
	if snap.Indicators.EMA10.Valid {
		t.Error("EMA10 should be unavailable")
	}
}

func TestService_Fetch_AtTime(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("timestamp"); got != "1700000000" {
			t.Errorf("timestamp = %q, want 1700000000", got)
		}
		w.Write([]byte(`{"symbol": "MSFT", "ltp": 310, "timestamp": 1700000000, "indicators": {}}`))
	}))
	defer server.Close()

	svc := New(api.NewClient(server.URL), fixedSelection{"MSFT"}, nil)
	snap, err := svc.Fetch(context.Background(), time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if snap.LTP != 310 {
		t.Errorf("LTP = %v, want 310", snap.LTP)
	}
}

func TestService_FetchSymbol_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"detail": "No data for symbol"}`))
	}))
	defer server.Close()

	svc := New(api.NewClient(server.URL), nil, nil)
	_, err := svc.FetchSymbol(context.Background(), "ZZZZ", time.Time{})

	var serr *api.ServerError
	if !errors.As(err, &serr) {
		t.Fatalf("expected *api.ServerError, got %v", err)
	}
	if !serr.IsNotFound() {
		t.Errorf("StatusCode = %d, want 404", serr.StatusCode)
	}
}
