package model

import (
	"encoding/json"
	"testing"
	"time"
)

func TestOptional_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantValid bool
		wantValue float64
	}{
		{"null", `null`, false, 0},
		{"zero", `0`, true, 0},
		{"negative", `-1.25`, true, -1.25},
		{"positive", `101.5`, true, 101.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var o Optional
			if err := json.Unmarshal([]byte(tt.input), &o); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}
			if o.Valid != tt.wantValid {
				t.Errorf("Valid = %v, want %v", o.Valid, tt.wantValid)
			}
			if o.Value != tt.wantValue {
				t.Errorf("Value = %v, want %v", o.Value, tt.wantValue)
			}
		})
	}
}

func TestOptional_RejectsNonNumber(t *testing.T) {
	var o Optional
	if err := json.Unmarshal([]byte(`"abc"`), &o); err == nil {
		t.Error("expected error for string input")
	}
}

func TestIndicatorSet_MissingAndNullFields(t *testing.T) {
	body := `{"sma_20": null, "ema_10": 0, "roc": 1.5}`

	var ind IndicatorSet
	if err := json.Unmarshal([]byte(body), &ind); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	if ind.SMA20.Valid {
		t.Error("SMA20 should be absent for null")
	}
	if v, ok := ind.EMA10.Get(); !ok || v != 0 {
		t.Errorf("EMA10 = (%v, %v), want (0, true)", v, ok)
	}
	if v, ok := ind.ROC.Get(); !ok || v != 1.5 {
		t.Errorf("ROC = (%v, %v), want (1.5, true)", v, ok)
	}
	if ind.Volatility.Valid || ind.VWAP.Valid {
		t.Error("missing fields should be absent")
	}
}

func TestOptional_MarshalJSON(t *testing.T) {
	ind := IndicatorSet{EMA10: Some(0), ROC: Some(2.5)}

	data, err := json.Marshal(ind)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	want := `{"sma_20":null,"ema_10":0,"roc":2.5,"volatility":null,"vwap":null}`
	if string(data) != want {
		t.Errorf("Marshal = %s, want %s", data, want)
	}
}

func TestSubscribeResult_Accepted(t *testing.T) {
	tests := []struct {
		status string
		want   bool
	}{
		{StatusSubscribed, true},
		{StatusAlreadySubscribed, true},
		{StatusError, false},
		{"", false},
	}

	for _, tt := range tests {
		r := SubscribeResult{Symbol: "AAPL", Status: tt.status}
		if got := r.Accepted(); got != tt.want {
			t.Errorf("Accepted(%q) = %v, want %v", tt.status, got, tt.want)
		}
	}
}

func TestEpochConversion(t *testing.T) {
	if !EpochToTime(0).IsZero() {
		t.Error("EpochToTime(0) should be the zero time")
	}

	got := EpochToTime(1700000000.5)
	want := time.Unix(1700000000, 500000000)
	if !got.Equal(want) {
		t.Errorf("EpochToTime = %v, want %v", got, want)
	}

	if sec := TimeToEpoch(time.Unix(1700000000, 0)); sec != 1700000000 {
		t.Errorf("TimeToEpoch = %v, want 1700000000", sec)
	}
}
