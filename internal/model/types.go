package model

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// -----------------------------------------------------------------------------
// Registry Types
// -----------------------------------------------------------------------------

// Instrument is a tracked security with its entry price and quantity for P&L.
type Instrument struct {
	Symbol     string  `json:"symbol"`      // Trimmed, non-empty
	EntryPrice float64 `json:"entry_price"` // Positive, finite
	Quantity   int     `json:"quantity"`    // Positive
}

// -----------------------------------------------------------------------------
// Optional Values
// -----------------------------------------------------------------------------

// Optional is a number that may be absent. The zero value is absent.
type Optional struct {
	Value float64
	Valid bool
}

// Some returns a present Optional holding v.
func Some(v float64) Optional {
	return Optional{Value: v, Valid: true}
}

// None returns an absent Optional.
func None() Optional {
	return Optional{}
}

// Get returns the value and whether it is present.
func (o Optional) Get() (float64, bool) {
	return o.Value, o.Valid
}

// UnmarshalJSON decodes null as absent and any number, including 0, as present.
func (o *Optional) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*o = Optional{}
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = Some(v)
	return nil
}

// MarshalJSON encodes an absent value as null.
func (o Optional) MarshalJSON() ([]byte, error) {
	if !o.Valid || math.IsNaN(o.Value) || math.IsInf(o.Value, 0) {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatFloat(o.Value, 'f', -1, 64)), nil
}

// IndicatorSet holds the backend-computed technical indicators for a symbol.
type IndicatorSet struct {
	SMA20      Optional `json:"sma_20"`
	EMA10      Optional `json:"ema_10"`
	ROC        Optional `json:"roc"` // Percent
	Volatility Optional `json:"volatility"`
	VWAP       Optional `json:"vwap"`
}

// -----------------------------------------------------------------------------
// Render Types
// -----------------------------------------------------------------------------

// RenderSnapshot is the complete display state for one successful tick.
// It is replaced as a whole; fields from different ticks are never mixed.
type RenderSnapshot struct {
	Symbol       string       `json:"symbol"`
	LTP          float64      `json:"ltp"`
	Timestamp    time.Time    `json:"timestamp"` // Backend time of the last trade
	EntryPrice   float64      `json:"entry_price"`
	CurrentPrice float64      `json:"current_price"`
	Quantity     int          `json:"quantity"`
	PnL          float64      `json:"pnl"`
	Indicators   IndicatorSet `json:"indicators"`
	Generation   uint64       `json:"generation"` // Selection generation that produced it
	FetchedAt    time.Time    `json:"fetched_at"` // Local time the tick settled
}

// PointSnapshot is an on-demand, point-in-time view of a symbol.
type PointSnapshot struct {
	Symbol     string       `json:"symbol"`
	LTP        float64      `json:"ltp"`
	Timestamp  time.Time    `json:"timestamp"`
	Indicators IndicatorSet `json:"indicators"`
}

// -----------------------------------------------------------------------------
// Subscription Types
// -----------------------------------------------------------------------------

// Subscription statuses reported by the backend.
const (
	StatusSubscribed        = "subscribed"
	StatusAlreadySubscribed = "already_subscribed"
	StatusError             = "error"
)

// SubscribeResult is the backend's verdict for one symbol of a subscribe call.
type SubscribeResult struct {
	Symbol  string `json:"symbol"`
	Status  string `json:"status"`
	Mode    string `json:"mode,omitempty"`
	Message string `json:"message,omitempty"`
}

// Accepted reports whether the symbol is now subscribed.
func (r SubscribeResult) Accepted() bool {
	return r.Status == StatusSubscribed || r.Status == StatusAlreadySubscribed
}

// EpochToTime converts fractional epoch seconds to a time.Time.
// Zero yields the zero time.
func EpochToTime(sec float64) time.Time {
	if sec == 0 || math.IsNaN(sec) || math.IsInf(sec, 0) {
		return time.Time{}
	}
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}

// TimeToEpoch converts a time.Time to fractional epoch seconds.
func TimeToEpoch(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
