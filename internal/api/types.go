package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// LoadInstrumentsResponse from POST /instruments/load
type LoadInstrumentsResponse struct {
	Message string   `json:"message"`
	Symbols []string `json:"symbols"`
}

// ListInstrumentsResponse from GET /instruments/list
type ListInstrumentsResponse struct {
	Instruments map[string]LoadedInstrument `json:"instruments"`
}

// LoadedInstrument is the backend's record of a loaded instrument.
type LoadedInstrument struct {
	EntryPrice float64 `json:"entry_price"`
	Quantity   int     `json:"quantity"`
}

// SubscribeRequest is the body of POST /subscribe.
type SubscribeRequest struct {
	Symbols []string `json:"symbols"`
	Mode    string   `json:"mode"`
	CSVFile string   `json:"csv_file,omitempty"`
}

// SubscribeResponse from POST /subscribe
type SubscribeResponse struct {
	Results SubscribeResults `json:"results"`
}

// SubscribeResults is the per-symbol outcome of a subscribe call.
// The backend sends a list of result objects; an object keyed by symbol
// (status string or result object as value) is accepted as well.
type SubscribeResults []model.SubscribeResult

// UnmarshalJSON implements json.Unmarshaler.
func (r *SubscribeResults) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*r = nil
		return nil
	}

	switch trimmed[0] {
	case '[':
		var list []model.SubscribeResult
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		*r = list
		return nil
	case '{':
		var byKey map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &byKey); err != nil {
			return err
		}
		symbols := make([]string, 0, len(byKey))
		for sym := range byKey {
			symbols = append(symbols, sym)
		}
		sort.Strings(symbols)

		out := make([]model.SubscribeResult, 0, len(byKey))
		for _, sym := range symbols {
			res := model.SubscribeResult{Symbol: sym}
			var status string
			if err := json.Unmarshal(byKey[sym], &status); err == nil {
				res.Status = status
			} else if err := json.Unmarshal(byKey[sym], &res); err != nil {
				return fmt.Errorf("result for %s: %w", sym, err)
			}
			if res.Symbol == "" {
				res.Symbol = sym
			}
			out = append(out, res)
		}
		*r = out
		return nil
	default:
		return fmt.Errorf("unexpected results payload %q", trimmed)
	}
}

// BySymbol indexes the results by symbol. Later entries win.
func (r SubscribeResults) BySymbol() map[string]model.SubscribeResult {
	out := make(map[string]model.SubscribeResult, len(r))
	for _, res := range r {
		out[res.Symbol] = res
	}
	return out
}

// MessageResponse is a plain acknowledgement body.
type MessageResponse struct {
	Message string `json:"message"`
}

// PriceResponse from GET /price/{symbol}
type PriceResponse struct {
	Symbol    string  `json:"symbol"`
	LTP       float64 `json:"ltp"`
	Timestamp float64 `json:"timestamp"` // Epoch seconds
}

// PnLResponse from GET /pnl/{symbol}
type PnLResponse struct {
	Symbol       string  `json:"symbol"`
	PnL          float64 `json:"pnl"`
	EntryPrice   float64 `json:"entry_price"`
	CurrentPrice float64 `json:"current_price"`
	Quantity     int     `json:"quantity"`
}

// IndicatorsResponse from GET /indicators/{symbol}
type IndicatorsResponse struct {
	Symbol     string             `json:"symbol"`
	Indicators model.IndicatorSet `json:"indicators"`
}

// SnapshotResponse from GET /snapshot/{symbol}
type SnapshotResponse struct {
	Symbol     string             `json:"symbol"`
	LTP        float64            `json:"ltp"`
	Timestamp  float64            `json:"timestamp"` // Epoch seconds
	Indicators model.IndicatorSet `json:"indicators"`
}

// ToModel converts a SnapshotResponse to a model.PointSnapshot.
func (s *SnapshotResponse) ToModel() model.PointSnapshot {
	return model.PointSnapshot{
		Symbol:     s.Symbol,
		LTP:        s.LTP,
		Timestamp:  model.EpochToTime(s.Timestamp),
		Indicators: s.Indicators,
	}
}
