package api

import (
	"context"
	"fmt"

	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// LoadInstruments registers instruments with the backend in one request.
func (c *Client) LoadInstruments(ctx context.Context, instruments []model.Instrument) (*LoadInstrumentsResponse, error) {
	var resp LoadInstrumentsResponse
	if err := c.post(ctx, "/instruments/load", instruments, &resp); err != nil {
		return nil, fmt.Errorf("load instruments: %w", err)
	}
	return &resp, nil
}

// ListInstruments fetches the instruments the backend has loaded.
func (c *Client) ListInstruments(ctx context.Context) (*ListInstrumentsResponse, error) {
	var resp ListInstrumentsResponse
	if err := c.get(ctx, "/instruments/list", nil, &resp); err != nil {
		return nil, fmt.Errorf("list instruments: %w", err)
	}
	return &resp, nil
}

// Subscribe starts feeds for the given symbols.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) (*SubscribeResponse, error) {
	var resp SubscribeResponse
	if err := c.post(ctx, "/subscribe", req, &resp); err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	return &resp, nil
}

// Unsubscribe stops the feed for a symbol.
func (c *Client) Unsubscribe(ctx context.Context, symbol string) (*MessageResponse, error) {
	var resp MessageResponse
	if err := c.post(ctx, symbolPath("/unsubscribe", symbol), nil, &resp); err != nil {
		return nil, fmt.Errorf("unsubscribe %s: %w", symbol, err)
	}
	return &resp, nil
}
