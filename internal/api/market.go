package api

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// GetPrice fetches the last traded price for a symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (*PriceResponse, error) {
	var resp PriceResponse
	if err := c.get(ctx, symbolPath("/price", symbol), nil, &resp); err != nil {
		return nil, fmt.Errorf("get price %s: %w", symbol, err)
	}
	return &resp, nil
}

// GetPnL fetches the unrealized P&L for a symbol.
func (c *Client) GetPnL(ctx context.Context, symbol string) (*PnLResponse, error) {
	var resp PnLResponse
	if err := c.get(ctx, symbolPath("/pnl", symbol), nil, &resp); err != nil {
		return nil, fmt.Errorf("get pnl %s: %w", symbol, err)
	}
	return &resp, nil
}

// GetIndicators fetches the indicator set for a symbol.
func (c *Client) GetIndicators(ctx context.Context, symbol string) (*IndicatorsResponse, error) {
	var resp IndicatorsResponse
	if err := c.get(ctx, symbolPath("/indicators", symbol), nil, &resp); err != nil {
		return nil, fmt.Errorf("get indicators %s: %w", symbol, err)
	}
	return &resp, nil
}

// GetSnapshot fetches a point-in-time snapshot. A zero at requests the latest.
func (c *Client) GetSnapshot(ctx context.Context, symbol string, at time.Time) (*SnapshotResponse, error) {
	var query url.Values
	if !at.IsZero() {
		query = url.Values{}
		query.Set("timestamp", strconv.FormatFloat(model.TimeToEpoch(at), 'f', -1, 64))
	}

	var resp SnapshotResponse
	if err := c.get(ctx, symbolPath("/snapshot", symbol), query, &resp); err != nil {
		return nil, fmt.Errorf("get snapshot %s: %w", symbol, err)
	}
	if resp.Symbol == "" {
		resp.Symbol = symbol
	}
	return &resp, nil
}
