// Package subscription implements the one-shot registration and subscription
// calls. It reads instrument records but never mutates the registry.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rickgao/quantpulse-monitor/internal/api"
	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// Errors
var (
	ErrEmptyInput  = errors.New("empty input")
	ErrInvalidMode = errors.New("invalid feed mode")
)

// Mode is a feed source the backend can drive a subscription from.
type Mode string

// Feed modes.
const (
	ModeSimulation Mode = "simulation" // Live simulated ticks
	ModeCSV        Mode = "csv"        // File replay
)

// Modes lists the supported feed modes.
func Modes() []Mode {
	return []Mode{ModeSimulation, ModeCSV}
}

// ParseMode validates a user-entered mode name.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Modes() {
		if m == known {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w %q", ErrInvalidMode, s)
}

// Backend is the subset of the REST client used for subscriptions.
type Backend interface {
	LoadInstruments(ctx context.Context, instruments []model.Instrument) (*api.LoadInstrumentsResponse, error)
	ListInstruments(ctx context.Context) (*api.ListInstrumentsResponse, error)
	Subscribe(ctx context.Context, req api.SubscribeRequest) (*api.SubscribeResponse, error)
	Unsubscribe(ctx context.Context, symbol string) (*api.MessageResponse, error)
}

// Client performs registration and subscription requests.
type Client struct {
	backend Backend
	logger  *slog.Logger
}

// New creates a new subscription Client.
func New(backend Backend, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		backend: backend,
		logger:  logger,
	}
}

// RegisterInstruments sends all records in one request and returns the
// symbols the backend confirmed.
func (c *Client) RegisterInstruments(ctx context.Context, records []model.Instrument) ([]string, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("register instruments: %w", ErrEmptyInput)
	}

	resp, err := c.backend.LoadInstruments(ctx, records)
	if err != nil {
		return nil, err
	}

	c.logger.Info("instruments registered",
		"sent", len(records),
		"confirmed", len(resp.Symbols),
	)

	return resp.Symbols, nil
}

// Loaded returns the backend's view of loaded instruments.
func (c *Client) Loaded(ctx context.Context) (map[string]api.LoadedInstrument, error) {
	resp, err := c.backend.ListInstruments(ctx)
	if err != nil {
		return nil, err
	}
	return resp.Instruments, nil
}

// Subscribe starts feeds for the given symbols. csvFile is sent only in
// csv mode and only when non-empty.
func (c *Client) Subscribe(ctx context.Context, symbols []string, mode Mode, csvFile string) (api.SubscribeResults, error) {
	symbols = cleanSymbols(symbols)
	if len(symbols) == 0 {
		return nil, fmt.Errorf("subscribe: %w", ErrEmptyInput)
	}
	mode, err := ParseMode(string(mode))
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	req := api.SubscribeRequest{
		Symbols: symbols,
		Mode:    string(mode),
	}
	if mode == ModeCSV {
		req.CSVFile = strings.TrimSpace(csvFile)
	}

	resp, err := c.backend.Subscribe(ctx, req)
	if err != nil {
		return nil, err
	}

	var accepted int
	for _, res := range resp.Results {
		if res.Accepted() {
			accepted++
			continue
		}
		c.logger.Warn("subscription rejected",
			"symbol", res.Symbol,
			"status", res.Status,
			"message", res.Message,
		)
	}

	c.logger.Info("subscribe complete",
		"mode", mode,
		"requested", len(symbols),
		"accepted", accepted,
	)

	return resp.Results, nil
}

// Unsubscribe stops the backend feed for a symbol.
func (c *Client) Unsubscribe(ctx context.Context, symbol string) (string, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return "", fmt.Errorf("unsubscribe: %w", ErrEmptyInput)
	}

	resp, err := c.backend.Unsubscribe(ctx, symbol)
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// ParseSymbols splits comma-separated input into trimmed, non-empty symbols.
func ParseSymbols(text string) []string {
	return cleanSymbols(strings.Split(text, ","))
}

func cleanSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
