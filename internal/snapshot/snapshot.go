// Package snapshot answers on-demand point-in-time queries for the watched
// symbol. Results are returned to the caller and never merged into the
// polling state.
package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/rickgao/quantpulse-monitor/internal/api"
	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// ErrNoSelection is returned when no symbol is being watched.
var ErrNoSelection = errors.New("no symbol selected")

// Selection reports the currently watched symbol.
type Selection interface {
	Watched() (string, bool)
}

// Backend fetches snapshots from the market-data service.
type Backend interface {
	GetSnapshot(ctx context.Context, symbol string, at time.Time) (*api.SnapshotResponse, error)
}

// Service runs snapshot queries.
type Service struct {
	backend   Backend
	selection Selection
	logger    *slog.Logger
}

// New creates a Service. selection may be nil, in which case only
// FetchSymbol is usable.
func New(backend Backend, selection Selection, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		backend:   backend,
		selection: selection,
		logger:    logger,
	}
}

// Fetch queries the watched symbol at the given time. A zero at requests the
// latest data.
func (s *Service) Fetch(ctx context.Context, at time.Time) (model.PointSnapshot, error) {
	if s.selection == nil {
		return model.PointSnapshot{}, ErrNoSelection
	}
	symbol, ok := s.selection.Watched()
	if !ok {
		return model.PointSnapshot{}, ErrNoSelection
	}
	return s.FetchSymbol(ctx, symbol, at)
}

// FetchSymbol queries an explicit symbol at the given time.
func (s *Service) FetchSymbol(ctx context.Context, symbol string, at time.Time) (model.PointSnapshot, error) {
	symbol = strings.TrimSpace(symbol)
	if symbol == "" {
		return model.PointSnapshot{}, ErrNoSelection
	}

	resp, err := s.backend.GetSnapshot(ctx, symbol, at)
	if err != nil {
		return model.PointSnapshot{}, err
	}

	snap := resp.ToModel()
	s.logger.Debug("snapshot fetched",
		"symbol", snap.Symbol,
		"at", at,
		"ltp", snap.LTP,
	)
	return snap, nil
}
