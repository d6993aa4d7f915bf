package poller

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/quantpulse-monitor/internal/api"
	"github.com/rickgao/quantpulse-monitor/internal/model"
)

// Fetcher provides the three per-tick data views.
type Fetcher interface {
	GetPrice(ctx context.Context, symbol string) (*api.PriceResponse, error)
	GetPnL(ctx context.Context, symbol string) (*api.PnLResponse, error)
	GetIndicators(ctx context.Context, symbol string) (*api.IndicatorsResponse, error)
}

// PartialFetchError reports a tick where at least one of the three fetches
// failed. Nil fields succeeded.
type PartialFetchError struct {
	Symbol     string
	Price      error
	PnL        error
	Indicators error
}

func (e *PartialFetchError) Error() string {
	var parts []string
	if e.Price != nil {
		parts = append(parts, "price: "+e.Price.Error())
	}
	if e.PnL != nil {
		parts = append(parts, "pnl: "+e.PnL.Error())
	}
	if e.Indicators != nil {
		parts = append(parts, "indicators: "+e.Indicators.Error())
	}
	return fmt.Sprintf("partial fetch for %s: %s", e.Symbol, strings.Join(parts, "; "))
}

func (e *PartialFetchError) Unwrap() []error {
	var errs []error
	for _, err := range []error{e.Price, e.PnL, e.Indicators} {
		if err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// Failed lists the names of the views that failed.
func (e *PartialFetchError) Failed() []string {
	var names []string
	if e.Price != nil {
		names = append(names, "price")
	}
	if e.PnL != nil {
		names = append(names, "pnl")
	}
	if e.Indicators != nil {
		names = append(names, "indicators")
	}
	return names
}

// IsPartialFetch reports whether err wraps a *PartialFetchError.
func IsPartialFetch(err error) bool {
	var pe *PartialFetchError
	return errors.As(err, &pe)
}

// Aggregator joins the three data views for one symbol into a snapshot.
type Aggregator struct {
	fetcher Fetcher
	now     func() time.Time
}

// NewAggregator creates an Aggregator over the given Fetcher.
func NewAggregator(fetcher Fetcher) *Aggregator {
	return &Aggregator{
		fetcher: fetcher,
		now:     time.Now,
	}
}

// Tick fetches price, P&L and indicators concurrently and waits for all
// three. The snapshot is returned only if every fetch succeeded.
func (a *Aggregator) Tick(ctx context.Context, symbol string) (model.RenderSnapshot, error) {
	var (
		price *api.PriceResponse
		pnl   *api.PnLResponse
		ind   *api.IndicatorsResponse
		perr  = PartialFetchError{Symbol: symbol}
	)

	// Plain Group: one failure must not cancel the others.
	var g errgroup.Group

	g.Go(func() error {
		resp, err := a.fetcher.GetPrice(ctx, symbol)
		if err != nil {
			perr.Price = err
			return err
		}
		price = resp
		return nil
	})
	g.Go(func() error {
		resp, err := a.fetcher.GetPnL(ctx, symbol)
		if err != nil {
			perr.PnL = err
			return err
		}
		pnl = resp
		return nil
	})
	g.Go(func() error {
		resp, err := a.fetcher.GetIndicators(ctx, symbol)
		if err != nil {
			perr.Indicators = err
			return err
		}
		ind = resp
		return nil
	})

	if err := g.Wait(); err != nil {
		return model.RenderSnapshot{}, &perr
	}

	return model.RenderSnapshot{
		Symbol:       symbol,
		LTP:          price.LTP,
		Timestamp:    model.EpochToTime(price.Timestamp),
		EntryPrice:   pnl.EntryPrice,
		CurrentPrice: pnl.CurrentPrice,
		Quantity:     pnl.Quantity,
		PnL:          pnl.PnL,
		Indicators:   ind.Indicators,
		FetchedAt:    a.now(),
	}, nil
}
