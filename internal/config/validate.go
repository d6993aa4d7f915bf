package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/rickgao/quantpulse-monitor/internal/model"
	"github.com/rickgao/quantpulse-monitor/internal/registry"
	"github.com/rickgao/quantpulse-monitor/internal/subscription"
)

// Validate checks that all required fields are set and values are valid.
func (c *MonitorConfig) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL, got %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return errors.New("api.timeout must be > 0")
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}

	if c.Stream.Enabled {
		if c.Stream.Addr == "" {
			return errors.New("stream.addr is required when stream is enabled")
		}
		if !strings.HasPrefix(c.Stream.Path, "/") || c.Stream.Path == "/health" {
			return fmt.Errorf("stream.path must start with / and not be /health, got %q", c.Stream.Path)
		}
		if c.Stream.ViewerBuffer < 1 {
			return errors.New("stream.viewer_buffer must be >= 1")
		}
	}

	if _, err := c.Log.SlogLevel(); err != nil {
		return err
	}

	for i, inst := range c.Instruments {
		if err := registry.Validate(inst.Model()); err != nil {
			return fmt.Errorf("instruments[%d]: %w", i, err)
		}
	}

	if len(c.Subscription.Symbols) > 0 {
		mode, err := subscription.ParseMode(c.Subscription.Mode)
		if err != nil {
			return fmt.Errorf("subscription.mode: %w", err)
		}
		if c.Subscription.CSVFile != "" && mode != subscription.ModeCSV {
			return fmt.Errorf("subscription.csv_file is only used in %s mode", subscription.ModeCSV)
		}
	}

	return nil
}

// Model converts the entry to a registry record.
func (i InstrumentConfig) Model() model.Instrument {
	return model.Instrument{
		Symbol:     strings.TrimSpace(i.Symbol),
		EntryPrice: i.EntryPrice,
		Quantity:   i.Quantity,
	}
}
