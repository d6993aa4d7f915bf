package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// MonitorConfig is the root configuration for a monitor instance.
type MonitorConfig struct {
	API          APIConfig          `yaml:"api"`
	Poller       PollerConfig       `yaml:"poller"`
	Stream       StreamConfig       `yaml:"stream"`
	Log          LogConfig          `yaml:"log"`
	Instruments  []InstrumentConfig `yaml:"instruments"`
	Subscription SubscriptionConfig `yaml:"subscription"`
}

// APIConfig holds market-data backend settings.
type APIConfig struct {
	BaseURL string        `yaml:"base_url" split_words:"true"`
	Timeout time.Duration `yaml:"timeout" split_words:"true"`
}

// PollerConfig holds polling controller settings.
type PollerConfig struct {
	Interval time.Duration `yaml:"interval" split_words:"true"`
}

// StreamConfig holds render stream server settings.
type StreamConfig struct {
	Enabled      bool   `yaml:"enabled" split_words:"true"`
	Addr         string `yaml:"addr" split_words:"true"`
	Path         string `yaml:"path" split_words:"true"`
	ViewerBuffer int    `yaml:"viewer_buffer" split_words:"true"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `yaml:"level" split_words:"true"` // debug, info, warn, error
}

// InstrumentConfig is an instrument added to the registry at startup.
type InstrumentConfig struct {
	Symbol     string  `yaml:"symbol"`
	EntryPrice float64 `yaml:"entry_price"`
	Quantity   int     `yaml:"quantity"`
}

// SubscriptionConfig describes a subscribe call issued at startup.
// No call is made when Symbols is empty.
type SubscriptionConfig struct {
	Symbols []string `yaml:"symbols"`
	Mode    string   `yaml:"mode"`
	CSVFile string   `yaml:"csv_file"`
}

// SlogLevel parses the configured level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(l.Level))); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
