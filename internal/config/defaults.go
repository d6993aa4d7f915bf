package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultBaseURL          = "http://localhost:8000"
	DefaultAPITimeout       = 10 * time.Second
	DefaultPollInterval     = 1500 * time.Millisecond
	DefaultStreamAddr       = ":8090"
	DefaultStreamPath       = "/ws"
	DefaultViewerBuffer     = 16
	DefaultLogLevel         = "info"
	DefaultSubscriptionMode = "simulation"
)

func (c *MonitorConfig) applyDefaults() {
	// API defaults
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}

	// Stream defaults
	if c.Stream.Addr == "" {
		c.Stream.Addr = DefaultStreamAddr
	}
	if c.Stream.Path == "" {
		c.Stream.Path = DefaultStreamPath
	}
	if c.Stream.ViewerBuffer == 0 {
		c.Stream.ViewerBuffer = DefaultViewerBuffer
	}

	if c.Log.Level == "" {
		c.Log.Level = DefaultLogLevel
	}

	if c.Subscription.Mode == "" {
		c.Subscription.Mode = DefaultSubscriptionMode
	}
}
