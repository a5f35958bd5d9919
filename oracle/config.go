package oracle

import (
	"fmt"
	"time"
)

// FeedConfig holds the connection parameters of a JSON-RPC price feed.
type FeedConfig struct {
	URL      string `json:"url" yaml:"url"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
	Network  string `json:"network" yaml:"network"`

	RequestsPerSecond float64       `json:"rps,omitempty" yaml:"rps,omitempty"`
	Burst             int           `json:"burst,omitempty" yaml:"burst,omitempty"`
	TripFailures      uint32        `json:"trip_failures,omitempty" yaml:"trip_failures,omitempty"`
	BreakerTimeout    time.Duration `json:"breaker_timeout,omitempty" yaml:"breaker_timeout,omitempty"`
}

// Environment variables read by ResolveFeedConfig.
const (
	EnvFeedURL  = "DIGIKOIN_FEED_URL"
	EnvFeedUser = "DIGIKOIN_FEED_USER"
	EnvFeedPass = "DIGIKOIN_FEED_PASS"
)

// FeedPresets contains default feed endpoints for local networks.
// Mainnet has no preset and must be configured explicitly.
var FeedPresets = map[string]FeedConfig{
	"regtest": {URL: "http://localhost:8545"},
	"testnet": {URL: "http://localhost:8545"},
}

// ResolveFeedConfig merges feed configuration with decreasing priority:
//  1. CLI flags
//  2. Environment variables (DIGIKOIN_FEED_URL, DIGIKOIN_FEED_USER, DIGIKOIN_FEED_PASS)
//  3. Network presets
func ResolveFeedConfig(flags *FeedConfig, env map[string]string, network string) (*FeedConfig, error) {
	result := FeedConfig{Network: network}

	if preset, ok := FeedPresets[network]; ok {
		result = preset
		result.Network = network
	}

	if env != nil {
		if v := env[EnvFeedURL]; v != "" {
			result.URL = v
		}
		if v := env[EnvFeedUser]; v != "" {
			result.User = v
		}
		if v := env[EnvFeedPass]; v != "" {
			result.Password = v
		}
	}

	if flags != nil {
		if flags.URL != "" {
			result.URL = flags.URL
		}
		if flags.User != "" {
			result.User = flags.User
		}
		if flags.Password != "" {
			result.Password = flags.Password
		}
		if flags.RequestsPerSecond > 0 {
			result.RequestsPerSecond = flags.RequestsPerSecond
		}
		if flags.Burst > 0 {
			result.Burst = flags.Burst
		}
		if flags.TripFailures > 0 {
			result.TripFailures = flags.TripFailures
		}
		if flags.BreakerTimeout > 0 {
			result.BreakerTimeout = flags.BreakerTimeout
		}
	}

	if result.URL == "" {
		return nil, fmt.Errorf("oracle: %s requires an explicit feed URL (set feed.url or %s)", network, EnvFeedURL)
	}
	return &result, nil
}
