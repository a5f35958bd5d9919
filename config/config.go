// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

// Package config loads and saves the engine configuration. Files are either
// the line-based "key = value" format or YAML, chosen by extension.
package config

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration.
type Config struct {
	DataDir    string `yaml:"datadir"`
	ListenAddr string `yaml:"listen"` // metrics endpoint; empty disables it
	Network    string `yaml:"network"`
	LogLevel   string `yaml:"loglevel"`
	LogFile    string `yaml:"logfile"`

	FeedURL        string        `yaml:"feed.url"`
	FeedETHUSD     string        `yaml:"feed.eth_usd"` // feed reference; empty uses the default rate
	FeedXAUUSD     string        `yaml:"feed.xau_usd"`
	OracleDecimals uint8         `yaml:"oracle.decimals"`
	OracleMaxAge   time.Duration `yaml:"oracle.max_age"`
	Pricing        string        `yaml:"pricing"` // "oracle" or "fixed"

	GenesisSupply  string `yaml:"genesis.supply"`  // whole units
	ReserveAddress string `yaml:"reserve.address"` // empty uses the derived reserve account
	OwnerAddress   string `yaml:"owner.address"`
	OwnerPubKey    string `yaml:"owner.pubkey"`   // hex; enables owner-signed role grants
	FundingPolicy  string `yaml:"funding.policy"` // "owner" or "open"
}

// DefaultDataDir returns ~/.digikoin.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".digikoin"
	}
	return filepath.Join(home, ".digikoin")
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		DataDir:        DefaultDataDir(),
		Network:        "regtest",
		LogLevel:       "info",
		OracleDecimals: 8,
		Pricing:        "oracle",
		GenesisSupply:  "10000",
		FundingPolicy:  "owner",
	}
}

// ConfigPath returns the key = value configuration file inside dataDir.
func ConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config")
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig reads path on top of DefaultConfig. Unknown keys are ignored.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return cfg, fmt.Errorf("config: read %s: %w", path, err)
	}

	if isYAML(path) {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("%w: %w", ErrInvalidConfigLine, err)
		}
		return cfg, nil
	}

	scanner := bufio.NewScanner(strings.NewReader(string(data)))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, err := parseKeyValue(line)
		if err != nil {
			return cfg, fmt.Errorf("%w: line %d: %q", ErrInvalidConfigLine, lineNo, line)
		}
		if err := cfg.set(key, value); err != nil {
			return cfg, fmt.Errorf("%w: line %d: %w", ErrInvalidConfigLine, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return cfg, fmt.Errorf("config: scan %s: %w", path, err)
	}
	return cfg, nil
}

// parseKeyValue splits "key = value" on the first '='.
func parseKeyValue(line string) (string, string, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return "", "", ErrInvalidConfigLine
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return "", "", ErrInvalidConfigLine
	}
	return key, strings.TrimSpace(value), nil
}

func (c *Config) set(key, value string) error {
	switch key {
	case "datadir":
		c.DataDir = value
	case "listen":
		c.ListenAddr = value
	case "network":
		c.Network = value
	case "loglevel":
		c.LogLevel = value
	case "logfile":
		c.LogFile = value
	case "feed.url":
		c.FeedURL = value
	case "feed.eth_usd":
		c.FeedETHUSD = value
	case "feed.xau_usd":
		c.FeedXAUUSD = value
	case "oracle.decimals":
		d, err := strconv.ParseUint(value, 10, 8)
		if err != nil {
			return fmt.Errorf("oracle.decimals: %w", err)
		}
		c.OracleDecimals = uint8(d)
	case "oracle.max_age":
		if value == "" {
			c.OracleMaxAge = 0
			return nil
		}
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("oracle.max_age: %w", err)
		}
		c.OracleMaxAge = d
	case "pricing":
		c.Pricing = value
	case "genesis.supply":
		c.GenesisSupply = value
	case "reserve.address":
		c.ReserveAddress = value
	case "owner.address":
		c.OwnerAddress = value
	case "owner.pubkey":
		c.OwnerPubKey = value
	case "funding.policy":
		c.FundingPolicy = value
	}
	return nil
}

// SaveConfig writes cfg to path, creating parent directories. The format
// follows the extension like LoadConfig.
func SaveConfig(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("config: create directory: %w", err)
	}

	var data []byte
	if isYAML(path) {
		out, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("config: encode yaml: %w", err)
		}
		data = append([]byte("# DigiKoin Configuration\n"), out...)
	} else {
		data = []byte(formatKeyValue(cfg))
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func formatKeyValue(cfg Config) string {
	var b strings.Builder
	b.WriteString("# DigiKoin Configuration\n\n")
	write := func(key, value string) { fmt.Fprintf(&b, "%s = %s\n", key, value) }

	write("datadir", cfg.DataDir)
	write("listen", cfg.ListenAddr)
	write("network", cfg.Network)
	write("loglevel", cfg.LogLevel)
	write("logfile", cfg.LogFile)
	b.WriteString("\n# Price oracle\n")
	write("feed.url", cfg.FeedURL)
	write("feed.eth_usd", cfg.FeedETHUSD)
	write("feed.xau_usd", cfg.FeedXAUUSD)
	write("oracle.decimals", strconv.FormatUint(uint64(cfg.OracleDecimals), 10))
	maxAge := ""
	if cfg.OracleMaxAge > 0 {
		maxAge = cfg.OracleMaxAge.String()
	}
	write("oracle.max_age", maxAge)
	write("pricing", cfg.Pricing)
	b.WriteString("\n# Ledger\n")
	write("genesis.supply", cfg.GenesisSupply)
	write("reserve.address", cfg.ReserveAddress)
	write("owner.address", cfg.OwnerAddress)
	write("owner.pubkey", cfg.OwnerPubKey)
	write("funding.policy", cfg.FundingPolicy)
	return b.String()
}
