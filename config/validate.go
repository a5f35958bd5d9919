// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import (
	"fmt"
	"net"
	"strings"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
)

// validLogLevels lists the accepted log level strings.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ValidateConfig checks that all configuration values are within acceptable
// ranges and returns the first error encountered, or nil if valid.
func ValidateConfig(cfg Config) error {
	if cfg.DataDir == "" {
		return ErrEmptyDataDir
	}

	if cfg.Network != "mainnet" && cfg.Network != "testnet" && cfg.Network != "regtest" {
		return ErrInvalidNetwork
	}

	if cfg.ListenAddr != "" {
		if err := validateAddr(cfg.ListenAddr); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidListenAddr, err)
		}
	}

	if !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		return ErrInvalidLogLevel
	}

	if cfg.OracleDecimals > amount.Decimals {
		return fmt.Errorf("%w: %d", ErrInvalidDecimals, cfg.OracleDecimals)
	}
	if cfg.OracleMaxAge < 0 {
		return ErrInvalidMaxAge
	}
	if cfg.Pricing != "oracle" && cfg.Pricing != "fixed" {
		return ErrInvalidPricing
	}

	supply, err := amount.Parse(cfg.GenesisSupply)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSupply, err)
	}
	if supply.IsZero() {
		return fmt.Errorf("%w: zero", ErrInvalidSupply)
	}

	for name, addr := range map[string]string{"reserve.address": cfg.ReserveAddress, "owner.address": cfg.OwnerAddress} {
		if addr == "" {
			continue
		}
		if _, err := account.Parse(addr); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidAddress, name, err)
		}
	}

	if cfg.OwnerPubKey != "" {
		pub, err := ec.PublicKeyFromString(cfg.OwnerPubKey)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPubKey, err)
		}
		if cfg.OwnerAddress != "" {
			owner, _ := account.Parse(cfg.OwnerAddress)
			if derived, _ := account.FromPublicKey(pub); derived != owner {
				return fmt.Errorf("%w: owner.address does not match owner.pubkey", ErrInvalidPubKey)
			}
		}
	}

	switch strings.ToLower(cfg.FundingPolicy) {
	case "owner", "open":
	default:
		return ErrInvalidPolicy
	}

	return nil
}

// validateAddr checks that addr is a valid host:port address.
func validateAddr(addr string) error {
	_, _, err := net.SplitHostPort(addr)
	return err
}
