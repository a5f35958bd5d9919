// Copyright (c) 2024 The BitFS developers
// Use of this source code is governed by the Open BSV License v5
// that can be found in the LICENSE file.

package config

import "errors"

var (
	// ErrInvalidNetwork indicates the network name is not recognized.
	ErrInvalidNetwork = errors.New("config: invalid network (must be \"mainnet\", \"testnet\", or \"regtest\")")

	// ErrInvalidListenAddr indicates the listen address is malformed.
	ErrInvalidListenAddr = errors.New("config: invalid listen address")

	// ErrInvalidLogLevel indicates the log level is not recognized.
	ErrInvalidLogLevel = errors.New("config: invalid log level (must be \"debug\", \"info\", \"warn\", or \"error\")")

	// ErrEmptyDataDir indicates the data directory path is empty.
	ErrEmptyDataDir = errors.New("config: data directory must not be empty")

	// ErrConfigNotFound indicates the configuration file does not exist.
	ErrConfigNotFound = errors.New("config: configuration file not found")

	// ErrInvalidConfigLine indicates a line in the config file is malformed.
	ErrInvalidConfigLine = errors.New("config: invalid configuration line")

	// ErrInvalidDecimals indicates oracle decimals above the ledger precision.
	ErrInvalidDecimals = errors.New("config: oracle decimals must be at most 18")

	// ErrInvalidMaxAge indicates a negative oracle maximum age.
	ErrInvalidMaxAge = errors.New("config: oracle max age must not be negative")

	// ErrInvalidPricing indicates an unknown pricing mode.
	ErrInvalidPricing = errors.New("config: invalid pricing (must be \"oracle\" or \"fixed\")")

	// ErrInvalidSupply indicates a genesis supply that is not a positive amount.
	ErrInvalidSupply = errors.New("config: invalid genesis supply")

	// ErrInvalidAddress indicates a malformed account address.
	ErrInvalidAddress = errors.New("config: invalid address")

	// ErrInvalidPubKey indicates an owner public key that does not parse or
	// does not match the owner address.
	ErrInvalidPubKey = errors.New("config: invalid owner public key")

	// ErrInvalidPolicy indicates an unknown funding policy.
	ErrInvalidPolicy = errors.New("config: invalid funding policy (must be \"owner\" or \"open\")")
)
