package dividend

import (
	"errors"

	"github.com/bitfsorg/digikoin-go/auth"
)

var (
	// ErrUnauthorized is auth.ErrUnauthorized.
	ErrUnauthorized = auth.ErrUnauthorized

	// ErrZeroAmount indicates a zero deposit.
	ErrZeroAmount = errors.New("dividend: zero amount")

	// ErrNoSuchRound indicates an unknown round id.
	ErrNoSuchRound = errors.New("dividend: no such round")

	// ErrAlreadyClaimed indicates the holder has a pending or paid claim on the round.
	ErrAlreadyClaimed = errors.New("dividend: already claimed")

	// ErrNothingToClaim indicates a zero entitlement.
	ErrNothingToClaim = errors.New("dividend: nothing to claim")

	// ErrNoCirculatingSupply indicates a deposit while every unit is in the reserve.
	ErrNoCirculatingSupply = errors.New("dividend: no circulating supply")

	// ErrPoolExhausted indicates claims would pay out more than the pool.
	ErrPoolExhausted = errors.New("dividend: pool exhausted")

	// ErrInvalidHoldings indicates holdings that sum to more than the circulating supply.
	ErrInvalidHoldings = errors.New("dividend: holdings exceed circulating supply")

	// ErrAllocationMismatch indicates an allocation that differs from the proportional one.
	ErrAllocationMismatch = errors.New("dividend: allocation mismatch")

	// ErrUnknownPolicy indicates an unrecognized funding policy name.
	ErrUnknownPolicy = errors.New("dividend: unknown funding policy")

	// ErrCorruptRecord indicates a persisted record has the wrong size.
	ErrCorruptRecord = errors.New("dividend: corrupt record")
)
