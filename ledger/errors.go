package ledger

import (
	"errors"

	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/auth"
)

var (
	// ErrUnauthorized is auth.ErrUnauthorized, re-exported for callers that
	// only import the ledger.
	ErrUnauthorized = auth.ErrUnauthorized

	// ErrInsufficientBalance indicates the debited account holds less than the amount.
	ErrInsufficientBalance = errors.New("ledger: insufficient balance")

	// ErrOverflow indicates a balance or the total supply would exceed 256 bits.
	ErrOverflow = amount.ErrOverflow

	// ErrZeroAmount indicates a zero amount for a mint, burn or transfer.
	ErrZeroAmount = errors.New("ledger: zero amount")

	// ErrZeroAddress indicates the null address as a party to an operation.
	ErrZeroAddress = errors.New("ledger: zero address")

	// ErrConservationViolation indicates the balances do not sum to the total supply.
	ErrConservationViolation = errors.New("ledger: balances do not sum to total supply")

	// ErrCorruptRecord indicates a persisted record has the wrong size.
	ErrCorruptRecord = errors.New("ledger: corrupt record")
)
