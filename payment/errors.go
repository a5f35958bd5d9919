package payment

import "errors"

var (
	// ErrInsufficientFunds indicates the payer holds less currency than the transfer.
	ErrInsufficientFunds = errors.New("payment: insufficient funds")

	// ErrZeroAddress indicates the null address as payer or payee.
	ErrZeroAddress = errors.New("payment: zero address")

	// ErrOverflow indicates a currency balance would exceed 256 bits.
	ErrOverflow = errors.New("payment: overflow")
)
