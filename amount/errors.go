package amount

import "errors"

var (
	// ErrOverflow indicates the result does not fit in 256 bits.
	ErrOverflow = errors.New("amount: overflow")

	// ErrUnderflow indicates a subtraction would go below zero.
	ErrUnderflow = errors.New("amount: underflow")

	// ErrDivisionByZero indicates a zero divisor in MulDiv.
	ErrDivisionByZero = errors.New("amount: division by zero")

	// ErrInvalidAmount indicates a string that is not a decimal number.
	ErrInvalidAmount = errors.New("amount: invalid amount")

	// ErrNegative indicates a negative value where only unsigned amounts are allowed.
	ErrNegative = errors.New("amount: negative amount")

	// ErrPrecision indicates more fractional digits than Decimals.
	ErrPrecision = errors.New("amount: too many fractional digits")
)
