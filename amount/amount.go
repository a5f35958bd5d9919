// Package amount implements the fixed-point quantities used by the ledger,
// the reserve and the dividend pool.
//
// An Amount is an unsigned 256-bit count of base units. Both ledger units and
// the payment currency carry Decimals (18) fractional digits, so "1" unit is
// 10^18 base units. All arithmetic is checked.
package amount

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Decimals is the number of fractional digits of every Amount.
const Decimals = 18

// Size is the length of the fixed binary encoding.
const Size = 32

// Rounding selects the direction of integer division in MulDiv.
type Rounding uint8

const (
	// Floor rounds toward zero. Used for amounts paid out.
	Floor Rounding = iota
	// Ceil rounds away from zero. Used for amounts a caller must remit.
	Ceil
)

func (r Rounding) String() string {
	if r == Ceil {
		return "ceil"
	}
	return "floor"
}

// Amount is an unsigned fixed-point quantity with Decimals fractional digits.
// The zero value is zero.
type Amount struct {
	v uint256.Int
}

// Zero returns the zero amount.
func Zero() Amount { return Amount{} }

// FromBase returns an amount of n base units.
func FromBase(n uint64) Amount {
	var a Amount
	a.v.SetUint64(n)
	return a
}

// Units returns n whole units (n * 10^Decimals base units).
func Units(n uint64) Amount {
	var a Amount
	a.v.Mul(uint256.NewInt(n), pow10(Decimals))
	return a
}

// FromBig converts a non-negative big.Int of base units.
func FromBig(b *big.Int) (Amount, error) {
	if b.Sign() < 0 {
		return Amount{}, ErrNegative
	}
	u, overflow := uint256.FromBig(b)
	if overflow {
		return Amount{}, fmt.Errorf("%w: %s", ErrOverflow, b.String())
	}
	return Amount{v: *u}, nil
}

// FromBytes decodes the 32-byte big-endian encoding produced by Bytes.
func FromBytes(b []byte) (Amount, error) {
	if len(b) != Size {
		return Amount{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAmount, Size, len(b))
	}
	var a Amount
	a.v.SetBytes32(b)
	return a, nil
}

// ParseBase parses a decimal integer count of base units ("1500000000000000000").
func ParseBase(s string) (Amount, error) {
	u, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %w", ErrInvalidAmount, s, err)
	}
	return Amount{v: *u}, nil
}

// Parse parses a human-readable decimal quantity ("1000", "0.25") into base units.
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Sign() < 0 {
		return Amount{}, fmt.Errorf("%w: %q", ErrNegative, s)
	}
	scaled := d.Shift(Decimals)
	if !scaled.IsInteger() {
		return Amount{}, fmt.Errorf("%w: %q", ErrPrecision, s)
	}
	return FromBig(scaled.BigInt())
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// String formats the amount in whole units with trailing zeros trimmed.
func (a Amount) String() string {
	return decimal.NewFromBigInt(a.v.ToBig(), -Decimals).String()
}

// Float64 returns the amount in whole units as a float. For display and
// metrics only, never for arithmetic.
func (a Amount) Float64() float64 {
	return decimal.NewFromBigInt(a.v.ToBig(), -Decimals).InexactFloat64()
}

// Base formats the amount as a decimal count of base units.
func (a Amount) Base() string { return a.v.Dec() }

// Big returns the amount in base units as a new big.Int.
func (a Amount) Big() *big.Int { return a.v.ToBig() }

// Bytes returns the 32-byte big-endian encoding.
func (a Amount) Bytes() [Size]byte { return a.v.Bytes32() }

// IsZero reports whether the amount is zero.
func (a Amount) IsZero() bool { return a.v.IsZero() }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int { return a.v.Cmp(&b.v) }

// Lt reports whether a < b.
func (a Amount) Lt(b Amount) bool { return a.v.Lt(&b.v) }

// Eq reports whether a == b.
func (a Amount) Eq(b Amount) bool { return a.v.Eq(&b.v) }

// Add returns a + b or ErrOverflow.
func (a Amount) Add(b Amount) (Amount, error) {
	var r Amount
	if _, overflow := r.v.AddOverflow(&a.v, &b.v); overflow {
		return Amount{}, ErrOverflow
	}
	return r, nil
}

// Sub returns a - b or ErrUnderflow when b > a.
func (a Amount) Sub(b Amount) (Amount, error) {
	var r Amount
	if _, underflow := r.v.SubOverflow(&a.v, &b.v); underflow {
		return Amount{}, ErrUnderflow
	}
	return r, nil
}

// MulDiv returns a*y/d rounded as requested. The product is computed at 512
// bits so only the final quotient has to fit in 256 bits.
func (a Amount) MulDiv(y, d Amount, rounding Rounding) (Amount, error) {
	if d.IsZero() {
		return Amount{}, ErrDivisionByZero
	}
	var q Amount
	if _, overflow := q.v.MulDivOverflow(&a.v, &y.v, &d.v); overflow {
		return Amount{}, ErrOverflow
	}
	if rounding == Ceil {
		var rem uint256.Int
		if !rem.MulMod(&a.v, &y.v, &d.v).IsZero() {
			return q.Add(FromBase(1))
		}
	}
	return q, nil
}

// Scale converts a non-negative integer with the given number of fractional
// digits to an Amount with Decimals fractional digits. Scaling down from more
// than Decimals digits truncates.
func Scale(v uint64, decimals uint8) (Amount, error) {
	var a Amount
	a.v.SetUint64(v)
	switch {
	case decimals == Decimals:
		return a, nil
	case decimals < Decimals:
		if _, overflow := a.v.MulOverflow(&a.v, pow10(Decimals-decimals)); overflow {
			return Amount{}, ErrOverflow
		}
		return a, nil
	default:
		a.v.Div(&a.v, pow10(decimals-Decimals))
		return a, nil
	}
}

// Min returns the smaller of a and b.
func Min(a, b Amount) Amount {
	if a.Lt(b) {
		return a
	}
	return b
}

// Sum adds all amounts, failing with ErrOverflow.
func Sum(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, x := range amounts {
		var err error
		if total, err = total.Add(x); err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}

// MarshalText encodes the amount as a decimal count of base units so that
// JSON and YAML round-trips are exact.
func (a Amount) MarshalText() ([]byte, error) { return []byte(a.v.Dec()), nil }

// UnmarshalText decodes a decimal count of base units.
func (a *Amount) UnmarshalText(b []byte) error {
	parsed, err := ParseBase(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// MarshalBinary implements encoding.BinaryMarshaler (used by gob).
func (a Amount) MarshalBinary() ([]byte, error) {
	b := a.v.Bytes32()
	return b[:], nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (a *Amount) UnmarshalBinary(b []byte) error {
	parsed, err := FromBytes(b)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func pow10(n uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}
