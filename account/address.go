// Package account defines the identifiers of ledger accounts.
//
// An Address is the 20-byte hash160 of a secp256k1 public key, the same value
// a P2PKH locking script commits to. Its text form is the base58check P2PKH
// address string.
package account

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/bsv-blockchain/go-sdk/script"
)

// Size is the length of an Address in bytes.
const Size = 20

// Address identifies a ledger account.
type Address [Size]byte

// Zero is the null address. It never holds a balance.
var Zero Address

// FromPublicKey returns the address controlled by pub.
func FromPublicKey(pub *ec.PublicKey) (Address, error) {
	if pub == nil {
		return Zero, ErrNilPublicKey
	}
	var a Address
	copy(a[:], pub.Hash())
	return a, nil
}

// FromLabel derives a deterministic address from a label. It is used for
// system accounts (reserve holding, treasury, dividend pool) that are not
// controlled by a key.
func FromLabel(label string) Address {
	sum := sha256.Sum256([]byte("digikoin/" + label))
	var a Address
	copy(a[:], sum[:Size])
	return a
}

// FromBytes copies a 20-byte slice into an Address.
func FromBytes(b []byte) (Address, error) {
	if len(b) != Size {
		return Zero, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidAddress, Size, len(b))
	}
	var a Address
	copy(a[:], b)
	return a, nil
}

// Parse accepts a base58 P2PKH address or a 40-character hex hash160.
func Parse(s string) (Address, error) {
	if len(s) == 2*Size {
		if raw, err := hex.DecodeString(s); err == nil {
			return FromBytes(raw)
		}
	}
	addr, err := script.NewAddressFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q: %w", ErrInvalidAddress, s, err)
	}
	return FromBytes([]byte(addr.PublicKeyHash))
}

// MustParse is like Parse but panics on error.
func MustParse(s string) Address {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// IsZero reports whether a is the null address.
func (a Address) IsZero() bool { return a == Zero }

// Hex returns the lowercase hex encoding of the hash160.
func (a Address) Hex() string { return hex.EncodeToString(a[:]) }

// String returns the mainnet P2PKH address string, or the hex form if the
// address cannot be encoded.
func (a Address) String() string {
	addr, err := script.NewAddressFromPublicKeyHash(a[:], true)
	if err != nil {
		return a.Hex()
	}
	return addr.AddressString
}

// Compare orders addresses bytewise.
func (a Address) Compare(b Address) int { return bytes.Compare(a[:], b[:]) }

// MarshalText implements encoding.TextMarshaler.
func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
