package account

import "errors"

var (
	// ErrInvalidAddress indicates a string that is neither a P2PKH address nor 40 hex characters.
	ErrInvalidAddress = errors.New("account: invalid address")

	// ErrNilPublicKey indicates a nil public key.
	ErrNilPublicKey = errors.New("account: nil public key")
)
