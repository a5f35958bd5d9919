package auth

import "errors"

var (
	// ErrUnauthorized indicates the caller lacks the required role.
	ErrUnauthorized = errors.New("auth: unauthorized")

	// ErrNilKey indicates a nil signing or verification key.
	ErrNilKey = errors.New("auth: nil key")

	// ErrUnknownRole indicates a role name that does not parse.
	ErrUnknownRole = errors.New("auth: unknown role")

	// ErrMalformedGrant indicates grant text that does not decode.
	ErrMalformedGrant = errors.New("auth: malformed grant")
)
