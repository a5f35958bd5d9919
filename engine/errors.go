package engine

import "errors"

var (
	// ErrInvalidConfig indicates a configuration rejected by config.ValidateConfig.
	ErrInvalidConfig = errors.New("engine: invalid configuration")

	// ErrClosed indicates use of a closed engine.
	ErrClosed = errors.New("engine: closed")
)
