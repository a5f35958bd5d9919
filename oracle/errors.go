package oracle

import "errors"

var (
	// ErrUnknownPair indicates a pair the oracle was not configured with.
	ErrUnknownPair = errors.New("oracle: unknown pair")

	// ErrScaleMismatch indicates a feed answer with different decimals than the oracle.
	ErrScaleMismatch = errors.New("oracle: decimals mismatch")

	// ErrStaleQuote indicates a feed answer older than the configured maximum age.
	ErrStaleQuote = errors.New("oracle: stale quote")

	// ErrInvalidRate indicates a non-positive rate.
	ErrInvalidRate = errors.New("oracle: invalid rate")

	// ErrNoFeed indicates a pair bound to a feed reference on an oracle without a feed.
	ErrNoFeed = errors.New("oracle: no feed configured")

	// ErrUnknownFeed indicates a feed reference the feed does not serve.
	ErrUnknownFeed = errors.New("oracle: unknown feed reference")

	// ErrConnectionFailed indicates the feed endpoint could not be reached.
	ErrConnectionFailed = errors.New("oracle: connection failed")

	// ErrInvalidResponse indicates a malformed or unexpected feed response.
	ErrInvalidResponse = errors.New("oracle: invalid response")

	// ErrFeedUnavailable indicates the feed circuit breaker is open.
	ErrFeedUnavailable = errors.New("oracle: feed unavailable")
)
