// Package oracle supplies exchange-rate quotes for the reference currency
// and the ledger unit.
//
// Each configured pair is bound either to a feed reference, in which case
// the feed's latest answer is returned unmodified, or to nothing, in which
// case a fixed default quote is returned and marked as a fallback.
package oracle

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/telemetry"
)

// Pair names a quoted exchange rate, e.g. "ETH/USD".
type Pair string

// Pairs quoted by default. XAU/USD is quoted per ledger unit (one gram).
const (
	PairETHUSD Pair = "ETH/USD"
	PairXAUUSD Pair = "XAU/USD"
)

// DefaultDecimals is the fixed-point precision of quotes.
const DefaultDecimals uint8 = 8

// Default fallback rates at DefaultDecimals: 1 ETH = 2000 USD and
// 1 unit = 20 USD, so 1 ETH buys 100 units.
const (
	DefaultETHUSD int64 = 2000_00000000
	DefaultXAUUSD int64 = 20_00000000
)

// Quote is an exchange rate as Rate / 10^Decimals.
type Quote struct {
	Pair      Pair
	Rate      int64
	Decimals  uint8
	RoundID   uint64
	UpdatedAt time.Time
	Fallback  bool // true when the fixed default was returned
}

// Price returns the rate rescaled to amount.Decimals fractional digits.
func (q Quote) Price() (amount.Amount, error) {
	if q.Rate <= 0 {
		return amount.Zero(), fmt.Errorf("%w: %s %d", ErrInvalidRate, q.Pair, q.Rate)
	}
	return amount.Scale(uint64(q.Rate), q.Decimals)
}

// Source binds a pair to a feed reference and a default rate. An empty Ref
// means the default is always used.
type Source struct {
	Ref     string
	Default int64
}

// DefaultSources returns the default pairs, all unbound.
func DefaultSources() map[Pair]Source {
	return map[Pair]Source{
		PairETHUSD: {Default: DefaultETHUSD},
		PairXAUUSD: {Default: DefaultXAUUSD},
	}
}

// Oracle answers rate queries.
type Oracle struct {
	feed     Feed
	sources  map[Pair]Source
	decimals uint8
	maxAge   time.Duration
	now      func() time.Time
	log      zerolog.Logger
	metrics  *telemetry.Metrics
}

// Option configures an Oracle.
type Option func(*Oracle)

// WithSources replaces the configured pairs.
func WithSources(sources map[Pair]Source) Option {
	return func(o *Oracle) {
		o.sources = make(map[Pair]Source, len(sources))
		for p, s := range sources {
			o.sources[p] = s
		}
	}
}

// WithSource binds a single pair.
func WithSource(pair Pair, src Source) Option {
	return func(o *Oracle) { o.sources[pair] = src }
}

// WithDecimals sets the quote precision.
func WithDecimals(d uint8) Option {
	return func(o *Oracle) { o.decimals = d }
}

// WithMaxAge rejects feed answers older than d. Zero disables the check.
func WithMaxAge(d time.Duration) Option {
	return func(o *Oracle) { o.maxAge = d }
}

// WithClock sets the time source used for staleness checks.
func WithClock(now func() time.Time) Option {
	return func(o *Oracle) { o.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(o *Oracle) { o.log = log.With().Str("component", "oracle").Logger() }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(o *Oracle) { o.metrics = m }
}

// New creates an oracle over feed, which may be nil if no pair is bound to
// a feed reference.
func New(feed Feed, opts ...Option) *Oracle {
	o := &Oracle{
		feed:     feed,
		sources:  DefaultSources(),
		decimals: DefaultDecimals,
		now:      time.Now,
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Decimals returns the quote precision.
func (o *Oracle) Decimals() uint8 { return o.decimals }

// Pairs returns the configured pairs in lexical order.
func (o *Oracle) Pairs() []Pair {
	pairs := make([]Pair, 0, len(o.sources))
	for p := range o.sources {
		pairs = append(pairs, p)
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i] < pairs[j] })
	return pairs
}

// Rate returns the current quote for pair.
func (o *Oracle) Rate(ctx context.Context, pair Pair) (Quote, error) {
	src, ok := o.sources[pair]
	if !ok {
		return Quote{}, fmt.Errorf("%w: %s", ErrUnknownPair, pair)
	}

	if src.Ref == "" {
		q := Quote{Pair: pair, Rate: src.Default, Decimals: o.decimals, Fallback: true}
		var err error
		if q.Rate <= 0 {
			err = fmt.Errorf("%w: default for %s is %d", ErrInvalidRate, pair, q.Rate)
		}
		o.metrics.OracleRequest(string(pair), "default", err)
		return q, err
	}

	q, err := o.fromFeed(ctx, pair, src.Ref)
	o.metrics.OracleRequest(string(pair), "feed", err)
	if err != nil {
		o.log.Warn().Err(err).Str("pair", string(pair)).Str("ref", src.Ref).Msg("feed read failed")
		return Quote{}, err
	}
	o.log.Debug().Str("pair", string(pair)).Int64("rate", q.Rate).Uint64("round", q.RoundID).Msg("quote")
	return q, nil
}

func (o *Oracle) fromFeed(ctx context.Context, pair Pair, ref string) (Quote, error) {
	if o.feed == nil {
		return Quote{}, fmt.Errorf("%w: %s bound to %q", ErrNoFeed, pair, ref)
	}
	rd, err := o.feed.LatestRound(ctx, ref)
	if err != nil {
		return Quote{}, fmt.Errorf("oracle: %s: %w", pair, err)
	}
	if rd.Decimals != o.decimals {
		return Quote{}, fmt.Errorf("%w: %s reports %d, expected %d", ErrScaleMismatch, pair, rd.Decimals, o.decimals)
	}
	if rd.Answer <= 0 {
		return Quote{}, fmt.Errorf("%w: %s answered %d", ErrInvalidRate, pair, rd.Answer)
	}
	updated := time.Unix(rd.UpdatedAt, 0)
	if o.maxAge > 0 && o.now().Sub(updated) > o.maxAge {
		return Quote{}, fmt.Errorf("%w: %s updated %s", ErrStaleQuote, pair, updated.UTC().Format(time.RFC3339))
	}
	return Quote{
		Pair:      pair,
		Rate:      rd.Answer,
		Decimals:  rd.Decimals,
		RoundID:   rd.RoundID,
		UpdatedAt: updated,
	}, nil
}
