// Package reserve converts reference currency into ledger units drawn from
// the reserve holding, and returns redeemed units to it.
package reserve

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/auth"
	"github.com/bitfsorg/digikoin-go/ledger"
	"github.com/bitfsorg/digikoin-go/oracle"
	"github.com/bitfsorg/digikoin-go/payment"
	"github.com/bitfsorg/digikoin-go/telemetry"
)

// Operation names used in logs and metrics.
const (
	OpHold   = "hold"
	OpBuy    = "buy"
	OpRedeem = "redeem"
)

// Quoter supplies exchange rates. *oracle.Oracle implements it.
type Quoter interface {
	Rate(ctx context.Context, pair oracle.Pair) (oracle.Quote, error)
}

// Ledger is the subset of the token ledger the manager needs.
type Ledger interface {
	BalanceOf(addr account.Address) (amount.Amount, error)
	Transfer(c auth.Capability, from, to account.Address, amt amount.Amount) (ledger.Receipt, error)
	Reserve() account.Address
	Circulating() (amount.Amount, error)
}

// Purchase is the outcome of a Hold or Buy.
type Purchase struct {
	Units   amount.Amount // units moved from the reserve to the caller
	Cost    amount.Amount // quoted currency cost, rounded up
	Paid    amount.Amount // currency actually collected
	Receipt ledger.Receipt
}

// Manager is the reserve manager.
type Manager struct {
	mu        sync.Mutex
	ledger    Ledger
	quoter    Quoter
	rail      payment.Rail
	treasury  account.Address
	custodian auth.Capability
	log       zerolog.Logger
	metrics   *telemetry.Metrics
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(m *Manager) { m.log = log.With().Str("component", "reserve").Logger() }
}

// WithMetrics sets the metrics sink.
func WithMetrics(mt *telemetry.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

// New creates a manager. A nil quoter prices one unit at one currency unit.
// Payments are collected into treasury; custodian must carry
// auth.RoleCustodian on the ledger's gate.
func New(l Ledger, q Quoter, rail payment.Rail, treasury account.Address, custodian auth.Capability, opts ...Option) *Manager {
	m := &Manager{
		ledger:    l,
		quoter:    q,
		rail:      rail,
		treasury:  treasury,
		custodian: custodian,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// prices returns the currency and unit prices rescaled to amount.Decimals.
func (m *Manager) prices(ctx context.Context) (cur, unit amount.Amount, err error) {
	curQ, err := m.quoter.Rate(ctx, oracle.PairETHUSD)
	if err != nil {
		return amount.Zero(), amount.Zero(), err
	}
	unitQ, err := m.quoter.Rate(ctx, oracle.PairXAUUSD)
	if err != nil {
		return amount.Zero(), amount.Zero(), err
	}
	if curQ.Decimals != unitQ.Decimals {
		return amount.Zero(), amount.Zero(), fmt.Errorf("%w: %s has %d, %s has %d",
			oracle.ErrScaleMismatch, curQ.Pair, curQ.Decimals, unitQ.Pair, unitQ.Decimals)
	}
	if cur, err = curQ.Price(); err != nil {
		return amount.Zero(), amount.Zero(), err
	}
	if unit, err = unitQ.Price(); err != nil {
		return amount.Zero(), amount.Zero(), err
	}
	return cur, unit, nil
}

// QuoteUnitsForCurrency returns how many units currency buys, rounded down.
func (m *Manager) QuoteUnitsForCurrency(ctx context.Context, currency amount.Amount) (amount.Amount, error) {
	if m.quoter == nil {
		return currency, nil
	}
	cur, unit, err := m.prices(ctx)
	if err != nil {
		return amount.Zero(), err
	}
	return currency.MulDiv(cur, unit, amount.Floor)
}

// QuoteCurrencyForUnits returns the currency value of units. Use Ceil for
// what a caller must remit and Floor for what is paid out.
func (m *Manager) QuoteCurrencyForUnits(ctx context.Context, units amount.Amount, rounding amount.Rounding) (amount.Amount, error) {
	if m.quoter == nil {
		return units, nil
	}
	cur, unit, err := m.prices(ctx)
	if err != nil {
		return amount.Zero(), err
	}
	return units.MulDiv(unit, cur, rounding)
}

// Hold moves units from the reserve to the caller against remitted
// currency, which must cover the quoted cost. Any excess is kept by the
// treasury.
func (m *Manager) Hold(ctx context.Context, c auth.Capability, units, remitted amount.Amount) (Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.hold(ctx, c, units, remitted)
	m.metrics.ReserveOp(OpHold, err)
	return p, err
}

// Buy spends currency on as many units as it buys at the current quote.
func (m *Manager) Buy(ctx context.Context, c auth.Capability, currency amount.Amount) (Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, err := m.buy(ctx, c, currency)
	m.metrics.ReserveOp(OpBuy, err)
	return p, err
}

func (m *Manager) buy(ctx context.Context, c auth.Capability, currency amount.Amount) (Purchase, error) {
	if currency.IsZero() {
		return Purchase{}, ErrZeroAmount
	}
	units, err := m.QuoteUnitsForCurrency(ctx, currency)
	if err != nil {
		return Purchase{}, err
	}
	if units.IsZero() {
		return Purchase{}, fmt.Errorf("%w: %s currency buys no units", ErrZeroAmount, currency)
	}
	return m.hold(ctx, c, units, currency)
}

func (m *Manager) hold(ctx context.Context, c auth.Capability, units, remitted amount.Amount) (Purchase, error) {
	if units.IsZero() {
		return Purchase{}, ErrZeroAmount
	}
	reserve := m.ledger.Reserve()
	if c.Caller == reserve {
		return Purchase{}, ErrReserveCaller
	}

	cost, err := m.QuoteCurrencyForUnits(ctx, units, amount.Ceil)
	if err != nil {
		return Purchase{}, err
	}
	if remitted.Lt(cost) {
		return Purchase{}, fmt.Errorf("%w: remitted %s, cost %s", ErrInsufficientPayment, remitted, cost)
	}
	available, err := m.ledger.BalanceOf(reserve)
	if err != nil {
		return Purchase{}, err
	}
	if available.Lt(units) {
		return Purchase{}, fmt.Errorf("%w: requested %s, reserve holds %s", ErrInsufficientReserve, units, available)
	}

	if err := m.rail.Transfer(ctx, c.Caller, m.treasury, remitted); err != nil {
		return Purchase{}, fmt.Errorf("reserve: collect payment: %w", err)
	}
	rcpt, err := m.ledger.Transfer(m.custodian, reserve, c.Caller, units)
	if err != nil {
		// Return the collected currency; the caller must not lose it.
		if rerr := m.rail.Transfer(context.WithoutCancel(ctx), m.treasury, c.Caller, remitted); rerr != nil {
			m.log.Error().Err(rerr).Stringer("account", c.Caller).Str("amount", remitted.String()).
				Msg("refund after failed hold")
			return Purchase{}, errors.Join(err, fmt.Errorf("reserve: refund: %w", rerr))
		}
		return Purchase{}, err
	}

	m.log.Info().Str("op", OpHold).Stringer("account", c.Caller).Str("units", units.String()).
		Str("cost", cost.String()).Str("paid", remitted.String()).Uint64("seq", rcpt.Sequence).Msg("held")
	return Purchase{Units: units, Cost: cost, Paid: remitted, Receipt: rcpt}, nil
}

// Redeem returns units from the caller to the reserve. No currency is paid back.
func (m *Manager) Redeem(ctx context.Context, c auth.Capability, units amount.Amount) (ledger.Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rcpt, err := m.redeem(ctx, c, units)
	m.metrics.ReserveOp(OpRedeem, err)
	return rcpt, err
}

func (m *Manager) redeem(ctx context.Context, c auth.Capability, units amount.Amount) (ledger.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return ledger.Receipt{}, err
	}
	if units.IsZero() {
		return ledger.Receipt{}, ErrZeroAmount
	}
	reserve := m.ledger.Reserve()
	if c.Caller == reserve {
		return ledger.Receipt{}, ErrReserveCaller
	}
	bal, err := m.ledger.BalanceOf(c.Caller)
	if err != nil {
		return ledger.Receipt{}, err
	}
	if bal.Lt(units) {
		return ledger.Receipt{}, fmt.Errorf("%w: holds %s, redeems %s", ErrInsufficientBalance, bal, units)
	}
	rcpt, err := m.ledger.Transfer(m.custodian, c.Caller, reserve, units)
	if err != nil {
		return ledger.Receipt{}, err
	}
	m.log.Info().Str("op", OpRedeem).Stringer("account", c.Caller).Str("units", units.String()).
		Uint64("seq", rcpt.Sequence).Msg("redeemed")
	return rcpt, nil
}

// ReserveBalance returns the units held by the reserve.
func (m *Manager) ReserveBalance() (amount.Amount, error) {
	return m.ledger.BalanceOf(m.ledger.Reserve())
}

// Circulating returns the units held outside the reserve.
func (m *Manager) Circulating() (amount.Amount, error) {
	return m.ledger.Circulating()
}

// Treasury returns the account collecting payments.
func (m *Manager) Treasury() account.Address { return m.treasury }
