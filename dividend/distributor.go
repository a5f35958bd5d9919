// Package dividend distributes pooled currency to unit holders in
// proportion to their balances at a pinned snapshot sequence.
//
// Each deposit opens a round. A holder's entitlement in a round is
// floor(pool * balance at snapshot / circulating supply at snapshot), so
// units acquired after the deposit earn nothing from it. Each holder can
// claim a round at most once; the claim is recorded before the payment is
// made.
package dividend

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/auth"
	"github.com/bitfsorg/digikoin-go/ledger"
	"github.com/bitfsorg/digikoin-go/payment"
	"github.com/bitfsorg/digikoin-go/telemetry"
)

// Ledger is the subset of the token ledger the distributor reads.
type Ledger interface {
	BalanceAt(addr account.Address, seq uint64) (amount.Amount, error)
	Circulating() (amount.Amount, error)
	HoldersAt(seq uint64) ([]ledger.Holding, error)
	Pin(record func(ledger.Snapshot) error) (ledger.Snapshot, error)
	Reserve() account.Address
}

// FundingPolicy decides who may fund a round.
type FundingPolicy uint8

const (
	// FundingOwnerOnly requires auth.RoleDistributor.
	FundingOwnerOnly FundingPolicy = iota
	// FundingOpen accepts deposits from anyone.
	FundingOpen
)

func (p FundingPolicy) String() string {
	switch p {
	case FundingOwnerOnly:
		return "owner"
	case FundingOpen:
		return "open"
	default:
		return fmt.Sprintf("policy(%d)", uint8(p))
	}
}

// ParseFundingPolicy parses "owner" or "open".
func ParseFundingPolicy(s string) (FundingPolicy, error) {
	switch strings.ToLower(s) {
	case "", "owner":
		return FundingOwnerOnly, nil
	case "open":
		return FundingOpen, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

// Distributor is the dividend distributor.
type Distributor struct {
	mu      sync.Mutex
	ledger  Ledger
	store   Store
	rail    payment.Rail
	pool    account.Address
	gate    auth.Gate
	policy  FundingPolicy
	now     func() time.Time
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Distributor.
type Option func(*Distributor)

// WithFundingPolicy sets who may fund rounds. The default is FundingOwnerOnly.
func WithFundingPolicy(p FundingPolicy) Option {
	return func(d *Distributor) { d.policy = p }
}

// WithClock sets the time source for round creation times.
func WithClock(now func() time.Time) Option {
	return func(d *Distributor) { d.now = now }
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(d *Distributor) { d.log = log.With().Str("component", "dividend").Logger() }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(d *Distributor) { d.metrics = m }
}

// New creates a distributor. Deposits are held by pool and claims are paid
// from it through rail.
func New(l Ledger, store Store, rail payment.Rail, pool account.Address, gate auth.Gate, opts ...Option) *Distributor {
	d := &Distributor{
		ledger: l,
		store:  store,
		rail:   rail,
		pool:   pool,
		gate:   gate,
		now:    time.Now,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Pool returns the account holding deposited currency.
func (d *Distributor) Pool() account.Address { return d.pool }

// Policy returns the funding policy.
func (d *Distributor) Policy() FundingPolicy { return d.policy }

// Distribute collects currency from the caller and opens a round pinned at
// a new sequence.
//
// The distributor lock is not held while the deposit is collected, so a
// rail may call back into the distributor. The round is persisted before
// the ledger commits the pinned sequence; if either step fails the deposit
// is refunded and no round exists.
func (d *Distributor) Distribute(ctx context.Context, c auth.Capability, currency amount.Amount) (Round, error) {
	r, err := d.distribute(ctx, c, currency)
	if err != nil {
		d.log.Warn().Err(err).Stringer("funder", c.Caller).Str("amount", currency.String()).Msg("distribute failed")
		return Round{}, err
	}
	d.metrics.RoundOpened(r.Pool)
	d.log.Info().Uint64("round", r.ID).Stringer("funder", r.Funder).Str("pool", r.Pool.String()).
		Uint64("seq", r.SnapshotSequence).Str("circulating", r.CirculatingSupply.String()).Msg("round opened")
	return r, nil
}

func (d *Distributor) distribute(ctx context.Context, c auth.Capability, currency amount.Amount) (Round, error) {
	if currency.IsZero() {
		return Round{}, ErrZeroAmount
	}
	if d.policy == FundingOwnerOnly {
		if err := d.gate.Authorize(c, auth.RoleDistributor); err != nil {
			return Round{}, err
		}
	}
	circ, err := d.ledger.Circulating()
	if err != nil {
		return Round{}, err
	}
	if circ.IsZero() {
		return Round{}, ErrNoCirculatingSupply
	}

	if err := d.rail.Transfer(ctx, c.Caller, d.pool, currency); err != nil {
		return Round{}, fmt.Errorf("dividend: collect deposit: %w", err)
	}

	r, err := d.open(c.Caller, currency)
	if err != nil {
		if rerr := d.rail.Transfer(context.WithoutCancel(ctx), d.pool, c.Caller, currency); rerr != nil {
			d.log.Error().Err(rerr).Stringer("funder", c.Caller).Str("amount", currency.String()).
				Msg("refund after failed deposit")
			return Round{}, errors.Join(err, fmt.Errorf("dividend: refund: %w", rerr))
		}
		return Round{}, err
	}
	return r, nil
}

// open pins the snapshot and persists the round before the ledger commits
// the pinned sequence. A round saved ahead of a failed ledger commit is
// removed again.
func (d *Distributor) open(funder account.Address, pool amount.Amount) (Round, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	var (
		r     Round
		saved bool
	)
	_, err := d.ledger.Pin(func(snap ledger.Snapshot) error {
		if snap.Circulating.IsZero() {
			return ErrNoCirculatingSupply
		}
		id, err := d.store.NextRoundID()
		if err != nil {
			return err
		}
		r = Round{
			ID:                id,
			Pool:              pool,
			SnapshotSequence:  snap.Receipt.Sequence,
			CirculatingSupply: snap.Circulating,
			Funder:            funder,
			CreatedAt:         d.now().UTC(),
		}
		if err := d.store.PutRound(r); err != nil {
			return fmt.Errorf("dividend: save round: %w", err)
		}
		saved = true
		return nil
	})
	if err != nil {
		if saved {
			if derr := d.store.DeleteRound(r.ID); derr != nil {
				d.log.Error().Err(derr).Uint64("round", r.ID).Msg("remove round after failed pin")
				return Round{}, errors.Join(err, fmt.Errorf("dividend: remove round %d: %w", r.ID, derr))
			}
		}
		return Round{}, err
	}
	return r, nil
}

// Claim pays the caller's entitlement in round id.
//
// The claim is recorded as pending and the lock released before the
// payment, so a payee that calls back into the distributor sees the
// pending record and cannot claim twice. A failed payment removes the
// record again.
func (d *Distributor) Claim(ctx context.Context, c auth.Capability, id uint64) (amount.Amount, error) {
	paid, err := d.claim(ctx, c, id)
	d.metrics.Claim(paid, err)
	return paid, err
}

func (d *Distributor) claim(ctx context.Context, c auth.Capability, id uint64) (amount.Amount, error) {
	cl, err := d.reserveClaim(c.Caller, id)
	if err != nil {
		return amount.Zero(), err
	}

	if err := d.rail.Transfer(ctx, d.pool, c.Caller, cl.Amount); err != nil {
		if rerr := d.rollbackClaim(cl); rerr != nil {
			d.log.Error().Err(rerr).Uint64("round", id).Stringer("holder", c.Caller).Msg("claim rollback")
			return amount.Zero(), errors.Join(err, rerr)
		}
		d.log.Warn().Err(err).Uint64("round", id).Stringer("holder", c.Caller).Msg("claim payment failed")
		return amount.Zero(), fmt.Errorf("dividend: pay claim: %w", err)
	}

	if err := d.finalizeClaim(cl); err != nil {
		// The payment went out; the pending record still blocks a second claim
		// and is listed by PendingClaims.
		d.log.Error().Err(err).Uint64("round", id).Stringer("holder", c.Caller).
			Str("amount", cl.Amount.String()).Str("status", ClaimPending.String()).
			Msg("claim paid but not finalized")
		return cl.Amount, nil
	}
	d.log.Info().Uint64("round", id).Stringer("holder", c.Caller).Str("amount", cl.Amount.String()).Msg("claimed")
	return cl.Amount, nil
}

func (d *Distributor) reserveClaim(holder account.Address, id uint64) (Claim, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.round(id)
	if err != nil {
		return Claim{}, err
	}
	if _, ok, err := d.store.Claim(id, holder); err != nil {
		return Claim{}, err
	} else if ok {
		return Claim{}, fmt.Errorf("%w: round %d", ErrAlreadyClaimed, id)
	}

	ent, err := d.entitlement(r, holder)
	if err != nil {
		return Claim{}, err
	}
	if ent.IsZero() {
		return Claim{}, fmt.Errorf("%w: round %d", ErrNothingToClaim, id)
	}

	paid, err := r.Paid.Add(ent)
	if err != nil || r.Pool.Lt(paid) {
		return Claim{}, fmt.Errorf("%w: round %d", ErrPoolExhausted, id)
	}
	r.Paid = paid
	r.Claims++

	cl := Claim{RoundID: id, Holder: holder, Status: ClaimPending, Amount: ent}
	if err := d.store.SaveClaim(r, cl); err != nil {
		return Claim{}, fmt.Errorf("dividend: save claim: %w", err)
	}
	return cl, nil
}

func (d *Distributor) rollbackClaim(cl Claim) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.round(cl.RoundID)
	if err != nil {
		return err
	}
	if r.Paid, err = r.Paid.Sub(cl.Amount); err != nil {
		return fmt.Errorf("%w: rollback below zero", ErrPoolExhausted)
	}
	r.Claims--
	return d.store.DeleteClaim(r, cl.Holder)
}

func (d *Distributor) finalizeClaim(cl Claim) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.round(cl.RoundID)
	if err != nil {
		return err
	}
	cl.Status = ClaimPaid
	return d.store.SaveClaim(r, cl)
}

// ClaimAll claims every round in which the caller has an unclaimed, non-zero
// entitlement. It stops at the first failure, returning what was paid so far.
func (d *Distributor) ClaimAll(ctx context.Context, c auth.Capability) ([]Payout, error) {
	rounds, err := d.Rounds()
	if err != nil {
		return nil, err
	}
	var payouts []Payout
	for _, r := range rounds {
		paid, err := d.Claim(ctx, c, r.ID)
		switch {
		case errors.Is(err, ErrAlreadyClaimed), errors.Is(err, ErrNothingToClaim):
			continue
		case err != nil:
			return payouts, err
		}
		payouts = append(payouts, Payout{RoundID: r.ID, Amount: paid})
	}
	if len(payouts) == 0 {
		return nil, ErrNothingToClaim
	}
	return payouts, nil
}

// round loads round id. Callers hold d.mu.
func (d *Distributor) round(id uint64) (Round, error) {
	r, ok, err := d.store.Round(id)
	if err != nil {
		return Round{}, err
	}
	if !ok {
		return Round{}, fmt.Errorf("%w: %d", ErrNoSuchRound, id)
	}
	return r, nil
}

// entitlement computes the share of holder in r. The reserve holding is
// never entitled.
func (d *Distributor) entitlement(r Round, holder account.Address) (amount.Amount, error) {
	if holder == d.ledger.Reserve() {
		return amount.Zero(), nil
	}
	bal, err := d.ledger.BalanceAt(holder, r.SnapshotSequence)
	if err != nil {
		return amount.Zero(), err
	}
	return Entitlement(r.Pool, bal, r.CirculatingSupply)
}

// Round returns round id.
func (d *Distributor) Round(id uint64) (Round, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.round(id)
}

// Rounds returns all rounds in id order.
func (d *Distributor) Rounds() ([]Round, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.Rounds()
}

// Entitlement returns what holder is entitled to in round id, whether or
// not it has been claimed.
func (d *Distributor) Entitlement(id uint64, holder account.Address) (amount.Amount, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.round(id)
	if err != nil {
		return amount.Zero(), err
	}
	return d.entitlement(r, holder)
}

// ClaimState returns the state of holder's claim on round id.
func (d *Distributor) ClaimState(id uint64, holder account.Address) (ClaimStatus, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, err := d.round(id); err != nil {
		return ClaimNone, err
	}
	cl, ok, err := d.store.Claim(id, holder)
	if err != nil || !ok {
		return ClaimNone, err
	}
	return cl.Status, nil
}

// Unclaimed returns the part of round id's pool not yet paid out.
func (d *Distributor) Unclaimed(id uint64) (amount.Amount, error) {
	r, err := d.Round(id)
	if err != nil {
		return amount.Zero(), err
	}
	return r.Unclaimed(), nil
}

// HolderAllocation is one holder's line in a round's allocation.
type HolderAllocation struct {
	Allocation
	Balance amount.Amount // balance at the round's snapshot
	Status  ClaimStatus
}

// Allocation returns every holder's entitlement in round id, computed from
// the balances at the round's snapshot and checked against the pool. The
// reserve holding is left out. Dust is the part of the pool no holder is
// entitled to.
func (d *Distributor) Allocation(id uint64) (lines []HolderAllocation, dust amount.Amount, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	r, err := d.round(id)
	if err != nil {
		return nil, amount.Zero(), err
	}
	holdings, err := d.ledger.HoldersAt(r.SnapshotSequence)
	if err != nil {
		return nil, amount.Zero(), err
	}
	shares := make([]Share, 0, len(holdings))
	for _, h := range holdings {
		if h.Account == d.ledger.Reserve() {
			continue
		}
		shares = append(shares, Share{Holder: h.Account, Balance: h.Balance})
	}

	allocs, err := Allocate(r.Pool, shares, r.CirculatingSupply)
	if err != nil {
		return nil, amount.Zero(), err
	}
	if err := ValidateAllocation(allocs, shares, r.Pool, r.CirculatingSupply); err != nil {
		return nil, amount.Zero(), err
	}

	total := amount.Zero()
	lines = make([]HolderAllocation, len(allocs))
	for i, a := range allocs {
		if total, err = total.Add(a.Amount); err != nil {
			return nil, amount.Zero(), err
		}
		cl, ok, err := d.store.Claim(id, a.Holder)
		if err != nil {
			return nil, amount.Zero(), err
		}
		lines[i] = HolderAllocation{Allocation: a, Balance: shares[i].Balance}
		if ok {
			lines[i].Status = cl.Status
		}
	}
	if dust, err = r.Pool.Sub(total); err != nil {
		return nil, amount.Zero(), fmt.Errorf("%w: allocated %s of %s", ErrPoolExhausted, total, r.Pool)
	}
	return lines, dust, nil
}

// PendingClaims returns claims recorded but not confirmed as paid. A claim
// stays pending if the process stopped between recording it and finalizing
// it; its payment may or may not have been made.
func (d *Distributor) PendingClaims() ([]Claim, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.store.PendingClaims()
}
