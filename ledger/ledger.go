// Package ledger implements the token ledger: balances, total supply and a
// per-account checkpoint history that answers "what did this account hold
// at sequence S".
//
// Every mutating operation advances the ledger sequence by exactly one and
// commits its balances, checkpoints, supply and sequence as one batch.
package ledger

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/auth"
	"github.com/bitfsorg/digikoin-go/telemetry"
)

// Operation names used in receipts, logs and metrics.
const (
	OpMint     = "mint"
	OpBurn     = "burn"
	OpTransfer = "transfer"
	OpAdvance  = "advance"
)

// Ledger is the token ledger.
type Ledger struct {
	mu      sync.Mutex
	store   Store
	gate    auth.Gate
	reserve account.Address
	log     zerolog.Logger
	metrics *telemetry.Metrics
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(l *Ledger) { l.log = log.With().Str("component", "ledger").Logger() }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(l *Ledger) { l.metrics = m }
}

// New creates a ledger over store. reserve is the reserve holding account.
func New(store Store, gate auth.Gate, reserve account.Address, opts ...Option) *Ledger {
	l := &Ledger{
		store:   store,
		gate:    gate,
		reserve: reserve,
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Mint creates amt units in to. Requires RoleMinter.
func (l *Ledger) Mint(c auth.Capability, to account.Address, amt amount.Amount) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rcpt, err := l.mint(c, to, amt)
	l.metrics.LedgerOp(OpMint, err)
	return rcpt, err
}

func (l *Ledger) mint(c auth.Capability, to account.Address, amt amount.Amount) (Receipt, error) {
	if to.IsZero() {
		return Receipt{}, fmt.Errorf("%w: mint recipient", ErrZeroAddress)
	}
	if amt.IsZero() {
		return Receipt{}, ErrZeroAmount
	}
	if err := l.gate.Authorize(c, auth.RoleMinter); err != nil {
		return Receipt{}, err
	}

	b, err := l.begin()
	if err != nil {
		return Receipt{}, err
	}
	if b.supply, err = b.supply.Add(amt); err != nil {
		return Receipt{}, fmt.Errorf("%w: total supply", ErrOverflow)
	}
	if err := b.credit(to, amt); err != nil {
		return Receipt{}, err
	}
	rcpt, err := l.commit(b, OpMint)
	if err != nil {
		return Receipt{}, err
	}
	l.log.Info().Str("op", OpMint).Stringer("to", to).Str("amount", amt.String()).
		Uint64("seq", rcpt.Sequence).Msg("minted")
	return rcpt, nil
}

// Burn destroys amt units held by from. The holder may burn its own units;
// burning from another account requires RoleMinter.
func (l *Ledger) Burn(c auth.Capability, from account.Address, amt amount.Amount) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rcpt, err := l.burn(c, from, amt)
	l.metrics.LedgerOp(OpBurn, err)
	return rcpt, err
}

func (l *Ledger) burn(c auth.Capability, from account.Address, amt amount.Amount) (Receipt, error) {
	if from.IsZero() {
		return Receipt{}, fmt.Errorf("%w: burn source", ErrZeroAddress)
	}
	if amt.IsZero() {
		return Receipt{}, ErrZeroAmount
	}
	if c.Caller != from {
		if err := l.gate.Authorize(c, auth.RoleMinter); err != nil {
			return Receipt{}, err
		}
	}

	b, err := l.begin()
	if err != nil {
		return Receipt{}, err
	}
	if err := b.debit(from, amt); err != nil {
		return Receipt{}, err
	}
	if b.supply, err = b.supply.Sub(amt); err != nil {
		return Receipt{}, fmt.Errorf("%w: supply below balance", ErrConservationViolation)
	}
	rcpt, err := l.commit(b, OpBurn)
	if err != nil {
		return Receipt{}, err
	}
	l.log.Info().Str("op", OpBurn).Stringer("from", from).Str("amount", amt.String()).
		Uint64("seq", rcpt.Sequence).Msg("burned")
	return rcpt, nil
}

// Transfer moves amt units from one account to another. The caller must be
// from, or hold RoleCustodian. A transfer to self changes no balance but
// still advances the sequence.
func (l *Ledger) Transfer(c auth.Capability, from, to account.Address, amt amount.Amount) (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rcpt, err := l.transfer(c, from, to, amt)
	l.metrics.LedgerOp(OpTransfer, err)
	return rcpt, err
}

func (l *Ledger) transfer(c auth.Capability, from, to account.Address, amt amount.Amount) (Receipt, error) {
	if from.IsZero() || to.IsZero() {
		return Receipt{}, fmt.Errorf("%w: transfer party", ErrZeroAddress)
	}
	if amt.IsZero() {
		return Receipt{}, ErrZeroAmount
	}
	if c.Caller != from {
		if err := l.gate.Authorize(c, auth.RoleCustodian); err != nil {
			return Receipt{}, err
		}
	}

	b, err := l.begin()
	if err != nil {
		return Receipt{}, err
	}
	if err := b.debit(from, amt); err != nil {
		return Receipt{}, err
	}
	if err := b.credit(to, amt); err != nil {
		return Receipt{}, err
	}
	rcpt, err := l.commit(b, OpTransfer)
	if err != nil {
		return Receipt{}, err
	}
	l.log.Debug().Str("op", OpTransfer).Stringer("from", from).Stringer("to", to).
		Str("amount", amt.String()).Uint64("seq", rcpt.Sequence).Msg("transferred")
	return rcpt, nil
}

// Advance commits an operation that changes no balance, so that callers can
// pin a fresh sequence to an event of their own.
func (l *Ledger) Advance() (Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rcpt, err := l.advance()
	l.metrics.LedgerOp(OpAdvance, err)
	return rcpt, err
}

func (l *Ledger) advance() (Receipt, error) {
	b, err := l.begin()
	if err != nil {
		return Receipt{}, err
	}
	return l.commit(b, OpAdvance)
}

// Snapshot is a pinned sequence with the supply figures as of it.
type Snapshot struct {
	Receipt     Receipt
	TotalSupply amount.Amount
	Reserve     amount.Amount // balance of the reserve holding
	Circulating amount.Amount // TotalSupply - Reserve
}

// Pin advances the sequence like Advance and returns the supply figures
// as of the new sequence, read under the same lock.
//
// record, if non-nil, is called with the snapshot before the tick is
// committed; an error from it aborts the tick. record runs under the
// ledger lock and must not call back into the ledger.
func (l *Ledger) Pin(record func(Snapshot) error) (Snapshot, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap, err := l.pin(record)
	l.metrics.LedgerOp(OpAdvance, err)
	return snap, err
}

func (l *Ledger) pin(record func(Snapshot) error) (Snapshot, error) {
	b, err := l.begin()
	if err != nil {
		return Snapshot{}, err
	}
	res, err := b.balance(l.reserve)
	if err != nil {
		return Snapshot{}, err
	}
	circ, err := b.supply.Sub(res)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: reserve exceeds supply", ErrConservationViolation)
	}
	snap := Snapshot{
		Receipt:     Receipt{Op: OpAdvance, Sequence: b.state.Sequence + 1},
		TotalSupply: b.supply,
		Reserve:     res,
		Circulating: circ,
	}
	if record != nil {
		if err := record(snap); err != nil {
			return Snapshot{}, err
		}
	}
	if snap.Receipt, err = l.commit(b, OpAdvance); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// BalanceOf returns the current balance of addr.
func (l *Ledger) BalanceOf(addr account.Address) (amount.Amount, error) {
	return l.store.Balance(addr)
}

// BalanceAt returns the balance of addr as of sequence seq: the balance in
// its latest checkpoint at or before seq, or zero if there is none.
func (l *Ledger) BalanceAt(addr account.Address, seq uint64) (amount.Amount, error) {
	cp, ok, err := l.store.CheckpointAt(addr, seq)
	if err != nil || !ok {
		return amount.Zero(), err
	}
	return cp.Balance, nil
}

// TotalSupply returns the sum of all balances.
func (l *Ledger) TotalSupply() (amount.Amount, error) {
	st, err := l.store.State()
	return st.TotalSupply, err
}

// Sequence returns the sequence of the last committed operation.
func (l *Ledger) Sequence() (uint64, error) {
	st, err := l.store.State()
	return st.Sequence, err
}

// Reserve returns the reserve holding account.
func (l *Ledger) Reserve() account.Address { return l.reserve }

// Circulating returns the total supply minus the reserve balance, read
// consistently with respect to ledger writes.
func (l *Ledger) Circulating() (amount.Amount, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.store.State()
	if err != nil {
		return amount.Zero(), err
	}
	res, err := l.store.Balance(l.reserve)
	if err != nil {
		return amount.Zero(), err
	}
	circ, err := st.TotalSupply.Sub(res)
	if err != nil {
		return amount.Zero(), fmt.Errorf("%w: reserve exceeds supply", ErrConservationViolation)
	}
	return circ, nil
}

// Checkpoints returns the checkpoint history of addr.
func (l *Ledger) Checkpoints(addr account.Address) ([]Checkpoint, error) {
	return l.store.Checkpoints(addr)
}

// Holders returns every account with a non-zero balance.
func (l *Ledger) Holders() ([]Holding, error) {
	return l.store.Holdings()
}

// HoldersAt returns every account with a non-zero balance as of seq.
func (l *Ledger) HoldersAt(seq uint64) ([]Holding, error) {
	return l.store.HoldingsAt(seq)
}

// Audit verifies that the balances sum to the total supply.
func (l *Ledger) Audit() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	st, err := l.store.State()
	if err != nil {
		return err
	}
	holdings, err := l.store.Holdings()
	if err != nil {
		return err
	}
	sum := amount.Zero()
	for _, h := range holdings {
		if sum, err = sum.Add(h.Balance); err != nil {
			return fmt.Errorf("%w: %w", ErrConservationViolation, err)
		}
	}
	if !sum.Eq(st.TotalSupply) {
		return fmt.Errorf("%w: balances %s, supply %s", ErrConservationViolation, sum, st.TotalSupply)
	}
	return nil
}

// batch accumulates the effect of one operation before it is committed.
type batch struct {
	store    Store
	state    State
	supply   amount.Amount
	balances map[account.Address]amount.Amount
}

func (l *Ledger) begin() (*batch, error) {
	st, err := l.store.State()
	if err != nil {
		return nil, fmt.Errorf("ledger: read state: %w", err)
	}
	return &batch{
		store:    l.store,
		state:    st,
		supply:   st.TotalSupply,
		balances: make(map[account.Address]amount.Amount),
	}, nil
}

func (b *batch) balance(addr account.Address) (amount.Amount, error) {
	if bal, ok := b.balances[addr]; ok {
		return bal, nil
	}
	return b.store.Balance(addr)
}

func (b *batch) debit(addr account.Address, amt amount.Amount) error {
	bal, err := b.balance(addr)
	if err != nil {
		return err
	}
	next, err := bal.Sub(amt)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientBalance, addr, bal, amt)
	}
	b.balances[addr] = next
	return nil
}

func (b *batch) credit(addr account.Address, amt amount.Amount) error {
	bal, err := b.balance(addr)
	if err != nil {
		return err
	}
	next, err := bal.Add(amt)
	if err != nil {
		return fmt.Errorf("%w: balance of %s", ErrOverflow, addr)
	}
	b.balances[addr] = next
	return nil
}

func (l *Ledger) commit(b *batch, op string) (Receipt, error) {
	seq := b.state.Sequence + 1
	err := l.store.Commit(&Batch{
		Sequence:    seq,
		TotalSupply: b.supply,
		Balances:    b.balances,
	})
	if err != nil {
		return Receipt{}, fmt.Errorf("ledger: commit %s: %w", op, err)
	}
	if l.metrics != nil {
		res, err := l.store.Balance(l.reserve)
		if err == nil {
			l.metrics.LedgerState(b.supply, res, seq)
		}
	}
	return Receipt{ID: uuid.NewString(), Op: op, Sequence: seq}, nil
}
