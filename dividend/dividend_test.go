package dividend

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.etcd.io/bbolt"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
	"github.com/bitfsorg/digikoin-go/auth"
	"github.com/bitfsorg/digikoin-go/ledger"
	"github.com/bitfsorg/digikoin-go/oracle"
	"github.com/bitfsorg/digikoin-go/payment"
	"github.com/bitfsorg/digikoin-go/reserve"
	"github.com/bitfsorg/digikoin-go/telemetry"
)

var (
	owner     = account.FromLabel("owner")
	reserveID = account.FromLabel("reserve")
	treasury  = account.FromLabel("treasury")
	poolID    = account.FromLabel("dividend-pool")
	custodian = account.FromLabel("reserve-manager")
	alice     = account.FromLabel("alice")
	bob       = account.FromLabel("bob")
	carol     = account.FromLabel("carol")
)

type fixture struct {
	gate    *auth.StaticGate
	ledger  *ledger.Ledger
	book    *payment.MemBook
	reserve *reserve.Manager
	dist    *Distributor
}

// newFixture mints 10,000 units to the reserve and credits 100 currency
// units to the owner, alice and bob.
func newFixture(t *testing.T, rail payment.Rail, store Store, opts ...Option) *fixture {
	t.Helper()
	gate := auth.NewStaticGate(owner)
	gate.Grant(auth.RoleCustodian, custodian)
	l := ledger.New(ledger.NewMemStore(), gate, reserveID)
	_, err := l.Mint(auth.As(owner), reserveID, amount.Units(10000))
	require.NoError(t, err)

	book := payment.NewMemBook()
	for _, addr := range []account.Address{owner, alice, bob} {
		require.NoError(t, book.Credit(addr, amount.Units(100)))
	}
	if rail == nil {
		rail = book
	}
	if store == nil {
		store = NewMemStore()
	}
	return &fixture{
		gate:    gate,
		ledger:  l,
		book:    book,
		reserve: reserve.New(l, oracle.New(nil), book, treasury, auth.As(custodian)),
		dist:    New(l, store, rail, poolID, gate, opts...),
	}
}

func (f *fixture) hold(t *testing.T, who account.Address, units uint64) {
	t.Helper()
	cost, err := f.reserve.QuoteCurrencyForUnits(context.Background(), amount.Units(units), amount.Ceil)
	require.NoError(t, err)
	_, err = f.reserve.Hold(context.Background(), auth.As(who), amount.Units(units), cost)
	require.NoError(t, err)
}

func requireCurrency(t *testing.T, b payment.Book, addr account.Address, want amount.Amount) {
	t.Helper()
	got, err := b.BalanceOf(addr)
	require.NoError(t, err)
	assert.True(t, got.Eq(want), "currency of %s: got %s, want %s", addr, got, want)
}

// ---------------------------------------------------------------------------
// Scenarios
// ---------------------------------------------------------------------------

func TestScenario_HoldDistributeClaim(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.hold(t, alice, 1000)
	requireCurrency(t, f.book, alice, amount.Units(90))

	r, err := f.dist.Distribute(ctx, auth.As(owner), amount.Units(1))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), r.ID)
	assert.True(t, r.CirculatingSupply.Eq(amount.Units(1000)))
	assert.True(t, r.Pool.Eq(amount.Units(1)))

	paid, err := f.dist.Claim(ctx, auth.As(alice), 0)
	require.NoError(t, err)
	assert.True(t, paid.Eq(amount.Units(1)))
	requireCurrency(t, f.book, alice, amount.Units(91))

	_, err = f.dist.Claim(ctx, auth.As(alice), 0)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
	requireCurrency(t, f.book, alice, amount.Units(91))

	state, err := f.dist.ClaimState(0, alice)
	require.NoError(t, err)
	assert.Equal(t, ClaimPaid, state)
}

func TestScenario_TransferBeforeRound(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.hold(t, alice, 1000)
	_, err := f.ledger.Transfer(auth.As(alice), alice, bob, amount.Units(1000))
	require.NoError(t, err)

	_, err = f.dist.Distribute(ctx, auth.As(owner), amount.Units(1))
	require.NoError(t, err)

	ent, err := f.dist.Entitlement(0, bob)
	require.NoError(t, err)
	assert.True(t, ent.Eq(amount.Units(1)))

	_, err = f.dist.Claim(ctx, auth.As(alice), 0)
	assert.ErrorIs(t, err, ErrNothingToClaim)
	state, err := f.dist.ClaimState(0, alice)
	require.NoError(t, err)
	assert.Equal(t, ClaimNone, state)

	paid, err := f.dist.Claim(ctx, auth.As(bob), 0)
	require.NoError(t, err)
	assert.True(t, paid.Eq(amount.Units(1)))
}

func TestFrontRunning(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.hold(t, alice, 1000)
	_, err := f.dist.Distribute(ctx, auth.As(owner), amount.Units(1))
	require.NoError(t, err)

	// Bob buys after the deposit and gets nothing from it.
	f.hold(t, bob, 1000)
	_, err = f.dist.Claim(ctx, auth.As(bob), 0)
	assert.ErrorIs(t, err, ErrNothingToClaim)

	// Alice moving her units after the deposit does not change her share.
	_, err = f.ledger.Transfer(auth.As(alice), alice, carol, amount.Units(1000))
	require.NoError(t, err)
	paid, err := f.dist.Claim(ctx, auth.As(alice), 0)
	require.NoError(t, err)
	assert.True(t, paid.Eq(amount.Units(1)))

	_, err = f.dist.Claim(ctx, auth.As(carol), 0)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestProportionalShares(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.hold(t, alice, 300)
	f.hold(t, bob, 700)
	_, err := f.dist.Distribute(ctx, auth.As(owner), amount.Units(10))
	require.NoError(t, err)

	a, err := f.dist.Claim(ctx, auth.As(alice), 0)
	require.NoError(t, err)
	b, err := f.dist.Claim(ctx, auth.As(bob), 0)
	require.NoError(t, err)
	assert.True(t, a.Eq(amount.Units(3)))
	assert.True(t, b.Eq(amount.Units(7)))

	unclaimed, err := f.dist.Unclaimed(0)
	require.NoError(t, err)
	assert.True(t, unclaimed.IsZero())

	r, err := f.dist.Round(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), r.Claims)
}

func TestDustStaysInPool(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	f.hold(t, alice, 1)
	f.hold(t, bob, 1)
	f.hold(t, owner, 1)
	_, err := f.dist.Distribute(ctx, auth.As(owner), amount.FromBase(10))
	require.NoError(t, err)

	for _, who := range []account.Address{alice, bob, owner} {
		paid, err := f.dist.Claim(ctx, auth.As(who), 0)
		require.NoError(t, err)
		assert.True(t, paid.Eq(amount.FromBase(3)))
	}
	unclaimed, err := f.dist.Unclaimed(0)
	require.NoError(t, err)
	assert.True(t, unclaimed.Eq(amount.FromBase(1)))
	requireCurrency(t, f.book, poolID, amount.FromBase(1))
}

// ---------------------------------------------------------------------------
// Distribute
// ---------------------------------------------------------------------------

func TestDistribute_SnapshotIsOwnSequence(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.hold(t, alice, 10)
	before, err := f.ledger.Sequence()
	require.NoError(t, err)

	r, err := f.dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
	require.NoError(t, err)
	assert.Equal(t, before+1, r.SnapshotSequence)

	after, err := f.ledger.Sequence()
	require.NoError(t, err)
	assert.Equal(t, r.SnapshotSequence, after)
	assert.Equal(t, owner, r.Funder)
	assert.False(t, r.CreatedAt.IsZero())
}

func TestDistribute_Errors(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()

	_, err := f.dist.Distribute(ctx, auth.As(owner), amount.Units(1))
	assert.ErrorIs(t, err, ErrNoCirculatingSupply)
	requireCurrency(t, f.book, owner, amount.Units(100))

	f.hold(t, alice, 10)

	_, err = f.dist.Distribute(ctx, auth.As(owner), amount.Zero())
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = f.dist.Distribute(ctx, auth.As(alice), amount.Units(1))
	assert.ErrorIs(t, err, ErrUnauthorized)

	_, err = f.dist.Distribute(ctx, auth.As(owner), amount.Units(1000))
	assert.ErrorIs(t, err, payment.ErrInsufficientFunds)

	rounds, err := f.dist.Rounds()
	require.NoError(t, err)
	assert.Empty(t, rounds)
}

func TestDistribute_Policies(t *testing.T) {
	f := newFixture(t, nil, nil, WithFundingPolicy(FundingOpen))
	f.hold(t, alice, 10)

	r, err := f.dist.Distribute(context.Background(), auth.As(bob), amount.Units(1))
	require.NoError(t, err)
	assert.Equal(t, bob, r.Funder)

	f = newFixture(t, nil, nil)
	f.hold(t, alice, 10)
	f.gate.Grant(auth.RoleDistributor, bob)
	_, err = f.dist.Distribute(context.Background(), auth.As(bob), amount.Units(1))
	require.NoError(t, err)
}

func TestParseFundingPolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    FundingPolicy
		wantErr bool
	}{
		{"", FundingOwnerOnly, false},
		{"owner", FundingOwnerOnly, false},
		{"OPEN", FundingOpen, false},
		{"anyone", 0, true},
	}
	for _, tt := range tests {
		got, err := ParseFundingPolicy(tt.in)
		if tt.wantErr {
			assert.ErrorIs(t, err, ErrUnknownPolicy)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
		assert.Equal(t, got, mustParse(t, got.String()))
	}
}

func mustParse(t *testing.T, s string) FundingPolicy {
	t.Helper()
	p, err := ParseFundingPolicy(s)
	require.NoError(t, err)
	return p
}

// ---------------------------------------------------------------------------
// Claim
// ---------------------------------------------------------------------------

func TestClaim_NoSuchRound(t *testing.T) {
	f := newFixture(t, nil, nil)
	_, err := f.dist.Claim(context.Background(), auth.As(alice), 3)
	assert.ErrorIs(t, err, ErrNoSuchRound)

	_, err = f.dist.ClaimState(3, alice)
	assert.ErrorIs(t, err, ErrNoSuchRound)
}

func TestClaim_ReserveNeverEntitled(t *testing.T) {
	f := newFixture(t, nil, nil)
	f.hold(t, alice, 10)
	_, err := f.dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
	require.NoError(t, err)

	ent, err := f.dist.Entitlement(0, reserveID)
	require.NoError(t, err)
	assert.True(t, ent.IsZero())

	_, err = f.dist.Claim(context.Background(), auth.As(reserveID), 0)
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestClaim_Reentrant(t *testing.T) {
	var (
		f         *fixture
		inner     error
		reentered bool
	)
	rail := payment.RailFunc(func(ctx context.Context, from, to account.Address, amt amount.Amount) error {
		if from == poolID && !reentered {
			reentered = true
			_, inner = f.dist.Claim(ctx, auth.As(to), 0)
		}
		return f.book.Transfer(ctx, from, to, amt)
	})
	f = newFixture(t, rail, nil)
	f.hold(t, alice, 1000)
	_, err := f.dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
	require.NoError(t, err)

	paid, err := f.dist.Claim(context.Background(), auth.As(alice), 0)
	require.NoError(t, err)
	assert.True(t, paid.Eq(amount.Units(1)))
	assert.True(t, reentered)
	assert.ErrorIs(t, inner, ErrAlreadyClaimed)
	requireCurrency(t, f.book, alice, amount.Units(91))
}

func TestClaim_PaymentFailureRollsBack(t *testing.T) {
	var (
		f    *fixture
		fail = true
	)
	errRail := errors.New("rail down")
	rail := payment.RailFunc(func(ctx context.Context, from, to account.Address, amt amount.Amount) error {
		if from == poolID && fail {
			return errRail
		}
		return f.book.Transfer(ctx, from, to, amt)
	})
	f = newFixture(t, rail, nil)
	f.hold(t, alice, 1000)
	_, err := f.dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
	require.NoError(t, err)

	_, err = f.dist.Claim(context.Background(), auth.As(alice), 0)
	assert.ErrorIs(t, err, errRail)

	state, err := f.dist.ClaimState(0, alice)
	require.NoError(t, err)
	assert.Equal(t, ClaimNone, state)
	r, err := f.dist.Round(0)
	require.NoError(t, err)
	assert.True(t, r.Paid.IsZero())
	assert.Equal(t, uint64(0), r.Claims)

	fail = false
	paid, err := f.dist.Claim(context.Background(), auth.As(alice), 0)
	require.NoError(t, err)
	assert.True(t, paid.Eq(amount.Units(1)))
}

func TestClaimAll(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.hold(t, alice, 500)
	f.hold(t, bob, 500)

	_, err := f.dist.Distribute(ctx, auth.As(owner), amount.Units(2))
	require.NoError(t, err)
	_, err = f.dist.Claim(ctx, auth.As(alice), 0)
	require.NoError(t, err)
	_, err = f.dist.Distribute(ctx, auth.As(owner), amount.Units(4))
	require.NoError(t, err)

	payouts, err := f.dist.ClaimAll(ctx, auth.As(alice))
	require.NoError(t, err)
	require.Len(t, payouts, 1)
	assert.Equal(t, uint64(1), payouts[0].RoundID)
	assert.True(t, payouts[0].Amount.Eq(amount.Units(2)))

	payouts, err = f.dist.ClaimAll(ctx, auth.As(bob))
	require.NoError(t, err)
	assert.Len(t, payouts, 2)

	_, err = f.dist.ClaimAll(ctx, auth.As(bob))
	assert.ErrorIs(t, err, ErrNothingToClaim)
}

func TestDistributor_Metrics(t *testing.T) {
	m, err := telemetry.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	f := newFixture(t, nil, nil, WithMetrics(m))
	f.hold(t, alice, 10)

	_, err = f.dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
	require.NoError(t, err)
	_, err = f.dist.Claim(context.Background(), auth.As(alice), 0)
	require.NoError(t, err)
	_, err = f.dist.Claim(context.Background(), auth.As(alice), 0)
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RoundsOpened))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DividendPaid))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Claims.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Claims.WithLabelValues("error")))
}

// ---------------------------------------------------------------------------
// Persistence
// ---------------------------------------------------------------------------

func TestBoltStore_Distributor(t *testing.T) {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "dividend.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	store, err := NewBoltStore(db)
	require.NoError(t, err)

	clock := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	f := newFixture(t, nil, store, WithClock(func() time.Time { return clock }))
	f.hold(t, alice, 1000)

	_, err = f.dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
	require.NoError(t, err)
	_, err = f.dist.Claim(context.Background(), auth.As(alice), 0)
	require.NoError(t, err)

	// A second store over the same database sees the same state.
	again, err := NewBoltStore(db)
	require.NoError(t, err)
	next, err := again.NextRoundID()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), next)

	r, ok, err := again.Round(0)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, clock, r.CreatedAt)
	assert.True(t, r.Paid.Eq(amount.Units(1)))

	cl, ok, err := again.Claim(0, alice)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ClaimPaid, cl.Status)
	assert.True(t, cl.Amount.Eq(amount.Units(1)))

	_, ok, err = again.Claim(0, bob)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDeserializeRound_WrongSize(t *testing.T) {
	_, err := DeserializeRound([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrCorruptRecord)
}

func TestClaimStatus_String(t *testing.T) {
	assert.Equal(t, "pending", ClaimPending.String())
	assert.Equal(t, "paid", ClaimPaid.String())
	assert.Equal(t, "none", ClaimNone.String())
}

// ---------------------------------------------------------------------------
// Deposit path
// ---------------------------------------------------------------------------

// faultyStore fails selected writes.
type faultyStore struct {
	Store
	failPut      bool
	failFinalize bool
}

var errStore = errors.New("store unavailable")

func (s *faultyStore) PutRound(r Round) error {
	if s.failPut {
		return errStore
	}
	return s.Store.PutRound(r)
}

func (s *faultyStore) SaveClaim(r Round, c Claim) error {
	if s.failFinalize && c.Status == ClaimPaid {
		return errStore
	}
	return s.Store.SaveClaim(r, c)
}

// failingPin records the round and then fails the ledger commit.
type failingPin struct {
	*ledger.Ledger
}

var errPin = errors.New("ledger commit failed")

func (l failingPin) Pin(record func(ledger.Snapshot) error) (ledger.Snapshot, error) {
	_, err := l.Ledger.Pin(func(s ledger.Snapshot) error {
		if err := record(s); err != nil {
			return err
		}
		return errPin
	})
	return ledger.Snapshot{}, err
}

func TestDistribute_RailMayReenter(t *testing.T) {
	var (
		f      *fixture
		inner  error
		rounds []Round
	)
	rail := payment.RailFunc(func(ctx context.Context, from, to account.Address, amt amount.Amount) error {
		if to == poolID {
			rounds, inner = f.dist.Rounds()
		}
		return f.book.Transfer(ctx, from, to, amt)
	})
	f = newFixture(t, rail, nil)
	f.hold(t, alice, 1000)

	done := make(chan error, 1)
	go func() {
		_, err := f.dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
		done <- err
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Distribute blocked while the rail called back into the distributor")
	}
	require.NoError(t, inner)
	assert.Empty(t, rounds)

	all, err := f.dist.Rounds()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestDistribute_SaveFailureCommitsNothing(t *testing.T) {
	store := &faultyStore{Store: NewMemStore(), failPut: true}
	f := newFixture(t, nil, store)
	f.hold(t, alice, 1000)

	before, err := f.ledger.Sequence()
	require.NoError(t, err)

	_, err = f.dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
	require.ErrorIs(t, err, errStore)

	after, err := f.ledger.Sequence()
	require.NoError(t, err)
	assert.Equal(t, before, after)
	requireCurrency(t, f.book, owner, amount.Units(100))
	requireCurrency(t, f.book, poolID, amount.Zero())

	rounds, err := f.dist.Rounds()
	require.NoError(t, err)
	assert.Empty(t, rounds)
}

func TestDistribute_LedgerFailureRemovesRound(t *testing.T) {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "dividend.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	bolt, err := NewBoltStore(db)
	require.NoError(t, err)

	for name, store := range map[string]Store{"mem": NewMemStore(), "bolt": bolt} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil, nil)
			f.hold(t, alice, 1000)
			before, err := f.ledger.Sequence()
			require.NoError(t, err)

			dist := New(failingPin{f.ledger}, store, f.book, poolID, f.gate)
			_, err = dist.Distribute(context.Background(), auth.As(owner), amount.Units(1))
			require.ErrorIs(t, err, errPin)

			after, err := f.ledger.Sequence()
			require.NoError(t, err)
			assert.Equal(t, before, after)
			requireCurrency(t, f.book, owner, amount.Units(100))

			rounds, err := store.Rounds()
			require.NoError(t, err)
			assert.Empty(t, rounds)
			next, err := store.NextRoundID()
			require.NoError(t, err)
			assert.Equal(t, uint64(0), next)
		})
	}
}

func TestStore_DeleteRound(t *testing.T) {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "dividend.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	bolt, err := NewBoltStore(db)
	require.NoError(t, err)

	for name, store := range map[string]Store{"mem": NewMemStore(), "bolt": bolt} {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, store.PutRound(Round{ID: 0, Pool: amount.Units(1)}))
			require.NoError(t, store.PutRound(Round{ID: 1, Pool: amount.Units(2)}))

			assert.ErrorIs(t, store.DeleteRound(0), ErrNoSuchRound)
			require.NoError(t, store.DeleteRound(1))

			next, err := store.NextRoundID()
			require.NoError(t, err)
			assert.Equal(t, uint64(1), next)
			_, ok, err := store.Round(1)
			require.NoError(t, err)
			assert.False(t, ok)
			_, ok, err = store.Round(0)
			require.NoError(t, err)
			assert.True(t, ok)
		})
	}
}

// ---------------------------------------------------------------------------
// Allocation and pending claims
// ---------------------------------------------------------------------------

func TestAllocation(t *testing.T) {
	f := newFixture(t, nil, nil)
	ctx := context.Background()
	f.hold(t, alice, 1000)
	f.hold(t, bob, 2)

	_, err := f.dist.Distribute(ctx, auth.As(owner), amount.Units(1))
	require.NoError(t, err)

	// Moves after the snapshot do not change the round.
	_, err = f.ledger.Transfer(auth.As(bob), bob, carol, amount.Units(2))
	require.NoError(t, err)
	_, err = f.dist.Claim(ctx, auth.As(alice), 0)
	require.NoError(t, err)

	lines, dust, err := f.dist.Allocation(0)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	byHolder := make(map[account.Address]HolderAllocation)
	total := dust
	for _, l := range lines {
		byHolder[l.Holder] = l
		total, err = total.Add(l.Amount)
		require.NoError(t, err)
	}
	assert.NotContains(t, byHolder, reserveID)
	assert.NotContains(t, byHolder, carol)
	assert.True(t, total.Eq(amount.Units(1)))
	assert.True(t, dust.Lt(amount.FromBase(2)), "dust %s", dust.Base())

	a := byHolder[alice]
	assert.True(t, a.Balance.Eq(amount.Units(1000)))
	assert.Equal(t, ClaimPaid, a.Status)
	want, err := f.dist.Entitlement(0, alice)
	require.NoError(t, err)
	assert.True(t, a.Amount.Eq(want))

	b := byHolder[bob]
	assert.True(t, b.Balance.Eq(amount.Units(2)))
	assert.Equal(t, ClaimNone, b.Status)

	_, _, err = f.dist.Allocation(5)
	assert.ErrorIs(t, err, ErrNoSuchRound)
}

func TestPendingClaims_FinalizeFailure(t *testing.T) {
	store := &faultyStore{Store: NewMemStore(), failFinalize: true}
	f := newFixture(t, nil, store)
	ctx := context.Background()
	f.hold(t, alice, 1000)
	_, err := f.dist.Distribute(ctx, auth.As(owner), amount.Units(1))
	require.NoError(t, err)

	paid, err := f.dist.Claim(ctx, auth.As(alice), 0)
	require.NoError(t, err)
	assert.True(t, paid.Eq(amount.Units(1)))
	requireCurrency(t, f.book, alice, amount.Units(91))

	state, err := f.dist.ClaimState(0, alice)
	require.NoError(t, err)
	assert.Equal(t, ClaimPending, state)

	pending, err := f.dist.PendingClaims()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, alice, pending[0].Holder)
	assert.Equal(t, uint64(0), pending[0].RoundID)
	assert.True(t, pending[0].Amount.Eq(amount.Units(1)))

	_, err = f.dist.Claim(ctx, auth.As(alice), 0)
	assert.ErrorIs(t, err, ErrAlreadyClaimed)
}

func TestStore_PendingClaims(t *testing.T) {
	db, err := bbolt.Open(filepath.Join(t.TempDir(), "dividend.db"), 0600, nil)
	require.NoError(t, err)
	defer db.Close()
	bolt, err := NewBoltStore(db)
	require.NoError(t, err)

	for name, store := range map[string]Store{"mem": NewMemStore(), "bolt": bolt} {
		t.Run(name, func(t *testing.T) {
			r0 := Round{ID: 0, Pool: amount.Units(10)}
			r1 := Round{ID: 1, Pool: amount.Units(10)}
			require.NoError(t, store.PutRound(r0))
			require.NoError(t, store.PutRound(r1))
			require.NoError(t, store.SaveClaim(r1, Claim{RoundID: 1, Holder: bob, Status: ClaimPending, Amount: amount.Units(2)}))
			require.NoError(t, store.SaveClaim(r0, Claim{RoundID: 0, Holder: alice, Status: ClaimPaid, Amount: amount.Units(1)}))
			require.NoError(t, store.SaveClaim(r0, Claim{RoundID: 0, Holder: bob, Status: ClaimPending, Amount: amount.Units(3)}))

			pending, err := store.PendingClaims()
			require.NoError(t, err)
			require.Len(t, pending, 2)
			assert.Equal(t, uint64(0), pending[0].RoundID)
			assert.Equal(t, uint64(1), pending[1].RoundID)
			for _, c := range pending {
				assert.Equal(t, bob, c.Holder)
				assert.Equal(t, ClaimPending, c.Status)
			}
		})
	}
}
