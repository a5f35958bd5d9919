package dividend

import (
	"fmt"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
)

// Share is a holder's balance at a round's snapshot.
type Share struct {
	Holder  account.Address
	Balance amount.Amount
}

// Allocation is a holder's entitlement in a round.
type Allocation struct {
	Holder account.Address
	Amount amount.Amount
}

// Entitlement returns floor(pool * balance / circulating).
func Entitlement(pool, balance, circulating amount.Amount) (amount.Amount, error) {
	if circulating.IsZero() {
		return amount.Zero(), ErrNoCirculatingSupply
	}
	return pool.MulDiv(balance, circulating, amount.Floor)
}

// Allocate computes every holder's entitlement to pool. Entitlements are
// rounded down independently; the remainder stays in the pool.
func Allocate(pool amount.Amount, shares []Share, circulating amount.Amount) ([]Allocation, error) {
	if circulating.IsZero() {
		return nil, ErrNoCirculatingSupply
	}
	total := amount.Zero()
	allocs := make([]Allocation, len(shares))
	for i, s := range shares {
		var err error
		if total, err = total.Add(s.Balance); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidHoldings, err)
		}
		allocs[i].Holder = s.Holder
		if allocs[i].Amount, err = Entitlement(pool, s.Balance, circulating); err != nil {
			return nil, err
		}
	}
	if circulating.Lt(total) {
		return nil, fmt.Errorf("%w: holdings %s, circulating %s", ErrInvalidHoldings, total, circulating)
	}
	return allocs, nil
}

// ValidateAllocation checks that allocs is the proportional allocation of
// pool over shares and that it never exceeds the pool. When shares cover
// the whole circulating supply, the undistributed remainder must also be
// smaller than one base unit per holder.
func ValidateAllocation(allocs []Allocation, shares []Share, pool, circulating amount.Amount) error {
	if len(allocs) != len(shares) {
		return fmt.Errorf("%w: %d allocations for %d holders", ErrAllocationMismatch, len(allocs), len(shares))
	}
	expected, err := Allocate(pool, shares, circulating)
	if err != nil {
		return err
	}
	sum := amount.Zero()
	held := amount.Zero()
	for i := range allocs {
		if allocs[i].Holder != expected[i].Holder {
			return fmt.Errorf("%w: entry %d: holder mismatch", ErrAllocationMismatch, i)
		}
		if !allocs[i].Amount.Eq(expected[i].Amount) {
			return fmt.Errorf("%w: entry %d: amount %s != expected %s",
				ErrAllocationMismatch, i, allocs[i].Amount, expected[i].Amount)
		}
		if sum, err = sum.Add(allocs[i].Amount); err != nil {
			return fmt.Errorf("%w: %w", ErrPoolExhausted, err)
		}
		if held, err = held.Add(shares[i].Balance); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidHoldings, err)
		}
	}
	if pool.Lt(sum) {
		return fmt.Errorf("%w: allocated %s of %s", ErrPoolExhausted, sum, pool)
	}
	if held.Eq(circulating) {
		dust, _ := pool.Sub(sum)
		if !dust.Lt(amount.FromBase(uint64(len(shares)))) {
			return fmt.Errorf("%w: remainder %s with %d holders", ErrAllocationMismatch, dust.Base(), len(shares))
		}
	}
	return nil
}
