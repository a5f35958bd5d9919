// Package payment provides the currency transfer primitive used to collect
// reserve payments and pay dividends, and simple currency books that
// implement it.
package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
)

// Rail moves reference currency between accounts.
type Rail interface {
	// Transfer moves amt from one account to another. A zero amount is a no-op.
	Transfer(ctx context.Context, from, to account.Address, amt amount.Amount) error
}

// RailFunc adapts a function to the Rail interface.
type RailFunc func(ctx context.Context, from, to account.Address, amt amount.Amount) error

// Transfer calls f.
func (f RailFunc) Transfer(ctx context.Context, from, to account.Address, amt amount.Amount) error {
	return f(ctx, from, to, amt)
}

// Book is a Rail that also tracks balances and can be credited from outside.
type Book interface {
	Rail
	// Credit adds amt to addr, e.g. an incoming deposit.
	Credit(addr account.Address, amt amount.Amount) error
	// BalanceOf returns the currency balance of addr.
	BalanceOf(addr account.Address) (amount.Amount, error)
}

// MemBook is an in-memory currency book.
type MemBook struct {
	mu       sync.Mutex
	balances map[account.Address]amount.Amount
}

// Compile-time interface check.
var _ Book = (*MemBook)(nil)

// NewMemBook creates an empty book.
func NewMemBook() *MemBook {
	return &MemBook{balances: make(map[account.Address]amount.Amount)}
}

// Credit adds amt to addr.
func (b *MemBook) Credit(addr account.Address, amt amount.Amount) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	next, err := b.balances[addr].Add(amt)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOverflow, addr)
	}
	b.balances[addr] = next
	return nil
}

// BalanceOf returns the balance of addr.
func (b *MemBook) BalanceOf(addr account.Address) (amount.Amount, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.balances[addr], nil
}

// Transfer implements Rail.
func (b *MemBook) Transfer(ctx context.Context, from, to account.Address, amt amount.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if amt.IsZero() {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	if from == to {
		if b.balances[from].Lt(amt) {
			return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, from, b.balances[from], amt)
		}
		return nil
	}
	src, err := b.balances[from].Sub(amt)
	if err != nil {
		return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, from, b.balances[from], amt)
	}
	dst, err := b.balances[to].Add(amt)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrOverflow, to)
	}
	b.balances[from] = src
	b.balances[to] = dst
	return nil
}
