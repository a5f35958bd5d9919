package payment

import (
	"context"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
)

var bucketCurrency = []byte("currency")

// BoltBook is a currency book persisted in a bbolt bucket, one 32-byte
// big-endian balance per address.
type BoltBook struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Book = (*BoltBook)(nil)

// NewBoltBook creates the currency bucket in db if needed.
func NewBoltBook(db *bbolt.DB) (*BoltBook, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketCurrency)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("payment: create bucket: %w", err)
	}
	return &BoltBook{db: db}, nil
}

func getBalance(b *bbolt.Bucket, addr account.Address) (amount.Amount, error) {
	v := b.Get(addr[:])
	if v == nil {
		return amount.Zero(), nil
	}
	return amount.FromBytes(v)
}

func putBalance(b *bbolt.Bucket, addr account.Address, amt amount.Amount) error {
	raw := amt.Bytes()
	return b.Put(addr[:], raw[:])
}

// Credit adds amt to addr.
func (k *BoltBook) Credit(addr account.Address, amt amount.Amount) error {
	if addr.IsZero() {
		return ErrZeroAddress
	}
	return k.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCurrency)
		bal, err := getBalance(b, addr)
		if err != nil {
			return err
		}
		next, err := bal.Add(amt)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrOverflow, addr)
		}
		return putBalance(b, addr, next)
	})
}

// BalanceOf returns the balance of addr.
func (k *BoltBook) BalanceOf(addr account.Address) (amount.Amount, error) {
	var bal amount.Amount
	err := k.db.View(func(tx *bbolt.Tx) error {
		var err error
		bal, err = getBalance(tx.Bucket(bucketCurrency), addr)
		return err
	})
	return bal, err
}

// Transfer implements Rail. Debit and credit happen in one transaction.
func (k *BoltBook) Transfer(ctx context.Context, from, to account.Address, amt amount.Amount) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if from.IsZero() || to.IsZero() {
		return ErrZeroAddress
	}
	if amt.IsZero() {
		return nil
	}
	return k.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketCurrency)
		src, err := getBalance(b, from)
		if err != nil {
			return err
		}
		rest, err := src.Sub(amt)
		if err != nil {
			return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, from, src, amt)
		}
		if err := putBalance(b, from, rest); err != nil {
			return err
		}
		dst, err := getBalance(b, to)
		if err != nil {
			return err
		}
		next, err := dst.Add(amt)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrOverflow, to)
		}
		return putBalance(b, to, next)
	})
}
