package dividend

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/digikoin-go/account"
)

var (
	bucketRounds = []byte("rounds")
	bucketClaims = []byte("claims")
	bucketMeta   = []byte("dividend_meta")

	keyNextRound = []byte("next_round")
)

// BoltStore persists rounds (keyed by big-endian id) and claims (keyed
// id || holder) in bbolt.
type BoltStore struct {
	db *bbolt.DB
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// NewBoltStore creates the dividend buckets in db if needed.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketRounds, bucketClaims, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("dividend: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func roundKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

func claimKeyBytes(id uint64, holder account.Address) []byte {
	k := make([]byte, 8+account.Size)
	binary.BigEndian.PutUint64(k, id)
	copy(k[8:], holder[:])
	return k
}

func (s *BoltStore) NextRoundID() (uint64, error) {
	var next uint64
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyNextRound)
		if v == nil {
			return nil
		}
		if len(v) != 8 {
			return fmt.Errorf("%w: next round", ErrCorruptRecord)
		}
		next = binary.BigEndian.Uint64(v)
		return nil
	})
	return next, err
}

// putRound writes r and advances the next round id past it.
func putRound(tx *bbolt.Tx, r Round) error {
	if err := tx.Bucket(bucketRounds).Put(roundKey(r.ID), SerializeRound(r)); err != nil {
		return fmt.Errorf("boltstore: put round: %w", err)
	}
	meta := tx.Bucket(bucketMeta)
	var next uint64
	if v := meta.Get(keyNextRound); len(v) == 8 {
		next = binary.BigEndian.Uint64(v)
	}
	if r.ID >= next {
		if err := meta.Put(keyNextRound, roundKey(r.ID+1)); err != nil {
			return fmt.Errorf("boltstore: put next round: %w", err)
		}
	}
	return nil
}

func (s *BoltStore) PutRound(r Round) error {
	return s.db.Update(func(tx *bbolt.Tx) error { return putRound(tx, r) })
}

func (s *BoltStore) Round(id uint64) (Round, bool, error) {
	var (
		r     Round
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketRounds).Get(roundKey(id))
		if v == nil {
			return nil
		}
		var err error
		r, err = DeserializeRound(v)
		found = err == nil
		return err
	})
	return r, found, err
}

func (s *BoltStore) Rounds() ([]Round, error) {
	var rounds []Round
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketRounds).ForEach(func(_, v []byte) error {
			r, err := DeserializeRound(v)
			if err != nil {
				return err
			}
			rounds = append(rounds, r)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list rounds: %w", err)
	}
	return rounds, nil
}

func (s *BoltStore) Claim(id uint64, holder account.Address) (Claim, bool, error) {
	var (
		c     Claim
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketClaims).Get(claimKeyBytes(id, holder))
		if v == nil {
			return nil
		}
		var err error
		c, err = deserializeClaim(id, holder, v)
		found = err == nil
		return err
	})
	return c, found, err
}

func (s *BoltStore) SaveClaim(r Round, c Claim) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putRound(tx, r); err != nil {
			return err
		}
		if err := tx.Bucket(bucketClaims).Put(claimKeyBytes(c.RoundID, c.Holder), serializeClaim(c)); err != nil {
			return fmt.Errorf("boltstore: put claim: %w", err)
		}
		return nil
	})
}

func (s *BoltStore) DeleteClaim(r Round, holder account.Address) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := putRound(tx, r); err != nil {
			return err
		}
		if err := tx.Bucket(bucketClaims).Delete(claimKeyBytes(r.ID, holder)); err != nil {
			return fmt.Errorf("boltstore: delete claim: %w", err)
		}
		return nil
	})
}

func (s *BoltStore) DeleteRound(id uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		v := meta.Get(keyNextRound)
		if len(v) != 8 || binary.BigEndian.Uint64(v) != id+1 {
			return fmt.Errorf("%w: %d is not the latest round", ErrNoSuchRound, id)
		}
		if err := tx.Bucket(bucketRounds).Delete(roundKey(id)); err != nil {
			return fmt.Errorf("boltstore: delete round: %w", err)
		}
		if err := meta.Put(keyNextRound, roundKey(id)); err != nil {
			return fmt.Errorf("boltstore: put next round: %w", err)
		}
		return nil
	})
}

// PendingClaims scans the claims bucket; keys sort by round, then holder.
func (s *BoltStore) PendingClaims() ([]Claim, error) {
	var result []Claim
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketClaims).ForEach(func(k, v []byte) error {
			if len(k) != 8+account.Size {
				return fmt.Errorf("%w: claim key of %d bytes", ErrCorruptRecord, len(k))
			}
			holder, err := account.FromBytes(k[8:])
			if err != nil {
				return err
			}
			c, err := deserializeClaim(binary.BigEndian.Uint64(k[:8]), holder, v)
			if err != nil {
				return err
			}
			if c.Status == ClaimPending {
				result = append(result, c)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list pending claims: %w", err)
	}
	return result, nil
}
