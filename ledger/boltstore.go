package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
)

var (
	bucketBalances    = []byte("balances")
	bucketCheckpoints = []byte("checkpoints")
	bucketMeta        = []byte("ledger_meta")

	keySequence = []byte("sequence")
	keySupply   = []byte("supply")
)

// BoltStore persists the ledger in bbolt.
//
// Checkpoints are keyed address(20) || big-endian sequence(8), so one
// account's history is contiguous and sorted, and "latest at or before
// sequence" is a cursor seek.
type BoltStore struct {
	db   *bbolt.DB
	owns bool
}

// Compile-time interface check.
var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates a bbolt database at dbPath for the ledger
// alone. The parent directory is created if it does not exist.
func OpenBoltStore(dbPath string) (*BoltStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("ledger: create directory: %w", err)
	}
	db, err := bbolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("ledger: open bolt db: %w", err)
	}
	s, err := NewBoltStore(db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.owns = true
	return s, nil
}

// NewBoltStore uses an already open database, creating the ledger buckets.
func NewBoltStore(db *bbolt.DB) (*BoltStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketBalances, bucketCheckpoints, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("boltstore: create bucket %q: %w", name, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ledger: create buckets: %w", err)
	}
	return &BoltStore{db: db}, nil
}

// Close closes the database if it was opened by OpenBoltStore.
func (s *BoltStore) Close() error {
	if !s.owns {
		return nil
	}
	return s.db.Close()
}

// checkpointKey encodes addr || seq.
func checkpointKey(addr account.Address, seq uint64) []byte {
	k := make([]byte, account.Size+8)
	copy(k, addr[:])
	binary.BigEndian.PutUint64(k[account.Size:], seq)
	return k
}

// State returns the ledger counters.
func (s *BoltStore) State() (State, error) {
	var st State
	err := s.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keySequence); v != nil {
			if len(v) != 8 {
				return fmt.Errorf("%w: sequence", ErrCorruptRecord)
			}
			st.Sequence = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(keySupply); v != nil {
			supply, err := amount.FromBytes(v)
			if err != nil {
				return fmt.Errorf("%w: supply: %w", ErrCorruptRecord, err)
			}
			st.TotalSupply = supply
		}
		return nil
	})
	return st, err
}

// Balance returns the current balance of addr.
func (s *BoltStore) Balance(addr account.Address) (amount.Amount, error) {
	var bal amount.Amount
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketBalances).Get(addr[:])
		if v == nil {
			return nil
		}
		var err error
		bal, err = amount.FromBytes(v)
		return err
	})
	return bal, err
}

// CheckpointAt returns the latest checkpoint of addr at or before seq.
func (s *BoltStore) CheckpointAt(addr account.Address, seq uint64) (Checkpoint, bool, error) {
	var (
		cp    Checkpoint
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketCheckpoints).Cursor()
		key := checkpointKey(addr, seq)

		k, v := c.Seek(key)
		if k == nil || !bytes.Equal(k, key) {
			// Seek landed after the wanted key; the candidate is the previous entry.
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		}
		if k == nil || !bytes.HasPrefix(k, addr[:]) {
			return nil
		}
		var err error
		cp, err = DeserializeCheckpoint(v)
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return Checkpoint{}, false, fmt.Errorf("boltstore: checkpoint lookup: %w", err)
	}
	return cp, found, nil
}

// Checkpoints returns the full history of addr.
func (s *BoltStore) Checkpoints(addr account.Address) ([]Checkpoint, error) {
	var cps []Checkpoint
	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(bucketCheckpoints).Cursor()
		for k, v := c.Seek(addr[:]); k != nil && bytes.HasPrefix(k, addr[:]); k, v = c.Next() {
			cp, err := DeserializeCheckpoint(v)
			if err != nil {
				return err
			}
			cps = append(cps, cp)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list checkpoints: %w", err)
	}
	return cps, nil
}

// Holdings returns all non-zero balances ordered by address.
func (s *BoltStore) Holdings() ([]Holding, error) {
	var result []Holding
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBalances).ForEach(func(k, v []byte) error {
			addr, err := account.FromBytes(k)
			if err != nil {
				return err
			}
			bal, err := amount.FromBytes(v)
			if err != nil {
				return err
			}
			if !bal.IsZero() {
				result = append(result, Holding{Account: addr, Balance: bal})
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list holdings: %w", err)
	}
	return result, nil
}

// HoldingsAt walks every account's history and keeps the last checkpoint
// at or before seq.
func (s *BoltStore) HoldingsAt(seq uint64) ([]Holding, error) {
	var result []Holding
	err := s.db.View(func(tx *bbolt.Tx) error {
		var (
			cur  []byte
			last Checkpoint
			have bool
		)
		flush := func() error {
			if have && !last.Balance.IsZero() {
				addr, err := account.FromBytes(cur)
				if err != nil {
					return err
				}
				result = append(result, Holding{Account: addr, Balance: last.Balance})
			}
			have = false
			return nil
		}

		c := tx.Bucket(bucketCheckpoints).Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if len(k) != account.Size+8 {
				return fmt.Errorf("%w: checkpoint key of %d bytes", ErrCorruptRecord, len(k))
			}
			if !bytes.Equal(k[:account.Size], cur) {
				if err := flush(); err != nil {
					return err
				}
				cur = append(cur[:0], k[:account.Size]...)
			}
			cp, err := DeserializeCheckpoint(v)
			if err != nil {
				return err
			}
			if cp.Sequence <= seq {
				last, have = cp, true
			}
		}
		return flush()
	})
	if err != nil {
		return nil, fmt.Errorf("boltstore: list holdings at %d: %w", seq, err)
	}
	return result, nil
}

// Commit applies b in a single bbolt transaction.
func (s *BoltStore) Commit(b *Batch) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		seq := make([]byte, 8)
		binary.BigEndian.PutUint64(seq, b.Sequence)
		if err := meta.Put(keySequence, seq); err != nil {
			return fmt.Errorf("boltstore: put sequence: %w", err)
		}
		supply := b.TotalSupply.Bytes()
		if err := meta.Put(keySupply, supply[:]); err != nil {
			return fmt.Errorf("boltstore: put supply: %w", err)
		}

		balances := tx.Bucket(bucketBalances)
		checkpoints := tx.Bucket(bucketCheckpoints)
		for addr, bal := range b.Balances {
			raw := bal.Bytes()
			if err := balances.Put(addr[:], raw[:]); err != nil {
				return fmt.Errorf("boltstore: put balance: %w", err)
			}
			cp := SerializeCheckpoint(Checkpoint{Sequence: b.Sequence, Balance: bal})
			if err := checkpoints.Put(checkpointKey(addr, b.Sequence), cp); err != nil {
				return fmt.Errorf("boltstore: put checkpoint: %w", err)
			}
		}
		return nil
	})
}
