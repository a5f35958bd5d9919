package ledger

import (
	"sort"
	"sync"

	"github.com/bitfsorg/digikoin-go/account"
	"github.com/bitfsorg/digikoin-go/amount"
)

// Store persists balances, checkpoints and ledger counters.
type Store interface {
	// State returns the last committed sequence and total supply.
	State() (State, error)

	// Balance returns the current balance of addr, zero if absent.
	Balance(addr account.Address) (amount.Amount, error)

	// CheckpointAt returns the latest checkpoint of addr with Sequence <= seq.
	// The boolean is false if there is none.
	CheckpointAt(addr account.Address, seq uint64) (Checkpoint, bool, error)

	// Checkpoints returns the full checkpoint history of addr in sequence order.
	Checkpoints(addr account.Address) ([]Checkpoint, error)

	// Holdings returns every account with a non-zero balance, ordered by address.
	Holdings() ([]Holding, error)

	// HoldingsAt is Holdings as of sequence seq.
	HoldingsAt(seq uint64) ([]Holding, error)

	// Commit applies a batch atomically.
	Commit(b *Batch) error
}

// MemStore is an in-memory Store. Each account's history is an ordered slice
// searched with binary search.
type MemStore struct {
	mu          sync.RWMutex
	state       State
	balances    map[account.Address]amount.Amount
	checkpoints map[account.Address][]Checkpoint
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		balances:    make(map[account.Address]amount.Amount),
		checkpoints: make(map[account.Address][]Checkpoint),
	}
}

// State returns the ledger counters.
func (s *MemStore) State() (State, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state, nil
}

// Balance returns the current balance of addr.
func (s *MemStore) Balance(addr account.Address) (amount.Amount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.balances[addr], nil
}

// CheckpointAt returns the latest checkpoint of addr at or before seq.
func (s *MemStore) CheckpointAt(addr account.Address, seq uint64) (Checkpoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cps := s.checkpoints[addr]
	// First index with Sequence > seq; the answer is just before it.
	i := sort.Search(len(cps), func(i int) bool { return cps[i].Sequence > seq })
	if i == 0 {
		return Checkpoint{}, false, nil
	}
	return cps[i-1], true, nil
}

// Checkpoints returns a copy of the history of addr.
func (s *MemStore) Checkpoints(addr account.Address) ([]Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cps := s.checkpoints[addr]
	if len(cps) == 0 {
		return nil, nil
	}
	result := make([]Checkpoint, len(cps))
	copy(result, cps)
	return result, nil
}

// Holdings returns all non-zero balances ordered by address.
func (s *MemStore) Holdings() ([]Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Holding, 0, len(s.balances))
	for addr, bal := range s.balances {
		if !bal.IsZero() {
			result = append(result, Holding{Account: addr, Balance: bal})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Account.Compare(result[j].Account) < 0 })
	return result, nil
}

// HoldingsAt returns the balances as of seq that are non-zero, ordered by
// address.
func (s *MemStore) HoldingsAt(seq uint64) ([]Holding, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []Holding
	for addr, cps := range s.checkpoints {
		i := sort.Search(len(cps), func(i int) bool { return cps[i].Sequence > seq })
		if i > 0 && !cps[i-1].Balance.IsZero() {
			result = append(result, Holding{Account: addr, Balance: cps[i-1].Balance})
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Account.Compare(result[j].Account) < 0 })
	return result, nil
}

// Commit applies b.
func (s *MemStore) Commit(b *Batch) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = State{Sequence: b.Sequence, TotalSupply: b.TotalSupply}
	for addr, bal := range b.Balances {
		s.balances[addr] = bal
		s.checkpoints[addr] = appendCheckpoint(s.checkpoints[addr], Checkpoint{Sequence: b.Sequence, Balance: bal})
	}
	return nil
}

// appendCheckpoint appends cp, replacing the tail if it was written at the
// same sequence.
func appendCheckpoint(cps []Checkpoint, cp Checkpoint) []Checkpoint {
	if n := len(cps); n > 0 && cps[n-1].Sequence == cp.Sequence {
		cps[n-1] = cp
		return cps
	}
	return append(cps, cp)
}
