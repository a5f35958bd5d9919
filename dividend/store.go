package dividend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/bitfsorg/digikoin-go/account"
)

// Store persists rounds and claim records.
type Store interface {
	// NextRoundID returns the id the next round will get: the number of rounds.
	NextRoundID() (uint64, error)

	// PutRound writes r.
	PutRound(r Round) error

	// Round returns round id. The boolean is false if it does not exist.
	Round(id uint64) (Round, bool, error)

	// Rounds returns all rounds in id order.
	Rounds() ([]Round, error)

	// Claim returns the claim of holder on round id, if any.
	Claim(id uint64, holder account.Address) (Claim, bool, error)

	// SaveClaim writes r and c atomically.
	SaveClaim(r Round, c Claim) error

	// DeleteClaim writes r and removes the claim of holder on r atomically.
	DeleteClaim(r Round, holder account.Address) error

	// DeleteRound removes the most recent round, which must be id, and
	// hands its id out again.
	DeleteRound(id uint64) error

	// PendingClaims returns the claims in ClaimPending, ordered by round
	// and holder.
	PendingClaims() ([]Claim, error)
}

type claimKey struct {
	round  uint64
	holder account.Address
}

// MemStore is an in-memory Store.
type MemStore struct {
	mu     sync.RWMutex
	rounds []Round
	claims map[claimKey]Claim
}

// Compile-time interface check.
var _ Store = (*MemStore)(nil)

// NewMemStore creates an empty store.
func NewMemStore() *MemStore {
	return &MemStore{claims: make(map[claimKey]Claim)}
}

func (s *MemStore) NextRoundID() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.rounds)), nil
}

func (s *MemStore) PutRound(r Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putRound(r)
	return nil
}

func (s *MemStore) putRound(r Round) {
	if r.ID < uint64(len(s.rounds)) {
		s.rounds[r.ID] = r
		return
	}
	s.rounds = append(s.rounds, r)
}

func (s *MemStore) Round(id uint64) (Round, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint64(len(s.rounds)) {
		return Round{}, false, nil
	}
	return s.rounds[id], true, nil
}

func (s *MemStore) Rounds() ([]Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]Round, len(s.rounds))
	copy(result, s.rounds)
	return result, nil
}

func (s *MemStore) Claim(id uint64, holder account.Address) (Claim, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[claimKey{id, holder}]
	return c, ok, nil
}

func (s *MemStore) SaveClaim(r Round, c Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putRound(r)
	s.claims[claimKey{c.RoundID, c.Holder}] = c
	return nil
}

func (s *MemStore) DeleteClaim(r Round, holder account.Address) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putRound(r)
	delete(s.claims, claimKey{r.ID, holder})
	return nil
}

func (s *MemStore) DeleteRound(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n := uint64(len(s.rounds)); n == 0 || id != n-1 {
		return fmt.Errorf("%w: %d is not the latest round", ErrNoSuchRound, id)
	}
	s.rounds = s.rounds[:id]
	return nil
}

func (s *MemStore) PendingClaims() ([]Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []Claim
	for _, c := range s.claims {
		if c.Status == ClaimPending {
			result = append(result, c)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].RoundID != result[j].RoundID {
			return result[i].RoundID < result[j].RoundID
		}
		return result[i].Holder.Compare(result[j].Holder) < 0
	})
	return result, nil
}
