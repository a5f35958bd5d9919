package oracle

import (
	"context"
	"fmt"
	"sync"
)

// RoundData is a feed's latest answer.
type RoundData struct {
	RoundID   uint64 `json:"roundId"`
	Answer    int64  `json:"answer"`
	Decimals  uint8  `json:"decimals"`
	UpdatedAt int64  `json:"updatedAt"` // unix seconds
}

// Feed is an external price feed addressed by reference.
type Feed interface {
	LatestRound(ctx context.Context, ref string) (RoundData, error)
}

// StaticFeed serves fixed answers set by the caller.
type StaticFeed struct {
	mu     sync.RWMutex
	rounds map[string]RoundData
}

// Compile-time interface check.
var _ Feed = (*StaticFeed)(nil)

// NewStaticFeed creates an empty feed.
func NewStaticFeed() *StaticFeed {
	return &StaticFeed{rounds: make(map[string]RoundData)}
}

// Set publishes rd under ref.
func (f *StaticFeed) Set(ref string, rd RoundData) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rounds[ref] = rd
}

// LatestRound implements Feed.
func (f *StaticFeed) LatestRound(_ context.Context, ref string) (RoundData, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	rd, ok := f.rounds[ref]
	if !ok {
		return RoundData{}, fmt.Errorf("%w: %q", ErrUnknownFeed, ref)
	}
	return rd, nil
}

// MockFeed is a test double for Feed.
type MockFeed struct {
	LatestRoundFn func(ctx context.Context, ref string) (RoundData, error)
}

func (m *MockFeed) LatestRound(ctx context.Context, ref string) (RoundData, error) {
	return m.LatestRoundFn(ctx, ref)
}
