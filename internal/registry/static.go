package registry

import (
	"context"
	"sync"

	"ShuttleLens/internal/vault"
)

// Static is an array-backed Registry. Ids are assigned sequentially at
// registration and never reused, so id validity is a bounds check.
type Static struct {
	mu      sync.RWMutex
	markets []Market
}

func NewStatic() *Static {
	return &Static{}
}

// Register appends a market and returns its assigned id.
func (s *Static) Register(collateral vault.CollateralVault, borrowable vault.BorrowableVault) Market {
	s.mu.Lock()
	defer s.mu.Unlock()

	m := Market{
		ID:         uint32(len(s.markets)),
		Collateral: collateral,
		Borrowable: borrowable,
	}
	s.markets = append(s.markets, m)
	return m
}

func (s *Static) TotalMarkets(ctx context.Context) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint32(len(s.markets)), nil
}

func (s *Static) Market(ctx context.Context, id uint32) (Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id >= uint32(len(s.markets)) {
		return Market{}, NotFound(id)
	}
	return s.markets[id], nil
}
