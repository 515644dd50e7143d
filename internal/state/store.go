// Package state keeps an in-memory mirror of every market's vault state,
// fed by the indexer's vault-sync event stream. It is one of the backing
// stores the position engine can read through: the store implements
// registry.Registry, and its views implement the vault interfaces.
package state

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"ShuttleLens/internal/event"
	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/registry"
	"ShuttleLens/internal/vault"
)

// collateralAccount is one account's collateral-side state in one market.
type collateralAccount struct {
	balance   fixed.Amount
	standing  vault.BorrowerStanding
	liquidity vault.AccountLiquidity
}

// borrowableAccount is one account's debt-side state in one market.
type borrowableAccount struct {
	borrow vault.BorrowBalance
	lend   vault.LendPosition
}

// marketState holds both sides of one market. Account maps are lazily
// populated; a missing account reads as zero per the vault contract.
type marketState struct {
	collateral  event.CollateralState
	borrowable  event.BorrowableState
	collAccts   map[vault.Address]collateralAccount
	borrowAccts map[vault.Address]borrowableAccount
}

func newMarketState(id uint32) *marketState {
	return &marketState{
		collateral:  event.CollateralState{MarketID: id},
		borrowable:  event.BorrowableState{MarketID: id},
		collAccts:   make(map[vault.Address]collateralAccount),
		borrowAccts: make(map[vault.Address]borrowableAccount),
	}
}

// Store is the event-fed market mirror. Writes come from the ingestion
// pump only; reads come from any number of concurrent position calls.
type Store struct {
	mu      sync.RWMutex
	markets []*marketState
	log     zerolog.Logger
}

func NewStore(log zerolog.Logger) *Store {
	return &Store{log: log}
}

// Apply folds one vault-sync event into the store. Events for unregistered
// markets are rejected, except MarketRegistered for the next sequential id.
// Re-registration of an existing id is idempotent.
func (s *Store) Apply(evt event.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if reg, ok := evt.(*event.MarketRegistered); ok {
		return s.applyRegistered(reg)
	}

	id := evt.Market()
	if id >= uint32(len(s.markets)) {
		return fmt.Errorf("%s for unregistered market %d", evt.EventType(), id)
	}
	m := s.markets[id]

	switch e := evt.(type) {
	case *event.CollateralState:
		m.collateral = *e
	case *event.BorrowableState:
		m.borrowable = *e
	case *event.AccountCollateral:
		m.collAccts[e.Account] = collateralAccount{
			balance:   e.Balance,
			standing:  e.Standing,
			liquidity: e.Liquidity,
		}
	case *event.AccountBorrow:
		acct := m.borrowAccts[e.Account]
		acct.borrow = e.Borrow
		m.borrowAccts[e.Account] = acct
	case *event.AccountLend:
		acct := m.borrowAccts[e.Account]
		acct.lend = e.Lend
		m.borrowAccts[e.Account] = acct
	default:
		return fmt.Errorf("unhandled event type %s", evt.EventType())
	}
	return nil
}

func (s *Store) applyRegistered(e *event.MarketRegistered) error {
	next := uint32(len(s.markets))
	switch {
	case e.MarketID < next:
		// replay of an id we already hold
		return nil
	case e.MarketID > next:
		return fmt.Errorf("market %d registered out of order, expected %d", e.MarketID, next)
	}
	s.markets = append(s.markets, newMarketState(e.MarketID))
	s.log.Info().Uint32("market", e.MarketID).Msg("market registered")
	return nil
}

// TotalMarkets implements registry.Registry.
func (s *Store) TotalMarkets(ctx context.Context) (uint32, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint32(len(s.markets)), nil
}

// Market implements registry.Registry. The returned vault handles stay
// bound to the same market id for the store's lifetime.
func (s *Store) Market(ctx context.Context, id uint32) (registry.Market, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id >= uint32(len(s.markets)) {
		return registry.Market{}, registry.NotFound(id)
	}
	return registry.Market{
		ID:         id,
		Collateral: &CollateralView{store: s, market: id},
		Borrowable: &BorrowableView{store: s, market: id},
	}, nil
}

// snapshot-style accessors used by the views

func (s *Store) collateralFor(id uint32) (event.CollateralState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint32(len(s.markets)) {
		return event.CollateralState{}, registry.NotFound(id)
	}
	return s.markets[id].collateral, nil
}

func (s *Store) borrowableFor(id uint32) (event.BorrowableState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint32(len(s.markets)) {
		return event.BorrowableState{}, registry.NotFound(id)
	}
	return s.markets[id].borrowable, nil
}

func (s *Store) collateralAccount(id uint32, account vault.Address) (collateralAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint32(len(s.markets)) {
		return collateralAccount{}, registry.NotFound(id)
	}
	return s.markets[id].collAccts[account], nil
}

func (s *Store) borrowableAccount(id uint32, account vault.Address) (borrowableAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if id >= uint32(len(s.markets)) {
		return borrowableAccount{}, registry.NotFound(id)
	}
	return s.markets[id].borrowAccts[account], nil
}
