// Package registry resolves numeric market ids to the pair of vaults
// backing each market ("shuttle").
package registry

import (
	"context"
	"errors"
	"fmt"

	"ShuttleLens/internal/vault"
)

// ErrMarketNotFound is returned for market ids outside the registered
// range. Valid ids are 0 <= id < TotalMarkets().
var ErrMarketNotFound = errors.New("market not found")

// Market pairs a collateral vault with its borrowable vault. The id is
// stable once registered and the vault handles never change afterwards;
// re-pointing them would break position comparability across calls.
type Market struct {
	ID         uint32
	Collateral vault.CollateralVault
	Borrowable vault.BorrowableVault
}

// Registry is the market directory the aggregator resolves against.
type Registry interface {
	// TotalMarkets returns the number of registered markets.
	TotalMarkets(ctx context.Context) (uint32, error)

	// Market returns the market registered under id, or an error wrapping
	// ErrMarketNotFound if id is out of range.
	Market(ctx context.Context, id uint32) (Market, error)
}

// NotFound builds the canonical out-of-range error for a market id.
func NotFound(id uint32) error {
	return fmt.Errorf("market %d: %w", id, ErrMarketNotFound)
}
