// Package event defines the vault-sync events the protocol indexer
// publishes. Each event is a full overwrite of the state it describes
// (market-level metrics or one account's position), so replaying the
// stream in order always converges on the indexer's view.
package event

import (
	"time"

	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/vault"
)

// Type discriminates event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypeMarketRegistered
	TypeCollateralState
	TypeBorrowableState
	TypeAccountCollateral
	TypeAccountBorrow
	TypeAccountLend
)

func (t Type) String() string {
	switch t {
	case TypeMarketRegistered:
		return "MarketRegistered"
	case TypeCollateralState:
		return "CollateralState"
	case TypeBorrowableState:
		return "BorrowableState"
	case TypeAccountCollateral:
		return "AccountCollateral"
	case TypeAccountBorrow:
		return "AccountBorrow"
	case TypeAccountLend:
		return "AccountLend"
	default:
		return "Unknown"
	}
}

// Event is implemented by every payload.
type Event interface {
	EventType() Type
	Market() uint32
}

// MarketRegistered announces a new market id. Ids are sequential; the
// event for id N is published before any state event for market N.
type MarketRegistered struct {
	MarketID  uint32
	Timestamp time.Time
}

func (e *MarketRegistered) EventType() Type { return TypeMarketRegistered }
func (e *MarketRegistered) Market() uint32  { return e.MarketID }

// CollateralState overwrites a market's collateral-side metrics.
type CollateralState struct {
	MarketID             uint32
	TotalSupply          fixed.Amount
	TotalBalance         fixed.Amount
	TotalAssets          fixed.Amount
	ExchangeRate         fixed.Amount
	DebtRatio            fixed.Amount
	LiquidationFee       fixed.Amount
	LiquidationIncentive fixed.Amount
	TokenPrice           fixed.Amount
	Timestamp            time.Time
}

func (e *CollateralState) EventType() Type { return TypeCollateralState }
func (e *CollateralState) Market() uint32  { return e.MarketID }

// BorrowableState overwrites a market's debt-side metrics.
type BorrowableState struct {
	MarketID        uint32
	TotalSupply     fixed.Amount
	TotalBalance    fixed.Amount
	TotalBorrows    fixed.Amount
	TotalAssets     fixed.Amount
	ExchangeRate    fixed.Amount
	ReserveFactor   fixed.Amount
	UtilizationRate fixed.Amount
	SupplyRate      fixed.Amount
	BorrowRate      fixed.Amount
	UnderlyingPrice fixed.Amount
	Timestamp       time.Time
}

func (e *BorrowableState) EventType() Type { return TypeBorrowableState }
func (e *BorrowableState) Market() uint32  { return e.MarketID }

// AccountCollateral overwrites one account's collateral-side state in one
// market: share balance, standing, and liquidation headroom.
type AccountCollateral struct {
	MarketID  uint32
	Account   vault.Address
	Balance   fixed.Amount
	Standing  vault.BorrowerStanding
	Liquidity vault.AccountLiquidity
	Timestamp time.Time
}

func (e *AccountCollateral) EventType() Type { return TypeAccountCollateral }
func (e *AccountCollateral) Market() uint32  { return e.MarketID }

// AccountBorrow overwrites one account's debt in one market.
type AccountBorrow struct {
	MarketID  uint32
	Account   vault.Address
	Borrow    vault.BorrowBalance
	Timestamp time.Time
}

func (e *AccountBorrow) EventType() Type { return TypeAccountBorrow }
func (e *AccountBorrow) Market() uint32  { return e.MarketID }

// AccountLend overwrites one account's lend-side stake in one market.
type AccountLend struct {
	MarketID  uint32
	Account   vault.Address
	Lend      vault.LendPosition
	Timestamp time.Time
}

func (e *AccountLend) EventType() Type { return TypeAccountLend }
func (e *AccountLend) Market() uint32  { return e.MarketID }
