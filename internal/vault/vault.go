// Package vault defines the read contracts of the two vault kinds backing a
// lending market. The position engine is written only against these
// interfaces; a conforming implementation exists per backing store (the
// in-memory event-fed store, the Postgres projection tables).
//
// Contract shared by all account-scoped accessors: an account with no stake
// in a vault reads as zero, it is not an error. Errors mean the read itself
// failed or returned something unusable.
package vault

import (
	"context"
	"strings"

	"ShuttleLens/internal/fixed"
)

// Address identifies a protocol account. Addresses compare
// case-insensitively; NewAddress normalizes to lower case.
type Address string

func NewAddress(s string) Address {
	return Address(strings.ToLower(strings.TrimSpace(s)))
}

func (a Address) String() string { return string(a) }

// BorrowerStanding is a collateral vault's view of one borrower:
// collateral measured in the underlying, in USD, and the resulting
// health factor.
type BorrowerStanding struct {
	Collateral    fixed.Amount `json:"collateral"`
	CollateralUSD fixed.Amount `json:"collateral_usd"`
	Health        fixed.Amount `json:"health"`
}

// AccountLiquidity is the headroom a borrower has before liquidation:
// liquidity is spare borrowing capacity, shortfall is how far under water
// the account is. At most one of the two is non-zero.
type AccountLiquidity struct {
	Liquidity fixed.Amount `json:"liquidity"`
	Shortfall fixed.Amount `json:"shortfall"`
}

// BorrowBalance is a borrowable vault's view of one borrower's debt.
// Principal is the amount originally drawn; Owed adds accrued interest.
type BorrowBalance struct {
	Principal fixed.Amount `json:"principal"`
	Owed      fixed.Amount `json:"owed"`
}

// LendPosition is a borrowable vault's view of one lender's stake.
type LendPosition struct {
	Balance         fixed.Amount `json:"balance"`
	UnderlyingValue fixed.Amount `json:"underlying_value"`
	ValueUSD        fixed.Amount `json:"value_usd"`
}

// CollateralVault exposes the read surface of a market's collateral side.
type CollateralVault interface {
	TotalSupply(ctx context.Context) (fixed.Amount, error)
	TotalBalance(ctx context.Context) (fixed.Amount, error)
	TotalAssets(ctx context.Context) (fixed.Amount, error)
	ExchangeRate(ctx context.Context) (fixed.Amount, error)
	DebtRatio(ctx context.Context) (fixed.Amount, error)
	LiquidationFee(ctx context.Context) (fixed.Amount, error)
	LiquidationIncentive(ctx context.Context) (fixed.Amount, error)
	TokenPrice(ctx context.Context) (fixed.Amount, error)

	BalanceOf(ctx context.Context, account Address) (fixed.Amount, error)
	BorrowerStanding(ctx context.Context, account Address) (BorrowerStanding, error)
	AccountLiquidity(ctx context.Context, account Address) (AccountLiquidity, error)
}

// BorrowableVault exposes the read surface of a market's debt side.
type BorrowableVault interface {
	TotalSupply(ctx context.Context) (fixed.Amount, error)
	TotalBalance(ctx context.Context) (fixed.Amount, error)
	TotalBorrows(ctx context.Context) (fixed.Amount, error)
	TotalAssets(ctx context.Context) (fixed.Amount, error)
	ExchangeRate(ctx context.Context) (fixed.Amount, error)
	ReserveFactor(ctx context.Context) (fixed.Amount, error)
	UtilizationRate(ctx context.Context) (fixed.Amount, error)
	SupplyRate(ctx context.Context) (fixed.Amount, error)
	BorrowRate(ctx context.Context) (fixed.Amount, error)
	UnderlyingPrice(ctx context.Context) (fixed.Amount, error)

	BorrowBalance(ctx context.Context, account Address) (BorrowBalance, error)
	LenderPosition(ctx context.Context, account Address) (LendPosition, error)
}
