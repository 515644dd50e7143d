package position

import (
	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/vault"
)

// CollateralSnapshot is a pure projection of a collateral vault's public
// metrics at call time. No aggregation, no rescaling.
type CollateralSnapshot struct {
	MarketID             uint32       `json:"market_id"`
	TotalSupply          fixed.Amount `json:"total_supply"`
	TotalBalance         fixed.Amount `json:"total_balance"`
	TotalAssets          fixed.Amount `json:"total_assets"`
	ExchangeRate         fixed.Amount `json:"exchange_rate"`
	DebtRatio            fixed.Amount `json:"debt_ratio"`
	LiquidationFee       fixed.Amount `json:"liquidation_fee"`
	LiquidationIncentive fixed.Amount `json:"liquidation_incentive"`
	TokenPrice           fixed.Amount `json:"token_price"`
}

// DebtSnapshot is the borrowable-side counterpart of CollateralSnapshot.
type DebtSnapshot struct {
	MarketID        uint32       `json:"market_id"`
	TotalSupply     fixed.Amount `json:"total_supply"`
	TotalBalance    fixed.Amount `json:"total_balance"`
	TotalBorrows    fixed.Amount `json:"total_borrows"`
	TotalAssets     fixed.Amount `json:"total_assets"`
	ExchangeRate    fixed.Amount `json:"exchange_rate"`
	ReserveFactor   fixed.Amount `json:"reserve_factor"`
	UtilizationRate fixed.Amount `json:"utilization_rate"`
	SupplyRate      fixed.Amount `json:"supply_rate"`
	BorrowRate      fixed.Amount `json:"borrow_rate"`
	UnderlyingPrice fixed.Amount `json:"underlying_price"`
}

// BorrowerPosition is one account's borrow-side exposure in one market.
// Derived on every call, never persisted.
type BorrowerPosition struct {
	MarketID               uint32       `json:"market_id"`
	CollateralAmount       fixed.Amount `json:"collateral_amount"`
	CollateralValueUSD     fixed.Amount `json:"collateral_value_usd"`
	HealthFactor           fixed.Amount `json:"health_factor"`
	CollateralTokenBalance fixed.Amount `json:"collateral_token_balance"`
	DebtPrincipal          fixed.Amount `json:"debt_principal"`
	DebtOwed               fixed.Amount `json:"debt_owed"`
	CollateralPrice        fixed.Amount `json:"collateral_price"`
	AccountLiquidity       fixed.Amount `json:"account_liquidity"`
	AccountShortfall       fixed.Amount `json:"account_shortfall"`
	CollateralExchangeRate fixed.Amount `json:"collateral_exchange_rate"`
}

// LenderPosition is one account's lend-side stake in one market.
type LenderPosition struct {
	MarketID         uint32       `json:"market_id"`
	LendTokenBalance fixed.Amount `json:"lend_token_balance"`
	UnderlyingValue  fixed.Amount `json:"underlying_value"`
	PositionValueUSD fixed.Amount `json:"position_value_usd"`
	UnderlyingPrice  fixed.Amount `json:"underlying_price"`
	LendExchangeRate fixed.Amount `json:"lend_exchange_rate"`
}

// BorrowerTotals is an account's borrow-side exposure summed over every
// registered market. Markets without a position contribute zero.
type BorrowerTotals struct {
	TotalPrincipal          fixed.Amount `json:"total_principal"`
	TotalDebtOwed           fixed.Amount `json:"total_debt_owed"`
	TotalCollateralValueUSD fixed.Amount `json:"total_collateral_value_usd"`
}

// LenderTotals is the lend-side counterpart of BorrowerTotals.
type LenderTotals struct {
	TotalLendBalance      fixed.Amount `json:"total_lend_balance"`
	TotalUnderlyingValue  fixed.Amount `json:"total_underlying_value"`
	TotalPositionValueUSD fixed.Amount `json:"total_position_value_usd"`
}

// Query identifies one (market, account) position to compute in a batch.
type Query struct {
	MarketID uint32        `json:"market_id"`
	Account  vault.Address `json:"account"`
}

// Result is the trimmed position record computed per batch Query.
// Result i of a batch always corresponds to query i.
type Result struct {
	MarketID               uint32        `json:"market_id"`
	Account                vault.Address `json:"account"`
	CollateralTokenBalance fixed.Amount  `json:"collateral_token_balance"`
	CollateralValueUSD     fixed.Amount  `json:"collateral_value_usd"`
	DebtOwed               fixed.Amount  `json:"debt_owed"`
	HealthFactor           fixed.Amount  `json:"health_factor"`
	LiquidationIncentive   fixed.Amount  `json:"liquidation_incentive"`
}
