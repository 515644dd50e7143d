package pgstore

import (
	"context"
	"database/sql"
	"fmt"

	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/vault"
)

// collateralVault reads one market's collateral side from the projection
// tables. Market-level metrics must be synced before they are readable;
// account-level rows read as zero when absent.
type collateralVault struct {
	db     *sql.DB
	market uint32
}

type collateralRow struct {
	totalSupply          string
	totalBalance         string
	totalAssets          string
	exchangeRate         string
	debtRatio            string
	liquidationFee       string
	liquidationIncentive string
	tokenPrice           string
}

func (v *collateralVault) row(ctx context.Context) (collateralRow, error) {
	const q = `
		SELECT total_supply::text, total_balance::text, total_assets::text,
		       exchange_rate::text, debt_ratio::text, liquidation_fee::text,
		       liquidation_incentive::text, token_price::text
		FROM collateral_state WHERE market_id = $1`

	var r collateralRow
	err := v.db.QueryRowContext(ctx, q, v.market).Scan(
		&r.totalSupply, &r.totalBalance, &r.totalAssets,
		&r.exchangeRate, &r.debtRatio, &r.liquidationFee,
		&r.liquidationIncentive, &r.tokenPrice,
	)
	if err == sql.ErrNoRows {
		return r, fmt.Errorf("collateral state for market %d not synced", v.market)
	}
	if err != nil {
		return r, fmt.Errorf("read collateral state for market %d: %w", v.market, err)
	}
	return r, nil
}

func (v *collateralVault) metric(ctx context.Context, pick func(collateralRow) string) (fixed.Amount, error) {
	r, err := v.row(ctx)
	if err != nil {
		return fixed.Zero(), err
	}
	return fixed.Parse(pick(r))
}

func (v *collateralVault) TotalSupply(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r collateralRow) string { return r.totalSupply })
}

func (v *collateralVault) TotalBalance(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r collateralRow) string { return r.totalBalance })
}

func (v *collateralVault) TotalAssets(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r collateralRow) string { return r.totalAssets })
}

func (v *collateralVault) ExchangeRate(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r collateralRow) string { return r.exchangeRate })
}

func (v *collateralVault) DebtRatio(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r collateralRow) string { return r.debtRatio })
}

func (v *collateralVault) LiquidationFee(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r collateralRow) string { return r.liquidationFee })
}

func (v *collateralVault) LiquidationIncentive(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r collateralRow) string { return r.liquidationIncentive })
}

func (v *collateralVault) TokenPrice(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r collateralRow) string { return r.tokenPrice })
}

func (v *collateralVault) BalanceOf(ctx context.Context, account vault.Address) (fixed.Amount, error) {
	return scanAmount(ctx, v.db,
		`SELECT balance::text FROM account_collateral WHERE market_id = $1 AND account = $2`,
		v.market, account.String())
}

func (v *collateralVault) BorrowerStanding(ctx context.Context, account vault.Address) (vault.BorrowerStanding, error) {
	const q = `
		SELECT collateral::text, collateral_usd::text, health::text
		FROM account_collateral WHERE market_id = $1 AND account = $2`

	var collateral, collateralUSD, health string
	err := v.db.QueryRowContext(ctx, q, v.market, account.String()).
		Scan(&collateral, &collateralUSD, &health)
	if err == sql.ErrNoRows {
		return vault.BorrowerStanding{}, nil
	}
	if err != nil {
		return vault.BorrowerStanding{}, fmt.Errorf("read borrower standing: %w", err)
	}

	var p amountParser
	standing := vault.BorrowerStanding{
		Collateral:    p.amount("collateral", collateral),
		CollateralUSD: p.amount("collateral_usd", collateralUSD),
		Health:        p.amount("health", health),
	}
	return standing, p.err
}

func (v *collateralVault) AccountLiquidity(ctx context.Context, account vault.Address) (vault.AccountLiquidity, error) {
	const q = `
		SELECT liquidity::text, shortfall::text
		FROM account_collateral WHERE market_id = $1 AND account = $2`

	var liquidity, shortfall string
	err := v.db.QueryRowContext(ctx, q, v.market, account.String()).Scan(&liquidity, &shortfall)
	if err == sql.ErrNoRows {
		return vault.AccountLiquidity{}, nil
	}
	if err != nil {
		return vault.AccountLiquidity{}, fmt.Errorf("read account liquidity: %w", err)
	}

	var p amountParser
	al := vault.AccountLiquidity{
		Liquidity: p.amount("liquidity", liquidity),
		Shortfall: p.amount("shortfall", shortfall),
	}
	return al, p.err
}

// borrowableVault reads one market's debt side.
type borrowableVault struct {
	db     *sql.DB
	market uint32
}

type borrowableRow struct {
	totalSupply     string
	totalBalance    string
	totalBorrows    string
	totalAssets     string
	exchangeRate    string
	reserveFactor   string
	utilizationRate string
	supplyRate      string
	borrowRate      string
	underlyingPrice string
}

func (v *borrowableVault) row(ctx context.Context) (borrowableRow, error) {
	const q = `
		SELECT total_supply::text, total_balance::text, total_borrows::text,
		       total_assets::text, exchange_rate::text, reserve_factor::text,
		       utilization_rate::text, supply_rate::text, borrow_rate::text,
		       underlying_price::text
		FROM borrowable_state WHERE market_id = $1`

	var r borrowableRow
	err := v.db.QueryRowContext(ctx, q, v.market).Scan(
		&r.totalSupply, &r.totalBalance, &r.totalBorrows,
		&r.totalAssets, &r.exchangeRate, &r.reserveFactor,
		&r.utilizationRate, &r.supplyRate, &r.borrowRate,
		&r.underlyingPrice,
	)
	if err == sql.ErrNoRows {
		return r, fmt.Errorf("borrowable state for market %d not synced", v.market)
	}
	if err != nil {
		return r, fmt.Errorf("read borrowable state for market %d: %w", v.market, err)
	}
	return r, nil
}

func (v *borrowableVault) metric(ctx context.Context, pick func(borrowableRow) string) (fixed.Amount, error) {
	r, err := v.row(ctx)
	if err != nil {
		return fixed.Zero(), err
	}
	return fixed.Parse(pick(r))
}

func (v *borrowableVault) TotalSupply(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.totalSupply })
}

func (v *borrowableVault) TotalBalance(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.totalBalance })
}

func (v *borrowableVault) TotalBorrows(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.totalBorrows })
}

func (v *borrowableVault) TotalAssets(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.totalAssets })
}

func (v *borrowableVault) ExchangeRate(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.exchangeRate })
}

func (v *borrowableVault) ReserveFactor(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.reserveFactor })
}

func (v *borrowableVault) UtilizationRate(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.utilizationRate })
}

func (v *borrowableVault) SupplyRate(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.supplyRate })
}

func (v *borrowableVault) BorrowRate(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.borrowRate })
}

func (v *borrowableVault) UnderlyingPrice(ctx context.Context) (fixed.Amount, error) {
	return v.metric(ctx, func(r borrowableRow) string { return r.underlyingPrice })
}

func (v *borrowableVault) BorrowBalance(ctx context.Context, account vault.Address) (vault.BorrowBalance, error) {
	const q = `
		SELECT principal::text, owed::text
		FROM account_borrows WHERE market_id = $1 AND account = $2`

	var principal, owed string
	err := v.db.QueryRowContext(ctx, q, v.market, account.String()).Scan(&principal, &owed)
	if err == sql.ErrNoRows {
		return vault.BorrowBalance{}, nil
	}
	if err != nil {
		return vault.BorrowBalance{}, fmt.Errorf("read borrow balance: %w", err)
	}

	var p amountParser
	bb := vault.BorrowBalance{
		Principal: p.amount("principal", principal),
		Owed:      p.amount("owed", owed),
	}
	return bb, p.err
}

func (v *borrowableVault) LenderPosition(ctx context.Context, account vault.Address) (vault.LendPosition, error) {
	const q = `
		SELECT balance::text, underlying_value::text, value_usd::text
		FROM account_lends WHERE market_id = $1 AND account = $2`

	var balance, underlying, valueUSD string
	err := v.db.QueryRowContext(ctx, q, v.market, account.String()).
		Scan(&balance, &underlying, &valueUSD)
	if err == sql.ErrNoRows {
		return vault.LendPosition{}, nil
	}
	if err != nil {
		return vault.LendPosition{}, fmt.Errorf("read lender position: %w", err)
	}

	var p amountParser
	lp := vault.LendPosition{
		Balance:         p.amount("balance", balance),
		UnderlyingValue: p.amount("underlying_value", underlying),
		ValueUSD:        p.amount("value_usd", valueUSD),
	}
	return lp, p.err
}

// amountParser collects the first column parse failure.
type amountParser struct {
	err error
}

func (p *amountParser) amount(col, raw string) fixed.Amount {
	if p.err != nil {
		return fixed.Zero()
	}
	a, err := fixed.Parse(raw)
	if err != nil {
		p.err = fmt.Errorf("column %s: %w", col, err)
	}
	return a
}
