package state

import (
	"context"

	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/vault"
)

// CollateralView implements vault.CollateralVault over one market's slot
// in the store. Each accessor takes the store's read lock independently,
// so a view read reflects the store at the moment of that read.
type CollateralView struct {
	store  *Store
	market uint32
}

func (v *CollateralView) TotalSupply(ctx context.Context) (fixed.Amount, error) {
	cs, err := v.store.collateralFor(v.market)
	return cs.TotalSupply, err
}

func (v *CollateralView) TotalBalance(ctx context.Context) (fixed.Amount, error) {
	cs, err := v.store.collateralFor(v.market)
	return cs.TotalBalance, err
}

func (v *CollateralView) TotalAssets(ctx context.Context) (fixed.Amount, error) {
	cs, err := v.store.collateralFor(v.market)
	return cs.TotalAssets, err
}

func (v *CollateralView) ExchangeRate(ctx context.Context) (fixed.Amount, error) {
	cs, err := v.store.collateralFor(v.market)
	return cs.ExchangeRate, err
}

func (v *CollateralView) DebtRatio(ctx context.Context) (fixed.Amount, error) {
	cs, err := v.store.collateralFor(v.market)
	return cs.DebtRatio, err
}

func (v *CollateralView) LiquidationFee(ctx context.Context) (fixed.Amount, error) {
	cs, err := v.store.collateralFor(v.market)
	return cs.LiquidationFee, err
}

func (v *CollateralView) LiquidationIncentive(ctx context.Context) (fixed.Amount, error) {
	cs, err := v.store.collateralFor(v.market)
	return cs.LiquidationIncentive, err
}

func (v *CollateralView) TokenPrice(ctx context.Context) (fixed.Amount, error) {
	cs, err := v.store.collateralFor(v.market)
	return cs.TokenPrice, err
}

func (v *CollateralView) BalanceOf(ctx context.Context, account vault.Address) (fixed.Amount, error) {
	acct, err := v.store.collateralAccount(v.market, account)
	return acct.balance, err
}

func (v *CollateralView) BorrowerStanding(ctx context.Context, account vault.Address) (vault.BorrowerStanding, error) {
	acct, err := v.store.collateralAccount(v.market, account)
	return acct.standing, err
}

func (v *CollateralView) AccountLiquidity(ctx context.Context, account vault.Address) (vault.AccountLiquidity, error) {
	acct, err := v.store.collateralAccount(v.market, account)
	return acct.liquidity, err
}

// BorrowableView implements vault.BorrowableVault over one market's slot.
type BorrowableView struct {
	store  *Store
	market uint32
}

func (v *BorrowableView) TotalSupply(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.TotalSupply, err
}

func (v *BorrowableView) TotalBalance(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.TotalBalance, err
}

func (v *BorrowableView) TotalBorrows(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.TotalBorrows, err
}

func (v *BorrowableView) TotalAssets(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.TotalAssets, err
}

func (v *BorrowableView) ExchangeRate(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.ExchangeRate, err
}

func (v *BorrowableView) ReserveFactor(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.ReserveFactor, err
}

func (v *BorrowableView) UtilizationRate(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.UtilizationRate, err
}

func (v *BorrowableView) SupplyRate(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.SupplyRate, err
}

func (v *BorrowableView) BorrowRate(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.BorrowRate, err
}

func (v *BorrowableView) UnderlyingPrice(ctx context.Context) (fixed.Amount, error) {
	bs, err := v.store.borrowableFor(v.market)
	return bs.UnderlyingPrice, err
}

func (v *BorrowableView) BorrowBalance(ctx context.Context, account vault.Address) (vault.BorrowBalance, error) {
	acct, err := v.store.borrowableAccount(v.market, account)
	return acct.borrow, err
}

func (v *BorrowableView) LenderPosition(ctx context.Context, account vault.Address) (vault.LendPosition, error) {
	acct, err := v.store.borrowableAccount(v.market, account)
	return acct.lend, err
}
