// Package position is the aggregation core: it resolves markets through a
// registry, reads account state from the markets' vaults, and folds the
// results into single-market, all-markets, and batched position reports.
//
// Every operation is a stateless read: nothing is cached between calls and
// nothing upstream is mutated. Reads within one call are not transactionally
// isolated from concurrent vault updates, so a multi-market report is
// point-in-time per read, not atomic across markets.
package position

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/registry"
	"ShuttleLens/internal/vault"
)

// DefaultFanout bounds concurrent vault reads in scans and batches when no
// explicit limit is configured.
const DefaultFanout = 16

// Aggregator computes position reports against any registry.Registry.
// It holds no registry of its own: the caller passes one per operation, so
// one aggregator serves every configured backend.
type Aggregator struct {
	log    zerolog.Logger
	fanout int
}

func NewAggregator(log zerolog.Logger, fanout int) *Aggregator {
	if fanout <= 0 {
		fanout = DefaultFanout
	}
	return &Aggregator{log: log, fanout: fanout}
}

// amountRead pairs a vault accessor with its destination field, so that
// projection assembly stays a flat list instead of a wall of error checks.
type amountRead struct {
	accessor string
	read     func(context.Context) (fixed.Amount, error)
	dst      *fixed.Amount
}

func runReads(ctx context.Context, marketID uint32, reads []amountRead) error {
	for _, r := range reads {
		v, err := r.read(ctx)
		if err != nil {
			return readErr(marketID, r.accessor, err)
		}
		*r.dst = v
	}
	return nil
}

// MarketSnapshot reads both vaults' full public metric sets for one market.
// The projections carry vault values through untouched; only field
// selection happens here.
func (a *Aggregator) MarketSnapshot(ctx context.Context, reg registry.Registry, marketID uint32) (CollateralSnapshot, DebtSnapshot, error) {
	m, err := reg.Market(ctx, marketID)
	if err != nil {
		return CollateralSnapshot{}, DebtSnapshot{}, err
	}

	cs := CollateralSnapshot{MarketID: marketID}
	ds := DebtSnapshot{MarketID: marketID}

	err = runReads(ctx, marketID, []amountRead{
		{"collateral.total_supply", m.Collateral.TotalSupply, &cs.TotalSupply},
		{"collateral.total_balance", m.Collateral.TotalBalance, &cs.TotalBalance},
		{"collateral.total_assets", m.Collateral.TotalAssets, &cs.TotalAssets},
		{"collateral.exchange_rate", m.Collateral.ExchangeRate, &cs.ExchangeRate},
		{"collateral.debt_ratio", m.Collateral.DebtRatio, &cs.DebtRatio},
		{"collateral.liquidation_fee", m.Collateral.LiquidationFee, &cs.LiquidationFee},
		{"collateral.liquidation_incentive", m.Collateral.LiquidationIncentive, &cs.LiquidationIncentive},
		{"collateral.token_price", m.Collateral.TokenPrice, &cs.TokenPrice},
		{"borrowable.total_supply", m.Borrowable.TotalSupply, &ds.TotalSupply},
		{"borrowable.total_balance", m.Borrowable.TotalBalance, &ds.TotalBalance},
		{"borrowable.total_borrows", m.Borrowable.TotalBorrows, &ds.TotalBorrows},
		{"borrowable.total_assets", m.Borrowable.TotalAssets, &ds.TotalAssets},
		{"borrowable.exchange_rate", m.Borrowable.ExchangeRate, &ds.ExchangeRate},
		{"borrowable.reserve_factor", m.Borrowable.ReserveFactor, &ds.ReserveFactor},
		{"borrowable.utilization_rate", m.Borrowable.UtilizationRate, &ds.UtilizationRate},
		{"borrowable.supply_rate", m.Borrowable.SupplyRate, &ds.SupplyRate},
		{"borrowable.borrow_rate", m.Borrowable.BorrowRate, &ds.BorrowRate},
		{"borrowable.underlying_price", m.Borrowable.UnderlyingPrice, &ds.UnderlyingPrice},
	})
	if err != nil {
		return CollateralSnapshot{}, DebtSnapshot{}, err
	}
	return cs, ds, nil
}

// BorrowerPosition assembles one account's borrow-side exposure in one
// market. Any failed vault read aborts the call.
func (a *Aggregator) BorrowerPosition(ctx context.Context, reg registry.Registry, marketID uint32, account vault.Address) (BorrowerPosition, error) {
	m, err := reg.Market(ctx, marketID)
	if err != nil {
		return BorrowerPosition{}, err
	}

	standing, err := m.Collateral.BorrowerStanding(ctx, account)
	if err != nil {
		return BorrowerPosition{}, readErr(marketID, "collateral.borrower_standing", err)
	}
	liquidity, err := m.Collateral.AccountLiquidity(ctx, account)
	if err != nil {
		return BorrowerPosition{}, readErr(marketID, "collateral.account_liquidity", err)
	}
	debt, err := m.Borrowable.BorrowBalance(ctx, account)
	if err != nil {
		return BorrowerPosition{}, readErr(marketID, "borrowable.borrow_balance", err)
	}

	pos := BorrowerPosition{
		MarketID:           marketID,
		CollateralAmount:   standing.Collateral,
		CollateralValueUSD: standing.CollateralUSD,
		HealthFactor:       standing.Health,
		DebtPrincipal:      debt.Principal,
		DebtOwed:           debt.Owed,
		AccountLiquidity:   liquidity.Liquidity,
		AccountShortfall:   liquidity.Shortfall,
	}
	err = runReads(ctx, marketID, []amountRead{
		{"collateral.balance_of", func(ctx context.Context) (fixed.Amount, error) {
			return m.Collateral.BalanceOf(ctx, account)
		}, &pos.CollateralTokenBalance},
		{"collateral.token_price", m.Collateral.TokenPrice, &pos.CollateralPrice},
		{"collateral.exchange_rate", m.Collateral.ExchangeRate, &pos.CollateralExchangeRate},
	})
	if err != nil {
		return BorrowerPosition{}, err
	}
	return pos, nil
}

// LenderPosition assembles one account's lend-side stake in one market.
func (a *Aggregator) LenderPosition(ctx context.Context, reg registry.Registry, marketID uint32, account vault.Address) (LenderPosition, error) {
	m, err := reg.Market(ctx, marketID)
	if err != nil {
		return LenderPosition{}, err
	}

	lend, err := m.Borrowable.LenderPosition(ctx, account)
	if err != nil {
		return LenderPosition{}, readErr(marketID, "borrowable.lender_position", err)
	}

	pos := LenderPosition{
		MarketID:         marketID,
		LendTokenBalance: lend.Balance,
		UnderlyingValue:  lend.UnderlyingValue,
		PositionValueUSD: lend.ValueUSD,
	}
	err = runReads(ctx, marketID, []amountRead{
		{"borrowable.underlying_price", m.Borrowable.UnderlyingPrice, &pos.UnderlyingPrice},
		{"borrowable.exchange_rate", m.Borrowable.ExchangeRate, &pos.LendExchangeRate},
	})
	if err != nil {
		return LenderPosition{}, err
	}
	return pos, nil
}

// borrowerShare is one market's contribution to an all-markets borrow scan.
type borrowerShare struct {
	principal     fixed.Amount
	owed          fixed.Amount
	collateralUSD fixed.Amount
}

// BorrowerPositionAllMarkets scans every registered market and sums the
// account's principal, total owed, and collateral USD value. Markets where
// the account holds nothing contribute zero. Reads fan out concurrently,
// bounded by the configured limit; each worker writes its own slot, and the
// sequential fold over the slots is commutative, so the totals are
// independent of completion order. Any failure discards the whole scan.
func (a *Aggregator) BorrowerPositionAllMarkets(ctx context.Context, reg registry.Registry, account vault.Address) (BorrowerTotals, error) {
	n, err := reg.TotalMarkets(ctx)
	if err != nil {
		return BorrowerTotals{}, fmt.Errorf("total markets: %w", err)
	}
	a.log.Debug().Str("account", account.String()).Uint32("markets", n).Msg("borrower scan")

	shares := make([]borrowerShare, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanout)

	for id := uint32(0); id < n; id++ {
		g.Go(func() error {
			m, err := reg.Market(gctx, id)
			if err != nil {
				return err
			}
			debt, err := m.Borrowable.BorrowBalance(gctx, account)
			if err != nil {
				return readErr(id, "borrowable.borrow_balance", err)
			}
			standing, err := m.Collateral.BorrowerStanding(gctx, account)
			if err != nil {
				return readErr(id, "collateral.borrower_standing", err)
			}
			shares[id] = borrowerShare{
				principal:     debt.Principal,
				owed:          debt.Owed,
				collateralUSD: standing.CollateralUSD,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return BorrowerTotals{}, err
	}

	var totals BorrowerTotals
	for _, s := range shares {
		if totals.TotalPrincipal, err = totals.TotalPrincipal.Add(s.principal); err != nil {
			return BorrowerTotals{}, fmt.Errorf("total principal: %w", err)
		}
		if totals.TotalDebtOwed, err = totals.TotalDebtOwed.Add(s.owed); err != nil {
			return BorrowerTotals{}, fmt.Errorf("total debt owed: %w", err)
		}
		if totals.TotalCollateralValueUSD, err = totals.TotalCollateralValueUSD.Add(s.collateralUSD); err != nil {
			return BorrowerTotals{}, fmt.Errorf("total collateral value: %w", err)
		}
	}
	return totals, nil
}

// lenderShare is one market's contribution to an all-markets lend scan.
type lenderShare struct {
	balance    fixed.Amount
	underlying fixed.Amount
	valueUSD   fixed.Amount
}

// LenderPositionAllMarkets is the lend-side counterpart of
// BorrowerPositionAllMarkets: same fan-out, same fold, lend quantities only.
func (a *Aggregator) LenderPositionAllMarkets(ctx context.Context, reg registry.Registry, account vault.Address) (LenderTotals, error) {
	n, err := reg.TotalMarkets(ctx)
	if err != nil {
		return LenderTotals{}, fmt.Errorf("total markets: %w", err)
	}
	a.log.Debug().Str("account", account.String()).Uint32("markets", n).Msg("lender scan")

	shares := make([]lenderShare, n)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanout)

	for id := uint32(0); id < n; id++ {
		g.Go(func() error {
			m, err := reg.Market(gctx, id)
			if err != nil {
				return err
			}
			lend, err := m.Borrowable.LenderPosition(gctx, account)
			if err != nil {
				return readErr(id, "borrowable.lender_position", err)
			}
			shares[id] = lenderShare{
				balance:    lend.Balance,
				underlying: lend.UnderlyingValue,
				valueUSD:   lend.ValueUSD,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return LenderTotals{}, err
	}

	var totals LenderTotals
	for _, s := range shares {
		if totals.TotalLendBalance, err = totals.TotalLendBalance.Add(s.balance); err != nil {
			return LenderTotals{}, fmt.Errorf("total lend balance: %w", err)
		}
		if totals.TotalUnderlyingValue, err = totals.TotalUnderlyingValue.Add(s.underlying); err != nil {
			return LenderTotals{}, fmt.Errorf("total underlying value: %w", err)
		}
		if totals.TotalPositionValueUSD, err = totals.TotalPositionValueUSD.Add(s.valueUSD); err != nil {
			return LenderTotals{}, fmt.Errorf("total position value: %w", err)
		}
	}
	return totals, nil
}

// BatchPositions computes one trimmed Result per Query, in input order:
// results[i] always corresponds to queries[i]. Queries may repeat markets or
// accounts; nothing is deduplicated and the output length always equals the
// input length. Workers write disjoint slots of the result slice, so no
// folding beyond index placement is needed. Any failure aborts the batch.
func (a *Aggregator) BatchPositions(ctx context.Context, reg registry.Registry, queries []Query) ([]Result, error) {
	a.log.Debug().Int("queries", len(queries)).Msg("batch positions")

	results := make([]Result, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.fanout)

	for i, q := range queries {
		g.Go(func() error {
			m, err := reg.Market(gctx, q.MarketID)
			if err != nil {
				return err
			}
			balance, err := m.Collateral.BalanceOf(gctx, q.Account)
			if err != nil {
				return readErr(q.MarketID, "collateral.balance_of", err)
			}
			standing, err := m.Collateral.BorrowerStanding(gctx, q.Account)
			if err != nil {
				return readErr(q.MarketID, "collateral.borrower_standing", err)
			}
			incentive, err := m.Collateral.LiquidationIncentive(gctx)
			if err != nil {
				return readErr(q.MarketID, "collateral.liquidation_incentive", err)
			}
			debt, err := m.Borrowable.BorrowBalance(gctx, q.Account)
			if err != nil {
				return readErr(q.MarketID, "borrowable.borrow_balance", err)
			}
			results[i] = Result{
				MarketID:               q.MarketID,
				Account:                q.Account,
				CollateralTokenBalance: balance,
				CollateralValueUSD:     standing.CollateralUSD,
				DebtOwed:               debt.Owed,
				HealthFactor:           standing.Health,
				LiquidationIncentive:   incentive,
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
