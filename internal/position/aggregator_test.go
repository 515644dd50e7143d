package position_test

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/rs/zerolog"

	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/position"
	"ShuttleLens/internal/registry"
	"ShuttleLens/internal/testutil"
	"ShuttleLens/internal/vault"
)

var (
	acctA = vault.NewAddress("0xAAA111")
	acctB = vault.NewAddress("0xBBB222")
)

func newAggregator() *position.Aggregator {
	return position.NewAggregator(zerolog.Nop(), 4)
}

// threeMarketRegistry builds the canonical fixture: markets 0, 1, 2 where
// account A has debt and collateral only in market 1.
func threeMarketRegistry() *registry.Static {
	reg := registry.NewStatic()

	for id := 0; id < 3; id++ {
		coll := &testutil.FakeCollateralVault{
			LiqIncentive: testutil.Amt(1080),
			Standings:    map[vault.Address]vault.BorrowerStanding{},
			Balances:     map[vault.Address]fixed.Amount{},
		}
		borr := &testutil.FakeBorrowableVault{
			BorrowBals: map[vault.Address]vault.BorrowBalance{},
			LendPos:    map[vault.Address]vault.LendPosition{},
		}
		if id == 1 {
			borr.BorrowBals[acctA] = vault.BorrowBalance{
				Principal: testutil.Amt(100),
				Owed:      testutil.Amt(105),
			}
			coll.Standings[acctA] = vault.BorrowerStanding{
				Collateral:    testutil.Amt(500),
				CollateralUSD: testutil.Amt(750),
				Health:        testutil.Amt(2),
			}
			coll.Balances[acctA] = testutil.Amt(480)
		}
		reg.Register(coll, borr)
	}
	return reg
}

func TestMarketSnapshot_Passthrough(t *testing.T) {
	reg := registry.NewStatic()
	coll := &testutil.FakeCollateralVault{
		Supply:       testutil.Amt(11),
		Balance:      testutil.Amt(12),
		Assets:       testutil.Amt(13),
		Rate:         testutil.Amt(14),
		DebtRatioVal: testutil.Amt(15),
		LiqFee:       testutil.Amt(16),
		LiqIncentive: testutil.Amt(17),
		Price:        testutil.Amt(18),
	}
	borr := &testutil.FakeBorrowableVault{
		Supply:      testutil.Amt(21),
		Balance:     testutil.Amt(22),
		Borrows:     testutil.Amt(23),
		Assets:      testutil.Amt(24),
		Rate:        testutil.Amt(25),
		Reserve:     testutil.Amt(26),
		Utilization: testutil.Amt(27),
		SupplyAPR:   testutil.Amt(28),
		BorrowAPR:   testutil.Amt(29),
		Price:       testutil.Amt(30),
	}
	reg.Register(coll, borr)

	cs, ds, err := newAggregator().MarketSnapshot(context.Background(), reg, 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	wantCS := position.CollateralSnapshot{
		MarketID:             0,
		TotalSupply:          testutil.Amt(11),
		TotalBalance:         testutil.Amt(12),
		TotalAssets:          testutil.Amt(13),
		ExchangeRate:         testutil.Amt(14),
		DebtRatio:            testutil.Amt(15),
		LiquidationFee:       testutil.Amt(16),
		LiquidationIncentive: testutil.Amt(17),
		TokenPrice:           testutil.Amt(18),
	}
	if !reflect.DeepEqual(cs, wantCS) {
		t.Errorf("collateral snapshot:\n got %+v\nwant %+v", cs, wantCS)
	}

	wantDS := position.DebtSnapshot{
		MarketID:        0,
		TotalSupply:     testutil.Amt(21),
		TotalBalance:    testutil.Amt(22),
		TotalBorrows:    testutil.Amt(23),
		TotalAssets:     testutil.Amt(24),
		ExchangeRate:    testutil.Amt(25),
		ReserveFactor:   testutil.Amt(26),
		UtilizationRate: testutil.Amt(27),
		SupplyRate:      testutil.Amt(28),
		BorrowRate:      testutil.Amt(29),
		UnderlyingPrice: testutil.Amt(30),
	}
	if !reflect.DeepEqual(ds, wantDS) {
		t.Errorf("debt snapshot:\n got %+v\nwant %+v", ds, wantDS)
	}
}

func TestMarketSnapshot_Boundary(t *testing.T) {
	reg := threeMarketRegistry()
	agg := newAggregator()

	// last valid id succeeds
	if _, _, err := agg.MarketSnapshot(context.Background(), reg, 2); err != nil {
		t.Errorf("market 2 should exist: %v", err)
	}

	// one past the last valid id fails with ErrMarketNotFound
	_, _, err := agg.MarketSnapshot(context.Background(), reg, 3)
	if !errors.Is(err, registry.ErrMarketNotFound) {
		t.Errorf("market 3: got %v, want ErrMarketNotFound", err)
	}
}

func TestBorrowerPosition_Assembly(t *testing.T) {
	reg := threeMarketRegistry()

	pos, err := newAggregator().BorrowerPosition(context.Background(), reg, 1, acctA)
	if err != nil {
		t.Fatalf("borrower position: %v", err)
	}

	if pos.MarketID != 1 {
		t.Errorf("market id: got %d, want 1", pos.MarketID)
	}
	checks := []struct {
		name string
		got  fixed.Amount
		want uint64
	}{
		{"collateral_amount", pos.CollateralAmount, 500},
		{"collateral_value_usd", pos.CollateralValueUSD, 750},
		{"health_factor", pos.HealthFactor, 2},
		{"collateral_token_balance", pos.CollateralTokenBalance, 480},
		{"debt_principal", pos.DebtPrincipal, 100},
		{"debt_owed", pos.DebtOwed, 105},
	}
	for _, c := range checks {
		if !c.got.Equal(testutil.Amt(c.want)) {
			t.Errorf("%s: got %s, want %d", c.name, c.got.String(), c.want)
		}
	}
}

func TestBorrowerPosition_UnknownMarket(t *testing.T) {
	reg := threeMarketRegistry()

	_, err := newAggregator().BorrowerPosition(context.Background(), reg, 99, acctA)
	if !errors.Is(err, registry.ErrMarketNotFound) {
		t.Errorf("got %v, want ErrMarketNotFound", err)
	}
}

func TestBorrowerPositionAllMarkets_SumsContributions(t *testing.T) {
	reg := threeMarketRegistry()

	totals, err := newAggregator().BorrowerPositionAllMarkets(context.Background(), reg, acctA)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if !totals.TotalPrincipal.Equal(testutil.Amt(100)) {
		t.Errorf("total principal: got %s, want 100", totals.TotalPrincipal.String())
	}
	if !totals.TotalDebtOwed.Equal(testutil.Amt(105)) {
		t.Errorf("total debt owed: got %s, want 105", totals.TotalDebtOwed.String())
	}
	if !totals.TotalCollateralValueUSD.Equal(testutil.Amt(750)) {
		t.Errorf("total collateral value: got %s, want 750", totals.TotalCollateralValueUSD.String())
	}
}

func TestBorrowerPositionAllMarkets_NoPositionsIsZeroNotError(t *testing.T) {
	reg := threeMarketRegistry()

	totals, err := newAggregator().BorrowerPositionAllMarkets(context.Background(), reg, acctB)
	if err != nil {
		t.Fatalf("scan for empty account: %v", err)
	}
	if !totals.TotalPrincipal.IsZero() || !totals.TotalDebtOwed.IsZero() || !totals.TotalCollateralValueUSD.IsZero() {
		t.Errorf("empty account should sum to zero, got %+v", totals)
	}
}

func TestBorrowerPositionAllMarkets_MidScanFailureAborts(t *testing.T) {
	reg := registry.NewStatic()
	reg.Register(&testutil.FakeCollateralVault{}, &testutil.FakeBorrowableVault{})
	broken := &testutil.FakeBorrowableVault{Err: errors.New("rpc timeout")}
	reg.Register(&testutil.FakeCollateralVault{}, broken)
	reg.Register(&testutil.FakeCollateralVault{}, &testutil.FakeBorrowableVault{})

	_, err := newAggregator().BorrowerPositionAllMarkets(context.Background(), reg, acctA)
	if err == nil {
		t.Fatal("scan with a failing vault must abort")
	}

	var upstream *position.UpstreamReadError
	if !errors.As(err, &upstream) {
		t.Fatalf("got %T (%v), want UpstreamReadError", err, err)
	}
	if upstream.MarketID != 1 {
		t.Errorf("failing market: got %d, want 1", upstream.MarketID)
	}
}

func TestBorrowerPositionAllMarkets_OverflowIsFatal(t *testing.T) {
	max := fixed.MustParse("115792089237316195423570985008687907853269984665640564039457584007913129639935")

	reg := registry.NewStatic()
	for i := 0; i < 2; i++ {
		reg.Register(
			&testutil.FakeCollateralVault{},
			&testutil.FakeBorrowableVault{
				BorrowBals: map[vault.Address]vault.BorrowBalance{
					acctA: {Principal: max, Owed: max},
				},
			},
		)
	}

	_, err := newAggregator().BorrowerPositionAllMarkets(context.Background(), reg, acctA)
	if !errors.Is(err, fixed.ErrOverflow) {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

func TestLenderPosition_Assembly(t *testing.T) {
	reg := registry.NewStatic()
	reg.Register(
		&testutil.FakeCollateralVault{},
		&testutil.FakeBorrowableVault{
			Rate:  testutil.Amt(3),
			Price: testutil.Amt(7),
			LendPos: map[vault.Address]vault.LendPosition{
				acctA: {
					Balance:         testutil.Amt(40),
					UnderlyingValue: testutil.Amt(120),
					ValueUSD:        testutil.Amt(840),
				},
			},
		},
	)

	pos, err := newAggregator().LenderPosition(context.Background(), reg, 0, acctA)
	if err != nil {
		t.Fatalf("lender position: %v", err)
	}

	want := position.LenderPosition{
		MarketID:         0,
		LendTokenBalance: testutil.Amt(40),
		UnderlyingValue:  testutil.Amt(120),
		PositionValueUSD: testutil.Amt(840),
		UnderlyingPrice:  testutil.Amt(7),
		LendExchangeRate: testutil.Amt(3),
	}
	if !reflect.DeepEqual(pos, want) {
		t.Errorf("got %+v\nwant %+v", pos, want)
	}
}

func TestLenderPositionAllMarkets_SumsContributions(t *testing.T) {
	reg := registry.NewStatic()
	for i := uint64(1); i <= 3; i++ {
		reg.Register(
			&testutil.FakeCollateralVault{},
			&testutil.FakeBorrowableVault{
				LendPos: map[vault.Address]vault.LendPosition{
					acctA: {
						Balance:         testutil.Amt(10 * i),
						UnderlyingValue: testutil.Amt(100 * i),
						ValueUSD:        testutil.Amt(1000 * i),
					},
				},
			},
		)
	}

	totals, err := newAggregator().LenderPositionAllMarkets(context.Background(), reg, acctA)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !totals.TotalLendBalance.Equal(testutil.Amt(60)) {
		t.Errorf("total lend balance: got %s, want 60", totals.TotalLendBalance.String())
	}
	if !totals.TotalUnderlyingValue.Equal(testutil.Amt(600)) {
		t.Errorf("total underlying: got %s, want 600", totals.TotalUnderlyingValue.String())
	}
	if !totals.TotalPositionValueUSD.Equal(testutil.Amt(6000)) {
		t.Errorf("total position value: got %s, want 6000", totals.TotalPositionValueUSD.String())
	}
}

func TestBatchPositions_OrderAndDuplicates(t *testing.T) {
	reg := threeMarketRegistry()

	queries := []position.Query{
		{MarketID: 1, Account: acctA},
		{MarketID: 0, Account: acctA},
		{MarketID: 1, Account: acctA}, // duplicate of query 0, not merged
		{MarketID: 2, Account: acctB},
	}

	results, err := newAggregator().BatchPositions(context.Background(), reg, queries)
	if err != nil {
		t.Fatalf("batch: %v", err)
	}
	if len(results) != len(queries) {
		t.Fatalf("result length: got %d, want %d", len(results), len(queries))
	}
	for i, q := range queries {
		if results[i].MarketID != q.MarketID || results[i].Account != q.Account {
			t.Errorf("result[%d] is for (%d,%s), want (%d,%s)",
				i, results[i].MarketID, results[i].Account, q.MarketID, q.Account)
		}
	}

	if !reflect.DeepEqual(results[0], results[2]) {
		t.Errorf("duplicate queries must yield identical results:\n %+v\n %+v", results[0], results[2])
	}
	if !results[0].DebtOwed.Equal(testutil.Amt(105)) {
		t.Errorf("debt owed: got %s, want 105", results[0].DebtOwed.String())
	}
	if !results[1].DebtOwed.IsZero() {
		t.Errorf("market 0 has no debt for A, got %s", results[1].DebtOwed.String())
	}
}

func TestBatchPositions_InvalidMarketAbortsBatch(t *testing.T) {
	reg := threeMarketRegistry()

	queries := []position.Query{
		{MarketID: 0, Account: acctA},
		{MarketID: 7, Account: acctA},
	}

	results, err := newAggregator().BatchPositions(context.Background(), reg, queries)
	if !errors.Is(err, registry.ErrMarketNotFound) {
		t.Errorf("got %v, want ErrMarketNotFound", err)
	}
	if results != nil {
		t.Errorf("failed batch must not return partial results")
	}
}

func TestBatchPositions_Empty(t *testing.T) {
	reg := threeMarketRegistry()

	results, err := newAggregator().BatchPositions(context.Background(), reg, nil)
	if err != nil {
		t.Fatalf("empty batch: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("empty batch: got %d results", len(results))
	}
}

func TestOperations_Idempotent(t *testing.T) {
	reg := threeMarketRegistry()
	agg := newAggregator()
	ctx := context.Background()

	t1, err := agg.BorrowerPositionAllMarkets(ctx, reg, acctA)
	if err != nil {
		t.Fatalf("first scan: %v", err)
	}
	t2, err := agg.BorrowerPositionAllMarkets(ctx, reg, acctA)
	if err != nil {
		t.Fatalf("second scan: %v", err)
	}
	if !t1.TotalPrincipal.Equal(t2.TotalPrincipal) ||
		!t1.TotalDebtOwed.Equal(t2.TotalDebtOwed) ||
		!t1.TotalCollateralValueUSD.Equal(t2.TotalCollateralValueUSD) {
		t.Errorf("repeated scan diverged: %+v vs %+v", t1, t2)
	}

	p1, err := agg.BorrowerPosition(ctx, reg, 1, acctA)
	if err != nil {
		t.Fatalf("first position: %v", err)
	}
	p2, err := agg.BorrowerPosition(ctx, reg, 1, acctA)
	if err != nil {
		t.Fatalf("second position: %v", err)
	}
	if !reflect.DeepEqual(p1, p2) {
		t.Errorf("repeated position diverged: %+v vs %+v", p1, p2)
	}
}

func TestScan_LargeRegistryWithNarrowFanout(t *testing.T) {
	reg := registry.NewStatic()
	for i := 0; i < 50; i++ {
		reg.Register(
			&testutil.FakeCollateralVault{
				Standings: map[vault.Address]vault.BorrowerStanding{
					acctA: {CollateralUSD: testutil.Amt(2)},
				},
			},
			&testutil.FakeBorrowableVault{
				BorrowBals: map[vault.Address]vault.BorrowBalance{
					acctA: {Principal: testutil.Amt(1), Owed: testutil.Amt(1)},
				},
			},
		)
	}

	agg := position.NewAggregator(zerolog.Nop(), 3)
	totals, err := agg.BorrowerPositionAllMarkets(context.Background(), reg, acctA)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !totals.TotalPrincipal.Equal(testutil.Amt(50)) {
		t.Errorf("total principal: got %s, want 50", totals.TotalPrincipal.String())
	}
	if !totals.TotalCollateralValueUSD.Equal(testutil.Amt(100)) {
		t.Errorf("total collateral: got %s, want 100", totals.TotalCollateralValueUSD.String())
	}
}
