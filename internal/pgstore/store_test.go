package pgstore_test

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"ShuttleLens/internal/pgstore"
	"ShuttleLens/internal/position"
	"ShuttleLens/internal/registry"
	"ShuttleLens/internal/testutil"
	"ShuttleLens/internal/vault"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()
	testutil.RequireIntegration(t)

	db, err := sql.Open("postgres", testutil.TestPostgresDSN())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		t.Skipf("test postgres not available: %v", err)
	}

	if err := pgstore.NewMigrator(db, "../../migrations").Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	for _, table := range []string{"account_lends", "account_borrows", "account_collateral", "borrowable_state", "collateral_state", "markets"} {
		if _, err := db.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("clean %s: %v", table, err)
		}
	}
	return db
}

func seedMarket(t *testing.T, db *sql.DB, id uint32) {
	t.Helper()
	mustExec(t, db, `INSERT INTO markets (market_id) VALUES ($1)`, id)
	mustExec(t, db, `
		INSERT INTO collateral_state (market_id, total_supply, exchange_rate, token_price, liquidation_incentive)
		VALUES ($1, 1000, 1020000000000000000, 25, 1080)`, id)
	mustExec(t, db, `
		INSERT INTO borrowable_state (market_id, total_borrows, underlying_price)
		VALUES ($1, 400, 7)`, id)
}

func mustExec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	if _, err := db.Exec(query, args...); err != nil {
		t.Fatalf("exec %q: %v", query, err)
	}
}

func TestPGStore_RegistryAndVaults(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	store := pgstore.New(db)

	seedMarket(t, db, 0)
	seedMarket(t, db, 1)
	acct := vault.NewAddress("0xabc")
	mustExec(t, db, `
		INSERT INTO account_borrows (market_id, account, principal, owed)
		VALUES (1, $1, 100, 105)`, acct.String())
	mustExec(t, db, `
		INSERT INTO account_collateral (market_id, account, balance, collateral, collateral_usd, health)
		VALUES (1, $1, 480, 500, 750, 2)`, acct.String())

	n, err := store.TotalMarkets(ctx)
	if err != nil || n != 2 {
		t.Fatalf("total markets: got %d, err %v", n, err)
	}
	if _, err := store.Market(ctx, 2); !errors.Is(err, registry.ErrMarketNotFound) {
		t.Errorf("market 2: got %v, want ErrMarketNotFound", err)
	}

	agg := position.NewAggregator(zerolog.Nop(), 4)
	totals, err := agg.BorrowerPositionAllMarkets(ctx, store, acct)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if totals.TotalPrincipal.String() != "100" || totals.TotalDebtOwed.String() != "105" {
		t.Errorf("totals: got %+v", totals)
	}
	if totals.TotalCollateralValueUSD.String() != "750" {
		t.Errorf("collateral usd: got %s", totals.TotalCollateralValueUSD.String())
	}

	// account with no rows reads as zero, not as failure
	empty, err := agg.BorrowerPositionAllMarkets(ctx, store, vault.NewAddress("0xnobody"))
	if err != nil {
		t.Fatalf("empty scan: %v", err)
	}
	if !empty.TotalDebtOwed.IsZero() {
		t.Errorf("empty account owes %s", empty.TotalDebtOwed.String())
	}
}

func TestPGStore_SnapshotReflectsRow(t *testing.T) {
	db := setupDB(t)
	ctx := context.Background()
	store := pgstore.New(db)
	seedMarket(t, db, 0)

	agg := position.NewAggregator(zerolog.Nop(), 4)
	cs, ds, err := agg.MarketSnapshot(ctx, store, 0)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	if cs.TotalSupply.String() != "1000" {
		t.Errorf("total supply: got %s", cs.TotalSupply.String())
	}
	if cs.ExchangeRate.String() != "1020000000000000000" {
		t.Errorf("exchange rate: got %s", cs.ExchangeRate.String())
	}
	if ds.TotalBorrows.String() != "400" {
		t.Errorf("total borrows: got %s", ds.TotalBorrows.String())
	}
}
