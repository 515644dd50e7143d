// Package pgstore reads market and vault state from the protocol indexer's
// Postgres projection tables. It is the second conforming backend for the
// position engine, next to the NATS-fed in-memory store.
//
// All reads are single-row lookups keyed by market id (and account).
// NUMERIC(78,0) columns are scanned as text and parsed into fixed amounts,
// so full 256-bit values survive the trip.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"

	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/registry"
	"ShuttleLens/internal/vault"
)

// Store implements registry.Registry over the markets projection table.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) TotalMarkets(ctx context.Context) (uint32, error) {
	var n uint32
	err := s.db.QueryRowContext(ctx, `SELECT count(*) FROM markets`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count markets: %w", err)
	}
	return n, nil
}

func (s *Store) Market(ctx context.Context, id uint32) (registry.Market, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM markets WHERE market_id = $1)`, id,
	).Scan(&exists)
	if err != nil {
		return registry.Market{}, fmt.Errorf("lookup market %d: %w", id, err)
	}
	if !exists {
		return registry.Market{}, registry.NotFound(id)
	}
	return registry.Market{
		ID:         id,
		Collateral: &collateralVault{db: s.db, market: id},
		Borrowable: &borrowableVault{db: s.db, market: id},
	}, nil
}

// scanAmount runs a single-amount query, treating a missing row as zero.
// Account-scoped rows only exist once an account touches a vault, and the
// vault contract reads absent stakes as zero.
func scanAmount(ctx context.Context, db *sql.DB, query string, args ...interface{}) (fixed.Amount, error) {
	var raw string
	err := db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if err == sql.ErrNoRows {
		return fixed.Zero(), nil
	}
	if err != nil {
		return fixed.Zero(), err
	}
	return fixed.Parse(raw)
}

var _ vault.CollateralVault = (*collateralVault)(nil)
var _ vault.BorrowableVault = (*borrowableVault)(nil)
