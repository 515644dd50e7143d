package ingestion

import (
	"encoding/json"
	"fmt"
	"time"

	"ShuttleLens/internal/event"
	"ShuttleLens/internal/fixed"
	"ShuttleLens/internal/vault"
)

// ParseRawEvent converts a RawEvent into a typed event.Event. Amounts
// travel as base-10 base-unit strings; anything malformed fails the whole
// message so it is never half-applied.
func ParseRawEvent(raw RawEvent) (event.Event, error) {
	switch raw.EventType {
	case event.TypeMarketRegistered:
		return parseMarketRegistered(raw.Data)
	case event.TypeCollateralState:
		return parseCollateralState(raw.Data)
	case event.TypeBorrowableState:
		return parseBorrowableState(raw.Data)
	case event.TypeAccountCollateral:
		return parseAccountCollateral(raw.Data)
	case event.TypeAccountBorrow:
		return parseAccountBorrow(raw.Data)
	case event.TypeAccountLend:
		return parseAccountLend(raw.Data)
	default:
		return nil, fmt.Errorf("unknown event type %d for subject %s", raw.EventType, raw.Subject)
	}
}

// amountParser accumulates the first parse failure so the per-event
// parsers stay flat.
type amountParser struct {
	err error
}

func (p *amountParser) amount(field, s string) fixed.Amount {
	if p.err != nil {
		return fixed.Zero()
	}
	a, err := fixed.Parse(s)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
	}
	return a
}

// --- JSON wire formats ---
// Field names are snake_case to match the indexer's producers.

type marketRegisteredJSON struct {
	MarketID    uint32 `json:"market_id"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseMarketRegistered(data []byte) (*event.MarketRegistered, error) {
	var j marketRegisteredJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse MarketRegistered: %w", err)
	}
	return &event.MarketRegistered{
		MarketID:  j.MarketID,
		Timestamp: time.UnixMicro(j.TimestampUs),
	}, nil
}

type collateralStateJSON struct {
	MarketID             uint32 `json:"market_id"`
	TotalSupply          string `json:"total_supply"`
	TotalBalance         string `json:"total_balance"`
	TotalAssets          string `json:"total_assets"`
	ExchangeRate         string `json:"exchange_rate"`
	DebtRatio            string `json:"debt_ratio"`
	LiquidationFee       string `json:"liquidation_fee"`
	LiquidationIncentive string `json:"liquidation_incentive"`
	TokenPrice           string `json:"token_price"`
	TimestampUs          int64  `json:"timestamp_us"`
}

func parseCollateralState(data []byte) (*event.CollateralState, error) {
	var j collateralStateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse CollateralState: %w", err)
	}

	var p amountParser
	evt := &event.CollateralState{
		MarketID:             j.MarketID,
		TotalSupply:          p.amount("total_supply", j.TotalSupply),
		TotalBalance:         p.amount("total_balance", j.TotalBalance),
		TotalAssets:          p.amount("total_assets", j.TotalAssets),
		ExchangeRate:         p.amount("exchange_rate", j.ExchangeRate),
		DebtRatio:            p.amount("debt_ratio", j.DebtRatio),
		LiquidationFee:       p.amount("liquidation_fee", j.LiquidationFee),
		LiquidationIncentive: p.amount("liquidation_incentive", j.LiquidationIncentive),
		TokenPrice:           p.amount("token_price", j.TokenPrice),
		Timestamp:            time.UnixMicro(j.TimestampUs),
	}
	if p.err != nil {
		return nil, fmt.Errorf("parse CollateralState: %w", p.err)
	}
	return evt, nil
}

type borrowableStateJSON struct {
	MarketID        uint32 `json:"market_id"`
	TotalSupply     string `json:"total_supply"`
	TotalBalance    string `json:"total_balance"`
	TotalBorrows    string `json:"total_borrows"`
	TotalAssets     string `json:"total_assets"`
	ExchangeRate    string `json:"exchange_rate"`
	ReserveFactor   string `json:"reserve_factor"`
	UtilizationRate string `json:"utilization_rate"`
	SupplyRate      string `json:"supply_rate"`
	BorrowRate      string `json:"borrow_rate"`
	UnderlyingPrice string `json:"underlying_price"`
	TimestampUs     int64  `json:"timestamp_us"`
}

func parseBorrowableState(data []byte) (*event.BorrowableState, error) {
	var j borrowableStateJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse BorrowableState: %w", err)
	}

	var p amountParser
	evt := &event.BorrowableState{
		MarketID:        j.MarketID,
		TotalSupply:     p.amount("total_supply", j.TotalSupply),
		TotalBalance:    p.amount("total_balance", j.TotalBalance),
		TotalBorrows:    p.amount("total_borrows", j.TotalBorrows),
		TotalAssets:     p.amount("total_assets", j.TotalAssets),
		ExchangeRate:    p.amount("exchange_rate", j.ExchangeRate),
		ReserveFactor:   p.amount("reserve_factor", j.ReserveFactor),
		UtilizationRate: p.amount("utilization_rate", j.UtilizationRate),
		SupplyRate:      p.amount("supply_rate", j.SupplyRate),
		BorrowRate:      p.amount("borrow_rate", j.BorrowRate),
		UnderlyingPrice: p.amount("underlying_price", j.UnderlyingPrice),
		Timestamp:       time.UnixMicro(j.TimestampUs),
	}
	if p.err != nil {
		return nil, fmt.Errorf("parse BorrowableState: %w", p.err)
	}
	return evt, nil
}

type accountCollateralJSON struct {
	MarketID      uint32 `json:"market_id"`
	Account       string `json:"account"`
	Balance       string `json:"balance"`
	Collateral    string `json:"collateral"`
	CollateralUSD string `json:"collateral_usd"`
	Health        string `json:"health"`
	Liquidity     string `json:"liquidity"`
	Shortfall     string `json:"shortfall"`
	TimestampUs   int64  `json:"timestamp_us"`
}

func parseAccountCollateral(data []byte) (*event.AccountCollateral, error) {
	var j accountCollateralJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AccountCollateral: %w", err)
	}
	if j.Account == "" {
		return nil, fmt.Errorf("parse AccountCollateral: missing account")
	}

	var p amountParser
	evt := &event.AccountCollateral{
		MarketID: j.MarketID,
		Account:  vault.NewAddress(j.Account),
		Balance:  p.amount("balance", j.Balance),
		Standing: vault.BorrowerStanding{
			Collateral:    p.amount("collateral", j.Collateral),
			CollateralUSD: p.amount("collateral_usd", j.CollateralUSD),
			Health:        p.amount("health", j.Health),
		},
		Liquidity: vault.AccountLiquidity{
			Liquidity: p.amount("liquidity", j.Liquidity),
			Shortfall: p.amount("shortfall", j.Shortfall),
		},
		Timestamp: time.UnixMicro(j.TimestampUs),
	}
	if p.err != nil {
		return nil, fmt.Errorf("parse AccountCollateral: %w", p.err)
	}
	return evt, nil
}

type accountBorrowJSON struct {
	MarketID    uint32 `json:"market_id"`
	Account     string `json:"account"`
	Principal   string `json:"principal"`
	Owed        string `json:"owed"`
	TimestampUs int64  `json:"timestamp_us"`
}

func parseAccountBorrow(data []byte) (*event.AccountBorrow, error) {
	var j accountBorrowJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AccountBorrow: %w", err)
	}
	if j.Account == "" {
		return nil, fmt.Errorf("parse AccountBorrow: missing account")
	}

	var p amountParser
	evt := &event.AccountBorrow{
		MarketID: j.MarketID,
		Account:  vault.NewAddress(j.Account),
		Borrow: vault.BorrowBalance{
			Principal: p.amount("principal", j.Principal),
			Owed:      p.amount("owed", j.Owed),
		},
		Timestamp: time.UnixMicro(j.TimestampUs),
	}
	if p.err != nil {
		return nil, fmt.Errorf("parse AccountBorrow: %w", p.err)
	}
	return evt, nil
}

type accountLendJSON struct {
	MarketID        uint32 `json:"market_id"`
	Account         string `json:"account"`
	Balance         string `json:"balance"`
	UnderlyingValue string `json:"underlying_value"`
	ValueUSD        string `json:"value_usd"`
	TimestampUs     int64  `json:"timestamp_us"`
}

func parseAccountLend(data []byte) (*event.AccountLend, error) {
	var j accountLendJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return nil, fmt.Errorf("parse AccountLend: %w", err)
	}
	if j.Account == "" {
		return nil, fmt.Errorf("parse AccountLend: missing account")
	}

	var p amountParser
	evt := &event.AccountLend{
		MarketID: j.MarketID,
		Account:  vault.NewAddress(j.Account),
		Lend: vault.LendPosition{
			Balance:         p.amount("balance", j.Balance),
			UnderlyingValue: p.amount("underlying_value", j.UnderlyingValue),
			ValueUSD:        p.amount("value_usd", j.ValueUSD),
		},
		Timestamp: time.UnixMicro(j.TimestampUs),
	}
	if p.err != nil {
		return nil, fmt.Errorf("parse AccountLend: %w", p.err)
	}
	return evt, nil
}
