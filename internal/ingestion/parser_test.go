package ingestion_test

import (
	"encoding/json"
	"testing"
	"time"

	"ShuttleLens/internal/event"
	"ShuttleLens/internal/ingestion"
)

func rawFromJSON(t *testing.T, eventType event.Type, v interface{}) ingestion.RawEvent {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return ingestion.RawEvent{
		Subject:   "test",
		EventType: eventType,
		Data:      data,
		Timestamp: time.Now(),
		AckFunc:   func() {},
		NakFunc:   func() {},
	}
}

func TestParseMarketRegistered(t *testing.T) {
	raw := rawFromJSON(t, event.TypeMarketRegistered, map[string]interface{}{
		"market_id":    uint32(3),
		"timestamp_us": int64(1700000000000000),
	})

	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	mr, ok := evt.(*event.MarketRegistered)
	if !ok {
		t.Fatalf("expected *event.MarketRegistered, got %T", evt)
	}
	if mr.MarketID != 3 {
		t.Errorf("market id: got %d, want 3", mr.MarketID)
	}
}

func TestParseAccountBorrow(t *testing.T) {
	raw := rawFromJSON(t, event.TypeAccountBorrow, map[string]interface{}{
		"market_id":    uint32(1),
		"account":      "0xAbC123",
		"principal":    "100000000000000000000",
		"owed":         "105000000000000000000",
		"timestamp_us": int64(1700000000000000),
	})

	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	ab, ok := evt.(*event.AccountBorrow)
	if !ok {
		t.Fatalf("expected *event.AccountBorrow, got %T", evt)
	}
	if ab.Account.String() != "0xabc123" {
		t.Errorf("account not normalized: got %s", ab.Account)
	}
	if ab.Borrow.Principal.String() != "100000000000000000000" {
		t.Errorf("principal: got %s", ab.Borrow.Principal.String())
	}
	if ab.Borrow.Owed.String() != "105000000000000000000" {
		t.Errorf("owed: got %s", ab.Borrow.Owed.String())
	}
	if ab.EventType() != event.TypeAccountBorrow {
		t.Errorf("event type: got %v", ab.EventType())
	}
}

func TestParseCollateralState(t *testing.T) {
	raw := rawFromJSON(t, event.TypeCollateralState, map[string]interface{}{
		"market_id":             uint32(0),
		"total_supply":          "1000",
		"total_balance":         "900",
		"total_assets":          "950",
		"exchange_rate":         "1020000000000000000",
		"debt_ratio":            "500000000000000000",
		"liquidation_fee":       "10000000000000000",
		"liquidation_incentive": "1080000000000000000",
		"token_price":           "25000000000000000000",
		"timestamp_us":          int64(1700000000000000),
	})

	evt, err := ingestion.ParseRawEvent(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cs := evt.(*event.CollateralState)
	if cs.ExchangeRate.String() != "1020000000000000000" {
		t.Errorf("exchange rate: got %s", cs.ExchangeRate.String())
	}
	if cs.TokenPrice.String() != "25000000000000000000" {
		t.Errorf("token price: got %s", cs.TokenPrice.String())
	}
}

func TestParseAccountBorrow_RejectsBadAmount(t *testing.T) {
	for _, bad := range []string{"", "12.5", "-1", "0x10"} {
		raw := rawFromJSON(t, event.TypeAccountBorrow, map[string]interface{}{
			"market_id": uint32(0),
			"account":   "0xabc",
			"principal": bad,
			"owed":      "10",
		})
		if _, err := ingestion.ParseRawEvent(raw); err == nil {
			t.Errorf("principal %q should fail to parse", bad)
		}
	}
}

func TestParseAccountBorrow_RejectsMissingAccount(t *testing.T) {
	raw := rawFromJSON(t, event.TypeAccountBorrow, map[string]interface{}{
		"market_id": uint32(0),
		"principal": "1",
		"owed":      "1",
	})
	if _, err := ingestion.ParseRawEvent(raw); err == nil {
		t.Error("missing account should fail")
	}
}

func TestParseRawEvent_UnknownType(t *testing.T) {
	raw := ingestion.RawEvent{Subject: "junk", EventType: event.TypeUnknown, Data: []byte("{}")}
	if _, err := ingestion.ParseRawEvent(raw); err == nil {
		t.Error("unknown event type should fail")
	}
}

func TestParseMalformedJSON(t *testing.T) {
	raw := ingestion.RawEvent{
		Subject:   "test",
		EventType: event.TypeAccountLend,
		Data:      []byte("{not json"),
	}
	if _, err := ingestion.ParseRawEvent(raw); err == nil {
		t.Error("malformed JSON should fail")
	}
}
