package domain

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestMarketState_MarketCap(t *testing.T) {
	m := NewMarketState(decimal.NewFromInt(10), decimal.NewFromInt(1000))

	if !m.MarketCap().Equal(decimal.NewFromInt(10000)) {
		t.Errorf("Expected 10000, got %s", m.MarketCap())
	}

	m.ApplyExecution(decimal.RequireFromString("11.375"), decimal.NewFromInt(455), 42)

	snap := m.Snapshot()
	if !snap.MarketCap.Equal(decimal.NewFromInt(11375)) {
		t.Errorf("Expected 11375, got %s", snap.MarketCap)
	}
	if !snap.MarketCap.Equal(snap.Price.Mul(snap.Supply)) {
		t.Error("market cap must equal price * supply")
	}
	if !snap.CumulativeTradedValue.Equal(decimal.NewFromInt(455)) {
		t.Errorf("Expected traded value 455, got %s", snap.CumulativeTradedValue)
	}
	if snap.LastUpdateUnixM != 42 {
		t.Errorf("Expected last update 42, got %d", snap.LastUpdateUnixM)
	}
}

func TestMarketState_TradedValueAccumulates(t *testing.T) {
	m := NewMarketState(decimal.NewFromInt(10), decimal.NewFromInt(1000))

	m.ApplyExecution(decimal.NewFromInt(9), decimal.NewFromInt(450), 1)
	m.ApplyExecution(decimal.NewFromInt(8), decimal.NewFromInt(80), 2)

	if !m.CumulativeTradedValue.Equal(decimal.NewFromInt(530)) {
		t.Errorf("Expected 530, got %s", m.CumulativeTradedValue)
	}
	if !m.Price.Equal(decimal.NewFromInt(8)) {
		t.Errorf("Expected price 8, got %s", m.Price)
	}
}

func TestExecutionReport_MatchedRestingIDs(t *testing.T) {
	r := &ExecutionReport{
		Executed: decimal.NewFromInt(40),
		Fills: []Fill{
			{RestingOrderID: "a1", Price: decimal.NewFromInt(11), Quantity: decimal.NewFromInt(25)},
			{RestingOrderID: "a2", Price: decimal.NewFromInt(12), Quantity: decimal.NewFromInt(15)},
		},
	}

	ids := r.MatchedRestingIDs()
	if len(ids) != 2 || ids[0] != "a1" || ids[1] != "a2" {
		t.Errorf("unexpected ids %v", ids)
	}
	if !r.HasExecution() {
		t.Error("report with executed quantity should have execution")
	}
	if !r.Fills[1].Notional().Equal(decimal.NewFromInt(180)) {
		t.Errorf("Expected notional 180, got %s", r.Fills[1].Notional())
	}
}
