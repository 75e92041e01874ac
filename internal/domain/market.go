package domain

import "github.com/shopspring/decimal"

// MarketState holds the observable state of the single simulated market.
// Market capitalization is derived from Price and Supply and never stored.
type MarketState struct {
	Price                 decimal.Decimal `json:"price"`
	Supply                decimal.Decimal `json:"supply"`
	CumulativeTradedValue decimal.Decimal `json:"cumulative_traded_value"`
	LastUpdateUnixM       int64           `json:"last_update"`
}

// NewMarketState creates a market at the given price with a fixed supply.
func NewMarketState(price, supply decimal.Decimal) *MarketState {
	return &MarketState{
		Price:                 price,
		Supply:                supply,
		CumulativeTradedValue: decimal.Zero,
	}
}

// MarketCap returns Price * Supply.
func (m *MarketState) MarketCap() decimal.Decimal {
	return m.Price.Mul(m.Supply)
}

// ApplyExecution moves the price to the blended execution price and adds the
// executed notional to the traded value. Callers must only invoke it for
// executions with a positive quantity.
func (m *MarketState) ApplyExecution(blendedPrice, notional decimal.Decimal, tsUnixM int64) {
	m.Price = blendedPrice
	m.CumulativeTradedValue = m.CumulativeTradedValue.Add(notional)
	m.LastUpdateUnixM = tsUnixM
}

// Snapshot returns an immutable view including the derived market cap.
func (m *MarketState) Snapshot() MarketSnapshot {
	return MarketSnapshot{
		Price:                 m.Price,
		MarketCap:             m.MarketCap(),
		CumulativeTradedValue: m.CumulativeTradedValue,
		Supply:                m.Supply,
		LastUpdateUnixM:       m.LastUpdateUnixM,
	}
}

// MarketSnapshot is a point-in-time copy of MarketState for readers.
type MarketSnapshot struct {
	Price                 decimal.Decimal `json:"price"`
	MarketCap             decimal.Decimal `json:"market_cap"`
	CumulativeTradedValue decimal.Decimal `json:"cumulative_traded_value"`
	Supply                decimal.Decimal `json:"supply"`
	LastUpdateUnixM       int64           `json:"last_update"`
}

// PriceLevel is resting quantity aggregated at one price.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity decimal.Decimal `json:"quantity"`
}
