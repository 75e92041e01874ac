package domain

import "github.com/shopspring/decimal"

// PricePoint is the market price after the Index-th price change.
// Index 0 is the opening price.
type PricePoint struct {
	Index int             `json:"time"`
	Price decimal.Decimal `json:"price"`
	Ts    int64           `json:"ts"` // Unix microseconds
}

// VolumePoint is the notional traded by one order. Index matches the
// PricePoint the order produced.
type VolumePoint struct {
	Index  int             `json:"time"`
	Volume decimal.Decimal `json:"volume"`
}

// History is the price and volume series of a session.
type History struct {
	Prices  []PricePoint  `json:"prices"`
	Volumes []VolumePoint `json:"volumes"`
}
