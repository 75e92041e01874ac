package engine

import (
	"market_sim/internal/domain"

	"github.com/shopspring/decimal"
)

type commandType int

const (
	cmdPlace commandType = iota
	cmdCancel
)

// command is a unit of work for the sequencer loop.
type command struct {
	typ  commandType
	req  domain.OrderRequest // cmdPlace
	id   string              // cmdCancel
	side domain.Side         // cmdCancel
	resp chan commandResult  // buffered, capacity 1
}

type commandResult struct {
	report *domain.ExecutionReport
	err    error
}

// SeedOrder is a resting order loaded into the book before trading starts.
type SeedOrder struct {
	ID       string
	Side     domain.Side
	Price    decimal.Decimal
	Quantity decimal.Decimal
}
