package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"market_sim/internal/domain"

	"github.com/shopspring/decimal"
)

// marketAPI is what the console needs from the market service.
type marketAPI interface {
	SubmitOrder(ctx context.Context, side domain.Side, kind domain.OrderKind, quantity decimal.Decimal, limitPrice decimal.NullDecimal) (*domain.ExecutionReport, error)
	CancelOrder(ctx context.Context, id string, side domain.Side) error
	MarketState() domain.MarketSnapshot
	Depth(side domain.Side) []domain.PriceLevel
	RestingOrders(side domain.Side) []domain.Order
	Activity() []domain.ActivityEntry
	History() domain.History
}

var errQuit = errors.New("quit")

const usage = `commands:
  buy market <qty>            sell market <qty>
  buy limit <qty> <price>     sell limit <qty> <price>
  cancel <id> <bid|ask>
  depth <bid|ask>             orders <bid|ask>
  state                       history
  log [n]                     help
  quit
`

// Console is a line-oriented driver for the market.
type Console struct {
	market marketAPI
	out    io.Writer
}

// NewConsole creates a console writing to out.
func NewConsole(market marketAPI, out io.Writer) *Console {
	return &Console{market: market, out: out}
}

// Run reads commands from in until EOF, quit, or ctx is cancelled.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	fmt.Fprint(c.out, usage)
	for {
		fmt.Fprint(c.out, "> ")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := c.Execute(ctx, line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				fmt.Fprintf(c.out, "error: %v\n", err)
			}
		}
	}
}

// Execute runs a single command line.
func (c *Console) Execute(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}

	switch strings.ToLower(fields[0]) {
	case "buy", "sell":
		return c.order(ctx, fields)
	case "cancel":
		return c.cancel(ctx, fields)
	case "depth":
		return c.depth(fields)
	case "orders":
		return c.orders(fields)
	case "state":
		c.state()
		return nil
	case "history":
		c.history()
		return nil
	case "log":
		return c.log(fields)
	case "help":
		fmt.Fprint(c.out, usage)
		return nil
	case "quit", "exit":
		return errQuit
	default:
		return fmt.Errorf("unknown command %q (try help)", fields[0])
	}
}

func (c *Console) order(ctx context.Context, fields []string) error {
	if len(fields) < 3 {
		return fmt.Errorf("usage: %s market|limit <qty> [price]", fields[0])
	}
	side, err := domain.ParseSide(fields[0])
	if err != nil {
		return err
	}
	kind, err := domain.ParseOrderKind(fields[1])
	if err != nil {
		return err
	}
	qty, err := domain.ParseQuantity(fields[2])
	if err != nil {
		return err
	}

	var limit decimal.NullDecimal
	if kind == domain.KindLimit {
		if len(fields) < 4 {
			return fmt.Errorf("usage: %s limit <qty> <price>", fields[0])
		}
		price, err := domain.ParsePrice(fields[3])
		if err != nil {
			return err
		}
		limit = decimal.NewNullDecimal(price)
	}

	report, err := c.market.SubmitOrder(ctx, side, kind, qty, limit)
	if err != nil {
		return err
	}
	c.report(report)
	return nil
}

func (c *Console) report(r *domain.ExecutionReport) {
	if r.HasExecution() {
		fmt.Fprintf(c.out, "executed %s @ %s (notional %s)\n",
			r.Executed, r.BlendedPrice.StringFixed(3), r.Notional)
	} else {
		fmt.Fprintln(c.out, "nothing executed")
	}
	switch r.Disposition {
	case domain.DispositionResting:
		fmt.Fprintf(c.out, "resting %s as %s\n", r.Remainder, r.OrderID)
	case domain.DispositionDropped:
		fmt.Fprintf(c.out, "dropped %s unfilled\n", r.Remainder)
	}
}

func (c *Console) cancel(ctx context.Context, fields []string) error {
	if len(fields) != 3 {
		return errors.New("usage: cancel <id> <bid|ask>")
	}
	side, err := domain.ParseSide(fields[2])
	if err != nil {
		return err
	}
	if err := c.market.CancelOrder(ctx, fields[1], side); err != nil {
		return err
	}
	fmt.Fprintf(c.out, "cancelled %s\n", fields[1])
	return nil
}

func sideArg(fields []string) (domain.Side, error) {
	if len(fields) != 2 {
		return "", fmt.Errorf("usage: %s <bid|ask>", fields[0])
	}
	return domain.ParseSide(fields[1])
}

func (c *Console) depth(fields []string) error {
	side, err := sideArg(fields)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PRICE\tQUANTITY")
	for _, l := range c.market.Depth(side) {
		fmt.Fprintf(tw, "%s\t%s\n", l.Price.StringFixed(3), l.Quantity)
	}
	return tw.Flush()
}

func (c *Console) orders(fields []string) error {
	side, err := sideArg(fields)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRICE\tQUANTITY")
	for _, o := range c.market.RestingOrders(side) {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", o.ID, o.Price.StringFixed(3), o.Quantity)
	}
	return tw.Flush()
}

func (c *Console) state() {
	s := c.market.MarketState()
	fmt.Fprintf(c.out, "price $%s  market cap $%s  traded $%s  supply %s\n",
		s.Price.StringFixed(3), s.MarketCap.StringFixed(2), s.CumulativeTradedValue.StringFixed(2), s.Supply)
}

func (c *Console) history() {
	h := c.market.History()
	volumes := make(map[int]decimal.Decimal, len(h.Volumes))
	for _, v := range h.Volumes {
		volumes[v.Index] = v.Volume
	}

	tw := tabwriter.NewWriter(c.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "T\tPRICE\tVOLUME")
	for _, p := range h.Prices {
		vol := "-"
		if v, ok := volumes[p.Index]; ok {
			vol = v.StringFixed(2)
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\n", p.Index, p.Price.StringFixed(3), vol)
	}
	tw.Flush()
}

func (c *Console) log(fields []string) error {
	entries := c.market.Activity()
	if len(fields) > 1 {
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return fmt.Errorf("invalid count %q", fields[1])
		}
		if n < len(entries) {
			entries = entries[:n]
		}
	}
	for _, e := range entries {
		fmt.Fprintf(c.out, "%s: %s\n", e.CreatedAt.Format("15:04:05"), e.Message)
	}
	return nil
}
