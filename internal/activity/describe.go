package activity

import (
	"fmt"

	"market_sim/internal/domain"
	"market_sim/internal/event"
)

// Describe renders ev as activity messages in the order they happened.
// An executed order yields the price move first, then any resting
// remainder, then the order itself.
func Describe(ev event.Event) []string {
	switch e := ev.(type) {
	case *event.OrderExecutedEvent:
		return describeExecuted(e)
	case *event.OrderRejectedEvent:
		return []string{describeRejected(e)}
	case *event.OrderCancelledEvent:
		return []string{fmt.Sprintf("Removed limit %s order: %s", e.Side.Verb(), e.OrderID)}
	default:
		return nil
	}
}

func describeExecuted(e *event.OrderExecutedEvent) []string {
	msgs := make([]string, 0, 3)
	verb := e.Side.Verb()

	if e.Executed.IsPositive() {
		avg := e.BlendedPrice.StringFixed(3)
		msgs = append(msgs, fmt.Sprintf("Price updated to $%s - %s order executed: %s units at avg price $%s",
			avg, capitalize(verb), e.Executed.String(), avg))
	}

	if e.Disposition == domain.DispositionResting {
		msgs = append(msgs, fmt.Sprintf("Added limit %s order: %s units at $%s",
			verb, e.Remainder.String(), e.LimitPrice.Decimal.String()))
	}

	if e.Kind == domain.KindMarket {
		msgs = append(msgs, fmt.Sprintf("Market %s order placed: %s units", verb, e.Requested.String()))
	} else {
		msgs = append(msgs, fmt.Sprintf("Limit %s order placed: %s units at $%s",
			verb, e.Requested.String(), e.LimitPrice.Decimal.String()))
	}
	return msgs
}

func describeRejected(e *event.OrderRejectedEvent) string {
	switch e.Reason {
	case domain.RejectLimitPriceNotBelowMarket:
		return fmt.Sprintf("Error: Limit buy price $%s must be less than current price $%s",
			e.LimitPrice.Decimal.String(), e.MarketPrice.StringFixed(3))
	case domain.RejectLimitPriceNotAboveMarket:
		return fmt.Sprintf("Error: Limit sell price $%s must be greater than current price $%s",
			e.LimitPrice.Decimal.String(), e.MarketPrice.StringFixed(3))
	case domain.RejectInvalidLimitPrice:
		return fmt.Sprintf("Error: Invalid limit price for %s order", e.Side.Verb())
	case domain.RejectInvalidQuantity:
		return fmt.Sprintf("Error: Invalid quantity %s for %s order", e.Quantity.String(), e.Side.Verb())
	default:
		return fmt.Sprintf("Error: Order rejected (%s)", e.Reason)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}

// levelOf maps an event to its log level.
func levelOf(ev event.Event) domain.ActivityLevel {
	if ev.GetType() == event.EvOrderRejected {
		return domain.ActivityError
	}
	return domain.ActivityInfo
}
