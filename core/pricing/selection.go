package pricing

import (
	"fmt"
	"strings"

	"cdr-cost/internal/errors"
)

// Selection decides which price applies when several catalog entries
// match one usage type
type Selection string

const (
	// SelectLast uses the last entry in catalog order
	SelectLast Selection = "last"

	// SelectFirst uses the first entry in catalog order
	SelectFirst Selection = "first"

	// SelectCheapest uses the lowest unit price; ties keep the earlier entry
	SelectCheapest Selection = "cheapest"
)

// ParseSelection parses a selection policy name
func ParseSelection(s string) (Selection, error) {
	switch sel := Selection(strings.ToLower(strings.TrimSpace(s))); sel {
	case SelectLast, SelectFirst, SelectCheapest:
		return sel, nil
	case "":
		return SelectLast, nil
	default:
		return "", fmt.Errorf("unknown price selection %q (use last, first or cheapest)", s)
	}
}

// SelectPrice extracts every entry in order and returns the one chosen
// by policy. Any malformed entry fails the selection.
func SelectPrice(entries []Entry, policy Selection) (Price, error) {
	if len(entries) == 0 {
		return Price{}, errors.New(errors.TypeNoPriceFound, "catalog returned no entries")
	}

	prices := make([]Price, 0, len(entries))
	for i, entry := range entries {
		p, err := ExtractPrice(entry)
		if err != nil {
			if e, ok := err.(*errors.Error); ok {
				e.WithContext("entry_index", i)
			}
			return Price{}, err
		}
		prices = append(prices, p)
	}

	switch policy {
	case SelectFirst:
		return prices[0], nil
	case SelectCheapest:
		best := prices[0]
		for _, p := range prices[1:] {
			if p.Amount.LessThan(best.Amount) {
				best = p
			}
		}
		return best, nil
	default:
		return prices[len(prices)-1], nil
	}
}
