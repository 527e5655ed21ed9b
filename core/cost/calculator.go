// Package cost computes the cost of a call detail record from a unit price.
package cost

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"cdr-cost/core/types"
	"cdr-cost/internal/errors"
)

// Mode selects which record fields carry the billing quantity and,
// with it, the unit the catalog price is assumed to be quoted in.
type Mode string

const (
	// ModeQuantity bills BillableDurationMinutes at a per-minute price
	ModeQuantity Mode = "quantity"

	// ModeDuration bills EndTimeEpochSeconds - StartTimeEpochSeconds at a
	// per-second price
	ModeDuration Mode = "duration"
)

const (
	// DefaultPrecision is the number of decimal digits kept in CostUSD
	DefaultPrecision int32 = 6

	// MinPrecision is the smallest precision that keeps cent-level unit
	// prices distinguishable
	MinPrecision int32 = 4
)

// ParseMode parses a billing mode name
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeQuantity, ModeDuration:
		return m, nil
	case "":
		return ModeQuantity, nil
	default:
		return "", fmt.Errorf("unknown billing mode %q (use quantity or duration)", s)
	}
}

// Calculator computes record cost under one billing mode
type Calculator struct {
	mode      Mode
	precision int32
}

// NewCalculator creates a calculator. Precision below MinPrecision is raised.
func NewCalculator(mode Mode, precision int32) *Calculator {
	if mode == "" {
		mode = ModeQuantity
	}
	if precision < MinPrecision {
		precision = MinPrecision
	}
	return &Calculator{mode: mode, precision: precision}
}

// Mode returns the billing mode
func (c *Calculator) Mode() Mode {
	return c.mode
}

// Quantity returns the billable quantity of a record under the active mode
func (c *Calculator) Quantity(record *types.Record) (decimal.Decimal, error) {
	switch c.mode {
	case ModeDuration:
		start, err := requireField(record, types.FieldStartTimeEpochSeconds)
		if err != nil {
			return decimal.Zero, err
		}
		end, err := requireField(record, types.FieldEndTimeEpochSeconds)
		if err != nil {
			return decimal.Zero, err
		}
		if end.LessThan(start) {
			return decimal.Zero, errors.Newf(errors.TypeInvalidTimeRange,
				"call ends before it starts (start=%s end=%s)", start, end)
		}
		return end.Sub(start), nil

	default:
		minutes, err := requireField(record, types.FieldBillableDurationMinutes)
		if err != nil {
			return decimal.Zero, err
		}
		if minutes.IsNegative() {
			return decimal.Zero, errors.Newf(errors.TypeInvalidTimeRange,
				"negative billable duration %s", minutes)
		}
		return minutes, nil
	}
}

// Cost returns unitPrice times the record's quantity, rounded to the
// calculator precision
func (c *Calculator) Cost(record *types.Record, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	qty, err := c.Quantity(record)
	if err != nil {
		return decimal.Zero, err
	}
	return unitPrice.Mul(qty).Round(c.precision), nil
}

// Compute enriches record in place with PricePerUnitUSD and CostUSD.
// priceText is written as given so the catalog's literal survives.
func (c *Calculator) Compute(record *types.Record, priceText string, unitPrice decimal.Decimal) (decimal.Decimal, error) {
	cost, err := c.Cost(record, unitPrice)
	if err != nil {
		return decimal.Zero, err
	}

	if priceText == "" {
		priceText = unitPrice.String()
	}
	if err := record.Set(types.FieldPricePerUnitUSD, priceText); err != nil {
		return decimal.Zero, errors.Format("set price field", err)
	}
	if err := record.Set(types.FieldCostUSD, cost.InexactFloat64()); err != nil {
		return decimal.Zero, errors.Format("set cost field", err)
	}
	return cost, nil
}

func requireField(record *types.Record, field string) (decimal.Decimal, error) {
	v, found, err := record.Decimal(field)
	if err != nil {
		return decimal.Zero, errors.Wrap(errors.TypeMissingBillingField, "unreadable billing field", err).
			WithContext("field", field)
	}
	if !found {
		return decimal.Zero, errors.MissingBillingField(field)
	}
	return v, nil
}
