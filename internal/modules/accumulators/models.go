// Package accumulators tracks accumulator contracts: fixed-rate daily or
// weekly grain marketing that doubles below the double-up price and
// terminates on a knockout. Accruals are an append-only ledger in
// contracts.db; derived state is always recomputed from it.
package accumulators

import (
	"fmt"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
)

// Variant selects the accrual schedule of an accumulator contract.
type Variant string

const (
	// VariantDaily accrues the daily rate every business day.
	VariantDaily Variant = "DAILY"
	// VariantWeekly accrues the weekly rate on the settlement weekday.
	VariantWeekly Variant = "WEEKLY"
	// VariantEuro accrues like DAILY but defers the doubling decision to
	// the end date, where the whole cumulative total doubles in one step.
	VariantEuro Variant = "EURO"
)

// DateLayout is the wire format for contract and entry dates.
const DateLayout = "2006-01-02"

// Contract is one accumulator agreement with a grain buyer.
type Contract struct {
	ID                string
	BusinessID        string
	Commodity         domain.Commodity
	Variant           Variant
	BasePrice         float64 // price received per accrued bushel
	KnockoutPrice     float64 // at or below: contract terminates
	DoubleUpPrice     float64 // at or below: accrual doubles
	DailyBushels      float64
	WeeklyBushels     float64 // 0 means 5x the daily rate
	TotalBushels      float64 // base commitment
	SettlementWeekday time.Weekday
	StartDate         time.Time
	EndDate           time.Time
	CreatedAt         time.Time
}

// Validate rejects contracts whose terms cannot be priced or accrued.
func (c *Contract) Validate() error {
	if c.BusinessID == "" {
		return fmt.Errorf("contract requires a business id")
	}
	if _, ok := domain.ParseCommodity(string(c.Commodity)); !ok {
		return fmt.Errorf("unknown commodity %q", c.Commodity)
	}
	switch c.Variant {
	case VariantDaily, VariantWeekly, VariantEuro:
	default:
		return fmt.Errorf("unknown variant %q", c.Variant)
	}

	if c.BasePrice <= 0 {
		return fmt.Errorf("base price must be positive, got %.2f", c.BasePrice)
	}
	if c.KnockoutPrice <= 0 {
		return fmt.Errorf("knockout price must be positive, got %.2f", c.KnockoutPrice)
	}
	if c.KnockoutPrice >= c.DoubleUpPrice {
		return fmt.Errorf("knockout price %.2f must sit below double-up price %.2f",
			c.KnockoutPrice, c.DoubleUpPrice)
	}
	if c.DoubleUpPrice >= c.BasePrice {
		return fmt.Errorf("double-up price %.2f must sit below base price %.2f",
			c.DoubleUpPrice, c.BasePrice)
	}
	if c.TotalBushels <= 0 {
		return fmt.Errorf("total bushels must be positive, got %.0f", c.TotalBushels)
	}
	if c.DailyBushels <= 0 {
		return fmt.Errorf("daily bushels must be positive, got %.0f", c.DailyBushels)
	}
	if c.WeeklyBushels < 0 {
		return fmt.Errorf("weekly bushels cannot be negative, got %.0f", c.WeeklyBushels)
	}
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end date %s precedes start date %s",
			c.EndDate.Format(DateLayout), c.StartDate.Format(DateLayout))
	}
	return nil
}

// WeeklyRate returns the configured weekly accrual, defaulting to five
// daily rates.
func (c *Contract) WeeklyRate() float64 {
	if c.WeeklyBushels > 0 {
		return c.WeeklyBushels
	}
	return c.DailyBushels * 5
}

// SettlementDay returns the weekday a WEEKLY contract accrues on,
// defaulting to Friday.
func (c *Contract) SettlementDay() time.Weekday {
	if c.SettlementWeekday == time.Sunday {
		return time.Friday
	}
	return c.SettlementWeekday
}

// MaxCommitment is the ceiling on cumulative marketed bushels. Doubling
// changes the accrual rate, never the contract's total commitment.
func (c *Contract) MaxCommitment() float64 {
	return c.TotalBushels
}

// State is the derived position of one contract. It is recomputed from the
// entry ledger after every sweep, never trusted as a running total.
type State struct {
	ContractID       string
	BushelsMarketed  float64
	BushelsDoubled   float64
	CurrentlyDoubled bool
	KnockedOut       bool
	KnockoutDate     *time.Time
	LastProcessed    *time.Time
	UpdatedAt        time.Time
}

// DailyEntry is one accrual ledger row. The (contract, date) key makes the
// sweep idempotent: reprocessing a day rewrites the same row.
type DailyEntry struct {
	ID          string
	ContractID  string
	EntryDate   time.Time
	Bushels     float64
	MarketPrice float64
	Doubled     bool
	CreatedAt   time.Time
}
