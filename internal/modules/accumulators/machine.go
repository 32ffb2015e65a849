package accumulators

import "time"

// StepOutcome classifies what a daily step did.
type StepOutcome string

const (
	OutcomeAccrued    StepOutcome = "ACCRUED"
	OutcomeKnockedOut StepOutcome = "KNOCKED_OUT"
	OutcomeNoAccrual  StepOutcome = "NO_ACCRUAL" // off-schedule day, done, or outside the term
)

// StepResult is the decision for one contract on one settlement day.
type StepResult struct {
	Outcome StepOutcome
	Bushels float64
	Doubled bool
}

// Step advances a contract by one settlement day. Pure function: the
// caller supplies the accumulated total so far and persists the result.
//
// Order matters. The knockout is checked before any accrual, so a price at
// or below the knockout terminates the contract with nothing marketed that
// day, even when it also sits below the double-up price.
func Step(c *Contract, accumulated float64, knockedOut bool, price float64, date time.Time) StepResult {
	if knockedOut {
		return StepResult{Outcome: OutcomeNoAccrual}
	}
	if date.Before(c.StartDate) || date.After(c.EndDate) {
		return StepResult{Outcome: OutcomeNoAccrual}
	}

	if price <= c.KnockoutPrice {
		return StepResult{Outcome: OutcomeKnockedOut}
	}

	doubled := price <= c.DoubleUpPrice
	if c.Variant == VariantEuro {
		// EURO defers the doubling decision to the expiration settlement;
		// ordinary days accrue at the flat daily rate.
		doubled = doubled && sameDate(date, c.EndDate)
	}

	var bushels float64
	switch c.Variant {
	case VariantDaily, VariantEuro:
		if isBusinessDay(date) {
			bushels = c.DailyBushels
		}
	case VariantWeekly:
		if date.Weekday() == c.SettlementDay() {
			bushels = c.WeeklyRate()
		}
	}

	if doubled {
		if c.Variant == VariantEuro {
			// The entire cumulative total doubles in one step, so the
			// day's entry carries the accumulated balance on top of the
			// (doubled) daily accrual.
			bushels += accumulated + bushels
		} else {
			bushels *= 2
		}
	}

	if bushels == 0 {
		return StepResult{Outcome: OutcomeNoAccrual, Doubled: doubled}
	}

	// Never market past the contract ceiling
	if remaining := c.MaxCommitment() - accumulated; bushels > remaining {
		bushels = remaining
	}
	if bushels <= 0 {
		return StepResult{Outcome: OutcomeNoAccrual, Doubled: doubled}
	}

	return StepResult{Outcome: OutcomeAccrued, Bushels: bushels, Doubled: doubled}
}

func isBusinessDay(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func sameDate(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
