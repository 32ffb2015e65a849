package accumulators

import (
	"testing"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/stretchr/testify/assert"
)

func dailyContract() *Contract {
	return &Contract{
		ID:            "acc-1",
		BusinessID:    "biz-1",
		Commodity:     domain.CommodityCorn,
		Variant:       VariantDaily,
		BasePrice:     4.50,
		KnockoutPrice: 3.80,
		DoubleUpPrice: 4.10,
		DailyBushels:  1000,
		TotalBushels:  20000,
		StartDate:     time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),  // Monday
		EndDate:       time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC), // second Friday
	}
}

func TestStep_DailyAccrual(t *testing.T) {
	c := dailyContract()
	monday := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)

	res := Step(c, 0, false, 4.30, monday)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 1000, res.Bushels, 1e-9)
	assert.False(t, res.Doubled)
}

func TestStep_WeekendSkipped(t *testing.T) {
	c := dailyContract()
	saturday := time.Date(2026, 3, 7, 0, 0, 0, 0, time.UTC)

	res := Step(c, 0, false, 4.30, saturday)
	assert.Equal(t, OutcomeNoAccrual, res.Outcome)
	assert.Zero(t, res.Bushels)
}

func TestStep_DoubleUpDoublesTheDay(t *testing.T) {
	c := dailyContract()
	tuesday := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	res := Step(c, 0, false, 4.05, tuesday)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 2000, res.Bushels, 1e-9)
	assert.True(t, res.Doubled)
}

func TestStep_KnockoutBeatsDoubleUp(t *testing.T) {
	c := dailyContract()
	tuesday := time.Date(2026, 3, 3, 0, 0, 0, 0, time.UTC)

	// 3.75 is below both the knockout and the double-up level
	res := Step(c, 5000, false, 3.75, tuesday)
	assert.Equal(t, OutcomeKnockedOut, res.Outcome)
	assert.Zero(t, res.Bushels)
}

func TestStep_KnockedOutContractIsInert(t *testing.T) {
	c := dailyContract()
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)

	res := Step(c, 5000, true, 4.40, wednesday)
	assert.Equal(t, OutcomeNoAccrual, res.Outcome)
	assert.Zero(t, res.Bushels)
}

func TestStep_OutsideTermNoAccrual(t *testing.T) {
	c := dailyContract()

	before := Step(c, 0, false, 4.30, c.StartDate.AddDate(0, 0, -1))
	assert.Equal(t, OutcomeNoAccrual, before.Outcome)

	after := Step(c, 0, false, 4.30, c.EndDate.AddDate(0, 0, 3))
	assert.Equal(t, OutcomeNoAccrual, after.Outcome)
}

func TestStep_CapAtMaxCommitment(t *testing.T) {
	c := dailyContract()
	thursday := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	// 19,500 of a 20,000 ceiling already marketed; a doubled day truncates
	res := Step(c, 19500, false, 4.05, thursday)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 500, res.Bushels, 1e-9)

	// At the ceiling nothing more accrues
	res = Step(c, 20000, false, 4.05, thursday)
	assert.Equal(t, OutcomeNoAccrual, res.Outcome)
}

func TestStep_WeeklySettlesOnConfiguredDay(t *testing.T) {
	c := dailyContract()
	c.Variant = VariantWeekly
	c.DailyBushels = 1000

	friday := time.Date(2026, 3, 6, 0, 0, 0, 0, time.UTC)
	res := Step(c, 0, false, 4.30, friday)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	// Default weekly rate is five daily rates
	assert.InDelta(t, 5000, res.Bushels, 1e-9)

	thursday := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)
	res = Step(c, 0, false, 4.30, thursday)
	assert.Equal(t, OutcomeNoAccrual, res.Outcome)

	c.SettlementWeekday = time.Wednesday
	c.WeeklyBushels = 3000
	wednesday := time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC)
	res = Step(c, 0, false, 4.30, wednesday)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 3000, res.Bushels, 1e-9)
}

func TestStep_EuroAccruesDailyAndDoublesOnlyAtExpiration(t *testing.T) {
	c := dailyContract()
	c.Variant = VariantEuro
	c.TotalBushels = 50000

	// Mid-term business days accrue at the flat daily rate
	mid := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	res := Step(c, 0, false, 4.30, mid)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 1000, res.Bushels, 1e-9)
	assert.False(t, res.Doubled)

	// A mid-term price below the double-up level changes nothing yet
	res = Step(c, 0, false, 4.05, mid)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 1000, res.Bushels, 1e-9)
	assert.False(t, res.Doubled)

	// Expiration above the double-up level settles a plain daily accrual
	res = Step(c, 20000, false, 4.30, c.EndDate)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 1000, res.Bushels, 1e-9)
	assert.False(t, res.Doubled)

	// Expiration below the double-up level doubles the entire cumulative
	// total in one step: 2 x (20,000 + 1,000) means a 22,000 entry
	res = Step(c, 20000, false, 4.05, c.EndDate)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 22000, res.Bushels, 1e-9)
	assert.True(t, res.Doubled)

	// The doubled settlement still respects the contract ceiling
	res = Step(c, 30000, false, 4.05, c.EndDate)
	assert.Equal(t, OutcomeAccrued, res.Outcome)
	assert.InDelta(t, 20000, res.Bushels, 1e-9)
}

func TestValidate_RejectsBadTerms(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Contract)
	}{
		{"knockout above double-up", func(c *Contract) { c.KnockoutPrice = 4.20 }},
		{"double-up above base", func(c *Contract) { c.DoubleUpPrice = 4.60 }},
		{"zero base price", func(c *Contract) { c.BasePrice = 0 }},
		{"negative daily rate", func(c *Contract) { c.DailyBushels = -100 }},
		{"euro zero daily rate", func(c *Contract) { c.Variant = VariantEuro; c.DailyBushels = 0 }},
		{"zero total", func(c *Contract) { c.TotalBushels = 0 }},
		{"end before start", func(c *Contract) { c.EndDate = c.StartDate.AddDate(0, 0, -1) }},
		{"unknown variant", func(c *Contract) { c.Variant = "MONTHLY" }},
		{"unknown commodity", func(c *Contract) { c.Commodity = "RICE" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := dailyContract()
			tc.mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, dailyContract().Validate())
}
