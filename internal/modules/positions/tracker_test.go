package positions

import (
	"testing"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestPosition_Basic(t *testing.T) {
	tracker := NewTracker(zerolog.Nop())
	now := time.Date(2026, time.May, 15, 12, 0, 0, 0, time.UTC)

	contracts := []GrainContract{
		{Bushels: 10000, Price: 4.80, Type: ContractCash},
		{Bushels: 5000, Price: 5.10, Type: ContractHTA},
	}

	pos := tracker.Position("biz-1", domain.CommodityCorn, 2026, 90000, contracts, 0.50, now)

	assert.InDelta(t, 90000, pos.ProjectedBushels, 1e-9)
	assert.InDelta(t, 15000, pos.SoldBushels, 1e-9)
	assert.InDelta(t, 75000, pos.RemainingBushels, 1e-9)
	assert.InDelta(t, 15000.0/90000.0, pos.PercentSold, 1e-9)
	// 50% target of 90,000 = 45,000; 15,000 sold leaves 30,000 to target
	assert.InDelta(t, 30000, pos.BushelsToTarget, 1e-9)
	// Weighted average: (10000*4.80 + 5000*5.10) / 15000 = 4.90
	assert.InDelta(t, 4.90, pos.AvgSalePrice, 1e-9)
	assert.False(t, pos.HarvestComplete)
}

func TestPosition_OverContractedGoesNegative(t *testing.T) {
	tracker := NewTracker(zerolog.Nop())
	now := time.Date(2026, time.May, 15, 12, 0, 0, 0, time.UTC)

	contracts := []GrainContract{{Bushels: 95000, Price: 5.00}}
	pos := tracker.Position("biz-1", domain.CommodityCorn, 2026, 90000, contracts, 0.50, now)

	// Over-sold positions are surfaced, not clamped
	assert.InDelta(t, -5000, pos.RemainingBushels, 1e-9)
	assert.Zero(t, pos.BushelsToTarget)
}

func TestPosition_ZeroProjection(t *testing.T) {
	tracker := NewTracker(zerolog.Nop())
	now := time.Date(2026, time.May, 15, 12, 0, 0, 0, time.UTC)

	pos := tracker.Position("biz-1", domain.CommodityCorn, 2026, 0, nil, 0.50, now)

	assert.Zero(t, pos.PercentSold)
	assert.Zero(t, pos.BushelsToTarget)
	assert.Zero(t, pos.AvgSalePrice)
}

func TestPosition_DefaultTarget(t *testing.T) {
	tracker := NewTracker(zerolog.Nop())
	now := time.Date(2026, time.May, 15, 12, 0, 0, 0, time.UTC)

	pos := tracker.Position("biz-1", domain.CommodityCorn, 2026, 100000, nil, 0, now)
	assert.InDelta(t, DefaultPreHarvestTarget, pos.PreHarvestTarget, 1e-9)
	assert.InDelta(t, 50000, pos.BushelsToTarget, 1e-9)
}

func TestPosition_HarvestCalendar(t *testing.T) {
	tracker := NewTracker(zerolog.Nop())

	tests := []struct {
		name      string
		commodity domain.Commodity
		month     time.Month
		complete  bool
	}{
		{"corn in May", domain.CommodityCorn, time.May, false},
		{"corn in September", domain.CommodityCorn, time.September, true},
		{"corn in November", domain.CommodityCorn, time.November, true},
		{"soybeans in August", domain.CommoditySoybeans, time.August, false},
		{"soybeans in October", domain.CommoditySoybeans, time.October, true},
		{"wheat in June", domain.CommodityWheat, time.June, false},
		{"wheat in July", domain.CommodityWheat, time.July, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2026, tt.month, 15, 0, 0, 0, 0, time.UTC)
			pos := tracker.Position("biz-1", tt.commodity, 2026, 1000, nil, 0.5, now)
			assert.Equal(t, tt.complete, pos.HarvestComplete)
		})
	}
}
