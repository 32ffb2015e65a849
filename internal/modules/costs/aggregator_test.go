package costs

import (
	"testing"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLoanAllocator struct {
	allocations map[string][]domain.LoanAllocation
	err         error
}

func (m *mockLoanAllocator) AllocationsFor(farmID string, cropYear int) ([]domain.LoanAllocation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.allocations[farmID], nil
}

func TestBreakEven_FiveHundredAcreFarm(t *testing.T) {
	// 500 acres at 180 bu/acre with $450,000 total cost: break-even $5.00/bu
	agg := NewAggregator(&mockLoanAllocator{}, zerolog.Nop())

	farm := Farm{
		ID:              "farm-1",
		BusinessID:      "biz-1",
		Commodity:       domain.CommodityCorn,
		CropYear:        2026,
		Acres:           500,
		PrimaryEntityID: "entity-1",
		OtherCosts: []CostItem{
			{Bucket: BucketOther, Amount: 450000},
		},
	}
	est := &ProductionEstimate{YieldPerAcre: 180}

	be, err := agg.BreakEven(farm, est)
	require.NoError(t, err)

	assert.InDelta(t, 450000, be.TotalCost, 1e-9)
	assert.InDelta(t, 900, be.CostPerAcre, 1e-9)
	assert.InDelta(t, 90000, be.ExpectedBushels, 1e-9)
	assert.InDelta(t, 5.00, be.BreakEvenPrice, 1e-9)
}

func TestBreakEven_CostBuckets(t *testing.T) {
	loans := &mockLoanAllocator{allocations: map[string][]domain.LoanAllocation{
		"farm-1": {
			{Class: domain.LoanOperating, Interest: 12000, Principal: 0},
			{Class: domain.LoanEquipment, Interest: 3000, Principal: 8000},
		},
	}}
	agg := NewAggregator(loans, zerolog.Nop())

	farm := Farm{
		ID:              "farm-1",
		Commodity:       domain.CommodityCorn,
		Acres:           100,
		PrimaryEntityID: "entity-1",
		LandRent:        250,
		LandRentPerAcre: true,
		Usage: []UsageItem{
			{Category: UsageFertilizer, Quantity: 1, UnitPrice: 120, PerAcre: true, NutrientBasis: BasisCommercial},
			{Category: UsageChemical, Quantity: 2, UnitPrice: 25, PerAcre: true, NutrientBasis: BasisCommercial},
			{Category: UsageSeed, Quantity: 0.38, UnitPrice: 300, PerAcre: true, NutrientBasis: BasisCommercial},
		},
		OtherCosts: []CostItem{
			{Bucket: BucketInsurance, Amount: 20, PerAcre: true},
			{Bucket: BucketTrucking, Amount: 1500},
		},
	}

	be, err := agg.BreakEven(farm, nil)
	require.NoError(t, err)

	assert.InDelta(t, 12000, be.Fertilizer, 1e-9)
	assert.InDelta(t, 5000, be.Chemical, 1e-9)
	assert.InDelta(t, 11400, be.Seed, 1e-9)
	assert.InDelta(t, 25000, be.LandRent, 1e-9)
	assert.InDelta(t, 2000, be.Insurance, 1e-9)
	assert.InDelta(t, 1500, be.Trucking, 1e-9)
	assert.InDelta(t, 15000, be.LoanInterest, 1e-9)
	assert.InDelta(t, 8000, be.LoanPrincipal, 1e-9)

	expectedTotal := 12000.0 + 5000 + 11400 + 25000 + 2000 + 1500 + 15000 + 8000
	assert.InDelta(t, expectedTotal, be.TotalCost, 1e-9)

	// No estimate: commodity default yield applies
	assert.InDelta(t, domain.CommodityCorn.DefaultYield(), be.ExpectedYield, 1e-9)
}

func TestBreakEven_ManureNutrientBasis(t *testing.T) {
	agg := NewAggregator(nil, zerolog.Nop())

	farm := Farm{
		ID:        "farm-1",
		Commodity: domain.CommodityCorn,
		Acres:     10,
		Usage: []UsageItem{
			{Category: UsageFertilizer, Quantity: 1, UnitPrice: 100, PerAcre: true, NutrientBasis: BasisManure},
		},
	}

	be, err := agg.BreakEven(farm, nil)
	require.NoError(t, err)

	// Manure discounts to commercial nutrient equivalent
	assert.InDelta(t, 650, be.Fertilizer, 1e-9)
}

func TestBreakEven_ZeroAcresAndZeroBushels(t *testing.T) {
	agg := NewAggregator(nil, zerolog.Nop())

	be, err := agg.BreakEven(Farm{
		ID:        "farm-1",
		Commodity: domain.CommodityCorn,
		Acres:     0,
		OtherCosts: []CostItem{
			{Bucket: BucketOther, Amount: 5000},
		},
	}, nil)
	require.NoError(t, err)

	assert.Zero(t, be.CostPerAcre)
	assert.Zero(t, be.ExpectedBushels)
	assert.Zero(t, be.BreakEvenPrice)
	assert.GreaterOrEqual(t, be.BreakEvenPrice, 0.0)
}

func TestAggregateByEntity_Splits(t *testing.T) {
	agg := NewAggregator(nil, zerolog.Nop())

	farm := Farm{
		ID:              "farm-1",
		BusinessID:      "biz-1",
		Commodity:       domain.CommodityCorn,
		CropYear:        2026,
		Acres:           100,
		PrimaryEntityID: "entity-a",
		OtherCosts:      []CostItem{{Bucket: BucketOther, Amount: 90000}},
		Splits: []EntitySplit{
			{EntityID: "entity-a", Percent: 60},
			{EntityID: "entity-b", Percent: 40},
		},
	}
	estimates := map[string]*ProductionEstimate{
		"farm-1": {YieldPerAcre: 180},
	}

	result := agg.AggregateByEntity([]Farm{farm}, estimates)
	require.Len(t, result, 2)

	byEntity := map[string]domain.BreakEvenCost{}
	var totalCost, totalBushels float64
	for _, be := range result {
		byEntity[be.EntityID] = be
		totalCost += be.TotalCost
		totalBushels += be.ExpectedBushels
	}

	// Splits apportion pro-rata and sum back to the farm's full value
	assert.InDelta(t, 54000, byEntity["entity-a"].TotalCost, 1e-9)
	assert.InDelta(t, 36000, byEntity["entity-b"].TotalCost, 1e-9)
	assert.InDelta(t, 90000, totalCost, 1e-9)
	assert.InDelta(t, 18000, totalBushels, 1e-9)

	// Per-bushel break-even is identical across splits of the same farm
	assert.InDelta(t, byEntity["entity-a"].BreakEvenPrice, byEntity["entity-b"].BreakEvenPrice, 1e-9)
}

func TestAggregateByEntity_NoSplitsUsesPrimaryEntity(t *testing.T) {
	agg := NewAggregator(nil, zerolog.Nop())

	farm := Farm{
		ID:              "farm-1",
		BusinessID:      "biz-1",
		Commodity:       domain.CommoditySoybeans,
		CropYear:        2026,
		Acres:           200,
		PrimaryEntityID: "entity-a",
		OtherCosts:      []CostItem{{Bucket: BucketOther, Amount: 50000}},
	}

	result := agg.AggregateByEntity([]Farm{farm}, nil)
	require.Len(t, result, 1)
	assert.Equal(t, "entity-a", result[0].EntityID)
	assert.InDelta(t, 50000, result[0].TotalCost, 1e-9)
}

func TestAggregateByEntity_FailedFarmIsSkipped(t *testing.T) {
	loans := &mockLoanAllocator{err: assert.AnError}
	agg := NewAggregator(loans, zerolog.Nop())

	farms := []Farm{
		{ID: "farm-1", BusinessID: "biz-1", Commodity: domain.CommodityCorn, Acres: 100, PrimaryEntityID: "entity-a"},
	}

	// The failing loan lookup skips the farm rather than aborting
	result := agg.AggregateByEntity(farms, nil)
	assert.Empty(t, result)
}
