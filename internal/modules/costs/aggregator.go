package costs

import (
	"fmt"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// Aggregator computes break-even costs from typed farm inputs.
type Aggregator struct {
	loans LoanAllocator
	log   zerolog.Logger
}

// NewAggregator creates a new cost aggregator.
func NewAggregator(loans LoanAllocator, log zerolog.Logger) *Aggregator {
	return &Aggregator{
		loans: loans,
		log:   log.With().Str("component", "cost_aggregator").Logger(),
	}
}

// BreakEven computes the break-even cost for a single farm. The production
// estimate may be nil; the commodity default yield is used instead.
// Degenerate inputs (zero acres, zero bushels) produce zero-valued results,
// never errors.
func (a *Aggregator) BreakEven(farm Farm, est *ProductionEstimate) (domain.BreakEvenCost, error) {
	be := domain.BreakEvenCost{
		FarmID:     farm.ID,
		EntityID:   farm.PrimaryEntityID,
		BusinessID: farm.BusinessID,
		Commodity:  farm.Commodity,
		CropYear:   farm.CropYear,
		Acres:      farm.Acres,
	}

	for _, u := range farm.Usage {
		cost := u.Cost(farm.Acres)
		switch u.Category {
		case UsageFertilizer:
			be.Fertilizer += cost
		case UsageChemical:
			be.Chemical += cost
		case UsageSeed:
			be.Seed += cost
		default:
			be.Other += cost
		}
	}

	for _, c := range farm.OtherCosts {
		cost := c.Cost(farm.Acres)
		switch c.Bucket {
		case BucketInsurance:
			be.Insurance += cost
		case BucketTrucking:
			be.Trucking += cost
		default:
			be.Other += cost
		}
	}

	be.LandRent = farm.LandRent
	if farm.LandRentPerAcre {
		be.LandRent = farm.LandRent * farm.Acres
	}

	if a.loans != nil {
		allocations, err := a.loans.AllocationsFor(farm.ID, farm.CropYear)
		if err != nil {
			return domain.BreakEvenCost{}, fmt.Errorf("loan allocations for farm %s: %w", farm.ID, err)
		}
		for _, alloc := range allocations {
			be.LoanInterest += alloc.Interest
			be.LoanPrincipal += alloc.Principal
		}
	}

	be.TotalCost = be.Fertilizer + be.Chemical + be.Seed + be.LandRent +
		be.Insurance + be.Trucking + be.Other + be.LoanInterest + be.LoanPrincipal

	if farm.Acres > 0 {
		be.CostPerAcre = be.TotalCost / farm.Acres
	}

	be.ExpectedYield = farm.Commodity.DefaultYield()
	if est != nil && est.YieldPerAcre > 0 {
		be.ExpectedYield = est.YieldPerAcre
	}
	be.ExpectedBushels = be.ExpectedYield * farm.Acres

	if be.ExpectedBushels > 0 {
		be.BreakEvenPrice = be.TotalCost / be.ExpectedBushels
	}

	return be, nil
}

// AggregateByEntity computes per-farm break-evens, apportions each farm
// across its entity splits pro-rata, and sums to the entity/commodity/year
// level. A farm with no splits is attributed 100% to its primary entity.
// Farms that fail (e.g. loan allocation lookup) are skipped and logged, not
// fatal to the batch.
func (a *Aggregator) AggregateByEntity(farms []Farm, estimates map[string]*ProductionEstimate) []domain.BreakEvenCost {
	type key struct {
		entity    string
		commodity domain.Commodity
		year      int
	}

	totals := make(map[key]*domain.BreakEvenCost)
	var order []key

	add := func(k key, share float64, be domain.BreakEvenCost) {
		agg, ok := totals[k]
		if !ok {
			agg = &domain.BreakEvenCost{
				EntityID:   k.entity,
				BusinessID: be.BusinessID,
				Commodity:  k.commodity,
				CropYear:   k.year,
			}
			totals[k] = agg
			order = append(order, k)
		}

		agg.Acres += be.Acres * share
		agg.Fertilizer += be.Fertilizer * share
		agg.Chemical += be.Chemical * share
		agg.Seed += be.Seed * share
		agg.LandRent += be.LandRent * share
		agg.Insurance += be.Insurance * share
		agg.Trucking += be.Trucking * share
		agg.Other += be.Other * share
		agg.LoanInterest += be.LoanInterest * share
		agg.LoanPrincipal += be.LoanPrincipal * share
		agg.TotalCost += be.TotalCost * share
		agg.ExpectedBushels += be.ExpectedBushels * share
	}

	for _, farm := range farms {
		be, err := a.BreakEven(farm, estimates[farm.ID])
		if err != nil {
			a.log.Warn().Err(err).
				Str("farm_id", farm.ID).
				Str("business_id", farm.BusinessID).
				Msg("Skipping farm in entity aggregation")
			continue
		}

		if len(farm.Splits) == 0 {
			add(key{farm.PrimaryEntityID, farm.Commodity, farm.CropYear}, 1.0, be)
			continue
		}

		for _, split := range farm.Splits {
			add(key{split.EntityID, farm.Commodity, farm.CropYear}, split.Percent/100, be)
		}
	}

	result := make([]domain.BreakEvenCost, 0, len(order))
	for _, k := range order {
		agg := totals[k]
		if agg.Acres > 0 {
			agg.CostPerAcre = agg.TotalCost / agg.Acres
			agg.ExpectedYield = agg.ExpectedBushels / agg.Acres
		}
		if agg.ExpectedBushels > 0 {
			agg.BreakEvenPrice = agg.TotalCost / agg.ExpectedBushels
		}
		result = append(result, *agg)
	}

	return result
}
