// Package costs turns farm-level input usage and loan allocations into
// per-farm and per-entity break-even prices.
package costs

import "github.com/grainflow/grainflow/internal/domain"

// UsageCategory buckets input applications.
type UsageCategory string

const (
	UsageFertilizer UsageCategory = "fertilizer"
	UsageChemical   UsageCategory = "chemical"
	UsageSeed       UsageCategory = "seed"
)

// NutrientBasis distinguishes commercial fertilizer pricing from manure,
// which is priced on nutrient content.
type NutrientBasis string

const (
	BasisCommercial NutrientBasis = "commercial"
	BasisManure     NutrientBasis = "manure"
)

// manureNutrientFactor discounts manure applications to their commercial
// nutrient equivalent. Conversion happens here, at the typed input boundary,
// so the aggregator itself only ever sees dollars.
const manureNutrientFactor = 0.65

// UsageItem is one fertilizer/chemical/seed application on a farm.
type UsageItem struct {
	ID            string
	Category      UsageCategory
	Detail        string
	Quantity      float64
	UnitPrice     float64
	PerAcre       bool
	NutrientBasis NutrientBasis
}

// Cost returns the dollar cost of the application for the given farm acres.
func (u UsageItem) Cost(acres float64) float64 {
	cost := u.Quantity * u.UnitPrice
	if u.NutrientBasis == BasisManure {
		cost *= manureNutrientFactor
	}
	if u.PerAcre {
		cost *= acres
	}
	return cost
}

// CostBucket buckets flat and per-acre non-input costs.
type CostBucket string

const (
	BucketInsurance CostBucket = "insurance"
	BucketTrucking  CostBucket = "trucking"
	BucketOther     CostBucket = "other"
)

// CostItem is one non-input cost line on a farm.
type CostItem struct {
	ID      string
	Bucket  CostBucket
	Amount  float64
	PerAcre bool
}

// Cost returns the dollar cost of the line for the given farm acres.
func (c CostItem) Cost(acres float64) float64 {
	if c.PerAcre {
		return c.Amount * acres
	}
	return c.Amount
}

// EntitySplit fractionally attributes a farm to a legal entity.
type EntitySplit struct {
	EntityID string
	Percent  float64 // 0..100
}

// Farm is the typed input record for cost aggregation.
type Farm struct {
	ID              string
	BusinessID      string
	Name            string
	Commodity       domain.Commodity
	CropYear        int
	Acres           float64
	PrimaryEntityID string
	LandRent        float64
	LandRentPerAcre bool
	Usage           []UsageItem
	OtherCosts      []CostItem
	Splits          []EntitySplit
}

// ProductionEstimate carries the expected yield for a farm or
// business/commodity/year. A zero yield means "use the commodity default".
type ProductionEstimate struct {
	ID           string
	BusinessID   string
	FarmID       string
	Commodity    domain.Commodity
	CropYear     int
	Acres        float64
	YieldPerAcre float64
}

// LoanAllocator supplies per-farm, per-year loan interest and principal
// allocations. Implemented by the operations repository; kept as an
// interface so the aggregator stays pure.
type LoanAllocator interface {
	AllocationsFor(farmID string, cropYear int) ([]domain.LoanAllocation, error)
}
