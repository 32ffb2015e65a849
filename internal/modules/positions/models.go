// Package positions converts production estimates and executed contracts
// into the remaining-bushels marketing position per commodity and year.
package positions

import (
	"time"

	"github.com/grainflow/grainflow/internal/domain"
)

// ContractType labels how bushels were committed.
type ContractType string

const (
	ContractCash        ContractType = "cash"
	ContractBasis       ContractType = "basis"
	ContractHTA         ContractType = "hta"
	ContractAccumulator ContractType = "accumulator"
)

// GrainContract is one executed sale or pricing commitment.
type GrainContract struct {
	ID            string
	BusinessID    string
	EntityID      string
	Commodity     domain.Commodity
	CropYear      int
	Type          ContractType
	Bushels       float64
	Price         float64
	DeliveryMonth string
	CreatedAt     time.Time
}

// DefaultPreHarvestTarget is the fraction of projected production a business
// aims to have sold before harvest, absent configuration.
const DefaultPreHarvestTarget = 0.50
