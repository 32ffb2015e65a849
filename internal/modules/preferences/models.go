// Package preferences stores per-business marketing preferences and
// personalized signal thresholds.
package preferences

import (
	"strings"

	"github.com/grainflow/grainflow/internal/domain"
)

// Preferences configure signal generation for one business.
type Preferences struct {
	BusinessID         string
	RiskTolerance      domain.RiskTolerance
	EnabledCommodities []domain.Commodity
	EnabledInstruments []string
	TargetMargin       float64 // $/bu above break-even considered a good sale
	MinAboveBreakEven  float64 // fraction; below this no actionable signal
	PreHarvestTarget   float64 // fraction of projected bushels
	MaxSingleSale      float64 // fraction of projected bushels per recommendation
}

// Defaults returns the preferences used when a business has no stored row.
func Defaults(businessID string) Preferences {
	return Preferences{
		BusinessID:         businessID,
		RiskTolerance:      domain.RiskModerate,
		EnabledCommodities: []domain.Commodity{domain.CommodityCorn, domain.CommoditySoybeans, domain.CommodityWheat},
		EnabledInstruments: []string{"CASH_SALE", "BASIS_CONTRACT", "HTA"},
		TargetMargin:       0.50,
		MinAboveBreakEven:  0.03,
		PreHarvestTarget:   0.50,
		MaxSingleSale:      0.20,
	}
}

// InstrumentEnabled reports whether the business opted in to an instrument.
func (p Preferences) InstrumentEnabled(instrument string) bool {
	for _, i := range p.EnabledInstruments {
		if strings.EqualFold(i, instrument) {
			return true
		}
	}
	return false
}

// PersonalizedThreshold is a user's learned threshold for one
// commodity/instrument, blended with the default by confidence.
type PersonalizedThreshold struct {
	BusinessID string
	UserID     string
	Commodity  domain.Commodity
	Instrument string
	Threshold  float64
	Confidence float64 // 0..100
}

// Blend linearly interpolates between a default threshold and the
// personalized one, weighted by confidence. Confidence 0 returns the
// default exactly; confidence 100 returns the personalized value exactly.
func (p PersonalizedThreshold) Blend(defaultThreshold float64) float64 {
	conf := p.Confidence
	if conf < 0 {
		conf = 0
	}
	if conf > 100 {
		conf = 100
	}
	w := conf / 100
	return defaultThreshold*(1-w) + p.Threshold*w
}
