package adjustments

import (
	"time"

	"github.com/grainflow/grainflow/internal/domain"
)

// SeasonalAdjustment is the evaluator-facing result of a seasonal pattern.
type SeasonalAdjustment struct {
	ThresholdMultiplier float64 // <1 in seasonally strong months (easier to trigger a sale)
	SizeAdjustment      float64 // signed fraction applied to recommended sale size
	UrgencyBoost        bool    // favorable window with fading rally odds: act now
	WaitRecommended     bool    // unfavorable window with good rally odds: hold
}

// Seasonal converts a commodity/month historical pattern into threshold and
// size modifiers. High price percentiles mark seasonally strong windows, so
// thresholds loosen and size grows; low percentiles do the opposite.
func Seasonal(ctx domain.SeasonalContext) SeasonalAdjustment {
	percentile := clamp(ctx.PricePercentile, 0, 100)
	rally := clamp(ctx.RallyProbability, 0, 1)

	return SeasonalAdjustment{
		ThresholdMultiplier: 1 - (percentile-50)/100*0.3,
		SizeAdjustment:      (percentile - 50) / 100 * 0.2,
		UrgencyBoost:        percentile >= 70 && rally < 0.40,
		WaitRecommended:     percentile <= 30 && rally >= 0.60,
	}
}

// pattern is one month of commodity seasonal history.
type pattern struct {
	percentile float64
	rallyProb  float64
	action     string
}

// seasonalPatterns is the built-in commodity/month lookup used when no
// external seasonal feed is wired. Percentiles reflect the typical shape of
// the US marketing year: spring/early-summer weather premium, harvest lows.
var seasonalPatterns = map[domain.Commodity][12]pattern{
	domain.CommodityCorn: {
		{45, 0.55, "hold"}, {48, 0.55, "hold"}, {55, 0.50, "watch"},
		{62, 0.45, "scale in sales"}, {72, 0.35, "sell rallies"}, {78, 0.30, "sell rallies"},
		{65, 0.35, "sell rallies"}, {50, 0.40, "watch"}, {35, 0.55, "hold"},
		{25, 0.65, "hold"}, {30, 0.60, "hold"}, {40, 0.55, "hold"},
	},
	domain.CommoditySoybeans: {
		{48, 0.55, "hold"}, {50, 0.52, "hold"}, {55, 0.50, "watch"},
		{60, 0.45, "scale in sales"}, {70, 0.38, "sell rallies"}, {75, 0.32, "sell rallies"},
		{68, 0.35, "sell rallies"}, {55, 0.42, "watch"}, {38, 0.55, "hold"},
		{25, 0.65, "hold"}, {32, 0.60, "hold"}, {42, 0.55, "hold"},
	},
	domain.CommodityWheat: {
		{55, 0.48, "watch"}, {58, 0.45, "scale in sales"}, {62, 0.42, "scale in sales"},
		{68, 0.38, "sell rallies"}, {72, 0.35, "sell rallies"}, {50, 0.45, "watch"},
		{35, 0.55, "hold"}, {30, 0.58, "hold"}, {38, 0.55, "hold"},
		{45, 0.52, "hold"}, {50, 0.50, "hold"}, {52, 0.50, "hold"},
	},
}

// LookupSeasonal returns the built-in seasonal context for a commodity and
// month. Unknown commodities get a flat, neutral pattern.
func LookupSeasonal(commodity domain.Commodity, month time.Month) domain.SeasonalContext {
	patterns, ok := seasonalPatterns[commodity]
	if !ok {
		return domain.SeasonalContext{PricePercentile: 50, RallyProbability: 0.5, RecommendedAction: "hold"}
	}

	p := patterns[int(month)-1]
	return domain.SeasonalContext{
		PricePercentile:   p.percentile,
		RallyProbability:  p.rallyProb,
		RecommendedAction: p.action,
	}
}
