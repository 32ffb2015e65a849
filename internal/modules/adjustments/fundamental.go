// Package adjustments maps fundamental and seasonal market context onto the
// threshold and sale-size modifiers used by the signal evaluators. Every
// function here is pure and deterministic.
package adjustments

// Outlook labels the directional read of a fundamental score.
type Outlook string

const (
	OutlookBullish Outlook = "BULLISH"
	OutlookBearish Outlook = "BEARISH"
	OutlookNeutral Outlook = "NEUTRAL"
)

// outlookThreshold is the absolute score beyond which the outlook stops
// being neutral.
const outlookThreshold = 25.0

// FundamentalAdjustment is the evaluator-facing result of a fundamental score.
type FundamentalAdjustment struct {
	Score               float64 // clamped input score, kept for severity checks
	StrengthModifier    float64 // [-2, +2], widens or narrows strength thresholds
	ThresholdMultiplier float64 // scales blended thresholds; >1 = harder to trigger
	SizeAdjustment      float64 // signed fraction applied to recommended sale size
	Outlook             Outlook
}

// Fundamental converts a [-100, +100] fundamental score into threshold and
// size modifiers. Bullish fundamentals raise thresholds and shrink sale
// size (hold for more upside); bearish fundamentals do the opposite.
// Out-of-range scores are clamped.
func Fundamental(score float64) FundamentalAdjustment {
	score = clamp(score, -100, 100)

	adj := FundamentalAdjustment{
		Score:               score,
		StrengthModifier:    clamp(score/50, -2, 2),
		ThresholdMultiplier: 1 + score/100*0.2,
		SizeAdjustment:      -score / 100 * 0.25,
		Outlook:             OutlookNeutral,
	}

	switch {
	case score >= outlookThreshold:
		adj.Outlook = OutlookBullish
	case score <= -outlookThreshold:
		adj.Outlook = OutlookBearish
	}

	return adj
}

// StronglyBearish reports whether the score is bearish enough to downgrade a
// HOLD into a defensive half-size BUY.
func StronglyBearish(score float64) bool {
	return score <= -50
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
