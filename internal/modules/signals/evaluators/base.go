// Package evaluators holds the per-instrument rule functions of the signal
// scoring engine. Each evaluator inspects the market context, cost basis
// and position for one commodity and either returns a fully-populated
// signal draft or nil. Only BUY and STRONG_BUY classifications surface as
// drafts; weaker outcomes are computed for completeness and suppressed.
package evaluators

import (
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/adjustments"
	"github.com/grainflow/grainflow/internal/modules/preferences"
	"github.com/rs/zerolog"
)

// EvalContext carries everything an evaluator may consult. It is assembled
// once per commodity per generation pass and treated as read-only.
type EvalContext struct {
	BusinessID   string
	Commodity    domain.Commodity
	CropYear     int
	IsNewCrop    bool
	OldCrop      bool // prior marketing year inventory
	Market       *domain.MarketContext
	BreakEven    *domain.BreakEvenCost
	Position     *domain.MarketingPosition
	Prefs        preferences.Preferences
	Personalized map[domain.InstrumentType]*preferences.PersonalizedThreshold
	Fundamental  adjustments.FundamentalAdjustment
	Seasonal     adjustments.SeasonalAdjustment
	Now          time.Time
}

// Evaluator is the interface all instrument rule functions implement.
type Evaluator interface {
	// Name returns the unique identifier for this evaluator.
	Name() string

	// Instrument returns the marketing instrument this evaluator scores.
	Instrument() domain.InstrumentType

	// Evaluate returns a signal draft, or nil when current conditions do
	// not warrant an actionable recommendation.
	Evaluate(ctx *EvalContext) (*domain.SignalDraft, error)
}

// BaseEvaluator provides common functionality for all evaluators.
type BaseEvaluator struct {
	log zerolog.Logger
}

// NewBaseEvaluator creates a new base evaluator with logging.
func NewBaseEvaluator(log zerolog.Logger, name string) *BaseEvaluator {
	return &BaseEvaluator{
		log: log.With().Str("evaluator", name).Logger(),
	}
}

// defaultSignalTTL bounds how long a generated signal stays actionable.
const defaultSignalTTL = 48 * time.Hour

// BlendThreshold produces the effective trigger threshold for an
// instrument: the risk-scaled default, linearly blended with the user's
// personalized threshold by confidence, then scaled by the fundamental and
// seasonal multipliers in sequence.
func BlendThreshold(
	base float64,
	risk domain.RiskTolerance,
	personalized *preferences.PersonalizedThreshold,
	fund adjustments.FundamentalAdjustment,
	seasonal adjustments.SeasonalAdjustment,
) float64 {
	t := base * risk.ThresholdMultiplier()
	if personalized != nil {
		t = personalized.Blend(t)
	}
	t *= fund.ThresholdMultiplier
	t *= seasonal.ThresholdMultiplier
	return t
}

// desiredSaleFraction is the baseline fraction of remaining bushels a
// single recommendation targets before adjustments.
const desiredSaleFraction = 0.25

// saleFraction applies the fundamental and seasonal size adjustments to the
// baseline sale fraction, clamped to a sane band.
func saleFraction(fund adjustments.FundamentalAdjustment, seasonal adjustments.SeasonalAdjustment) float64 {
	f := desiredSaleFraction * (1 + fund.SizeAdjustment + seasonal.SizeAdjustment)
	if f < 0.05 {
		f = 0.05
	}
	if f > 0.75 {
		f = 0.75
	}
	return f
}

// recommendBushels sizes a sale recommendation: the desired fraction of
// remaining bushels, never more than remaining, capped by the configured
// max single sale fraction of projected production and, pre-harvest, by the
// bushels still needed to reach the pre-harvest target. Returns nil when no
// positive quantity survives the caps.
func recommendBushels(ctx *EvalContext, fraction float64) *float64 {
	pos := ctx.Position
	if pos == nil || pos.RemainingBushels <= 0 {
		return nil
	}

	qty := fraction * pos.RemainingBushels
	if qty > pos.RemainingBushels {
		qty = pos.RemainingBushels
	}

	if cap := ctx.Prefs.MaxSingleSale * pos.ProjectedBushels; cap > 0 && qty > cap {
		qty = cap
	}

	if !pos.HarvestComplete {
		if pos.BushelsToTarget <= 0 {
			return nil
		}
		if qty > pos.BushelsToTarget {
			qty = pos.BushelsToTarget
		}
	}

	if qty <= 0 {
		return nil
	}

	// Whole bushels read better on a recommendation
	qty = float64(int64(qty))
	if qty <= 0 {
		return nil
	}
	return &qty
}
