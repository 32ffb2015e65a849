package evaluators

import (
	"fmt"
	"math"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/adjustments"
	"github.com/rs/zerolog"
)

// CallOptionEvaluator scores re-owning sold bushels with calls. It only
// fires for operations already well sold into a market that keeps rallying,
// where regret risk, not price risk, is the problem.
type CallOptionEvaluator struct {
	*BaseEvaluator
}

// NewCallOptionEvaluator creates the call option evaluator.
func NewCallOptionEvaluator(log zerolog.Logger) *CallOptionEvaluator {
	return &CallOptionEvaluator{BaseEvaluator: NewBaseEvaluator(log, "call_option")}
}

func (e *CallOptionEvaluator) Name() string { return "call_option" }

func (e *CallOptionEvaluator) Instrument() domain.InstrumentType { return domain.InstrumentCallOption }

// EstimateCallPremium is a coarse premium heuristic: a volatility-scaled
// fraction of the futures price, rounded to the cent. It sizes the cost of
// re-ownership for signal copy, nothing more.
func EstimateCallPremium(futures, volatility float64) float64 {
	if volatility < 0 {
		volatility = 0
	}
	premium := futures * (0.015 + 0.08*volatility)
	return math.Round(premium*100) / 100
}

// Evaluate fires when the operation has met its pre-harvest sales target and
// the market is still trending up on bullish fundamentals.
func (e *CallOptionEvaluator) Evaluate(ctx *EvalContext) (*domain.SignalDraft, error) {
	mkt := ctx.Market
	if mkt == nil {
		return nil, fmt.Errorf("call option evaluation requires market context")
	}
	pos := ctx.Position
	if pos == nil || pos.SoldBushels <= 0 {
		return nil, nil
	}

	if pos.PercentSold < ctx.Prefs.PreHarvestTarget {
		return nil, nil
	}
	if mkt.Trend.Direction != domain.TrendUp || ctx.Fundamental.Outlook != adjustments.OutlookBullish {
		return nil, nil
	}

	// Round the strike up to the nearest dime above the market
	strike := math.Ceil(mkt.FuturesPrice*10) / 10
	premium := EstimateCallPremium(mkt.FuturesPrice, mkt.Trend.Volatility)

	qty := pos.SoldBushels * desiredSaleFraction
	if cap := ctx.Prefs.MaxSingleSale * pos.ProjectedBushels; cap > 0 && qty > cap {
		qty = cap
	}
	qty = float64(int64(qty))
	if qty <= 0 {
		return nil, nil
	}

	return &domain.SignalDraft{
		BusinessID:   ctx.BusinessID,
		Instrument:   domain.InstrumentCallOption,
		Commodity:    ctx.Commodity,
		CropYear:     ctx.CropYear,
		IsNewCrop:    ctx.IsNewCrop,
		Strength:     domain.StrengthBuy,
		CurrentPrice: mkt.FuturesPrice,
		TargetPrice:  strike,
		Title: fmt.Sprintf("Re-own sold %s with calls while the rally runs",
			ctx.Commodity.Display()),
		Summary: fmt.Sprintf("Buy $%.2f calls on %.0f bushels, roughly $%.2f/bu premium",
			strike, qty, premium),
		Rationale: fmt.Sprintf(
			"%.0f%% sold with futures trending up on bullish fundamentals. Calls cap the cost of participating in further upside at the premium.",
			pos.PercentSold*100),
		RecommendedBushels: &qty,
		ContextType:        domain.ContextCallOption,
		Context: &domain.CallOptionContext{
			FuturesPrice:     mkt.FuturesPrice,
			StrikePrice:      strike,
			EstimatedPremium: premium,
			PercentSold:      pos.PercentSold,
		},
		TTL: defaultSignalTTL,
	}, nil
}
