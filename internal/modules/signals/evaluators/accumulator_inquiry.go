package evaluators

import (
	"fmt"
	"math"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// Accumulator inquiries suit rangebound markets with enough movement to
// fund the premium structure but not so much that knockout risk dominates.
const (
	accumulatorMinVolatility = 0.15
	accumulatorMaxVolatility = 0.35
)

// AccumulatorInquiryEvaluator suggests exploring an accumulator contract
// for new crop bushels. It never fires for old crop inventory: accumulators
// accrue over months and stored grain needs faster tools.
type AccumulatorInquiryEvaluator struct {
	*BaseEvaluator
}

// NewAccumulatorInquiryEvaluator creates the accumulator inquiry evaluator.
func NewAccumulatorInquiryEvaluator(log zerolog.Logger) *AccumulatorInquiryEvaluator {
	return &AccumulatorInquiryEvaluator{BaseEvaluator: NewBaseEvaluator(log, "accumulator_inquiry")}
}

func (e *AccumulatorInquiryEvaluator) Name() string { return "accumulator_inquiry" }

func (e *AccumulatorInquiryEvaluator) Instrument() domain.InstrumentType {
	return domain.InstrumentAccumulatorInquiry
}

// Evaluate fires for new crop in a sideways, moderately volatile market
// where the price sits above break-even but short of an outright sale
// trigger. Those are the conditions an accumulator's daily accrual is
// built for.
func (e *AccumulatorInquiryEvaluator) Evaluate(ctx *EvalContext) (*domain.SignalDraft, error) {
	mkt := ctx.Market
	if mkt == nil {
		return nil, fmt.Errorf("accumulator evaluation requires market context")
	}
	if !ctx.IsNewCrop || ctx.OldCrop {
		return nil, nil
	}
	if ctx.BreakEven == nil || ctx.BreakEven.BreakEvenPrice <= 0 {
		return nil, nil
	}

	if mkt.Trend.Direction != domain.TrendSideways {
		return nil, nil
	}
	vol := mkt.Trend.Volatility
	if vol < accumulatorMinVolatility || vol > accumulatorMaxVolatility {
		return nil, nil
	}

	be := ctx.BreakEven.BreakEvenPrice
	pctAbove := (mkt.CashPrice() - be) / be
	buyT := BlendThreshold(cashSaleBaseBuy, ctx.Prefs.RiskTolerance,
		ctx.Personalized[domain.InstrumentAccumulatorInquiry], ctx.Fundamental, ctx.Seasonal)

	// Above the floor but below an outright sale: the in-between zone
	if pctAbove < ctx.Prefs.MinAboveBreakEven || pctAbove >= buyT {
		return nil, nil
	}

	qty := recommendBushels(ctx, saleFraction(ctx.Fundamental, ctx.Seasonal))
	if qty == nil {
		return nil, nil
	}

	round := func(v float64) float64 { return math.Round(v*100) / 100 }
	base := round(mkt.FuturesPrice * 1.05)
	doubleUp := round(mkt.FuturesPrice * 0.95)
	knockout := round(mkt.FuturesPrice * 0.85)

	return &domain.SignalDraft{
		BusinessID:   ctx.BusinessID,
		Instrument:   domain.InstrumentAccumulatorInquiry,
		Commodity:    ctx.Commodity,
		CropYear:     ctx.CropYear,
		IsNewCrop:    true,
		Strength:     domain.StrengthBuy,
		CurrentPrice: mkt.FuturesPrice,
		TargetPrice:  base,
		BreakEven:    be,
		Title: fmt.Sprintf("Sideways %s market suits an accumulator",
			ctx.Commodity.Display()),
		Summary: fmt.Sprintf("Ask your merchandiser about accumulating %.0f bushels near $%.2f",
			*qty, base),
		Rationale: fmt.Sprintf(
			"Price %.1f%% above break-even in a sideways market with %.0f%% volatility. Daily accrual above the market earns a premium an outright sale leaves on the table.",
			pctAbove*100, vol*100),
		RecommendedBushels: qty,
		ContextType:        domain.ContextAccumulator,
		Context: &domain.AccumulatorContext{
			FuturesPrice:      mkt.FuturesPrice,
			SuggestedBase:     base,
			SuggestedKnockout: knockout,
			SuggestedDouble:   doubleUp,
			Volatility:        vol,
		},
		TTL: defaultSignalTTL,
	}, nil
}
