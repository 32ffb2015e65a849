package evaluators

import (
	"fmt"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/adjustments"
	"github.com/rs/zerolog"
)

// Base cash sale trigger levels as fractions above break-even, before risk
// scaling and personalization.
const (
	cashSaleBaseStrong = 0.15
	cashSaleBaseBuy    = 0.08
)

// rsiOverbought is the technical level above which a downtrending market is
// read as a fading rally worth selling into.
const rsiOverbought = 70.0

// CashSaleEvaluator scores outright cash sales of physical grain against
// the operation's break-even price.
type CashSaleEvaluator struct {
	*BaseEvaluator
}

// NewCashSaleEvaluator creates the cash sale evaluator.
func NewCashSaleEvaluator(log zerolog.Logger) *CashSaleEvaluator {
	return &CashSaleEvaluator{BaseEvaluator: NewBaseEvaluator(log, "cash_sale")}
}

func (e *CashSaleEvaluator) Name() string { return "cash_sale" }

func (e *CashSaleEvaluator) Instrument() domain.InstrumentType { return domain.InstrumentCashSale }

// ClassifyCashSale walks the recommendation ladder for a cash sale. The
// full ladder is computed so callers can log or inspect sub-BUY outcomes,
// but only BUY and STRONG_BUY ever become signals. defensive marks a HOLD
// downgraded to a half-size BUY on strongly bearish conditions.
func ClassifyCashSale(
	pctAboveBE float64,
	marginPerBushel float64,
	strongThreshold float64,
	buyThreshold float64,
	minAboveBE float64,
	targetMargin float64,
	trend domain.TrendAnalysis,
	fund adjustments.FundamentalAdjustment,
	seasonal adjustments.SeasonalAdjustment,
) (strength domain.SignalStrength, defensive bool) {
	switch {
	case pctAboveBE >= strongThreshold && trend.Direction == domain.TrendDown && trend.RSI > rsiOverbought:
		return domain.StrengthStrongBuy, false
	case pctAboveBE >= buyThreshold && marginPerBushel >= targetMargin:
		return domain.StrengthBuy, false
	case pctAboveBE >= minAboveBE:
		if adjustments.StronglyBearish(fund.Score) || seasonal.UrgencyBoost {
			return domain.StrengthBuy, true
		}
		return domain.StrengthHold, false
	case marginPerBushel > 0:
		return domain.StrengthSell, false
	default:
		return domain.StrengthStrongSell, false
	}
}

// Evaluate scores a cash sale for one commodity. New crop requires a
// break-even price; old crop inventory is scored on technicals and
// fundamentals alone since its costs are sunk.
func (e *CashSaleEvaluator) Evaluate(ctx *EvalContext) (*domain.SignalDraft, error) {
	mkt := ctx.Market
	if mkt == nil {
		return nil, fmt.Errorf("cash sale evaluation requires market context")
	}

	if ctx.OldCrop {
		return e.evaluateOldCrop(ctx)
	}

	if ctx.BreakEven == nil || ctx.BreakEven.BreakEvenPrice <= 0 {
		e.log.Debug().
			Str("commodity", string(ctx.Commodity)).
			Msg("No break-even available, skipping cash sale evaluation")
		return nil, nil
	}

	cash := mkt.CashPrice()
	be := ctx.BreakEven.BreakEvenPrice
	pctAbove := (cash - be) / be
	margin := cash - be

	strongT := BlendThreshold(cashSaleBaseStrong, ctx.Prefs.RiskTolerance,
		ctx.Personalized[domain.InstrumentCashSale], ctx.Fundamental, ctx.Seasonal)
	buyT := BlendThreshold(cashSaleBaseBuy, ctx.Prefs.RiskTolerance,
		ctx.Personalized[domain.InstrumentCashSale], ctx.Fundamental, ctx.Seasonal)

	strength, defensive := ClassifyCashSale(pctAbove, margin, strongT, buyT,
		ctx.Prefs.MinAboveBreakEven, ctx.Prefs.TargetMargin,
		mkt.Trend, ctx.Fundamental, ctx.Seasonal)

	if !strength.Actionable() {
		e.log.Debug().
			Str("commodity", string(ctx.Commodity)).
			Str("strength", string(strength)).
			Float64("pct_above_be", pctAbove).
			Msg("Cash sale below actionable strength, suppressed")
		return nil, nil
	}

	if ctx.Seasonal.WaitRecommended && strength == domain.StrengthBuy && !defensive {
		e.log.Debug().
			Str("commodity", string(ctx.Commodity)).
			Msg("Seasonal pattern favors waiting, suppressing BUY")
		return nil, nil
	}

	fraction := saleFraction(ctx.Fundamental, ctx.Seasonal)
	if defensive {
		fraction /= 2
	}
	qty := recommendBushels(ctx, fraction)
	if qty == nil {
		return nil, nil
	}

	title := fmt.Sprintf("Cash sale opportunity: %s %.1f%% above break-even",
		ctx.Commodity.Display(), pctAbove*100)
	rationale := fmt.Sprintf(
		"Cash price $%.2f vs break-even $%.2f leaves $%.2f/bu margin. Trend %s, RSI %.0f.",
		cash, be, margin, mkt.Trend.Direction, mkt.Trend.RSI)
	if defensive {
		rationale += " Bearish conditions favor a defensive partial sale."
	}

	return &domain.SignalDraft{
		BusinessID:         ctx.BusinessID,
		Instrument:         domain.InstrumentCashSale,
		Commodity:          ctx.Commodity,
		CropYear:           ctx.CropYear,
		IsNewCrop:          ctx.IsNewCrop,
		Strength:           strength,
		CurrentPrice:       cash,
		TargetPrice:        be * (1 + strongT),
		BreakEven:          be,
		Title:              title,
		Summary:            fmt.Sprintf("Sell %.0f bushels of %s at $%.2f", *qty, ctx.Commodity.Display(), cash),
		Rationale:          rationale,
		RecommendedBushels: qty,
		ContextType:        domain.ContextCashSale,
		Context: &domain.CashSaleContext{
			CashPrice:       cash,
			BreakEven:       be,
			PercentAboveBE:  pctAbove,
			MarginPerBushel: margin,
			TrendDirection:  string(mkt.Trend.Direction),
			RSI:             mkt.Trend.RSI,
		},
		TTL: defaultSignalTTL,
	}, nil
}

// evaluateOldCrop scores remaining prior-year inventory. Production costs
// are sunk, so the read is purely technical and fundamental: sell strength
// into an overbought or fading market.
func (e *CashSaleEvaluator) evaluateOldCrop(ctx *EvalContext) (*domain.SignalDraft, error) {
	mkt := ctx.Market
	cash := mkt.CashPrice()

	var strength domain.SignalStrength
	switch {
	case mkt.Trend.Direction == domain.TrendDown && mkt.Trend.RSI > rsiOverbought:
		strength = domain.StrengthStrongBuy
	case mkt.Trend.RSI > 60 && ctx.Fundamental.Outlook == adjustments.OutlookBearish:
		strength = domain.StrengthBuy
	case ctx.Seasonal.UrgencyBoost && mkt.Trend.Direction != domain.TrendUp:
		strength = domain.StrengthBuy
	default:
		strength = domain.StrengthHold
	}

	if !strength.Actionable() {
		return nil, nil
	}

	qty := recommendBushels(ctx, saleFraction(ctx.Fundamental, ctx.Seasonal))
	if qty == nil {
		return nil, nil
	}

	return &domain.SignalDraft{
		BusinessID:         ctx.BusinessID,
		Instrument:         domain.InstrumentCashSale,
		Commodity:          ctx.Commodity,
		CropYear:           ctx.CropYear,
		IsNewCrop:          false,
		Strength:           strength,
		CurrentPrice:       cash,
		TargetPrice:        cash,
		Title:              fmt.Sprintf("Old crop %s: sell into market strength", ctx.Commodity.Display()),
		Summary:            fmt.Sprintf("Move %.0f bushels of stored %s at $%.2f", *qty, ctx.Commodity.Display(), cash),
		Rationale: fmt.Sprintf(
			"Stored %d crop with trend %s and RSI %.0f. Carrying costs accrue while upside fades.",
			ctx.CropYear, mkt.Trend.Direction, mkt.Trend.RSI),
		RecommendedBushels: qty,
		ContextType:        domain.ContextCashSale,
		Context: &domain.CashSaleContext{
			CashPrice:      cash,
			TrendDirection: string(mkt.Trend.Direction),
			RSI:            mkt.Trend.RSI,
			OldCrop:        true,
		},
		TTL: defaultSignalTTL,
	}, nil
}
