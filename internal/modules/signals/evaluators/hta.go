package evaluators

import (
	"fmt"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// Base HTA trigger levels as fractions of futures above break-even. An HTA
// locks the board price and leaves basis open, so the trigger compares
// futures alone against break-even and wants a weak basis worth waiting on.
const (
	htaBaseStrong = 0.12
	htaBaseBuy    = 0.06
)

// weakBasisPercentile marks a basis weak enough that leaving it open is the
// point of the contract.
const weakBasisPercentile = 40.0

// HTAEvaluator scores hedge-to-arrive contracts: futures strong, basis weak.
type HTAEvaluator struct {
	*BaseEvaluator
}

// NewHTAEvaluator creates the hedge-to-arrive evaluator.
func NewHTAEvaluator(log zerolog.Logger) *HTAEvaluator {
	return &HTAEvaluator{BaseEvaluator: NewBaseEvaluator(log, "hta")}
}

func (e *HTAEvaluator) Name() string { return "hta" }

func (e *HTAEvaluator) Instrument() domain.InstrumentType { return domain.InstrumentHTA }

// Evaluate fires when futures clear the blended margin over break-even while
// the basis still ranks weak. A strong basis suppresses the signal since a
// straight cash sale or basis contract dominates.
func (e *HTAEvaluator) Evaluate(ctx *EvalContext) (*domain.SignalDraft, error) {
	mkt := ctx.Market
	if mkt == nil {
		return nil, fmt.Errorf("hta evaluation requires market context")
	}
	if ctx.BreakEven == nil || ctx.BreakEven.BreakEvenPrice <= 0 {
		return nil, nil
	}

	if mkt.BasisPercentile >= weakBasisPercentile {
		e.log.Debug().
			Str("commodity", string(ctx.Commodity)).
			Float64("basis_percentile", mkt.BasisPercentile).
			Msg("Basis not weak enough for an HTA, suppressed")
		return nil, nil
	}

	be := ctx.BreakEven.BreakEvenPrice
	pctAbove := (mkt.FuturesPrice - be) / be

	strongT := BlendThreshold(htaBaseStrong, ctx.Prefs.RiskTolerance,
		ctx.Personalized[domain.InstrumentHTA], ctx.Fundamental, ctx.Seasonal)
	buyT := BlendThreshold(htaBaseBuy, ctx.Prefs.RiskTolerance,
		ctx.Personalized[domain.InstrumentHTA], ctx.Fundamental, ctx.Seasonal)

	var strength domain.SignalStrength
	switch {
	case pctAbove >= strongT && mkt.Trend.Direction == domain.TrendDown && mkt.Trend.RSI > 65:
		strength = domain.StrengthStrongBuy
	case pctAbove >= buyT:
		strength = domain.StrengthBuy
	default:
		return nil, nil
	}

	qty := recommendBushels(ctx, saleFraction(ctx.Fundamental, ctx.Seasonal))
	if qty == nil {
		return nil, nil
	}

	return &domain.SignalDraft{
		BusinessID:   ctx.BusinessID,
		Instrument:   domain.InstrumentHTA,
		Commodity:    ctx.Commodity,
		CropYear:     ctx.CropYear,
		IsNewCrop:    ctx.IsNewCrop,
		Strength:     strength,
		CurrentPrice: mkt.FuturesPrice,
		TargetPrice:  mkt.FuturesPrice,
		BreakEven:    be,
		Title: fmt.Sprintf("HTA window: %s futures %.1f%% above break-even",
			ctx.Commodity.Display(), pctAbove*100),
		Summary: fmt.Sprintf("Lock %s %s futures at $%.2f on %.0f bushels, basis stays open",
			mkt.ContractMonth, ctx.Commodity.Display(), mkt.FuturesPrice, *qty),
		Rationale: fmt.Sprintf(
			"Futures at $%.2f clear break-even $%.2f by %.1f%% while basis ranks at the %.0fth percentile. Locking the board now keeps the basis improvement open.",
			mkt.FuturesPrice, be, pctAbove*100, mkt.BasisPercentile),
		RecommendedBushels: qty,
		ContextType:        domain.ContextHTA,
		Context: &domain.HTAContext{
			FuturesPrice:   mkt.FuturesPrice,
			BreakEven:      be,
			PercentAboveBE: pctAbove,
			ContractMonth:  mkt.ContractMonth,
		},
		TTL: defaultSignalTTL,
	}, nil
}
