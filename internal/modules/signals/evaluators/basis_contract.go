package evaluators

import (
	"fmt"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// Base basis percentile trigger levels. A basis contract locks the local
// premium while leaving futures open, so the trigger is the historical rank
// of today's basis, not the outright price.
const (
	basisBaseStrong = 85.0
	basisBaseBuy    = 70.0
)

// BasisContractEvaluator scores locking in a historically strong local basis.
type BasisContractEvaluator struct {
	*BaseEvaluator
}

// NewBasisContractEvaluator creates the basis contract evaluator.
func NewBasisContractEvaluator(log zerolog.Logger) *BasisContractEvaluator {
	return &BasisContractEvaluator{BaseEvaluator: NewBaseEvaluator(log, "basis_contract")}
}

func (e *BasisContractEvaluator) Name() string { return "basis_contract" }

func (e *BasisContractEvaluator) Instrument() domain.InstrumentType {
	return domain.InstrumentBasisContract
}

// Evaluate fires when the current basis ranks above the blended percentile
// threshold. Strength upgrades to STRONG_BUY when fundamentals or the
// seasonal window say futures upside is worth keeping open.
func (e *BasisContractEvaluator) Evaluate(ctx *EvalContext) (*domain.SignalDraft, error) {
	mkt := ctx.Market
	if mkt == nil {
		return nil, fmt.Errorf("basis evaluation requires market context")
	}

	strongT := BlendThreshold(basisBaseStrong, ctx.Prefs.RiskTolerance,
		ctx.Personalized[domain.InstrumentBasisContract], ctx.Fundamental, ctx.Seasonal)
	buyT := BlendThreshold(basisBaseBuy, ctx.Prefs.RiskTolerance,
		ctx.Personalized[domain.InstrumentBasisContract], ctx.Fundamental, ctx.Seasonal)

	// Percentiles live on a 0..100 scale; risk scaling can push the blended
	// value past it, which simply means the trigger cannot fire.
	var strength domain.SignalStrength
	switch {
	case mkt.BasisPercentile >= strongT:
		strength = domain.StrengthStrongBuy
	case mkt.BasisPercentile >= buyT:
		strength = domain.StrengthBuy
	default:
		e.log.Debug().
			Str("commodity", string(ctx.Commodity)).
			Float64("basis_percentile", mkt.BasisPercentile).
			Float64("buy_threshold", buyT).
			Msg("Basis percentile below threshold, suppressed")
		return nil, nil
	}

	qty := recommendBushels(ctx, saleFraction(ctx.Fundamental, ctx.Seasonal))
	if qty == nil {
		return nil, nil
	}

	return &domain.SignalDraft{
		BusinessID:   ctx.BusinessID,
		Instrument:   domain.InstrumentBasisContract,
		Commodity:    ctx.Commodity,
		CropYear:     ctx.CropYear,
		IsNewCrop:    ctx.IsNewCrop,
		Strength:     strength,
		CurrentPrice: mkt.CashPrice(),
		TargetPrice:  mkt.CashPrice(),
		Title: fmt.Sprintf("Strong %s basis: %.2f at the %.0fth percentile",
			ctx.Commodity.Display(), mkt.Basis, mkt.BasisPercentile),
		Summary: fmt.Sprintf("Lock basis on %.0f bushels of %s, futures stay open",
			*qty, ctx.Commodity.Display()),
		Rationale: fmt.Sprintf(
			"Basis of %.2f ranks at the %.0fth percentile of recent history. A basis contract captures the local premium without capping futures upside.",
			mkt.Basis, mkt.BasisPercentile),
		RecommendedBushels: qty,
		ContextType:        domain.ContextBasis,
		Context: &domain.BasisContext{
			Basis:           mkt.Basis,
			BasisPercentile: mkt.BasisPercentile,
			FuturesPrice:    mkt.FuturesPrice,
		},
		TTL: defaultSignalTTL,
	}, nil
}
