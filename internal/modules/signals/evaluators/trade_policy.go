package evaluators

import (
	"fmt"
	"math"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// policyImpactFloor is the minimum absolute estimated price impact, in
// percent, before a policy event is worth a signal.
const policyImpactFloor = 3.0

// TradePolicyEvaluator turns bearish trade-policy events into defensive
// sale signals. Bullish events never trigger sales; waiting costs nothing.
type TradePolicyEvaluator struct {
	*BaseEvaluator
}

// NewTradePolicyEvaluator creates the trade policy evaluator.
func NewTradePolicyEvaluator(log zerolog.Logger) *TradePolicyEvaluator {
	return &TradePolicyEvaluator{BaseEvaluator: NewBaseEvaluator(log, "trade_policy")}
}

func (e *TradePolicyEvaluator) Name() string { return "trade_policy" }

func (e *TradePolicyEvaluator) Instrument() domain.InstrumentType {
	return domain.InstrumentTradePolicy
}

// Evaluate picks the most urgent bearish policy event affecting the
// commodity and recommends selling ahead of the expected move. IMMEDIATE
// events with a large impact upgrade to STRONG_BUY and a short TTL.
func (e *TradePolicyEvaluator) Evaluate(ctx *EvalContext) (*domain.SignalDraft, error) {
	mkt := ctx.Market
	if mkt == nil {
		return nil, fmt.Errorf("trade policy evaluation requires market context")
	}

	var worst *domain.PolicyEvent
	for i := range mkt.PolicyEvents {
		ev := &mkt.PolicyEvents[i]
		if ev.Commodity != ctx.Commodity {
			continue
		}
		if ev.ImpactPercent >= 0 || math.Abs(ev.ImpactPercent) < policyImpactFloor {
			continue
		}
		if ev.Urgency == domain.UrgencyMonitor {
			continue
		}
		if worst == nil || ev.ImpactPercent < worst.ImpactPercent {
			worst = ev
		}
	}
	if worst == nil {
		return nil, nil
	}

	strength := domain.StrengthBuy
	ttl := defaultSignalTTL
	if worst.Urgency == domain.UrgencyImmediate && worst.ImpactPercent <= -5 {
		strength = domain.StrengthStrongBuy
		ttl = defaultSignalTTL / 2
	}

	// Policy sales are defensive: half the usual tranche
	qty := recommendBushels(ctx, saleFraction(ctx.Fundamental, ctx.Seasonal)/2)
	if qty == nil {
		return nil, nil
	}

	cash := mkt.CashPrice()
	return &domain.SignalDraft{
		BusinessID:   ctx.BusinessID,
		Instrument:   domain.InstrumentTradePolicy,
		Commodity:    ctx.Commodity,
		CropYear:     ctx.CropYear,
		IsNewCrop:    ctx.IsNewCrop,
		Strength:     strength,
		CurrentPrice: cash,
		TargetPrice:  cash,
		Title: fmt.Sprintf("Trade policy risk to %s: %s", ctx.Commodity.Display(),
			worst.Headline),
		Summary: fmt.Sprintf("Consider selling %.0f bushels before an estimated %.1f%% move",
			*qty, worst.ImpactPercent),
		Rationale: fmt.Sprintf(
			"%s. Estimated price impact %.1f%%, urgency %s. A partial sale now trims exposure to the policy outcome.",
			worst.Headline, worst.ImpactPercent, worst.Urgency),
		RecommendedBushels: qty,
		ContextType:        domain.ContextTradePolicy,
		Context: &domain.TradePolicyContext{
			Headline:      worst.Headline,
			ImpactPercent: worst.ImpactPercent,
			Urgency:       string(worst.Urgency),
		},
		TTL: ttl,
	}, nil
}
