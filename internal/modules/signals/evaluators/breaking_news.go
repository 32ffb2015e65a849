package evaluators

import (
	"fmt"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// BreakingNewsEvaluator turns a bearish news flow confirmed by a falling
// market into a defensive sale signal. Sentiment alone never fires; the
// trend has to agree.
type BreakingNewsEvaluator struct {
	*BaseEvaluator
}

// NewBreakingNewsEvaluator creates the breaking news evaluator.
func NewBreakingNewsEvaluator(log zerolog.Logger) *BreakingNewsEvaluator {
	return &BreakingNewsEvaluator{BaseEvaluator: NewBaseEvaluator(log, "breaking_news")}
}

func (e *BreakingNewsEvaluator) Name() string { return "breaking_news" }

func (e *BreakingNewsEvaluator) Instrument() domain.InstrumentType {
	return domain.InstrumentBreakingNews
}

func (e *BreakingNewsEvaluator) Evaluate(ctx *EvalContext) (*domain.SignalDraft, error) {
	mkt := ctx.Market
	if mkt == nil {
		return nil, fmt.Errorf("news evaluation requires market context")
	}

	if mkt.Sentiment != domain.SentimentBearish || mkt.Trend.Direction != domain.TrendDown {
		return nil, nil
	}

	qty := recommendBushels(ctx, saleFraction(ctx.Fundamental, ctx.Seasonal)/2)
	if qty == nil {
		return nil, nil
	}

	cash := mkt.CashPrice()
	return &domain.SignalDraft{
		BusinessID:   ctx.BusinessID,
		Instrument:   domain.InstrumentBreakingNews,
		Commodity:    ctx.Commodity,
		CropYear:     ctx.CropYear,
		IsNewCrop:    ctx.IsNewCrop,
		Strength:     domain.StrengthBuy,
		CurrentPrice: cash,
		TargetPrice:  cash,
		Title:        fmt.Sprintf("Bearish news flow on %s confirmed by the tape", ctx.Commodity.Display()),
		Summary:      fmt.Sprintf("Consider trimming %.0f bushels while liquidity holds", *qty),
		Rationale: fmt.Sprintf(
			"News sentiment is bearish and the market is already trending down (RSI %.0f). A partial sale reduces exposure before the story is fully priced.",
			mkt.Trend.RSI),
		RecommendedBushels: qty,
		ContextType:        domain.ContextNews,
		Context: &domain.NewsContext{
			Sentiment:      string(mkt.Sentiment),
			TrendDirection: string(mkt.Trend.Direction),
			RSI:            mkt.Trend.RSI,
		},
		TTL: defaultSignalTTL / 2,
	}, nil
}
