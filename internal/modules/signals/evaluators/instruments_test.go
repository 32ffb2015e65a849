package evaluators

import (
	"testing"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/adjustments"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasisContract_PercentileTriggers(t *testing.T) {
	eval := NewBasisContractEvaluator(zerolog.Nop())

	cases := []struct {
		name       string
		percentile float64
		expectNil  bool
		strength   domain.SignalStrength
	}{
		{"below buy", 60, true, ""},
		{"buy", 75, false, domain.StrengthBuy},
		{"strong buy", 90, false, domain.StrengthStrongBuy},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ctx := testContext(4.75, 4.50, domain.TrendAnalysis{Direction: domain.TrendSideways, RSI: 50})
			ctx.Market.Basis = -0.10
			ctx.Market.BasisPercentile = tc.percentile

			draft, err := eval.Evaluate(ctx)
			require.NoError(t, err)
			if tc.expectNil {
				assert.Nil(t, draft)
				return
			}
			require.NotNil(t, draft)
			assert.Equal(t, tc.strength, draft.Strength)
			assert.Equal(t, domain.InstrumentBasisContract, draft.Instrument)
		})
	}
}

func TestBasisContract_ConservativeRiskRaisesBar(t *testing.T) {
	ctx := testContext(4.75, 4.50, domain.TrendAnalysis{Direction: domain.TrendSideways, RSI: 50})
	ctx.Market.BasisPercentile = 75
	ctx.Prefs.RiskTolerance = domain.RiskConservative

	// 70 * 1.5 = 105, unreachable on a percentile scale
	draft, err := NewBasisContractEvaluator(zerolog.Nop()).Evaluate(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestHTA_RequiresWeakBasis(t *testing.T) {
	eval := NewHTAEvaluator(zerolog.Nop())

	ctx := testContext(5.00, 4.50, domain.TrendAnalysis{Direction: domain.TrendSideways, RSI: 55})
	ctx.Market.BasisPercentile = 30

	draft, err := eval.Evaluate(ctx)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, domain.StrengthBuy, draft.Strength)
	assert.Equal(t, domain.InstrumentHTA, draft.Instrument)

	payload, ok := draft.Context.(*domain.HTAContext)
	require.True(t, ok)
	assert.Equal(t, "DEC", payload.ContractMonth)

	// Same futures level but a strong basis: a cash sale dominates
	ctx.Market.BasisPercentile = 65
	draft, err = eval.Evaluate(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestHTA_StrongBuyOnOverboughtDowntrend(t *testing.T) {
	ctx := testContext(5.10, 4.50, domain.TrendAnalysis{Direction: domain.TrendDown, RSI: 68})
	ctx.Market.BasisPercentile = 20

	draft, err := NewHTAEvaluator(zerolog.Nop()).Evaluate(ctx)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, domain.StrengthStrongBuy, draft.Strength)
}

func TestAccumulatorInquiry_SidewaysWindowOnly(t *testing.T) {
	eval := NewAccumulatorInquiryEvaluator(zerolog.Nop())

	build := func() *EvalContext {
		// 5% above break-even: past the floor, short of a sale trigger
		ctx := testContext(4.725, 4.50, domain.TrendAnalysis{
			Direction:  domain.TrendSideways,
			RSI:        50,
			Volatility: 0.22,
		})
		return ctx
	}

	draft, err := eval.Evaluate(build())
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, domain.InstrumentAccumulatorInquiry, draft.Instrument)
	assert.Equal(t, domain.StrengthBuy, draft.Strength)

	payload, ok := draft.Context.(*domain.AccumulatorContext)
	require.True(t, ok)
	assert.Less(t, payload.SuggestedKnockout, payload.SuggestedDouble)
	assert.Less(t, payload.SuggestedDouble, payload.SuggestedBase)

	t.Run("trending market", func(t *testing.T) {
		ctx := build()
		ctx.Market.Trend.Direction = domain.TrendUp
		draft, err := eval.Evaluate(ctx)
		require.NoError(t, err)
		assert.Nil(t, draft)
	})

	t.Run("too volatile", func(t *testing.T) {
		ctx := build()
		ctx.Market.Trend.Volatility = 0.50
		draft, err := eval.Evaluate(ctx)
		require.NoError(t, err)
		assert.Nil(t, draft)
	})

	t.Run("old crop excluded", func(t *testing.T) {
		ctx := build()
		ctx.IsNewCrop = false
		ctx.OldCrop = true
		draft, err := eval.Evaluate(ctx)
		require.NoError(t, err)
		assert.Nil(t, draft)
	})

	t.Run("price already at sale trigger", func(t *testing.T) {
		ctx := build()
		ctx.Market.FuturesPrice = 5.00
		draft, err := eval.Evaluate(ctx)
		require.NoError(t, err)
		assert.Nil(t, draft)
	})
}

func TestCallOption_FiresOnlyWhenWellSold(t *testing.T) {
	eval := NewCallOptionEvaluator(zerolog.Nop())

	build := func() *EvalContext {
		ctx := testContext(5.00, 4.50, domain.TrendAnalysis{Direction: domain.TrendUp, RSI: 62, Volatility: 0.20})
		ctx.Position.SoldBushels = 60000
		ctx.Position.PercentSold = 0.60
		ctx.Position.RemainingBushels = 40000
		ctx.Fundamental = adjustments.Fundamental(40)
		return ctx
	}

	draft, err := eval.Evaluate(build())
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, domain.StrengthBuy, draft.Strength)

	payload, ok := draft.Context.(*domain.CallOptionContext)
	require.True(t, ok)
	assert.GreaterOrEqual(t, payload.StrikePrice, 5.00)
	assert.Greater(t, payload.EstimatedPremium, 0.0)

	t.Run("under sales target", func(t *testing.T) {
		ctx := build()
		ctx.Position.PercentSold = 0.30
		draft, err := eval.Evaluate(ctx)
		require.NoError(t, err)
		assert.Nil(t, draft)
	})

	t.Run("neutral fundamentals", func(t *testing.T) {
		ctx := build()
		ctx.Fundamental = adjustments.Fundamental(0)
		draft, err := eval.Evaluate(ctx)
		require.NoError(t, err)
		assert.Nil(t, draft)
	})
}

func TestTradePolicy_PicksWorstActionableEvent(t *testing.T) {
	eval := NewTradePolicyEvaluator(zerolog.Nop())

	ctx := testContext(4.75, 4.50, domain.TrendAnalysis{Direction: domain.TrendSideways, RSI: 50})
	ctx.Market.PolicyEvents = []domain.PolicyEvent{
		{Headline: "Export subsidy rumor", Commodity: domain.CommodityCorn, ImpactPercent: 4.0, Urgency: domain.UrgencyImmediate},
		{Headline: "Minor quota review", Commodity: domain.CommodityCorn, ImpactPercent: -2.0, Urgency: domain.UrgencySoon},
		{Headline: "Tariff announced by top buyer", Commodity: domain.CommodityCorn, ImpactPercent: -8.0, Urgency: domain.UrgencyImmediate},
		{Headline: "Soybean crush incentive", Commodity: domain.CommoditySoybeans, ImpactPercent: -9.0, Urgency: domain.UrgencyImmediate},
	}

	draft, err := eval.Evaluate(ctx)
	require.NoError(t, err)
	require.NotNil(t, draft)

	assert.Equal(t, domain.StrengthStrongBuy, draft.Strength)
	payload, ok := draft.Context.(*domain.TradePolicyContext)
	require.True(t, ok)
	assert.Equal(t, "Tariff announced by top buyer", payload.Headline)
	assert.InDelta(t, -8.0, payload.ImpactPercent, 1e-9)
}

func TestTradePolicy_MonitorAndBullishIgnored(t *testing.T) {
	ctx := testContext(4.75, 4.50, domain.TrendAnalysis{Direction: domain.TrendSideways, RSI: 50})
	ctx.Market.PolicyEvents = []domain.PolicyEvent{
		{Headline: "Long-run WTO case", Commodity: domain.CommodityCorn, ImpactPercent: -6.0, Urgency: domain.UrgencyMonitor},
		{Headline: "New trade deal", Commodity: domain.CommodityCorn, ImpactPercent: 7.0, Urgency: domain.UrgencyImmediate},
	}

	draft, err := NewTradePolicyEvaluator(zerolog.Nop()).Evaluate(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestBreakingNews_NeedsTrendConfirmation(t *testing.T) {
	eval := NewBreakingNewsEvaluator(zerolog.Nop())

	ctx := testContext(4.75, 4.50, domain.TrendAnalysis{Direction: domain.TrendDown, RSI: 40})
	ctx.Market.Sentiment = domain.SentimentBearish

	draft, err := eval.Evaluate(ctx)
	require.NoError(t, err)
	require.NotNil(t, draft)
	assert.Equal(t, domain.StrengthBuy, draft.Strength)

	// Bearish sentiment against a rising market stays quiet
	ctx.Market.Trend.Direction = domain.TrendUp
	draft, err = eval.Evaluate(ctx)
	require.NoError(t, err)
	assert.Nil(t, draft)
}

func TestRegistry_DefaultSet(t *testing.T) {
	reg := NewRegistry(zerolog.Nop())

	seen := map[domain.InstrumentType]bool{}
	for _, e := range reg.All() {
		seen[e.Instrument()] = true
	}
	assert.True(t, seen[domain.InstrumentCashSale])
	assert.True(t, seen[domain.InstrumentBasisContract])
	assert.True(t, seen[domain.InstrumentHTA])
	assert.True(t, seen[domain.InstrumentAccumulatorInquiry])
	assert.True(t, seen[domain.InstrumentCallOption])
	assert.True(t, seen[domain.InstrumentTradePolicy])
	assert.True(t, seen[domain.InstrumentBreakingNews])
}
