package signals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/costs"
	"github.com/grainflow/grainflow/internal/modules/positions"
	"github.com/grainflow/grainflow/internal/modules/preferences"
	"github.com/grainflow/grainflow/internal/modules/signals/evaluators"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAssembler struct {
	contexts map[domain.Commodity]*domain.MarketContext
	errs     map[domain.Commodity]error
}

func (f *fakeAssembler) Assemble(_ context.Context, c domain.Commodity) (*domain.MarketContext, error) {
	if err := f.errs[c]; err != nil {
		return nil, err
	}
	mc, ok := f.contexts[c]
	if !ok {
		return nil, errors.New("no quote")
	}
	return mc, nil
}

type fakeFarms struct {
	farms     []costs.Farm
	estimates map[string]*costs.ProductionEstimate
}

func (f *fakeFarms) FarmsForBusiness(string, int) ([]costs.Farm, error) { return f.farms, nil }
func (f *fakeFarms) EstimatesByFarm(string, int) (map[string]*costs.ProductionEstimate, error) {
	return f.estimates, nil
}

type fakePositions struct {
	projected map[int]float64
	contracts map[int][]positions.GrainContract
}

func (f *fakePositions) Contracts(_ string, _ domain.Commodity, year int) ([]positions.GrainContract, error) {
	return f.contracts[year], nil
}

func (f *fakePositions) ProjectedBushels(_ string, _ domain.Commodity, year int) (float64, bool, error) {
	v, ok := f.projected[year]
	return v, ok, nil
}

type fakePrefs struct {
	prefs preferences.Preferences
}

func (f *fakePrefs) Get(string) (preferences.Preferences, error) { return f.prefs, nil }
func (f *fakePrefs) AllBusinessIDs() ([]string, error)           { return []string{f.prefs.BusinessID}, nil }
func (f *fakePrefs) Personalized(string, domain.Commodity, string) (*preferences.PersonalizedThreshold, error) {
	return nil, nil
}

type fakeStore struct {
	drafts []*domain.SignalDraft
}

func (f *fakeStore) CreateOrUpdate(d *domain.SignalDraft) (*domain.MarketingSignal, error) {
	f.drafts = append(f.drafts, d)
	return &domain.MarketingSignal{UUID: "stored", Strength: d.Strength}, nil
}

// cornFarm yields a $5.00/bu break-even: 500 acres at 180 bu/ac with
// $450,000 of total cost carried as lump-sum land rent.
func cornFarm(year int) costs.Farm {
	return costs.Farm{
		ID:              "farm-1",
		BusinessID:      "biz-1",
		Name:            "Home 500",
		Commodity:       domain.CommodityCorn,
		CropYear:        year,
		Acres:           500,
		PrimaryEntityID: "entity-1",
		LandRent:        450000,
	}
}

func cornMarket(cropYear int) *domain.MarketContext {
	return &domain.MarketContext{
		Commodity:       domain.CommodityCorn,
		FuturesPrice:    5.75,
		ContractMonth:   "DEC",
		ContractYear:    cropYear,
		Basis:           0,
		BasisPercentile: 50,
		Trend:           domain.TrendAnalysis{Direction: domain.TrendDown, RSI: 75, Volatility: 0.20},
		Fundamental:     domain.FundamentalContext{Score: 0},
		Seasonal:        domain.SeasonalContext{PricePercentile: 50, RallyProbability: 0.5},
		Sentiment:       domain.SentimentNeutral,
		AssembledAt:     time.Now(),
	}
}

func newTestService(asm MarketAssembler, farms FarmSource, pos PositionSource, prefs PreferenceSource, store SignalStore) *Service {
	log := zerolog.Nop()
	return NewService(
		asm, farms,
		costs.NewAggregator(nil, log),
		pos,
		positions.NewTracker(log),
		prefs, store,
		evaluators.NewRegistry(log),
		log,
	)
}

func TestGenerateForBusiness_ProducesCashSaleSignal(t *testing.T) {
	year := time.Now().Year()
	prefs := preferences.Defaults("biz-1")
	prefs.EnabledCommodities = []domain.Commodity{domain.CommodityCorn}

	store := &fakeStore{}
	svc := newTestService(
		&fakeAssembler{contexts: map[domain.Commodity]*domain.MarketContext{
			domain.CommodityCorn: cornMarket(year),
		}},
		&fakeFarms{
			farms:     []costs.Farm{cornFarm(year)},
			estimates: map[string]*costs.ProductionEstimate{"farm-1": {FarmID: "farm-1", Acres: 500, YieldPerAcre: 180}},
		},
		&fakePositions{
			projected: map[int]float64{year: 90000},
			contracts: map[int][]positions.GrainContract{
				year: {{Bushels: 20000, Price: 4.60}},
			},
		},
		&fakePrefs{prefs: prefs},
		store,
	)

	count, err := svc.GenerateForBusiness(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, store.drafts, 1)
	draft := store.drafts[0]
	assert.Equal(t, domain.InstrumentCashSale, draft.Instrument)
	// $5.75 against a $5.00 break-even in a fading rally
	assert.Equal(t, domain.StrengthStrongBuy, draft.Strength)
	assert.InDelta(t, 5.00, draft.BreakEven, 1e-9)
	require.NotNil(t, draft.RecommendedBushels)
	// 25% of the 70,000 remaining, under every cap
	assert.InDelta(t, 17500, *draft.RecommendedBushels, 1e-9)
}

func TestGenerateForBusiness_CommodityFailureIsIsolated(t *testing.T) {
	year := time.Now().Year()
	prefs := preferences.Defaults("biz-1")
	prefs.EnabledCommodities = []domain.Commodity{domain.CommodityWheat, domain.CommodityCorn}

	store := &fakeStore{}
	svc := newTestService(
		&fakeAssembler{
			contexts: map[domain.Commodity]*domain.MarketContext{domain.CommodityCorn: cornMarket(year)},
			errs:     map[domain.Commodity]error{domain.CommodityWheat: errors.New("feed outage")},
		},
		&fakeFarms{
			farms:     []costs.Farm{cornFarm(year)},
			estimates: map[string]*costs.ProductionEstimate{"farm-1": {FarmID: "farm-1", Acres: 500, YieldPerAcre: 180}},
		},
		&fakePositions{projected: map[int]float64{year: 90000}},
		&fakePrefs{prefs: prefs},
		store,
	)

	count, err := svc.GenerateForBusiness(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	require.Len(t, store.drafts, 1)
	assert.Equal(t, domain.CommodityCorn, store.drafts[0].Commodity)
}

func TestGenerateForBusiness_DisabledInstrumentSkipped(t *testing.T) {
	year := time.Now().Year()
	prefs := preferences.Defaults("biz-1")
	prefs.EnabledCommodities = []domain.Commodity{domain.CommodityCorn}
	prefs.EnabledInstruments = []string{"BASIS_CONTRACT"}

	store := &fakeStore{}
	svc := newTestService(
		&fakeAssembler{contexts: map[domain.Commodity]*domain.MarketContext{
			domain.CommodityCorn: cornMarket(year),
		}},
		&fakeFarms{
			farms:     []costs.Farm{cornFarm(year)},
			estimates: map[string]*costs.ProductionEstimate{"farm-1": {FarmID: "farm-1", Acres: 500, YieldPerAcre: 180}},
		},
		&fakePositions{projected: map[int]float64{year: 90000}},
		&fakePrefs{prefs: prefs},
		store,
	)

	count, err := svc.GenerateForBusiness(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, store.drafts)
}

func TestGenerateForBusiness_OldCropInventoryEvaluated(t *testing.T) {
	year := time.Now().Year()
	prefs := preferences.Defaults("biz-1")
	prefs.EnabledCommodities = []domain.Commodity{domain.CommodityCorn}

	// No new crop production, but 30,000 bushels of last year's corn in
	// the bin and a fading overbought market
	store := &fakeStore{}
	svc := newTestService(
		&fakeAssembler{contexts: map[domain.Commodity]*domain.MarketContext{
			domain.CommodityCorn: cornMarket(year),
		}},
		&fakeFarms{},
		&fakePositions{projected: map[int]float64{year - 1: 30000}},
		&fakePrefs{prefs: prefs},
		store,
	)

	count, err := svc.GenerateForBusiness(context.Background(), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.Len(t, store.drafts, 1)
	draft := store.drafts[0]
	assert.Equal(t, domain.InstrumentCashSale, draft.Instrument)
	assert.Equal(t, year-1, draft.CropYear)
	assert.False(t, draft.IsNewCrop)

	payload, ok := draft.Context.(*domain.CashSaleContext)
	require.True(t, ok)
	assert.True(t, payload.OldCrop)
}

func TestGenerateAll_IteratesBusinesses(t *testing.T) {
	year := time.Now().Year()
	prefs := preferences.Defaults("biz-1")
	prefs.EnabledCommodities = []domain.Commodity{domain.CommodityCorn}

	store := &fakeStore{}
	svc := newTestService(
		&fakeAssembler{contexts: map[domain.Commodity]*domain.MarketContext{
			domain.CommodityCorn: cornMarket(year),
		}},
		&fakeFarms{
			farms:     []costs.Farm{cornFarm(year)},
			estimates: map[string]*costs.ProductionEstimate{"farm-1": {FarmID: "farm-1", Acres: 500, YieldPerAcre: 180}},
		},
		&fakePositions{projected: map[int]float64{year: 90000}},
		&fakePrefs{prefs: prefs},
		store,
	)

	total, err := svc.GenerateAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}
