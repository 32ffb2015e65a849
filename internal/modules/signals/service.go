package signals

import (
	"context"
	"fmt"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/adjustments"
	"github.com/grainflow/grainflow/internal/modules/costs"
	"github.com/grainflow/grainflow/internal/modules/positions"
	"github.com/grainflow/grainflow/internal/modules/preferences"
	"github.com/grainflow/grainflow/internal/modules/signals/evaluators"
	"github.com/rs/zerolog"
)

// MarketAssembler supplies one market context per commodity.
type MarketAssembler interface {
	Assemble(ctx context.Context, commodity domain.Commodity) (*domain.MarketContext, error)
}

// FarmSource supplies the farm cost inputs for break-even aggregation.
type FarmSource interface {
	FarmsForBusiness(businessID string, cropYear int) ([]costs.Farm, error)
	EstimatesByFarm(businessID string, cropYear int) (map[string]*costs.ProductionEstimate, error)
}

// PositionSource supplies contracts and projected production.
type PositionSource interface {
	Contracts(businessID string, commodity domain.Commodity, cropYear int) ([]positions.GrainContract, error)
	ProjectedBushels(businessID string, commodity domain.Commodity, cropYear int) (float64, bool, error)
}

// PreferenceSource supplies per-business preferences and personalized
// thresholds.
type PreferenceSource interface {
	Get(businessID string) (preferences.Preferences, error)
	AllBusinessIDs() ([]string, error)
	Personalized(businessID string, commodity domain.Commodity, instrument string) (*preferences.PersonalizedThreshold, error)
}

// SignalStore persists drafts through the deduplication rule.
type SignalStore interface {
	CreateOrUpdate(draft *domain.SignalDraft) (*domain.MarketingSignal, error)
}

// Service runs the signal generation pass: costs, positions and market
// context in, deduplicated signals out.
type Service struct {
	market     MarketAssembler
	farms      FarmSource
	aggregator *costs.Aggregator
	positions  PositionSource
	tracker    *positions.Tracker
	prefs      PreferenceSource
	store      SignalStore
	registry   *evaluators.Registry
	log        zerolog.Logger
}

// NewService creates the signal generation service.
func NewService(
	market MarketAssembler,
	farms FarmSource,
	aggregator *costs.Aggregator,
	positionSource PositionSource,
	tracker *positions.Tracker,
	prefs PreferenceSource,
	store SignalStore,
	registry *evaluators.Registry,
	log zerolog.Logger,
) *Service {
	return &Service{
		market:     market,
		farms:      farms,
		aggregator: aggregator,
		positions:  positionSource,
		tracker:    tracker,
		prefs:      prefs,
		store:      store,
		registry:   registry,
		log:        log.With().Str("component", "signal_service").Logger(),
	}
}

// GenerateAll runs a generation pass for every known business. A failing
// business is logged and skipped, never fatal to the pass.
func (s *Service) GenerateAll(ctx context.Context) (int, error) {
	businessIDs, err := s.prefs.AllBusinessIDs()
	if err != nil {
		return 0, fmt.Errorf("failed to list businesses: %w", err)
	}

	total := 0
	for _, businessID := range businessIDs {
		n, err := s.GenerateForBusiness(ctx, businessID)
		if err != nil {
			s.log.Error().Err(err).Str("business_id", businessID).Msg("Signal generation failed for business")
			continue
		}
		total += n
	}

	s.log.Info().Int("signals", total).Int("businesses", len(businessIDs)).Msg("Generation pass complete")
	return total, nil
}

// GenerateForBusiness evaluates every enabled commodity for one business.
// A commodity that fails (usually a missing futures quote) is skipped so
// the rest of the portfolio still gets evaluated.
func (s *Service) GenerateForBusiness(ctx context.Context, businessID string) (int, error) {
	prefs, err := s.prefs.Get(businessID)
	if err != nil {
		return 0, fmt.Errorf("failed to load preferences: %w", err)
	}

	count := 0
	for _, commodity := range prefs.EnabledCommodities {
		n, err := s.evaluateCommodity(ctx, businessID, commodity, prefs)
		if err != nil {
			s.log.Warn().Err(err).
				Str("business_id", businessID).
				Str("commodity", string(commodity)).
				Msg("Skipping commodity")
			continue
		}
		count += n
	}
	return count, nil
}

func (s *Service) evaluateCommodity(ctx context.Context, businessID string, commodity domain.Commodity, prefs preferences.Preferences) (int, error) {
	mkt, err := s.market.Assemble(ctx, commodity)
	if err != nil {
		return 0, err
	}

	now := time.Now()
	cropYear, isNewCrop := commodity.ClassifyCropYear(mkt.ContractMonth, mkt.ContractYear, now)

	evalCtx, err := s.buildContext(businessID, commodity, cropYear, isNewCrop, false, mkt, prefs, now)
	if err != nil {
		return 0, err
	}

	count := s.runEvaluators(evalCtx, prefs)

	// Stored grain from the prior marketing year gets its own pass with
	// sunk costs ignored
	oldCtx, err := s.buildContext(businessID, commodity, cropYear-1, false, true, mkt, prefs, now)
	if err != nil {
		s.log.Warn().Err(err).
			Str("business_id", businessID).
			Str("commodity", string(commodity)).
			Msg("Old crop pass skipped")
		return count, nil
	}
	if oldCtx.Position != nil && oldCtx.Position.RemainingBushels > 0 {
		count += s.runEvaluators(oldCtx, prefs)
	}

	return count, nil
}

// buildContext assembles the read-only evaluation input for one
// business/commodity/crop year.
func (s *Service) buildContext(
	businessID string,
	commodity domain.Commodity,
	cropYear int,
	isNewCrop, oldCrop bool,
	mkt *domain.MarketContext,
	prefs preferences.Preferences,
	now time.Time,
) (*evaluators.EvalContext, error) {
	evalCtx := &evaluators.EvalContext{
		BusinessID:   businessID,
		Commodity:    commodity,
		CropYear:     cropYear,
		IsNewCrop:    isNewCrop,
		OldCrop:      oldCrop,
		Market:       mkt,
		Prefs:        prefs,
		Personalized: map[domain.InstrumentType]*preferences.PersonalizedThreshold{},
		Fundamental:  adjustments.Fundamental(mkt.Fundamental.Score),
		Seasonal:     adjustments.Seasonal(mkt.Seasonal),
		Now:          now,
	}

	if !oldCrop {
		be, err := s.breakEvenFor(businessID, commodity, cropYear)
		if err != nil {
			return nil, err
		}
		evalCtx.BreakEven = be
	}

	projected, found, err := s.positions.ProjectedBushels(businessID, commodity, cropYear)
	if err != nil {
		return nil, err
	}
	if !found && evalCtx.BreakEven != nil {
		projected = evalCtx.BreakEven.ExpectedBushels
	}

	contracts, err := s.positions.Contracts(businessID, commodity, cropYear)
	if err != nil {
		return nil, err
	}

	pos := s.tracker.Position(businessID, commodity, cropYear, projected, contracts, prefs.PreHarvestTarget, now)
	if oldCrop {
		// Prior-year harvest is in the bin regardless of the calendar
		pos.HarvestComplete = true
	}
	evalCtx.Position = &pos

	for _, eval := range s.registry.All() {
		p, err := s.prefs.Personalized(businessID, commodity, string(eval.Instrument()))
		if err != nil {
			return nil, err
		}
		if p != nil {
			evalCtx.Personalized[eval.Instrument()] = p
		}
	}

	return evalCtx, nil
}

// breakEvenFor sums per-farm break-evens to the business/commodity/year
// level.
func (s *Service) breakEvenFor(businessID string, commodity domain.Commodity, cropYear int) (*domain.BreakEvenCost, error) {
	farms, err := s.farms.FarmsForBusiness(businessID, cropYear)
	if err != nil {
		return nil, err
	}
	estimates, err := s.farms.EstimatesByFarm(businessID, cropYear)
	if err != nil {
		return nil, err
	}

	total := domain.BreakEvenCost{
		BusinessID: businessID,
		Commodity:  commodity,
		CropYear:   cropYear,
	}
	found := false
	for _, farm := range farms {
		if farm.Commodity != commodity {
			continue
		}
		be, err := s.aggregator.BreakEven(farm, estimates[farm.ID])
		if err != nil {
			s.log.Warn().Err(err).Str("farm_id", farm.ID).Msg("Skipping farm in break-even")
			continue
		}
		total.Acres += be.Acres
		total.TotalCost += be.TotalCost
		total.ExpectedBushels += be.ExpectedBushels
		found = true
	}

	if !found {
		return nil, nil
	}
	if total.Acres > 0 {
		total.CostPerAcre = total.TotalCost / total.Acres
		total.ExpectedYield = total.ExpectedBushels / total.Acres
	}
	if total.ExpectedBushels > 0 {
		total.BreakEvenPrice = total.TotalCost / total.ExpectedBushels
	}
	return &total, nil
}

// runEvaluators executes every enabled evaluator against the context and
// persists surviving drafts. Evaluator errors are logged and isolated.
func (s *Service) runEvaluators(evalCtx *evaluators.EvalContext, prefs preferences.Preferences) int {
	count := 0
	for _, eval := range s.registry.All() {
		if !prefs.InstrumentEnabled(string(eval.Instrument())) {
			continue
		}

		draft, err := eval.Evaluate(evalCtx)
		if err != nil {
			s.log.Error().Err(err).
				Str("evaluator", eval.Name()).
				Str("commodity", string(evalCtx.Commodity)).
				Msg("Evaluator failed")
			continue
		}
		if draft == nil {
			continue
		}

		if _, err := s.store.CreateOrUpdate(draft); err != nil {
			s.log.Error().Err(err).
				Str("evaluator", eval.Name()).
				Msg("Failed to persist signal")
			continue
		}
		count++
	}
	return count
}
