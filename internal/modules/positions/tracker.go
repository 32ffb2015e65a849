package positions

import (
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
)

// Tracker derives marketing positions. It holds no state of its own; the
// position is a pure function of estimates, contracts and the calendar.
type Tracker struct {
	log zerolog.Logger
}

// NewTracker creates a new position tracker.
func NewTracker(log zerolog.Logger) *Tracker {
	return &Tracker{log: log.With().Str("component", "position_tracker").Logger()}
}

// Position derives the marketing position for one commodity and crop year.
// projectedBushels comes from the production estimate; contracts must
// already exclude deleted rows. Remaining bushels go negative when the
// operation is over-contracted - that is surfaced, never clamped.
func (t *Tracker) Position(
	businessID string,
	commodity domain.Commodity,
	cropYear int,
	projectedBushels float64,
	contracts []GrainContract,
	preHarvestTarget float64,
	now time.Time,
) domain.MarketingPosition {
	if preHarvestTarget <= 0 {
		preHarvestTarget = DefaultPreHarvestTarget
	}

	var sold, weighted float64
	for _, c := range contracts {
		sold += c.Bushels
		weighted += c.Bushels * c.Price
	}

	pos := domain.MarketingPosition{
		BusinessID:       businessID,
		Commodity:        commodity,
		CropYear:         cropYear,
		ProjectedBushels: projectedBushels,
		SoldBushels:      sold,
		RemainingBushels: projectedBushels - sold,
		PreHarvestTarget: preHarvestTarget,
		HarvestComplete:  commodity.HarvestComplete(now),
	}

	if projectedBushels > 0 {
		pos.PercentSold = sold / projectedBushels
	}

	if sold > 0 {
		pos.AvgSalePrice = weighted / sold
	}

	toTarget := preHarvestTarget*projectedBushels - sold
	if toTarget > 0 {
		pos.BushelsToTarget = toTarget
	}

	return pos
}
