package feed

import (
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/adjustments"
)

// SeasonalSource serves the built-in commodity/month seasonal patterns.
// Seasonal shape changes on the scale of years, so no remote call is made.
type SeasonalSource struct{}

// Seasonal returns the historical pattern for a commodity and month.
func (SeasonalSource) Seasonal(commodity domain.Commodity, month time.Month) domain.SeasonalContext {
	return adjustments.LookupSeasonal(commodity, month)
}
