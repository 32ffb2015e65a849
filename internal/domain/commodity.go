package domain

import (
	"strings"
	"time"
)

// Commodity identifies a grain commodity handled by the engine.
type Commodity string

const (
	CommodityCorn     Commodity = "CORN"
	CommoditySoybeans Commodity = "SOYBEANS"
	CommodityWheat    Commodity = "WHEAT"
)

// AllCommodities lists every commodity the engine knows how to evaluate.
var AllCommodities = []Commodity{CommodityCorn, CommoditySoybeans, CommodityWheat}

// ParseCommodity normalizes a stored commodity string.
func ParseCommodity(s string) (Commodity, bool) {
	switch Commodity(strings.ToUpper(strings.TrimSpace(s))) {
	case CommodityCorn:
		return CommodityCorn, true
	case CommoditySoybeans:
		return CommoditySoybeans, true
	case CommodityWheat:
		return CommodityWheat, true
	}
	return "", false
}

// Display returns the lowercase human-readable name used in signal copy.
func (c Commodity) Display() string {
	return strings.ToLower(string(c))
}

// DefaultYield returns the fallback expected yield (bushels per acre) used
// when a farm has no production estimate.
func (c Commodity) DefaultYield() float64 {
	switch c {
	case CommodityCorn:
		return 180
	case CommoditySoybeans:
		return 55
	case CommodityWheat:
		return 65
	}
	return 0
}

// HarvestStartMonth returns the calendar month from which harvest is treated
// as underway or complete. Pre-harvest sale targets stop constraining
// recommendations from this month on.
func (c Commodity) HarvestStartMonth() time.Month {
	switch c {
	case CommodityWheat:
		return time.July
	default:
		// Corn and soybeans come off in the fall
		return time.September
	}
}

// HarvestComplete reports whether the commodity's harvest is underway or done
// at the given time. This is a calendar heuristic, not a field observation.
func (c Commodity) HarvestComplete(now time.Time) bool {
	return now.Month() >= c.HarvestStartMonth()
}

// NewCropMonths returns the futures contract month codes that represent the
// upcoming (new crop) marketing year for this commodity.
func (c Commodity) NewCropMonths() []string {
	switch c {
	case CommodityCorn:
		return []string{"SEP", "DEC"}
	case CommoditySoybeans:
		return []string{"NOV"}
	case CommodityWheat:
		return []string{"JUL", "SEP"}
	}
	return nil
}

// OldCropMonths returns the futures contract month codes that represent the
// prior (old crop) marketing year for this commodity.
func (c Commodity) OldCropMonths() []string {
	switch c {
	case CommodityCorn:
		return []string{"MAR", "MAY", "JUL"}
	case CommoditySoybeans:
		return []string{"JAN", "MAR", "MAY", "JUL", "AUG"}
	case CommodityWheat:
		return []string{"DEC", "MAR", "MAY"}
	}
	return nil
}

// ClassifyCropYear determines the marketing year a futures contract month
// belongs to, and whether it is new crop relative to the most recent harvest.
// Unknown month codes fall back to the calendar: once the current month has
// passed the commodity's harvest start, the contract is treated as the
// current marketing year (no longer new crop).
func (c Commodity) ClassifyCropYear(contractMonth string, contractYear int, now time.Time) (cropYear int, isNewCrop bool) {
	month := strings.ToUpper(strings.TrimSpace(contractMonth))

	for _, m := range c.NewCropMonths() {
		if m == month {
			// New crop only before its harvest arrives
			if contractYear > now.Year() || (contractYear == now.Year() && !c.HarvestComplete(now)) {
				return contractYear, true
			}
			return contractYear, false
		}
	}

	for _, m := range c.OldCropMonths() {
		if m == month {
			// Old-crop deferred months of the next calendar year market the
			// prior harvest
			if contractYear > now.Year() {
				return contractYear - 1, false
			}
			return contractYear, false
		}
	}

	// Fallback: calendar cutover at harvest
	if c.HarvestComplete(now) {
		return now.Year(), false
	}
	return now.Year(), contractYear > now.Year()
}
