// Package domain contains the shared value objects of the marketing engine.
// The domain layer is pure: no database, HTTP or feed dependencies.
package domain

import "time"

// RiskTolerance scales signal thresholds per business.
type RiskTolerance string

const (
	RiskConservative RiskTolerance = "CONSERVATIVE"
	RiskModerate     RiskTolerance = "MODERATE"
	RiskAggressive   RiskTolerance = "AGGRESSIVE"
)

// ThresholdMultiplier returns the factor applied to base signal thresholds.
// Conservative operators need more margin before a signal fires, aggressive
// operators less.
func (r RiskTolerance) ThresholdMultiplier() float64 {
	switch r {
	case RiskConservative:
		return 1.5
	case RiskAggressive:
		return 0.7
	default:
		return 1.0
	}
}

// LoanClass buckets loan interest/principal allocations per farm.
type LoanClass string

const (
	LoanOperating  LoanClass = "operating"
	LoanEquipment  LoanClass = "equipment"
	LoanRealEstate LoanClass = "real_estate"
)

// LoanAllocation is one farm/year loan cost allocation per class.
type LoanAllocation struct {
	FarmID    string
	CropYear  int
	Class     LoanClass
	Interest  float64
	Principal float64
}

// BreakEvenCost is the derived per-farm (or per-entity aggregate) cost basis.
// It is computed on demand and never stored.
type BreakEvenCost struct {
	FarmID          string
	EntityID        string
	BusinessID      string
	Commodity       Commodity
	CropYear        int
	Acres           float64
	Fertilizer      float64
	Chemical        float64
	Seed            float64
	LandRent        float64
	Insurance       float64
	Trucking        float64
	Other           float64
	LoanInterest    float64
	LoanPrincipal   float64
	TotalCost       float64
	CostPerAcre     float64
	ExpectedYield   float64
	ExpectedBushels float64
	BreakEvenPrice  float64 // TotalCost / ExpectedBushels, 0 when bushels are 0
}

// MarketingPosition is the derived per-commodity/year sales position.
type MarketingPosition struct {
	BusinessID       string
	Commodity        Commodity
	CropYear         int
	ProjectedBushels float64
	SoldBushels      float64
	RemainingBushels float64 // may be negative when over-contracted
	PercentSold      float64
	PreHarvestTarget float64 // configured fraction, default 0.50
	BushelsToTarget  float64 // max(0, target*projected - sold)
	HarvestComplete  bool
	AvgSalePrice     float64 // bushel-weighted realized price
}

// TrendDirection labels the technical trend of a commodity.
type TrendDirection string

const (
	TrendUp       TrendDirection = "UP"
	TrendDown     TrendDirection = "DOWN"
	TrendSideways TrendDirection = "SIDEWAYS"
)

// TrendAnalysis holds technical indicators for a commodity.
type TrendAnalysis struct {
	Direction  TrendDirection
	RSI        float64
	SMA20      float64
	SMA50      float64
	Volatility float64 // annualized stddev of daily returns
}

// FundamentalContext is the structured supply/demand view for a commodity.
// Score is in [-100, +100]; positive is bullish.
type FundamentalContext struct {
	SupplyDemand  string
	CropCondition string
	ExportPace    string
	Score         float64
	Factors       []string
}

// SeasonalContext is the historical price pattern for a commodity/month.
type SeasonalContext struct {
	PricePercentile  float64 // 0..100, where the current month sits historically
	RallyProbability float64 // 0..1 odds of a later rally
	RecommendedAction string
}

// NewsSentiment labels the aggregate news tone for a commodity.
type NewsSentiment string

const (
	SentimentBullish NewsSentiment = "BULLISH"
	SentimentBearish NewsSentiment = "BEARISH"
	SentimentNeutral NewsSentiment = "NEUTRAL"
)

// PolicyUrgency classifies how soon a trade-policy event demands attention.
type PolicyUrgency string

const (
	UrgencyImmediate PolicyUrgency = "IMMEDIATE"
	UrgencySoon      PolicyUrgency = "SOON"
	UrgencyMonitor   PolicyUrgency = "MONITOR"
)

// PolicyEvent is a trade-policy news event with an estimated price impact.
type PolicyEvent struct {
	Headline      string
	Commodity     Commodity
	ImpactPercent float64 // estimated price impact, signed
	Urgency       PolicyUrgency
	OccurredAt    time.Time
}

// MarketContext is the assembled, read-only market snapshot for one
// commodity at evaluation time. Evaluators never mutate it.
type MarketContext struct {
	Commodity       Commodity
	FuturesPrice    float64
	ContractMonth   string // e.g. "DEC"
	ContractYear    int
	Basis           float64
	BasisPercentile float64 // 0..100 rank of current basis in history
	Trend           TrendAnalysis
	Fundamental     FundamentalContext
	Seasonal        SeasonalContext
	Sentiment       NewsSentiment
	PolicyEvents    []PolicyEvent
	AssembledAt     time.Time
}

// CashPrice returns the local cash price implied by futures plus basis.
func (m *MarketContext) CashPrice() float64 {
	return m.FuturesPrice + m.Basis
}
