package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// InstrumentType enumerates the marketing instruments a signal can target.
type InstrumentType string

const (
	InstrumentCashSale            InstrumentType = "CASH_SALE"
	InstrumentBasisContract       InstrumentType = "BASIS_CONTRACT"
	InstrumentHTA                 InstrumentType = "HTA"
	InstrumentAccumulatorStrategy InstrumentType = "ACCUMULATOR_STRATEGY"
	InstrumentAccumulatorInquiry  InstrumentType = "ACCUMULATOR_INQUIRY"
	InstrumentCallOption          InstrumentType = "CALL_OPTION"
	InstrumentTradePolicy         InstrumentType = "TRADE_POLICY"
	InstrumentBreakingNews        InstrumentType = "BREAKING_NEWS"
)

// SignalStrength is the recommendation strength ladder.
type SignalStrength string

const (
	StrengthStrongBuy  SignalStrength = "STRONG_BUY"
	StrengthBuy        SignalStrength = "BUY"
	StrengthHold       SignalStrength = "HOLD"
	StrengthSell       SignalStrength = "SELL"
	StrengthStrongSell SignalStrength = "STRONG_SELL"
)

// Actionable reports whether the strength is surfaced to users. Only
// BUY/STRONG_BUY outcomes become signals; the rest are computed for
// completeness and suppressed.
func (s SignalStrength) Actionable() bool {
	return s == StrengthBuy || s == StrengthStrongBuy
}

// SignalStatus is the lifecycle state of a persisted signal.
type SignalStatus string

const (
	StatusActive    SignalStatus = "ACTIVE"
	StatusTriggered SignalStatus = "TRIGGERED"
	StatusDismissed SignalStatus = "DISMISSED"
	StatusExpired   SignalStatus = "EXPIRED"
)

// Terminal reports whether the status permits no further transitions.
func (s SignalStatus) Terminal() bool {
	return s == StatusTriggered || s == StatusDismissed || s == StatusExpired
}

// Per-instrument context payloads form a closed, tagged union. Each
// evaluator attaches exactly one of these so downstream consumers get a
// statically checkable shape instead of an open map.

// ContextType tags the payload attached to a signal.
type ContextType string

const (
	ContextCashSale    ContextType = "cash_sale"
	ContextBasis       ContextType = "basis"
	ContextHTA         ContextType = "hta"
	ContextAccumulator ContextType = "accumulator"
	ContextCallOption  ContextType = "call_option"
	ContextTradePolicy ContextType = "trade_policy"
	ContextNews        ContextType = "news"
)

// CashSaleContext captures the economics behind a cash sale signal.
type CashSaleContext struct {
	CashPrice          float64 `json:"cash_price"`
	BreakEven          float64 `json:"break_even"`
	PercentAboveBE     float64 `json:"percent_above_break_even"`
	MarginPerBushel    float64 `json:"margin_per_bushel"`
	TrendDirection     string  `json:"trend_direction"`
	RSI                float64 `json:"rsi"`
	OldCrop            bool    `json:"old_crop"`
}

// BasisContext captures the basis read behind a basis contract signal.
type BasisContext struct {
	Basis           float64 `json:"basis"`
	BasisPercentile float64 `json:"basis_percentile"`
	FuturesPrice    float64 `json:"futures_price"`
}

// HTAContext captures the futures level behind a hedge-to-arrive signal.
type HTAContext struct {
	FuturesPrice   float64 `json:"futures_price"`
	BreakEven      float64 `json:"break_even"`
	PercentAboveBE float64 `json:"percent_above_break_even"`
	ContractMonth  string  `json:"contract_month"`
}

// AccumulatorContext captures the sketch terms behind an accumulator
// inquiry signal.
type AccumulatorContext struct {
	FuturesPrice      float64 `json:"futures_price"`
	SuggestedBase     float64 `json:"suggested_base"`
	SuggestedKnockout float64 `json:"suggested_knockout"`
	SuggestedDouble   float64 `json:"suggested_double_up"`
	Volatility        float64 `json:"volatility"`
}

// CallOptionContext captures the coarse premium estimate behind a call
// option signal. Premium is a heuristic, not a priced Greek.
type CallOptionContext struct {
	FuturesPrice     float64 `json:"futures_price"`
	StrikePrice      float64 `json:"strike_price"`
	EstimatedPremium float64 `json:"estimated_premium"`
	PercentSold      float64 `json:"percent_sold"`
}

// TradePolicyContext captures the policy event behind a trade policy signal.
type TradePolicyContext struct {
	Headline      string  `json:"headline"`
	ImpactPercent float64 `json:"impact_percent"`
	Urgency       string  `json:"urgency"`
}

// NewsContext captures the sentiment read behind a breaking news signal.
type NewsContext struct {
	Sentiment      string  `json:"sentiment"`
	TrendDirection string  `json:"trend_direction"`
	RSI            float64 `json:"rsi"`
}

// SignalDraft is an evaluator's proposed signal before lifecycle
// deduplication. The lifecycle manager owns identity and timestamps.
type SignalDraft struct {
	BusinessID         string
	EntityID           string
	Instrument         InstrumentType
	Commodity          Commodity
	CropYear           int
	IsNewCrop          bool
	Strength           SignalStrength
	CurrentPrice       float64
	TargetPrice        float64
	BreakEven          float64
	Title              string
	Summary            string
	Rationale          string
	RecommendedBushels *float64
	ContextType        ContextType
	Context            interface{} // one of the *Context structs above
	TTL                time.Duration
}

// EncodeContext serializes the tagged context payload for storage.
func (d *SignalDraft) EncodeContext() (string, error) {
	if d.Context == nil {
		return "", nil
	}
	data, err := json.Marshal(d.Context)
	if err != nil {
		return "", fmt.Errorf("failed to encode %s context: %w", d.ContextType, err)
	}
	return string(data), nil
}

// MarketingSignal is a persisted recommendation owned by the lifecycle
// manager.
type MarketingSignal struct {
	UUID               string
	BusinessID         string
	EntityID           string
	Instrument         InstrumentType
	Commodity          Commodity
	CropYear           int
	IsNewCrop          bool
	Strength           SignalStrength
	Status             SignalStatus
	CurrentPrice       float64
	TargetPrice        float64
	BreakEven          float64
	Title              string
	Summary            string
	Rationale          string
	RecommendedBushels *float64
	ContextType        ContextType
	Context            string // JSON payload of the tagged union
	ExpiresAt          time.Time
	ViewedAt           *time.Time
	ActionedAt         *time.Time
	DismissedAt        *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}
