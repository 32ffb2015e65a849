// Package market assembles the read-only per-commodity market context
// consumed by the signal evaluators.
package market

import (
	"context"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
)

// Quote is a nearest-futures quote for a commodity.
type Quote struct {
	Commodity     domain.Commodity
	Symbol        string // e.g. "ZCZ6"
	Price         float64
	ContractMonth string // e.g. "DEC"
	ContractYear  int
	QuotedAt      time.Time
}

// QuoteFeed supplies futures quotes, settlement prices and basis data.
type QuoteFeed interface {
	// NearestFutures returns the nearest active futures quote.
	NearestFutures(ctx context.Context, commodity domain.Commodity) (Quote, error)

	// SettlementPrice returns the official settlement for a trading day.
	SettlementPrice(ctx context.Context, commodity domain.Commodity, date time.Time) (float64, error)

	// PriceHistory returns up to days of daily closes, oldest first.
	PriceHistory(ctx context.Context, commodity domain.Commodity, days int) ([]float64, error)

	// AverageBasis returns the current average local basis.
	AverageBasis(ctx context.Context, commodity domain.Commodity) (float64, error)

	// BasisHistory returns historical basis observations.
	BasisHistory(ctx context.Context, commodity domain.Commodity) ([]float64, error)
}

// FundamentalFeed supplies the structured supply/demand context.
type FundamentalFeed interface {
	Fundamentals(ctx context.Context, commodity domain.Commodity) (domain.FundamentalContext, error)
}

// SeasonalFeed supplies the commodity/month historical pattern.
type SeasonalFeed interface {
	Seasonal(commodity domain.Commodity, month time.Month) domain.SeasonalContext
}

// NewsFeed supplies the aggregate news sentiment and trade-policy events.
type NewsFeed interface {
	Sentiment(ctx context.Context, commodity domain.Commodity) (domain.NewsSentiment, []domain.PolicyEvent, error)
}
