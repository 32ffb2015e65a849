package market

import (
	"context"
	"fmt"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/pkg/formulas"
	"github.com/rs/zerolog"
)

const historyDays = 120

// Assembler builds one MarketContext per commodity from the external feeds.
// The futures quote is required; everything else degrades to neutral values
// so a partial feed outage does not block signal generation.
type Assembler struct {
	quotes      QuoteFeed
	fundamental FundamentalFeed
	seasonal    SeasonalFeed
	news        NewsFeed
	cache       *Cache
	log         zerolog.Logger
}

// NewAssembler creates a new market context assembler. The cache is
// optional; pass nil to assemble fresh on every call.
func NewAssembler(
	quotes QuoteFeed,
	fundamental FundamentalFeed,
	seasonal SeasonalFeed,
	news NewsFeed,
	cache *Cache,
	log zerolog.Logger,
) *Assembler {
	return &Assembler{
		quotes:      quotes,
		fundamental: fundamental,
		seasonal:    seasonal,
		news:        news,
		cache:       cache,
		log:         log.With().Str("component", "market_assembler").Logger(),
	}
}

// Assemble builds the market context for one commodity. A missing futures
// quote fails the commodity (the caller skips it); all other feed failures
// are logged and replaced with neutral values.
func (a *Assembler) Assemble(ctx context.Context, commodity domain.Commodity) (*domain.MarketContext, error) {
	if a.cache != nil {
		if cached, ok := a.cache.Get(commodity); ok {
			return cached, nil
		}
	}

	quote, err := a.quotes.NearestFutures(ctx, commodity)
	if err != nil {
		return nil, fmt.Errorf("no futures quote for %s: %w", commodity, err)
	}

	mc := &domain.MarketContext{
		Commodity:     commodity,
		FuturesPrice:  quote.Price,
		ContractMonth: quote.ContractMonth,
		ContractYear:  quote.ContractYear,
		Sentiment:     domain.SentimentNeutral,
		AssembledAt:   time.Now().UTC(),
	}

	if basis, err := a.quotes.AverageBasis(ctx, commodity); err != nil {
		a.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("Basis unavailable, using 0")
	} else {
		mc.Basis = basis
	}

	mc.BasisPercentile = 50
	if history, err := a.quotes.BasisHistory(ctx, commodity); err != nil {
		a.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("Basis history unavailable")
	} else if len(history) > 0 {
		mc.BasisPercentile = formulas.PercentileRank(history, mc.Basis)
	}

	if closes, err := a.quotes.PriceHistory(ctx, commodity, historyDays); err != nil {
		a.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("Price history unavailable, trend neutral")
		mc.Trend = AnalyzeTrend(nil)
	} else {
		mc.Trend = AnalyzeTrend(closes)
	}

	if fund, err := a.fundamental.Fundamentals(ctx, commodity); err != nil {
		a.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("Fundamentals unavailable, score 0")
	} else {
		mc.Fundamental = fund
	}

	mc.Seasonal = a.seasonal.Seasonal(commodity, mc.AssembledAt.Month())

	if sentiment, events, err := a.news.Sentiment(ctx, commodity); err != nil {
		a.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("News sentiment unavailable, neutral")
	} else {
		mc.Sentiment = sentiment
		mc.PolicyEvents = events
	}

	if a.cache != nil {
		if err := a.cache.Put(mc); err != nil {
			a.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("Failed to cache market context")
		}
	}

	return mc, nil
}
