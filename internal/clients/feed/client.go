// Package feed talks to the commodity market data service: futures quotes,
// settlements, local basis, fundamentals and news. One client instance is
// shared by the assembler and the accumulator sweep.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/market"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const requestTimeout = 15 * time.Second

// Client is the HTTP market data client. All calls pass through a shared
// rate limiter so a generation pass cannot hammer the feed.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// NewClient creates a feed client. The feed allows 5 requests per second
// sustained with small bursts.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: requestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(5), 10),
		log:        log.With().Str("client", "feed").Logger(),
	}
}

// get performs a rate-limited GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("feed returned %d for %s", resp.StatusCode, path)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}

type quoteResponse struct {
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	ContractMonth string  `json:"contract_month"`
	ContractYear  int     `json:"contract_year"`
	QuotedAt      int64   `json:"quoted_at"`
}

// NearestFutures returns the front-month futures quote for a commodity.
func (c *Client) NearestFutures(ctx context.Context, commodity domain.Commodity) (market.Quote, error) {
	var resp quoteResponse
	if err := c.get(ctx, "/v1/quotes/"+string(commodity)+"/nearest", &resp); err != nil {
		return market.Quote{}, err
	}
	return market.Quote{
		Commodity:     commodity,
		Symbol:        resp.Symbol,
		Price:         resp.Price,
		ContractMonth: resp.ContractMonth,
		ContractYear:  resp.ContractYear,
		QuotedAt:      time.Unix(resp.QuotedAt, 0),
	}, nil
}

// SettlementPrice returns the official settlement for a commodity and date.
func (c *Client) SettlementPrice(ctx context.Context, commodity domain.Commodity, date time.Time) (float64, error) {
	var resp struct {
		Price float64 `json:"price"`
	}
	path := fmt.Sprintf("/v1/settlements/%s?date=%s", commodity, date.Format("2006-01-02"))
	if err := c.get(ctx, path, &resp); err != nil {
		return 0, err
	}
	return resp.Price, nil
}

// PriceHistory returns daily closes for a commodity, oldest first.
func (c *Client) PriceHistory(ctx context.Context, commodity domain.Commodity, days int) ([]float64, error) {
	var resp struct {
		Closes []float64 `json:"closes"`
	}
	path := fmt.Sprintf("/v1/history/%s?days=%d", commodity, days)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Closes, nil
}

type basisResponse struct {
	Average float64   `json:"average"`
	History []float64 `json:"history"`
}

// AverageBasis returns the average local basis across nearby delivery
// points.
func (c *Client) AverageBasis(ctx context.Context, commodity domain.Commodity) (float64, error) {
	var resp basisResponse
	if err := c.get(ctx, "/v1/basis/"+string(commodity), &resp); err != nil {
		return 0, err
	}
	return resp.Average, nil
}

// BasisHistory returns historical basis observations for percentile ranking.
func (c *Client) BasisHistory(ctx context.Context, commodity domain.Commodity) ([]float64, error) {
	var resp basisResponse
	if err := c.get(ctx, "/v1/basis/"+string(commodity), &resp); err != nil {
		return nil, err
	}
	return resp.History, nil
}

// Fundamentals returns the structured supply/demand view for a commodity.
func (c *Client) Fundamentals(ctx context.Context, commodity domain.Commodity) (domain.FundamentalContext, error) {
	var resp struct {
		SupplyDemand  string   `json:"supply_demand"`
		CropCondition string   `json:"crop_condition"`
		ExportPace    string   `json:"export_pace"`
		Score         float64  `json:"score"`
		Factors       []string `json:"factors"`
	}
	if err := c.get(ctx, "/v1/fundamentals/"+string(commodity), &resp); err != nil {
		return domain.FundamentalContext{}, err
	}
	return domain.FundamentalContext{
		SupplyDemand:  resp.SupplyDemand,
		CropCondition: resp.CropCondition,
		ExportPace:    resp.ExportPace,
		Score:         resp.Score,
		Factors:       resp.Factors,
	}, nil
}

// Sentiment returns the aggregate news tone and open policy events for a
// commodity.
func (c *Client) Sentiment(ctx context.Context, commodity domain.Commodity) (domain.NewsSentiment, []domain.PolicyEvent, error) {
	var resp struct {
		Sentiment string `json:"sentiment"`
		Events    []struct {
			Headline      string  `json:"headline"`
			ImpactPercent float64 `json:"impact_percent"`
			Urgency       string  `json:"urgency"`
			OccurredAt    int64   `json:"occurred_at"`
		} `json:"events"`
	}
	if err := c.get(ctx, "/v1/news/"+string(commodity), &resp); err != nil {
		return domain.SentimentNeutral, nil, err
	}

	sentiment := domain.NewsSentiment(resp.Sentiment)
	switch sentiment {
	case domain.SentimentBullish, domain.SentimentBearish:
	default:
		sentiment = domain.SentimentNeutral
	}

	events := make([]domain.PolicyEvent, 0, len(resp.Events))
	for _, e := range resp.Events {
		events = append(events, domain.PolicyEvent{
			Headline:      e.Headline,
			Commodity:     commodity,
			ImpactPercent: e.ImpactPercent,
			Urgency:       domain.PolicyUrgency(e.Urgency),
			OccurredAt:    time.Unix(e.OccurredAt, 0),
		})
	}
	return sentiment, events, nil
}
