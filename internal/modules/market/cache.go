package market

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// Cache stores assembled market contexts in cache.db so repeated evaluation
// passes within one cadence reuse the snapshot instead of re-hitting feeds.
// Payloads are msgpack-encoded.
type Cache struct {
	db  *sql.DB
	ttl time.Duration
	log zerolog.Logger
}

// NewCache creates a market context cache with the given TTL.
func NewCache(db *sql.DB, ttl time.Duration, log zerolog.Logger) *Cache {
	return &Cache{
		db:  db,
		ttl: ttl,
		log: log.With().Str("component", "market_cache").Logger(),
	}
}

// Get returns the cached context for a commodity when present and fresh.
func (c *Cache) Get(commodity domain.Commodity) (*domain.MarketContext, bool) {
	var payload []byte
	var expiresAt int64
	err := c.db.QueryRow(`
		SELECT payload, expires_at FROM market_context_cache WHERE commodity = ?
	`, string(commodity)).Scan(&payload, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, false
	}
	if err != nil {
		c.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("Cache read failed")
		return nil, false
	}

	if time.Now().Unix() >= expiresAt {
		return nil, false
	}

	var mc domain.MarketContext
	if err := msgpack.Unmarshal(payload, &mc); err != nil {
		c.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("Cache payload corrupt, ignoring")
		return nil, false
	}

	return &mc, true
}

// Put stores the context, replacing any previous snapshot for the commodity.
func (c *Cache) Put(mc *domain.MarketContext) error {
	payload, err := msgpack.Marshal(mc)
	if err != nil {
		return fmt.Errorf("failed to encode market context: %w", err)
	}

	now := time.Now()
	_, err = c.db.Exec(`
		INSERT INTO market_context_cache (commodity, payload, cached_at, expires_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(commodity) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at,
			expires_at = excluded.expires_at
	`, string(mc.Commodity), payload, now.Unix(), now.Add(c.ttl).Unix())
	if err != nil {
		return fmt.Errorf("failed to store market context: %w", err)
	}
	return nil
}

// Invalidate drops the cached snapshot for a commodity. The streaming quote
// client calls this when a fresh settlement arrives.
func (c *Cache) Invalidate(commodity domain.Commodity) {
	if _, err := c.db.Exec(`DELETE FROM market_context_cache WHERE commodity = ?`, string(commodity)); err != nil {
		c.log.Warn().Err(err).Str("commodity", string(commodity)).Msg("Cache invalidation failed")
	}
}
