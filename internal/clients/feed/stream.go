package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/grainflow/grainflow/internal/domain"
	"github.com/grainflow/grainflow/internal/modules/market"
	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

const (
	streamDialTimeout    = 30 * time.Second
	baseReconnectDelay   = 5 * time.Second
	maxReconnectDelay    = 5 * time.Minute
	maxReconnectAttempts = 10
)

// settlementMessage is one streamed settlement event.
type settlementMessage struct {
	Type      string  `json:"type"` // "settlement"
	Commodity string  `json:"commodity"`
	Price     float64 `json:"price"`
	Date      string  `json:"date"`
}

// QuoteStream keeps a websocket open to the feed's settlement channel and
// invalidates the market context cache when a fresh settlement lands, so
// the next generation pass reassembles instead of serving a stale snapshot.
type QuoteStream struct {
	url    string
	apiKey string
	cache  *market.Cache
	log    zerolog.Logger

	mu       sync.Mutex
	conn     *websocket.Conn
	connCtx  context.Context
	cancel   context.CancelFunc
	stopChan chan struct{}
	stopped  bool
}

// NewQuoteStream creates a settlement stream client. The cache may be nil,
// in which case events are only logged.
func NewQuoteStream(url, apiKey string, cache *market.Cache, log zerolog.Logger) *QuoteStream {
	return &QuoteStream{
		url:      url,
		apiKey:   apiKey,
		cache:    cache,
		log:      log.With().Str("component", "quote_stream").Logger(),
		stopChan: make(chan struct{}),
	}
}

// Start connects and begins reading in the background. A failed initial
// connection is not fatal; the reconnect loop keeps trying.
func (s *QuoteStream) Start() {
	if err := s.connect(); err != nil {
		s.log.Warn().Err(err).Msg("Initial stream connection failed, retrying in background")
		go s.reconnectLoop()
		return
	}
	go s.readLoop()
}

// Stop closes the stream and halts reconnection.
func (s *QuoteStream) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	close(s.stopChan)
	conn := s.conn
	cancel := s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "shutting down")
	}
	s.log.Info().Msg("Quote stream stopped")
}

func (s *QuoteStream) connect() error {
	dialCtx, dialCancel := context.WithTimeout(context.Background(), streamDialTimeout)
	defer dialCancel()

	url := s.url
	if s.apiKey != "" {
		url += "?api_key=" + s.apiKey
	}

	conn, _, err := websocket.Dial(dialCtx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial stream: %w", err)
	}

	connCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.conn = conn
	s.connCtx = connCtx
	s.cancel = cancel
	s.mu.Unlock()

	s.log.Info().Str("url", s.url).Msg("Quote stream connected")
	return nil
}

func (s *QuoteStream) readLoop() {
	s.mu.Lock()
	conn := s.conn
	ctx := s.connCtx
	s.mu.Unlock()
	if conn == nil || ctx == nil {
		return
	}
	for {
		select {
		case <-s.stopChan:
			return
		default:
		}

		_, data, err := conn.Read(ctx)
		if err != nil {
			s.mu.Lock()
			stopped := s.stopped
			s.mu.Unlock()
			if stopped {
				return
			}
			s.log.Warn().Err(err).Msg("Stream read failed, reconnecting")
			go s.reconnectLoop()
			return
		}

		s.handleMessage(data)
	}
}

func (s *QuoteStream) handleMessage(data []byte) {
	var msg settlementMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		s.log.Warn().Err(err).Msg("Unparseable stream message, ignoring")
		return
	}
	if msg.Type != "settlement" {
		return
	}

	commodity, ok := domain.ParseCommodity(msg.Commodity)
	if !ok {
		return
	}

	s.log.Debug().
		Str("commodity", string(commodity)).
		Float64("price", msg.Price).
		Str("date", msg.Date).
		Msg("Settlement received")

	if s.cache != nil {
		s.cache.Invalidate(commodity)
	}
}

// reconnectLoop retries the connection with exponential backoff until it
// succeeds, the attempt budget runs out, or Stop is called.
func (s *QuoteStream) reconnectLoop() {
	for attempt := 1; attempt <= maxReconnectAttempts; attempt++ {
		delay := time.Duration(math.Min(
			float64(baseReconnectDelay)*math.Pow(2, float64(attempt-1)),
			float64(maxReconnectDelay),
		))

		select {
		case <-s.stopChan:
			return
		case <-time.After(delay):
		}

		if err := s.connect(); err != nil {
			s.log.Warn().Err(err).Int("attempt", attempt).Msg("Stream reconnect failed")
			continue
		}
		go s.readLoop()
		return
	}
	s.log.Error().Int("attempts", maxReconnectAttempts).Msg("Stream reconnect budget exhausted")
}
