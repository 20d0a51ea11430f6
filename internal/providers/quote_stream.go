package providers

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"signal_engine/pkg/logger"
)

// QuoteStream keeps a last-price cache warm from the market-data provider's
// websocket feed, so a cycle can reuse a fresh tick instead of an extra HTTP
// round trip. One socket carries the whole subscribed universe.
type QuoteStream struct {
	url      string
	symbols  []string
	maxAge   time.Duration
	dialer   *websocket.Dialer
	fallback MarketDataProvider

	mu   sync.RWMutex
	last map[string]float64
	seen map[string]time.Time
}

func NewQuoteStream(url string, symbols []string, maxAge time.Duration, fallback MarketDataProvider) *QuoteStream {
	if maxAge <= 0 {
		maxAge = time.Minute
	}
	return &QuoteStream{
		url:      url,
		symbols:  symbols,
		maxAge:   maxAge,
		dialer:   websocket.DefaultDialer,
		fallback: fallback,
		last:     make(map[string]float64),
		seen:     make(map[string]time.Time),
	}
}

// Run keeps the subscription alive until ctx is cancelled, reconnecting with
// a short backoff on any error.
func (q *QuoteStream) Run(ctx context.Context) {
	if q.url == "" || len(q.symbols) == 0 {
		return
	}
	for {
		if ctx.Err() != nil {
			return
		}
		if err := q.connectAndRead(ctx); err != nil && ctx.Err() == nil {
			logger.Warn("quote stream: %v, reconnecting", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (q *QuoteStream) connectAndRead(ctx context.Context) error {
	conn, _, err := q.dialer.DialContext(ctx, q.url, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	sub := map[string]any{"op": "subscribe", "symbols": q.symbols}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}

	// keepalive, and socket teardown on cancel so ReadMessage unblocks
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		t := time.NewTicker(20 * time.Second)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close()
				return
			case <-stop:
				return
			case <-t.C:
				_ = conn.WriteJSON(map[string]string{"op": "ping"})
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		var tick struct {
			Symbol string  `json:"symbol"`
			Price  float64 `json:"price"`
		}
		if err := sonic.Unmarshal(msg, &tick); err != nil {
			continue
		}
		if tick.Symbol == "" || tick.Price <= 0 {
			continue
		}
		q.mu.Lock()
		q.last[tick.Symbol] = tick.Price
		q.seen[tick.Symbol] = time.Now()
		q.mu.Unlock()
	}
}

// Last returns the cached price when it is fresh enough.
func (q *QuoteStream) Last(symbol string) (float64, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()
	at, ok := q.seen[symbol]
	if !ok || time.Since(at) > q.maxAge {
		return 0, false
	}
	return q.last[symbol], true
}

// History defers to the HTTP provider; the stream only carries ticks.
func (q *QuoteStream) History(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error) {
	return q.fallback.History(ctx, symbol, timeframe, limit)
}

// CurrentPrice prefers a fresh streamed tick and falls back to HTTP.
func (q *QuoteStream) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if px, ok := q.Last(symbol); ok {
		return px, nil
	}
	return q.fallback.CurrentPrice(ctx, symbol)
}
