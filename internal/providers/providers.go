package providers

import (
	"context"
	"time"

	"signal_engine/internal/models"
)

// Candle is one historical bar from the market-data provider.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// RegimeProvider is the black-box market regime classifier.
type RegimeProvider interface {
	CurrentRegime(ctx context.Context) (models.RegimeSnapshot, error)
}

// MarketDataProvider serves historical closes and the current price.
type MarketDataProvider interface {
	History(ctx context.Context, symbol, timeframe string, limit int) ([]Candle, error)
	CurrentPrice(ctx context.Context, symbol string) (float64, error)
}

// IndicatorProvider computes named indicator values per symbol.
type IndicatorProvider interface {
	Indicators(ctx context.Context, symbol string, names []string) (map[string]float64, error)
}

// PositionStore owns positions and capital; the engine only reads them.
type PositionStore interface {
	OpenPositions(ctx context.Context) ([]models.Position, error)
	AvailableCapital(ctx context.Context) (float64, error)
}

// SignalSink consumes emitted signals. Fire-and-forget from the runner's
// perspective: a publish failure is logged by the caller, never retried
// within the cycle.
type SignalSink interface {
	Publish(ctx context.Context, sig models.Signal) error
}
