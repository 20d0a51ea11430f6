package strategy

import (
	"context"
	"time"

	"signal_engine/internal/models"
)

// Strategy is the contract every trading approach implements. Instances are
// constructed once by the registry and reused across cycles; the runner
// guarantees a strategy is invoked by at most one goroutine at a time.
type Strategy interface {
	ID() string
	Name() string
	Description() string

	// EligibleRegimes is the set of regimes under which the strategy may open
	// new positions. Exits are evaluated regardless of the current regime.
	EligibleRegimes() []models.Regime

	// Universe is the list of instruments the strategy follows.
	Universe() []string

	// GenerateEntries proposes LONG/SHORT/HOLD candidates for the cycle. It
	// returns an empty slice, not an error, when the regime is outside the
	// eligible set. It never proposes CLOSE.
	GenerateEntries(ctx context.Context, mc *models.MarketContext) ([]models.Signal, error)

	// EvaluateExit is called once per open position owned by this strategy.
	// A nil signal means "keep holding".
	EvaluateExit(ctx context.Context, pos models.Position, mc *models.MarketContext) (*models.Signal, error)

	// Enabled is configuration-driven and may flip between cycles without the
	// instance being reconstructed.
	Enabled() bool
	SetEnabled(v bool)

	// LastSignals returns the signals produced by the most recent invocation,
	// for introspection only.
	LastSignals() []models.Signal
}

// Config is the per-strategy configuration surface. One Config feeds one
// registry instance; the zero value is completed by Normalize.
type Config struct {
	ID              string          `yaml:"id" mapstructure:"id"`
	Enabled         bool            `yaml:"enabled" mapstructure:"enabled"`
	EligibleRegimes []models.Regime `yaml:"eligible_regimes" mapstructure:"eligible_regimes"` // empty keeps the strategy default
	Universe        []string        `yaml:"universe" mapstructure:"universe"`
	Timeframe       string          `yaml:"timeframe" mapstructure:"timeframe"`

	TopN          int     `yaml:"top_n" mapstructure:"top_n"`
	MaxPositions  int     `yaml:"max_positions" mapstructure:"max_positions"`
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	MinRiskReward float64 `yaml:"min_risk_reward" mapstructure:"min_risk_reward"`
	MinScore      float64 `yaml:"min_score" mapstructure:"min_score"`

	RSILow        float64 `yaml:"rsi_low" mapstructure:"rsi_low"`
	RSIHigh       float64 `yaml:"rsi_high" mapstructure:"rsi_high"`
	RSIOverbought float64 `yaml:"rsi_overbought" mapstructure:"rsi_overbought"`

	StopATRMult   float64 `yaml:"stop_atr_mult" mapstructure:"stop_atr_mult"`
	ProfitATRMult float64 `yaml:"profit_atr_mult" mapstructure:"profit_atr_mult"`

	PositionPct float64       `yaml:"position_pct" mapstructure:"position_pct"`
	MaxHolding  time.Duration `yaml:"max_holding" mapstructure:"max_holding"`

	// Weights for the momentum ranker; zero value means the default set.
	Weights         [4]float64 `yaml:"weights" mapstructure:"weights"`
	FloorVolatility bool       `yaml:"floor_volatility" mapstructure:"floor_volatility"`

	// Regime confidence above this earns the small confidence boost.
	RegimeBoostAbove float64 `yaml:"regime_boost_above" mapstructure:"regime_boost_above"`
}

// Normalize fills unset numeric fields with the defaults used throughout.
func (c Config) Normalize() Config {
	if c.Timeframe == "" {
		c.Timeframe = "1d"
	}
	if c.TopN <= 0 {
		c.TopN = 5
	}
	if c.MaxPositions <= 0 {
		c.MaxPositions = 5
	}
	if c.RSILow <= 0 {
		c.RSILow = 40
	}
	if c.RSIHigh <= 0 {
		c.RSIHigh = 75
	}
	if c.RSIOverbought <= 0 {
		c.RSIOverbought = 80
	}
	if c.StopATRMult <= 0 {
		c.StopATRMult = 2.0
	}
	if c.ProfitATRMult <= 0 {
		c.ProfitATRMult = 4.0
	}
	if c.PositionPct <= 0 {
		c.PositionPct = 10
	}
	if c.MaxHolding <= 0 {
		c.MaxHolding = 30 * 24 * time.Hour
	}
	if c.RegimeBoostAbove <= 0 {
		c.RegimeBoostAbove = 0.75
	}
	return c
}

// Indicator names the strategies expect in SymbolData.Indicators.
const (
	IndicatorRSI        = "rsi_14"
	IndicatorATR        = "atr_14"
	IndicatorSMA        = "sma_50"
	IndicatorVolatility = "volatility"
)
