package strategy

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"

	"signal_engine/internal/models"
	"signal_engine/internal/momentum"
	"signal_engine/pkg/logger"
)

// MomentumID is the registry identifier of the flagship strategy.
const MomentumID = "momentum"

// maxEntryConfidence caps the blended entry confidence.
const maxEntryConfidence = 0.95

// regimeBoost is added when regime confidence clears the configured bar.
const regimeBoost = 0.05

// Momentum is the flagship strategy: rank the universe by multi-window
// momentum, take the strongest names while the regime is bullish, exit on
// regime turn, rank decay, overbought RSI or trend break.
type Momentum struct {
	cfg      Config
	eligible []models.Regime
	ranker   *momentum.Ranker
	enabled  atomic.Bool

	mu          sync.Mutex
	lastSignals []models.Signal
	lastRanked  []models.MomentumScore // ranking of the current cycle, for exits
	lastRankAt  int64                  // unix nanos of the context the ranking belongs to
}

func NewMomentum(cfg Config) (*Momentum, error) {
	cfg = cfg.Normalize()
	if len(cfg.Universe) == 0 {
		return nil, errors.New("momentum: empty instrument universe")
	}
	if cfg.RSILow >= cfg.RSIHigh {
		return nil, errors.Errorf("momentum: rsi band [%v,%v] is empty", cfg.RSILow, cfg.RSIHigh)
	}
	if cfg.MinConfidence < 0 || cfg.MinConfidence > 1 {
		return nil, errors.Errorf("momentum: min confidence %v outside [0,1]", cfg.MinConfidence)
	}
	ranker, err := momentum.NewRanker(momentum.Config{
		Weights:         cfg.Weights,
		FloorVolatility: cfg.FloorVolatility,
	})
	if err != nil {
		return nil, errors.Wrap(err, "momentum")
	}

	eligible := cfg.EligibleRegimes
	if len(eligible) == 0 {
		eligible = []models.Regime{models.RegimeBullish}
	}

	m := &Momentum{cfg: cfg, eligible: eligible, ranker: ranker}
	m.enabled.Store(cfg.Enabled)
	return m, nil
}

func (m *Momentum) ID() string   { return MomentumID }
func (m *Momentum) Name() string { return "Momentum Rotation" }
func (m *Momentum) Description() string {
	return "ranks the universe by multi-window momentum and rotates into the strongest names during uptrends"
}
func (m *Momentum) EligibleRegimes() []models.Regime { return m.eligible }
func (m *Momentum) Universe() []string               { return m.cfg.Universe }
func (m *Momentum) Enabled() bool                    { return m.enabled.Load() }
func (m *Momentum) SetEnabled(v bool)                { m.enabled.Store(v) }

func (m *Momentum) LastSignals() []models.Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Signal, len(m.lastSignals))
	copy(out, m.lastSignals)
	return out
}

func (m *Momentum) regimeEligible(r models.Regime) bool {
	for _, e := range m.eligible {
		if e == r {
			return true
		}
	}
	return false
}

func (m *Momentum) GenerateEntries(ctx context.Context, mc *models.MarketContext) ([]models.Signal, error) {
	if !m.regimeEligible(mc.Regime) {
		m.setLastSignals(nil)
		return nil, nil
	}

	open := mc.PositionCount(MomentumID)
	if open >= m.cfg.MaxPositions {
		logger.Info("[%s] position limit reached (%d/%d), no entries this cycle",
			MomentumID, open, m.cfg.MaxPositions)
		m.setLastSignals(nil)
		return nil, nil
	}
	capacity := m.cfg.MaxPositions - open

	ranked := m.rankUniverse(mc)

	topN := m.cfg.TopN
	if capacity < topN {
		topN = capacity
	}
	if topN > len(ranked) {
		topN = len(ranked)
	}

	signals := make([]models.Signal, 0, topN)
	for _, sc := range ranked[:topN] {
		sig, ok := m.entryCandidate(sc, mc)
		if !ok {
			continue
		}
		signals = append(signals, sig)
	}

	m.setLastSignals(signals)
	return signals, nil
}

// entryCandidate applies the per-instrument filters and builds the signal.
// Every rejection is logged and silent per the discard rules.
func (m *Momentum) entryCandidate(sc models.MomentumScore, mc *models.MarketContext) (models.Signal, bool) {
	sym := sc.Symbol

	if _, held := mc.PositionFor(MomentumID, sym); held {
		return models.Signal{}, false
	}
	if sc.VolAdjusted < m.cfg.MinScore {
		logger.Info("[%s] %s skipped: score %.2f below minimum %.2f", MomentumID, sym, sc.VolAdjusted, m.cfg.MinScore)
		return models.Signal{}, false
	}

	data, ok := mc.Symbol(sym)
	if !ok || data.Price <= 0 {
		return models.Signal{}, false
	}
	rsi, ok := mc.Indicator(sym, IndicatorRSI)
	if !ok || rsi < m.cfg.RSILow || rsi > m.cfg.RSIHigh {
		logger.Info("[%s] %s skipped: rsi %.1f outside [%.1f,%.1f]", MomentumID, sym, rsi, m.cfg.RSILow, m.cfg.RSIHigh)
		return models.Signal{}, false
	}
	sma, ok := mc.Indicator(sym, IndicatorSMA)
	if !ok || data.Price < sma {
		logger.Info("[%s] %s skipped: price %.4f below trend ma %.4f", MomentumID, sym, data.Price, sma)
		return models.Signal{}, false
	}
	atr, ok := mc.Indicator(sym, IndicatorATR)
	if !ok || atr <= 0 {
		logger.Info("[%s] %s skipped: no usable atr", MomentumID, sym)
		return models.Signal{}, false
	}

	entry := data.Price
	stop := entry - atr*m.cfg.StopATRMult
	target := entry + atr*m.cfg.ProfitATRMult

	conf := sc.VolAdjusted / 100
	if conf > 1 {
		conf = 1
	}
	if conf < 0 {
		conf = 0
	}
	if mc.Confidence > m.cfg.RegimeBoostAbove {
		conf += regimeBoost
	}
	if conf > maxEntryConfidence {
		conf = maxEntryConfidence
	}
	if conf < m.cfg.MinConfidence {
		logger.Info("[%s] %s skipped: confidence %.3f below minimum %.3f", MomentumID, sym, conf, m.cfg.MinConfidence)
		return models.Signal{}, false
	}

	sig, err := models.NewSignal(models.SignalParams{
		Strategy:         MomentumID,
		Symbol:           sym,
		Direction:        models.DirectionLong,
		Confidence:       conf,
		Entry:            models.Ptr(entry),
		StopLoss:         models.Ptr(stop),
		TakeProfit:       models.Ptr(target),
		Size:             models.Size{Value: m.cfg.PositionPct, Unit: models.SizePercent},
		Regime:           mc.Regime,
		RegimeConfidence: mc.Confidence,
		Timeframe:        m.cfg.Timeframe,
		Rationale: fmt.Sprintf("momentum rank %d, vol-adjusted score %.1f, rsi %.1f above trend ma",
			sc.Rank, sc.VolAdjusted, rsi),
		Indicators: map[string]float64{
			"momentum_score": sc.Score,
			"momentum_rank":  float64(sc.Rank),
			IndicatorRSI:     rsi,
			IndicatorATR:     atr,
			IndicatorSMA:     sma,
		},
	})
	if err != nil {
		logger.Error("[%s] %s entry rejected: %v", MomentumID, sym, err)
		return models.Signal{}, false
	}

	if rr, defined := sig.RiskReward(); defined && rr < m.cfg.MinRiskReward {
		logger.Info("[%s] %s skipped: r/r %.2f below minimum %.2f", MomentumID, sym, rr, m.cfg.MinRiskReward)
		return models.Signal{}, false
	}
	return sig, true
}

func (m *Momentum) EvaluateExit(ctx context.Context, pos models.Position, mc *models.MarketContext) (*models.Signal, error) {
	reason, fire := FirstExit(pos, mc,
		AdverseRegimeExit(m.eligible),
		MaxHoldingExit(m.cfg.MaxHolding),
		m.rankDecayExit(),
		m.overboughtExit(),
		m.trendBreakExit(),
	)
	if !fire {
		return nil, nil
	}
	sig, err := CloseSignal(MomentumID, pos, mc, reason)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func (m *Momentum) rankDecayExit() ExitCheck {
	return func(pos models.Position, mc *models.MarketContext) (string, bool) {
		for _, sc := range m.rankUniverse(mc) {
			if sc.Symbol != pos.Symbol {
				continue
			}
			if sc.Rank > m.cfg.TopN {
				return fmt.Sprintf("momentum rank fell to %d (top %d required)", sc.Rank, m.cfg.TopN), true
			}
			return "", false
		}
		// symbol no longer rankable this cycle; not an exit on its own
		return "", false
	}
}

func (m *Momentum) overboughtExit() ExitCheck {
	return func(pos models.Position, mc *models.MarketContext) (string, bool) {
		rsi, ok := mc.Indicator(pos.Symbol, IndicatorRSI)
		if ok && rsi > m.cfg.RSIOverbought {
			return fmt.Sprintf("rsi %.1f above overbought %.1f", rsi, m.cfg.RSIOverbought), true
		}
		return "", false
	}
}

func (m *Momentum) trendBreakExit() ExitCheck {
	return func(pos models.Position, mc *models.MarketContext) (string, bool) {
		data, okData := mc.Symbol(pos.Symbol)
		sma, okSMA := mc.Indicator(pos.Symbol, IndicatorSMA)
		if okData && okSMA && data.Price < sma {
			return fmt.Sprintf("price %.4f broke below trend ma %.4f", data.Price, sma), true
		}
		return "", false
	}
}

// rankUniverse scores and ranks the configured universe for this context.
// The result is cached per context timestamp so exit evaluation reuses the
// ranking computed for entries in the same cycle.
func (m *Momentum) rankUniverse(mc *models.MarketContext) []models.MomentumScore {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lastRankAt == mc.At.UnixNano() && m.lastRanked != nil {
		return m.lastRanked
	}

	scores := make([]models.MomentumScore, 0, len(m.cfg.Universe))
	for _, sym := range m.cfg.Universe {
		data, ok := mc.Symbol(sym)
		if !ok {
			continue
		}
		vol := data.Indicators[IndicatorVolatility]
		sc, err := m.ranker.Score(sym, data.History, vol)
		if err != nil {
			logger.Info("[%s] %s skipped from ranking: %v", MomentumID, sym, err)
			continue
		}
		scores = append(scores, sc)
	}

	m.lastRanked = momentum.RankUniverse(scores, momentum.ByVolAdjusted)
	m.lastRankAt = mc.At.UnixNano()
	return m.lastRanked
}

func (m *Momentum) setLastSignals(signals []models.Signal) {
	m.mu.Lock()
	m.lastSignals = signals
	m.mu.Unlock()
}
