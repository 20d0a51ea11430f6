package runner

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signal_engine/internal/models"
	healthsvc "signal_engine/internal/modules/health/service"
	"signal_engine/internal/providers"
	"signal_engine/internal/strategy"
)

type fakeRegime struct {
	snap models.RegimeSnapshot
	err  error
}

func (f *fakeRegime) CurrentRegime(ctx context.Context) (models.RegimeSnapshot, error) {
	return f.snap, f.err
}

type fakeMarket struct {
	prices map[string]float64
	fail   map[string]bool
}

func (f *fakeMarket) History(ctx context.Context, symbol, timeframe string, limit int) ([]providers.Candle, error) {
	if f.fail[symbol] {
		return nil, errors.Errorf("no data for %s", symbol)
	}
	out := make([]providers.Candle, 260)
	for i := range out {
		out[i] = providers.Candle{Close: 100 + float64(i)}
	}
	return out, nil
}

func (f *fakeMarket) CurrentPrice(ctx context.Context, symbol string) (float64, error) {
	if px, ok := f.prices[symbol]; ok {
		return px, nil
	}
	return 359, nil
}

type fakeIndicators struct{}

func (fakeIndicators) Indicators(ctx context.Context, symbol string, names []string) (map[string]float64, error) {
	return map[string]float64{
		strategy.IndicatorRSI: 55,
		strategy.IndicatorATR: 5,
		strategy.IndicatorSMA: 300,
	}, nil
}

type fakePositions struct {
	positions []models.Position
	capital   float64
	err       error
}

func (f *fakePositions) OpenPositions(ctx context.Context) ([]models.Position, error) {
	return f.positions, f.err
}

func (f *fakePositions) AvailableCapital(ctx context.Context) (float64, error) {
	return f.capital, f.err
}

type captureSink struct {
	mu      sync.Mutex
	signals []models.Signal
	err     error
}

func (c *captureSink) Publish(ctx context.Context, sig models.Signal) error {
	if c.err != nil {
		return c.err
	}
	c.mu.Lock()
	c.signals = append(c.signals, sig)
	c.mu.Unlock()
	return nil
}

func (c *captureSink) all() []models.Signal {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.Signal, len(c.signals))
	copy(out, c.signals)
	return out
}

// fakeStrategy drives runner tests with scripted entry/exit behavior.
type fakeStrategy struct {
	id       string
	eligible []models.Regime
	universe []string
	enabled  atomic.Bool
	entries  func(mc *models.MarketContext) ([]models.Signal, error)
	exit     func(pos models.Position, mc *models.MarketContext) (*models.Signal, error)
}

func (f *fakeStrategy) ID() string                       { return f.id }
func (f *fakeStrategy) Name() string                     { return f.id }
func (f *fakeStrategy) Description() string              { return "fake" }
func (f *fakeStrategy) EligibleRegimes() []models.Regime { return f.eligible }
func (f *fakeStrategy) Universe() []string               { return f.universe }
func (f *fakeStrategy) Enabled() bool                    { return f.enabled.Load() }
func (f *fakeStrategy) SetEnabled(v bool)                { f.enabled.Store(v) }
func (f *fakeStrategy) LastSignals() []models.Signal     { return nil }

func (f *fakeStrategy) GenerateEntries(ctx context.Context, mc *models.MarketContext) ([]models.Signal, error) {
	if f.entries == nil {
		return nil, nil
	}
	return f.entries(mc)
}

func (f *fakeStrategy) EvaluateExit(ctx context.Context, pos models.Position, mc *models.MarketContext) (*models.Signal, error) {
	if f.exit == nil {
		return nil, nil
	}
	return f.exit(pos, mc)
}

func longSignal(t *testing.T, strategyID, symbol string, mc *models.MarketContext) models.Signal {
	t.Helper()
	sig, err := models.NewSignal(models.SignalParams{
		Strategy:         strategyID,
		Symbol:           symbol,
		Direction:        models.DirectionLong,
		Confidence:       0.7,
		Entry:            models.Ptr(100),
		StopLoss:         models.Ptr(95),
		TakeProfit:       models.Ptr(110),
		Regime:           mc.Regime,
		RegimeConfidence: mc.Confidence,
	})
	require.NoError(t, err)
	return sig
}

func registryWith(t *testing.T, strats ...*fakeStrategy) *strategy.Registry {
	t.Helper()
	reg := strategy.NewRegistry()
	for _, s := range strats {
		s := s
		require.NoError(t, reg.Register(s.id, func(cfg strategy.Config) (strategy.Strategy, error) {
			s.SetEnabled(cfg.Enabled)
			return s, nil
		}))
		_, err := reg.Strategy(s.id, strategy.Config{ID: s.id, Enabled: s.Enabled()})
		require.NoError(t, err)
	}
	return reg
}

func newTestRunner(t *testing.T, reg *strategy.Registry, regime providers.RegimeProvider, pos providers.PositionStore, s providers.SignalSink) (*Runner, *healthsvc.State) {
	t.Helper()
	state := healthsvc.NewState()
	r := New(Config{
		Interval:     time.Millisecond,
		Parallelism:  2,
		HistoryLimit: 260,
	}, reg, regime, &fakeMarket{}, fakeIndicators{}, pos, s, state)
	return r, state
}

func enabledFake(id string, universe []string) *fakeStrategy {
	f := &fakeStrategy{id: id, eligible: []models.Regime{models.RegimeBullish}, universe: universe}
	f.enabled.Store(true)
	return f
}

func bullish() *fakeRegime {
	return &fakeRegime{snap: models.RegimeSnapshot{
		Regime:        models.RegimeBullish,
		Confidence:    0.8,
		Probabilities: map[models.Regime]float64{models.RegimeBullish: 0.8, models.RegimeBearish: 0.2},
		At:            time.Now().UTC(),
	}}
}

func TestCycleIsolatesFailingStrategies(t *testing.T) {
	good := enabledFake("good", []string{"AAPL"})
	good.entries = func(mc *models.MarketContext) ([]models.Signal, error) {
		return []models.Signal{longSignal(t, "good", "AAPL", mc)}, nil
	}
	panicky := enabledFake("panicky", []string{"MSFT"})
	panicky.entries = func(mc *models.MarketContext) ([]models.Signal, error) {
		panic("boom")
	}
	failing := enabledFake("failing", []string{"NVDA"})
	failing.entries = func(mc *models.MarketContext) ([]models.Signal, error) {
		return nil, errors.New("upstream exploded")
	}

	sink := &captureSink{}
	r, state := newTestRunner(t, registryWith(t, good, panicky, failing), bullish(), &fakePositions{capital: 1000}, sink)

	report := r.RunCycle(context.Background())

	assert.Equal(t, 1, report.SignalsEmitted, "good strategy still emits")
	assert.Equal(t, 2, report.StrategiesSkipped)
	assert.Equal(t, 3, report.ActiveStrategies)
	require.Len(t, sink.all(), 1)
	assert.Equal(t, "good", sink.all()[0].Strategy)

	assert.Equal(t, int64(1), state.Cycles(), "metrics still increment under partial failure")
	assert.Equal(t, int64(1), state.Signals())
}

func TestRegimeFetchFailureFallsBackAndStillEvaluatesExits(t *testing.T) {
	pos := models.Position{
		ID: "p1", Symbol: "AAPL", Direction: models.DirectionLong,
		Strategy: "s1", OpenedAt: time.Now().Add(-48 * time.Hour),
	}
	s1 := enabledFake("s1", []string{"AAPL"})
	s1.exit = func(p models.Position, mc *models.MarketContext) (*models.Signal, error) {
		if mc.Regime == models.RegimeBullish {
			return nil, nil
		}
		sig, err := strategy.CloseSignal("s1", p, mc, "regime no longer favorable")
		if err != nil {
			return nil, err
		}
		return &sig, nil
	}

	sink := &captureSink{}
	r, _ := newTestRunner(t, registryWith(t, s1),
		&fakeRegime{err: errors.New("detector down")},
		&fakePositions{positions: []models.Position{pos}, capital: 1000}, sink)

	report := r.RunCycle(context.Background())

	assert.Equal(t, models.RegimeFallback, report.Regime)
	assert.Equal(t, 0, report.ActiveStrategies, "fallback regime activates nothing")
	require.Len(t, sink.all(), 1, "exit evaluation still ran")
	assert.Equal(t, models.DirectionClose, sink.all()[0].Direction)
}

func TestMarketDataFailureExcludesOnlyThatInstrument(t *testing.T) {
	s1 := enabledFake("s1", []string{"AAPL", "MSFT"})
	var sawSymbols []string
	s1.entries = func(mc *models.MarketContext) ([]models.Signal, error) {
		for sym := range mc.Symbols {
			sawSymbols = append(sawSymbols, sym)
		}
		return nil, nil
	}

	state := healthsvc.NewState()
	sink := &captureSink{}
	r := New(Config{Parallelism: 2, HistoryLimit: 260},
		registryWith(t, s1), bullish(),
		&fakeMarket{fail: map[string]bool{"MSFT": true}}, fakeIndicators{},
		&fakePositions{capital: 1000}, sink, state)

	report := r.RunCycle(context.Background())

	assert.Equal(t, 1, report.InstrumentsSkipped)
	assert.Equal(t, []string{"AAPL"}, sawSymbols)
	assert.Equal(t, 0, report.StrategiesSkipped)
}

func TestCloseDroppedFromEntries(t *testing.T) {
	s1 := enabledFake("s1", []string{"AAPL"})
	s1.entries = func(mc *models.MarketContext) ([]models.Signal, error) {
		closeSig, err := models.NewSignal(models.SignalParams{
			Strategy: "s1", Symbol: "AAPL", Direction: models.DirectionClose,
			Confidence: 0.9, Regime: mc.Regime, RegimeConfidence: mc.Confidence,
		})
		if err != nil {
			return nil, err
		}
		return []models.Signal{closeSig, longSignal(t, "s1", "AAPL", mc)}, nil
	}

	sink := &captureSink{}
	r, _ := newTestRunner(t, registryWith(t, s1), bullish(), &fakePositions{capital: 1000}, sink)

	report := r.RunCycle(context.Background())

	assert.Equal(t, 1, report.SignalsEmitted)
	require.Len(t, sink.all(), 1)
	assert.Equal(t, models.DirectionLong, sink.all()[0].Direction)
}

func TestPublishFailureDoesNotAbortCycle(t *testing.T) {
	s1 := enabledFake("s1", []string{"AAPL"})
	s1.entries = func(mc *models.MarketContext) ([]models.Signal, error) {
		return []models.Signal{longSignal(t, "s1", "AAPL", mc)}, nil
	}

	sink := &captureSink{err: errors.New("sink down")}
	r, state := newTestRunner(t, registryWith(t, s1), bullish(), &fakePositions{capital: 1000}, sink)

	report := r.RunCycle(context.Background())

	assert.Equal(t, 0, report.SignalsEmitted)
	assert.Equal(t, int64(1), state.Cycles(), "cycle completed despite publish failure")
}

func TestTotalExternalFailureYieldsEmptySet(t *testing.T) {
	s1 := enabledFake("s1", []string{"AAPL"})

	state := healthsvc.NewState()
	sink := &captureSink{}
	r := New(Config{Parallelism: 2, HistoryLimit: 260},
		registryWith(t, s1),
		&fakeRegime{err: errors.New("down")},
		&fakeMarket{fail: map[string]bool{"AAPL": true}}, fakeIndicators{},
		&fakePositions{err: errors.New("down")}, sink, state)

	report := r.RunCycle(context.Background())

	assert.Empty(t, sink.all())
	assert.Equal(t, 0, report.SignalsEmitted)
	assert.Equal(t, int64(1), state.Cycles())
}

func TestRunStopsAfterCurrentCycleOnCancel(t *testing.T) {
	s1 := enabledFake("s1", []string{"AAPL"})
	sink := &captureSink{}
	r, state := newTestRunner(t, registryWith(t, s1), bullish(), &fakePositions{capital: 1000}, sink)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.Run(ctx)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop on cancel")
	}
	assert.Equal(t, int64(1), state.Cycles(), "in-flight cycle completes, no new one starts")
}

func TestCycleDeterministicSignalOrder(t *testing.T) {
	a := enabledFake("a", []string{"AAPL"})
	a.entries = func(mc *models.MarketContext) ([]models.Signal, error) {
		return []models.Signal{longSignal(t, "a", "MSFT", mc), longSignal(t, "a", "AAPL", mc)}, nil
	}
	b := enabledFake("b", []string{"NVDA"})
	b.entries = func(mc *models.MarketContext) ([]models.Signal, error) {
		return []models.Signal{longSignal(t, "b", "NVDA", mc)}, nil
	}

	sink := &captureSink{}
	r, _ := newTestRunner(t, registryWith(t, a, b), bullish(), &fakePositions{capital: 1000}, sink)
	r.RunCycle(context.Background())

	got := sink.all()
	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Strategy)
	assert.Equal(t, "AAPL", got[0].Symbol)
	assert.Equal(t, "MSFT", got[1].Symbol)
	assert.Equal(t, "b", got[2].Strategy)
}
