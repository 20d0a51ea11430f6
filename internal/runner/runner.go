package runner

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"signal_engine/internal/models"
	healthsvc "signal_engine/internal/modules/health/service"
	"signal_engine/internal/providers"
	"signal_engine/internal/strategy"
	"signal_engine/pkg/logger"
)

var errPanic = errors.New("strategy panicked")

// Config tunes the scheduling loop and per-cycle fan-out.
type Config struct {
	Interval     time.Duration
	Parallelism  int
	Timeframe    string
	HistoryLimit int
	Indicators   []string
	FetchTimeout time.Duration
}

func (c Config) normalize() Config {
	if c.Interval <= 0 {
		c.Interval = time.Hour
	}
	if c.Parallelism <= 0 {
		c.Parallelism = 8
	}
	if c.Timeframe == "" {
		c.Timeframe = "1d"
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 300
	}
	if len(c.Indicators) == 0 {
		c.Indicators = []string{
			strategy.IndicatorRSI,
			strategy.IndicatorATR,
			strategy.IndicatorSMA,
			strategy.IndicatorVolatility,
		}
	}
	if c.FetchTimeout <= 0 {
		c.FetchTimeout = 15 * time.Second
	}
	return c
}

// Runner drives the repeating decision cycle: fetch regime, select active
// strategies, snapshot the market, execute strategies, publish signals.
// Cycles never overlap; the loop itself enforces that.
type Runner struct {
	cfg        Config
	registry   *strategy.Registry
	regime     providers.RegimeProvider
	market     providers.MarketDataProvider
	indicators providers.IndicatorProvider
	positions  providers.PositionStore
	sink       providers.SignalSink
	state      *healthsvc.State
}

func New(
	cfg Config,
	registry *strategy.Registry,
	regime providers.RegimeProvider,
	market providers.MarketDataProvider,
	indicators providers.IndicatorProvider,
	positions providers.PositionStore,
	sink providers.SignalSink,
	state *healthsvc.State,
) *Runner {
	return &Runner{
		cfg:        cfg.normalize(),
		registry:   registry,
		regime:     regime,
		market:     market,
		indicators: indicators,
		positions:  positions,
		sink:       sink,
		state:      state,
	}
}

// Run executes cycles until ctx is cancelled. A stop request lands between
// cycles; the in-flight cycle always completes, including publish.
func (r *Runner) Run(ctx context.Context) {
	logger.Info("runner: loop started, interval %s", r.cfg.Interval)
	for {
		report := r.RunCycle(ctx)
		logger.Info("runner: cycle %d done: regime=%s active=%d signals=%d skipped_strategies=%d skipped_instruments=%d",
			r.state.Cycles(), report.Regime, report.ActiveStrategies,
			report.SignalsEmitted, report.StrategiesSkipped, report.InstrumentsSkipped)

		select {
		case <-ctx.Done():
			logger.Info("runner: stop requested, loop terminated")
			return
		case <-time.After(r.cfg.Interval):
		}
	}
}

// Report summarizes one completed cycle. A cycle always completes and always
// reports counts, even under partial failure.
type Report struct {
	Regime             models.Regime
	ActiveStrategies   int
	SignalsEmitted     int
	StrategiesSkipped  int
	InstrumentsSkipped int
}

// RunCycle executes one full decision cycle.
func (r *Runner) RunCycle(ctx context.Context) Report {
	span := opentracing.StartSpan("cycle")
	defer span.Finish()
	ctx = opentracing.ContextWithSpan(ctx, span)

	now := time.Now().UTC()

	snap := r.fetchRegime(ctx)
	span.SetTag("regime", string(snap.Regime))

	active := r.registry.ActiveFor(snap.Regime)

	positions, capital := r.fetchPositions(ctx)

	work := r.collectWork(active, positions)

	mc, skippedInstruments := r.buildContext(ctx, snap, work, positions, capital, now)

	signals, skippedStrategies := r.executeStrategies(ctx, work, mc)

	emitted := r.publish(ctx, signals)

	r.state.TouchRun(now)
	r.state.IncCycles()
	r.state.AddSignals(int64(emitted))
	r.state.SetReady(true)

	return Report{
		Regime:             snap.Regime,
		ActiveStrategies:   len(active),
		SignalsEmitted:     emitted,
		StrategiesSkipped:  skippedStrategies,
		InstrumentsSkipped: skippedInstruments,
	}
}

// fetchRegime falls back to the most restrictive label on any failure so the
// cycle still runs exit evaluation for open positions.
func (r *Runner) fetchRegime(ctx context.Context) models.RegimeSnapshot {
	span, ctx := opentracing.StartSpanFromContext(ctx, "fetch_regime")
	defer span.Finish()

	tctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	snap, err := r.regime.CurrentRegime(tctx)
	if err != nil {
		logger.Error("runner: regime fetch failed, falling back to %s: %v", models.RegimeFallback, err)
		return models.Fallback(time.Now().UTC())
	}
	return snap
}

func (r *Runner) fetchPositions(ctx context.Context) ([]models.Position, float64) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "fetch_positions")
	defer span.Finish()

	tctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	positions, err := r.positions.OpenPositions(tctx)
	if err != nil {
		logger.Error("runner: position fetch failed, treating as none open: %v", err)
		positions = nil
	}
	capital, err := r.positions.AvailableCapital(tctx)
	if err != nil {
		logger.Error("runner: capital fetch failed, treating as zero: %v", err)
		capital = 0
	}
	return positions, capital
}

// stratWork is one strategy's share of the cycle: whether it may propose
// entries and which of its positions need exit evaluation.
type stratWork struct {
	strat     strategy.Strategy
	entries   bool
	positions []models.Position
}

// collectWork merges the regime-active set (entries) with every strategy that
// owns an open position (exits). Exit evaluation runs regardless of the
// current regime or enabled flag: a position opened earlier still needs
// managing.
func (r *Runner) collectWork(active []strategy.Strategy, positions []models.Position) []*stratWork {
	byID := make(map[string]*stratWork)
	for _, s := range active {
		byID[s.ID()] = &stratWork{strat: s, entries: true}
	}
	for _, p := range positions {
		w, ok := byID[p.Strategy]
		if !ok {
			s, found := r.registry.Lookup(p.Strategy)
			if !found {
				logger.Warn("runner: position %s owned by unknown strategy %q, skipping exit evaluation", p.ID, p.Strategy)
				continue
			}
			w = &stratWork{strat: s}
			byID[p.Strategy] = w
		}
		w.positions = append(w.positions, p)
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]*stratWork, 0, len(ids))
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

// buildContext snapshots market data and indicators for every symbol the
// cycle touches. Per-symbol fetches run concurrently under the parallelism
// bound; a failed symbol is excluded, never fatal.
func (r *Runner) buildContext(
	ctx context.Context,
	snap models.RegimeSnapshot,
	work []*stratWork,
	positions []models.Position,
	capital float64,
	now time.Time,
) (*models.MarketContext, int) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "build_context")
	defer span.Finish()

	symbols := cycleSymbols(work, positions)

	var (
		mu      sync.Mutex
		data    = make(map[string]models.SymbolData, len(symbols))
		skipped int
		wg      sync.WaitGroup
		sem     = make(chan struct{}, r.cfg.Parallelism)
	)
	for _, sym := range symbols {
		wg.Add(1)
		sem <- struct{}{}
		go func(sym string) {
			defer wg.Done()
			defer func() { <-sem }()

			d, err := r.fetchSymbol(ctx, sym)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				logger.Warn("runner: %s excluded from cycle: %v", sym, err)
				skipped++
				return
			}
			data[sym] = d
		}(sym)
	}
	wg.Wait()

	return &models.MarketContext{
		Regime:        snap.Regime,
		Confidence:    snap.Confidence,
		Probabilities: snap.Probabilities,
		Symbols:       data,
		Capital:       capital,
		Positions:     positions,
		At:            now,
	}, skipped
}

func (r *Runner) fetchSymbol(ctx context.Context, symbol string) (models.SymbolData, error) {
	tctx, cancel := context.WithTimeout(ctx, r.cfg.FetchTimeout)
	defer cancel()

	candles, err := r.market.History(tctx, symbol, r.cfg.Timeframe, r.cfg.HistoryLimit)
	if err != nil {
		return models.SymbolData{}, err
	}
	history := make([]float64, 0, len(candles))
	for _, c := range candles {
		history = append(history, c.Close)
	}

	price, err := r.market.CurrentPrice(tctx, symbol)
	if err != nil {
		if len(history) == 0 {
			return models.SymbolData{}, err
		}
		price = history[len(history)-1]
	}

	ind, err := r.indicators.Indicators(tctx, symbol, r.cfg.Indicators)
	if err != nil {
		return models.SymbolData{}, err
	}

	return models.SymbolData{
		Symbol:     symbol,
		Price:      price,
		History:    history,
		Indicators: ind,
	}, nil
}

// executeStrategies fans out one goroutine per strategy under the parallelism
// bound. A failure or panic inside one strategy is logged and excluded; it
// never touches the others or aborts the cycle.
func (r *Runner) executeStrategies(ctx context.Context, work []*stratWork, mc *models.MarketContext) ([]models.Signal, int) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "execute_strategies")
	defer span.Finish()

	var (
		mu      sync.Mutex
		signals []models.Signal
		skipped int
		wg      sync.WaitGroup
		sem     = make(chan struct{}, r.cfg.Parallelism)
	)
	for _, w := range work {
		wg.Add(1)
		sem <- struct{}{}
		go func(w *stratWork) {
			defer wg.Done()
			defer func() { <-sem }()

			sigs, err := r.invokeStrategy(ctx, w, mc)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				skipped++
				return
			}
			signals = append(signals, sigs...)
		}(w)
	}
	wg.Wait()

	// deterministic publish order regardless of goroutine completion
	sort.Slice(signals, func(i, j int) bool {
		if signals[i].Strategy != signals[j].Strategy {
			return signals[i].Strategy < signals[j].Strategy
		}
		if signals[i].Symbol != signals[j].Symbol {
			return signals[i].Symbol < signals[j].Symbol
		}
		return signals[i].Direction < signals[j].Direction
	})
	return signals, skipped
}

// invokeStrategy runs one strategy's entries and exits with panic recovery.
func (r *Runner) invokeStrategy(ctx context.Context, w *stratWork, mc *models.MarketContext) (sigs []models.Signal, err error) {
	id := w.strat.ID()
	defer func() {
		if p := recover(); p != nil {
			logger.Error("runner: strategy %q panicked: %v", id, p)
			sigs, err = nil, errPanic
		}
	}()

	if w.entries {
		entries, genErr := w.strat.GenerateEntries(ctx, mc)
		if genErr != nil {
			logger.Error("runner: strategy %q entries failed: %v", id, genErr)
			return nil, genErr
		}
		for _, sig := range entries {
			if sig.Direction == models.DirectionClose {
				logger.Error("runner: strategy %q proposed CLOSE as an entry for %s, dropped", id, sig.Symbol)
				continue
			}
			sigs = append(sigs, sig)
		}
	}

	for _, pos := range w.positions {
		exit, exitErr := w.strat.EvaluateExit(ctx, pos, mc)
		if exitErr != nil {
			logger.Error("runner: strategy %q exit check for %s failed: %v", id, pos.Symbol, exitErr)
			continue
		}
		if exit != nil {
			sigs = append(sigs, *exit)
		}
	}
	return sigs, nil
}

// publish sends each signal to the sink; failures are logged, not retried.
func (r *Runner) publish(ctx context.Context, signals []models.Signal) int {
	span, ctx := opentracing.StartSpanFromContext(ctx, "publish")
	defer span.Finish()

	emitted := 0
	for _, sig := range signals {
		if err := r.sink.Publish(ctx, sig); err != nil {
			logger.Error("runner: publish %s %s failed: %v", sig.Direction, sig.Symbol, err)
			continue
		}
		emitted++
	}
	return emitted
}

func cycleSymbols(work []*stratWork, positions []models.Position) []string {
	seen := make(map[string]struct{})
	for _, w := range work {
		if !w.entries {
			continue
		}
		for _, sym := range w.strat.Universe() {
			seen[sym] = struct{}{}
		}
	}
	for _, p := range positions {
		seen[p.Symbol] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for sym := range seen {
		out = append(out, sym)
	}
	sort.Strings(out)
	return out
}
