package runner

import (
	"context"

	"go.uber.org/fx"

	"signal_engine/internal/modules/config"
	healthsvc "signal_engine/internal/modules/health/service"
	"signal_engine/internal/providers"
	"signal_engine/internal/strategy"
)

func Module() fx.Option {
	return fx.Module("runner",
		fx.Provide(
			func(
				cfg *config.Config,
				registry *strategy.Registry,
				regime providers.RegimeProvider,
				market providers.MarketDataProvider,
				indicators providers.IndicatorProvider,
				positions providers.PositionStore,
				sink providers.SignalSink,
				state *healthsvc.State,
			) *Runner {
				return New(Config{
					Interval:     cfg.Runner.Interval,
					Parallelism:  cfg.Runner.Parallelism,
					Timeframe:    cfg.Runner.Timeframe,
					HistoryLimit: cfg.Runner.HistoryLimit,
					FetchTimeout: cfg.Runner.FetchTimeout,
				}, registry, regime, market, indicators, positions, sink, state)
			},
		),
		fx.Invoke(func(lc fx.Lifecycle, r *Runner) {
			var cancel context.CancelFunc
			done := make(chan struct{})
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					var runCtx context.Context
					runCtx, cancel = context.WithCancel(context.Background())
					go func() {
						defer close(done)
						r.Run(runCtx)
					}()
					return nil
				},
				OnStop: func(ctx context.Context) error {
					cancel()
					// let the in-flight cycle finish publishing
					select {
					case <-done:
						return nil
					case <-ctx.Done():
						return ctx.Err()
					}
				},
			})
		}),
	)
}
