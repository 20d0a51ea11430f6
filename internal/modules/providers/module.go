package providers

import (
	"context"
	"sort"

	"go.uber.org/fx"

	"signal_engine/internal/modules/config"
	"signal_engine/internal/providers"
)

func Module() fx.Option {
	return fx.Module("providers",
		fx.Provide(
			func(cfg *config.Config) *providers.HTTPClient {
				return providers.NewHTTPClient(cfg.Providers.BaseURL, cfg.Providers.Timeout)
			},
			func(c *providers.HTTPClient) providers.RegimeProvider { return c },
			func(c *providers.HTTPClient) providers.IndicatorProvider { return c },
			func(c *providers.HTTPClient) providers.PositionStore { return c },
			func(cfg *config.Config, c *providers.HTTPClient, w *config.StrategiesWatcher) (*providers.QuoteStream, error) {
				cfgs, err := w.Load()
				if err != nil {
					return nil, err
				}
				seen := make(map[string]struct{})
				for _, sc := range cfgs {
					for _, sym := range sc.Universe {
						seen[sym] = struct{}{}
					}
				}
				symbols := make([]string, 0, len(seen))
				for sym := range seen {
					symbols = append(symbols, sym)
				}
				sort.Strings(symbols)
				return providers.NewQuoteStream(
					cfg.Providers.QuoteStreamURL, symbols, cfg.Providers.QuoteMaxAge, c), nil
			},
			func(q *providers.QuoteStream) providers.MarketDataProvider { return q },
		),
		fx.Invoke(func(lc fx.Lifecycle, q *providers.QuoteStream) {
			var cancel context.CancelFunc
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					var runCtx context.Context
					runCtx, cancel = context.WithCancel(context.Background())
					go q.Run(runCtx)
					return nil
				},
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})
		}),
	)
}
