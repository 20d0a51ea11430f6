package strategies

import (
	"go.uber.org/fx"

	"signal_engine/internal/modules/config"
	"signal_engine/internal/strategy"
	"signal_engine/pkg/logger"
)

// Module registers the known strategy implementations explicitly (no
// import-order side effects), constructs instances from the strategies file
// and keeps enable flags hot-reloaded.
func Module() fx.Option {
	return fx.Module("strategies",
		fx.Provide(
			func(w *config.StrategiesWatcher) (*strategy.Registry, error) {
				reg := strategy.NewRegistry()
				if err := reg.Register(strategy.MomentumID, func(cfg strategy.Config) (strategy.Strategy, error) {
					return strategy.NewMomentum(cfg)
				}); err != nil {
					return nil, err
				}

				// construct every configured strategy now so configuration
				// errors fail fast, before the first cycle
				cfgs, err := w.Load()
				if err != nil {
					return nil, err
				}
				for id, cfg := range cfgs {
					if !reg.Has(id) {
						logger.Warn("strategies: %q configured but not registered, ignored", id)
						continue
					}
					if _, err := reg.Strategy(id, cfg); err != nil {
						return nil, err
					}
				}
				return reg, nil
			},
		),
		fx.Invoke(func(w *config.StrategiesWatcher, reg *strategy.Registry) {
			w.OnReload(func(cfgs map[string]strategy.Config) {
				for id, cfg := range cfgs {
					reg.SetEnabled(id, cfg.Enabled)
				}
			})
			w.Watch()
		}),
	)
}
