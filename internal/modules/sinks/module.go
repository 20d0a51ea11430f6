package sinks

import (
	"go.uber.org/fx"

	"signal_engine/internal/modules/config"
	"signal_engine/internal/providers"
	"signal_engine/internal/sink"
	"signal_engine/pkg/db"
	"signal_engine/pkg/logger"
)

func Module() fx.Option {
	return fx.Module("sinks",
		fx.Provide(
			func(cfg *config.Config, tx db.TxManager) (providers.SignalSink, error) {
				out := []providers.SignalSink{sink.NewPgSink(tx)}
				if cfg.Telegram.Token != "" {
					tg, err := sink.NewTelegramSink(cfg.Telegram.Token, cfg.Telegram.ChatID)
					if err != nil {
						return nil, err
					}
					out = append(out, tg)
				} else {
					logger.Info("sinks: telegram token not set, signals go to postgres only")
				}
				return sink.NewMultiSink(out...), nil
			},
		),
	)
}
