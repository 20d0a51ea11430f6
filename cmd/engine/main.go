package main

import (
	"context"
	"log"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"signal_engine/internal/modules/config"
	"signal_engine/internal/modules/health"
	"signal_engine/internal/modules/postgres"
	providersmod "signal_engine/internal/modules/providers"
	"signal_engine/internal/modules/sinks"
	"signal_engine/internal/modules/strategies"
	"signal_engine/internal/runner"
	"signal_engine/pkg/logger"
	"signal_engine/pkg/tracing"
)

func main() {
	zl, err := zap.NewProduction()
	if err != nil {
		log.Fatal(err)
	}
	logger.Init(zl)
	logger.SetServiceName("signal-engine")
	tracing.SetServiceName("signal-engine")

	app := fx.New(
		fx.Provide(
			func() context.Context {
				return context.Background()
			},
		),
		config.Module(),
		postgres.Module(),
		health.Module(),
		providersmod.Module(),
		sinks.Module(),
		strategies.Module(),
		runner.Module(),
		fx.Invoke(func(cfg *config.Config) error {
			if cfg.Tracing.Host == "" {
				return nil
			}
			_, _, err := tracing.InitTracer(tracing.Config{
				Host: cfg.Tracing.Host,
				Port: cfg.Tracing.Port,
			})
			return err
		}),
	)
	app.Run()
}
