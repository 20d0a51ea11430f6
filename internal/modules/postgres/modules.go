package postgres

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/fx"

	"signal_engine/internal/modules/config"
	"signal_engine/pkg/db"
)

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(
			func(ctx context.Context, cfg *config.Config) (*db.PgTxManager, error) {
				pool, err := db.NewPool(ctx, db.PoolConfig{
					DSN: cfg.DB,
				})
				if err != nil {
					return nil, errors.Wrap(err, "create pool")
				}

				if err := pool.Ping(ctx); err != nil {
					return nil, err
				}

				return db.NewPgTxManager(pool), nil
			},
			func(m *db.PgTxManager) db.TxManager { return m },
		),
	)
}
