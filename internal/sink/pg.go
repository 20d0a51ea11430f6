package sink

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"

	"signal_engine/internal/models"
	"signal_engine/pkg/db"
)

const insertSignalSQL = `
INSERT INTO signals (id, strategy, symbol, direction, payload, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`

// PgSink writes every emitted signal to the audit table.
type PgSink struct {
	tx db.TxManager
}

func NewPgSink(tx db.TxManager) *PgSink {
	return &PgSink{tx: tx}
}

func (s *PgSink) Publish(ctx context.Context, sig models.Signal) error {
	payload, err := sig.Encode()
	if err != nil {
		return errors.Wrap(err, "pg sink: encode")
	}
	return s.tx.RunMaster(ctx, func(ctxTx context.Context, tx pgx.Tx) error {
		_, err := tx.Exec(ctxTx, insertSignalSQL,
			sig.ID, sig.Strategy, sig.Symbol, string(sig.Direction), payload, sig.CreatedAt)
		return errors.Wrap(err, "pg sink: insert")
	})
}
