package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Transactor implements ports.DBTransactor using pgxpool.Pool.
type Transactor struct {
	pool Pool
}

// NewTransactor creates a new Transactor wrapping the connection pool.
func NewTransactor(pool Pool) *Transactor {
	return &Transactor{pool: pool}
}

// Begin starts a new database transaction. Commit failures caused by
// serialization or deadlock are reported as ports.ErrConflict.
func (t *Transactor) Begin(ctx context.Context) (pgx.Tx, error) {
	tx, err := t.pool.Begin(ctx)
	if err != nil {
		return nil, classify(err)
	}
	return &classifyingTx{Tx: tx}, nil
}

type classifyingTx struct {
	pgx.Tx
}

func (t *classifyingTx) Commit(ctx context.Context) error {
	return classify(t.Tx.Commit(ctx))
}
