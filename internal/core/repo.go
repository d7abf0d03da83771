package core

import (
	"context"

	"github.com/jackc/pgconn"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
)

// Transaction is the unit of work handed between repositories. The postgres
// repositories receive a pgx.Tx, which also satisfies Conn; the in-memory
// repositories hand out their own journal.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

type Conn interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Begin(ctx context.Context) (pgx.Tx, error)
}

type Transactional interface {
	BeginTransaction(ctx context.Context) (Transaction, error)
}

type UpdateOptions struct {
	Tx Transaction
}

type QueryOptions struct {
	ForUpdate bool
	Tx        Transaction
}

// Rollback is meant to be deferred by callers that opened a transaction; it
// only logs because the original error is what gets returned.
func Rollback(ctx context.Context, tx Transaction, err error) {
	if tx == nil {
		return
	}
	if e := tx.Rollback(ctx); e != nil {
		log.Warn().Err(e).AnErr("cause", err).Msg("failed to rollback")
	}
}
