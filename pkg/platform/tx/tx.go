package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

type shardKey struct{}

var (
	txKey    = ctxKey{}
	shardCtx = shardKey{}
)

// WithTx stores a SQL transaction in context for downstream store usage.
func WithTx(ctx context.Context, tx *sql.Tx) context.Context {
	if tx == nil {
		return ctx
	}
	return context.WithValue(ctx, txKey, tx)
}

// From extracts a SQL transaction from context if present.
func From(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey).(*sql.Tx)
	return tx, ok
}

// WithShardKey names the aggregate a transaction serializes on (usually a
// patient id). In-memory runners lock per key; SQL runners ignore it.
func WithShardKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, shardCtx, key)
}

func shardKeyFrom(ctx context.Context) string {
	key, _ := ctx.Value(shardCtx).(string)
	return key
}

// DBTX is the subset of *sql.DB and *sql.Tx that stores use.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Conn returns the transaction in ctx, or db when none is active.
func Conn(ctx context.Context, db *sql.DB) DBTX {
	if tx, ok := From(ctx); ok {
		return tx
	}
	return db
}
