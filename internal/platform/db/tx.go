package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// WithTx begins a transaction on the tenant-scoped connection and returns a
// derived context carrying it. Repositories pick the transaction up via
// TxFromContext, so a business mutation and its audit entry share one commit.
func WithTx(ctx context.Context) (context.Context, pgx.Tx, error) {
	conn := ConnFromContext(ctx)
	if conn == nil {
		return ctx, nil, fmt.Errorf("no tenant connection in context")
	}

	tx, err := conn.Begin(ctx)
	if err != nil {
		return ctx, nil, fmt.Errorf("begin transaction: %w", err)
	}

	return context.WithValue(ctx, TxKey, tx), tx, nil
}

// TxFromContext retrieves the active transaction from context, or nil.
func TxFromContext(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(TxKey).(pgx.Tx)
	return tx
}

// InTx runs fn inside a transaction on the tenant-scoped connection. The
// transaction is rolled back if fn returns an error, committed otherwise.
// An already-open transaction is joined. Callers without a tenant connection
// (CLI maintenance paths) run fn directly; request-scoped calls always carry
// a connection from TenantMiddleware.
func InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if TxFromContext(ctx) != nil {
		return fn(ctx)
	}
	if ConnFromContext(ctx) == nil {
		return fn(ctx)
	}

	txCtx, tx, err := WithTx(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	if err := fn(txCtx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
