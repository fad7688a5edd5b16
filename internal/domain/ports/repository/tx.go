package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

// Tx is an opaque storage handle passed to repositories.
type Tx interface{}

var NoTX interface{}

// TransactionManager runs fn inside one storage transaction.
//
// Repositories that receive a non-nil tx lock rows they read
// (SELECT ... FOR UPDATE) and write through the same handle, so a ledger
// transition and the activation it triggers commit or roll back together.
// A nil tx means "use the pool, no locking".
//
//	tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx Tx) error {
//		t, err := transactions.FindByReference(ctx, tx, ref)
//		...
//	})
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
