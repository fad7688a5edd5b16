package repository

import (
	"context"
	"time"

	"health-insurance-portal/internal/domain/model"
)

// -----------------------------
// Transactions (payment ledger)
// -----------------------------

// TransactionFilter narrows the admin listing. Zero values mean "any".
type TransactionFilter struct {
	UserID  string
	Status  model.TransactionStatus
	Gateway model.Gateway
	Limit   int
	Offset  int
}

type TransactionRepository interface {
	// Create inserts a new row; a duplicate reference yields domain.ErrAlreadyExists.
	Create(ctx context.Context, tx Tx, t *model.Transaction) error
	// FindByReference locks the row (FOR UPDATE) when tx is a transaction.
	FindByReference(ctx context.Context, tx Tx, reference string) (*model.Transaction, error)
	// TransitionIfPending moves a pending row to `to` and reports whether it did.
	// It is the only write path out of pending.
	TransitionIfPending(ctx context.Context, tx Tx, reference string, to model.TransactionStatus, rawStatus string, at time.Time) (bool, error)
	ListByUser(ctx context.Context, tx Tx, userID string, limit, offset int) ([]*model.Transaction, error)
	List(ctx context.Context, tx Tx, f TransactionFilter) ([]*model.Transaction, error)
	ListPendingOlderThan(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]*model.Transaction, error)
	CountByStatus(ctx context.Context, tx Tx) (map[model.TransactionStatus]int, error)
}
