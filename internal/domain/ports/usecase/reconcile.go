package usecase

import (
	"context"
	"time"

	"health-insurance-portal/internal/domain/model"
)

// Reverifier re-checks a pending reference against its gateway.
type Reverifier interface {
	Reverify(ctx context.Context, reference string) (*model.Transaction, error)
}

// PendingLister lists ledger rows that have stayed pending for too long.
type PendingLister interface {
	ListStalePending(ctx context.Context, olderThan time.Duration, limit int) ([]*model.Transaction, error)
}
