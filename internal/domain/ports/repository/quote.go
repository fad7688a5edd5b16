package repository

import (
	"context"
	"time"

	"health-insurance-portal/internal/domain/model"
)

type QuoteRepository interface {
	Save(ctx context.Context, tx Tx, q *model.Quote) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Quote, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.Quote, error)
	// MarkPaidIfUnpaid flips is_paid once; false means it was already paid.
	MarkPaidIfUnpaid(ctx context.Context, tx Tx, id, reference string, at time.Time) (bool, error)
}
