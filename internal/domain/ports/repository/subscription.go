package repository

import (
	"context"

	"health-insurance-portal/internal/domain/model"
)

// SubscriptionRepository is the port for user subscriptions.
type SubscriptionRepository interface {
	Save(ctx context.Context, tx Tx, sub *model.UserSubscription) error
	// FindByID locks the row (FOR UPDATE) when tx is a transaction.
	FindByID(ctx context.Context, tx Tx, id string) (*model.UserSubscription, error)
	ListByUser(ctx context.Context, tx Tx, userID string) ([]*model.UserSubscription, error)
	CountActiveByPackage(ctx context.Context, tx Tx) (map[string]int, error)
}
