package repository

import (
	"context"

	"health-insurance-portal/internal/domain/model"
)

// PackageRepository is the port for the subscription package catalog.
type PackageRepository interface {
	Save(ctx context.Context, tx Tx, p *model.SubscriptionPackage) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.SubscriptionPackage, error)
	ListAll(ctx context.Context, tx Tx) ([]*model.SubscriptionPackage, error)
}
