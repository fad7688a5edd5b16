// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
	"health-insurance-portal/internal/infra/logging"
)

var _ SubscriptionUseCase = (*subscriptionUC)(nil)

// SubscriptionUseCase records package selections. Selections stay pending
// until a payment for them succeeds.
type SubscriptionUseCase interface {
	Select(ctx context.Context, userID, packageID, cadence string) (*model.UserSubscription, error)
	Get(ctx context.Context, userID, id string) (*model.UserSubscription, error)
	ListByUser(ctx context.Context, userID string) ([]*model.UserSubscription, error)
	CountActiveByPackage(ctx context.Context) (map[string]int, error)
}

type subscriptionUC struct {
	packages repository.PackageRepository
	subs     repository.SubscriptionRepository
	log      *zerolog.Logger
	now      func() time.Time
}

func NewSubscriptionUseCase(packages repository.PackageRepository, subs repository.SubscriptionRepository, logger *zerolog.Logger) *subscriptionUC {
	return &subscriptionUC{
		packages: packages,
		subs:     subs,
		log:      logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (uc *subscriptionUC) Select(ctx context.Context, userID, packageID, cadence string) (*model.UserSubscription, error) {
	defer logging.TraceDuration(uc.log, "SubscriptionUC.Select")()

	c, err := model.ParseCadence(cadence)
	if err != nil {
		return nil, err
	}
	pkg, err := uc.packages.FindByID(ctx, nil, packageID)
	if err != nil {
		return nil, err
	}
	if pkg == nil {
		return nil, domain.ErrNotFound
	}
	sub, err := model.NewUserSubscription(uuid.NewString(), userID, pkg, c, uc.now())
	if err != nil {
		return nil, err
	}
	if err := uc.subs.Save(ctx, nil, sub); err != nil {
		return nil, err
	}
	uc.log.Info().
		Str("subscription_id", sub.ID).
		Str("package_id", pkg.ID).
		Str("cadence", string(c)).
		Str("price", sub.Price.String()).
		Msg("subscription selected")
	return sub, nil
}

func (uc *subscriptionUC) Get(ctx context.Context, userID, id string) (*model.UserSubscription, error) {
	s, err := uc.subs.FindByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if s == nil || s.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return s, nil
}

func (uc *subscriptionUC) ListByUser(ctx context.Context, userID string) ([]*model.UserSubscription, error) {
	return uc.subs.ListByUser(ctx, nil, userID)
}

func (uc *subscriptionUC) CountActiveByPackage(ctx context.Context) (map[string]int, error) {
	return uc.subs.CountActiveByPackage(ctx, nil)
}
