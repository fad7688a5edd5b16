package usecase

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
)

// PackageUseCase manages the subscription package catalog.
type PackageUseCase struct {
	repo repository.PackageRepository
	log  *zerolog.Logger
}

func NewPackageUseCase(repo repository.PackageRepository, logger *zerolog.Logger) *PackageUseCase {
	return &PackageUseCase{repo: repo, log: logger}
}

// Create validates and stores a catalog entry. An empty yearly price means 12 x monthly.
func (uc *PackageUseCase) Create(ctx context.Context, name, description string, monthly, yearly model.Money) (*model.SubscriptionPackage, error) {
	p, err := model.NewSubscriptionPackage(uuid.NewString(), name, description, monthly, yearly)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.Save(ctx, nil, p); err != nil {
		return nil, err
	}
	uc.log.Info().Str("package_id", p.ID).Str("name", p.Name).Msg("package created")
	return p, nil
}

func (uc *PackageUseCase) Get(ctx context.Context, id string) (*model.SubscriptionPackage, error) {
	return uc.repo.FindByID(ctx, nil, id)
}

func (uc *PackageUseCase) List(ctx context.Context) ([]*model.SubscriptionPackage, error) {
	return uc.repo.ListAll(ctx, nil)
}
