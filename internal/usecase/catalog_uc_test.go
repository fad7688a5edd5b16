//go:build !integration

package usecase_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/usecase"
)

func TestQuoteUseCase(t *testing.T) {
	ctx := context.Background()
	repo := NewMockQuoteRepo()
	uc := usecase.NewQuoteUseCase(repo, "USD", newTestLogger())

	t.Run("create prices from the plan table", func(t *testing.T) {
		q, err := uc.Create(ctx, "user-1", "platinum")
		require.NoError(t, err)
		assert.Equal(t, model.PlanPlatinum, q.Plan)
		assert.Equal(t, model.NewMoney(40000, "USD"), q.Price)
		assert.False(t, q.IsPaid)

		got, err := uc.Get(ctx, "user-1", q.ID)
		require.NoError(t, err)
		assert.Equal(t, q.ID, got.ID)
	})

	t.Run("unknown plan is a validation error", func(t *testing.T) {
		_, err := uc.Create(ctx, "user-1", "Diamond")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("other users cannot read the quote", func(t *testing.T) {
		q, err := uc.Create(ctx, "user-1", "Ruby")
		require.NoError(t, err)
		_, err = uc.Get(ctx, "user-2", q.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("list by user", func(t *testing.T) {
		_, err := uc.Create(ctx, "user-3", "Bronze")
		require.NoError(t, err)
		list, err := uc.ListByUser(ctx, "user-3")
		require.NoError(t, err)
		assert.Len(t, list, 1)
	})
}

func TestSubscriptionUseCase_Select(t *testing.T) {
	ctx := context.Background()
	packages := NewMockPackageRepo()
	subs := NewMockSubscriptionRepo()
	uc := usecase.NewSubscriptionUseCase(packages, subs, newTestLogger())

	pkg, err := model.NewSubscriptionPackage("pkg-1", "Family", "Four members", model.NewMoney(5000, "USD"), model.NewMoney(50000, "USD"))
	require.NoError(t, err)
	require.NoError(t, packages.Save(ctx, nil, pkg))

	t.Run("yearly applies the discount to the yearly list price", func(t *testing.T) {
		sub, err := uc.Select(ctx, "user-1", "pkg-1", "YEARLY")
		require.NoError(t, err)
		assert.Equal(t, model.SubscriptionStatusPending, sub.Status)
		assert.Equal(t, int64(40000), sub.Price.Amount)
		assert.Equal(t, model.CadenceYearly, sub.Cadence)
	})

	t.Run("monthly charges the monthly price", func(t *testing.T) {
		sub, err := uc.Select(ctx, "user-1", "pkg-1", "monthly")
		require.NoError(t, err)
		assert.Equal(t, int64(5000), sub.Price.Amount)

		_, err = uc.Get(ctx, "user-2", sub.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("bad cadence", func(t *testing.T) {
		_, err := uc.Select(ctx, "user-1", "pkg-1", "weekly")
		assert.ErrorIs(t, err, domain.ErrInvalidArgument)
	})

	t.Run("missing package", func(t *testing.T) {
		_, err := uc.Select(ctx, "user-1", "pkg-404", "monthly")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("pending selections are not counted as active", func(t *testing.T) {
		counts, err := uc.CountActiveByPackage(ctx)
		require.NoError(t, err)
		assert.Zero(t, counts["pkg-1"])
	})
}

func TestPackageUseCase(t *testing.T) {
	ctx := context.Background()
	uc := usecase.NewPackageUseCase(NewMockPackageRepo(), newTestLogger())

	p, err := uc.Create(ctx, "Solo", "One member", model.NewMoney(2000, "USD"), model.Money{})
	require.NoError(t, err)
	assert.Equal(t, int64(24000), p.YearlyListPrice().Amount)

	_, err = uc.Create(ctx, "Bad", "", model.NewMoney(2000, "USD"), model.NewMoney(20000, "NGN"))
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	got, err := uc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Solo", got.Name)

	all, err := uc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
