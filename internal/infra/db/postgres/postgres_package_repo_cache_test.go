//go:build !integration

package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
)

func TestPackageRepoCacheDecorator(t *testing.T) {
	ctx := context.Background()
	pkg := &model.SubscriptionPackage{
		ID:           "pkg-family",
		Name:         "Family",
		PriceMonthly: model.NewMoney(5000, "USD"),
	}
	pkgJSON, _ := json.Marshal(pkg)

	t.Run("FindByID should return from cache on hit", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				if key != "package:pkg-family" {
					t.Errorf("unexpected cache key %q", key)
				}
				return string(pkgJSON), nil
			},
		}
		innerRepoCalled := false
		mockInnerRepo := &mockInnerPackageRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPackage, error) {
				innerRepoCalled = true
				return nil, nil
			},
		}

		decorator := NewPackageRepoCacheDecorator(mockInnerRepo, mockRedis)
		result, err := decorator.FindByID(ctx, nil, "pkg-family")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if innerRepoCalled {
			t.Error("inner repository should not be called on a cache hit")
		}
		if result == nil || result.PriceMonthly.Amount != 5000 {
			t.Errorf("did not return the cached package, got %+v", result)
		}
	})

	t.Run("FindByID should fill the cache on miss", func(t *testing.T) {
		var storedKey string
		mockRedis := &mockRedisClient{
			SetFunc: func(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
				storedKey = key
				return nil
			},
		}
		mockInnerRepo := &mockInnerPackageRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPackage, error) {
				return pkg, nil
			},
		}

		decorator := NewPackageRepoCacheDecorator(mockInnerRepo, mockRedis)
		result, err := decorator.FindByID(ctx, nil, "pkg-family")

		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if result != pkg {
			t.Error("expected the package from the inner repository")
		}
		if storedKey != "package:pkg-family" {
			t.Errorf("expected cache fill under package:pkg-family, got %q", storedKey)
		}
	})

	t.Run("FindByID inside a transaction bypasses the cache", func(t *testing.T) {
		mockRedis := &mockRedisClient{
			GetFunc: func(ctx context.Context, key string) (string, error) {
				t.Error("cache must not be read inside a transaction")
				return "", nil
			},
		}
		mockInnerRepo := &mockInnerPackageRepo{
			FindByIDFunc: func(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPackage, error) {
				return pkg, nil
			},
		}

		decorator := NewPackageRepoCacheDecorator(mockInnerRepo, mockRedis)
		var tx repository.Tx = struct{}{}
		if _, err := decorator.FindByID(ctx, tx, "pkg-family"); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("Save should invalidate the cache", func(t *testing.T) {
		var deletedKeys []string
		mockRedis := &mockRedisClient{
			DelFunc: func(ctx context.Context, keys ...string) error {
				deletedKeys = append(deletedKeys, keys...)
				return nil
			},
		}
		mockInnerRepo := &mockInnerPackageRepo{
			SaveFunc: func(ctx context.Context, tx repository.Tx, p *model.SubscriptionPackage) error {
				return nil
			},
		}

		decorator := NewPackageRepoCacheDecorator(mockInnerRepo, mockRedis)
		if err := decorator.Save(ctx, nil, pkg); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(deletedKeys) != 2 {
			t.Fatalf("expected 2 keys to be deleted, but got %d", len(deletedKeys))
		}
	})
}
