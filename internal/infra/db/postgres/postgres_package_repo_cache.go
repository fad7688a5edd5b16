package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"health-insurance-portal/internal/domain/model"
	"health-insurance-portal/internal/domain/ports/repository"
	"health-insurance-portal/internal/infra/metrics"
	red "health-insurance-portal/internal/infra/redis"
)

var _ repository.PackageRepository = (*packageRepoCacheDecorator)(nil)

const packageListKey = "packages:all"

type packageRepoCacheDecorator struct {
	inner repository.PackageRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPackageRepoCacheDecorator(inner repository.PackageRepository, cache red.RedisClient) repository.PackageRepository {
	return &packageRepoCacheDecorator{
		inner: inner,
		cache: cache,
		ttl:   1 * time.Hour,
	}
}

func packageKey(id string) string { return fmt.Sprintf("package:%s", id) }

// Reads inside a transaction go straight to the database.
func (d *packageRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.SubscriptionPackage, error) {
	if tx != nil {
		return d.inner.FindByID(ctx, tx, id)
	}
	key := packageKey(id)
	val, err := d.cache.Get(ctx, key)
	switch {
	case err == nil:
		var p model.SubscriptionPackage
		if json.Unmarshal([]byte(val), &p) == nil {
			metrics.IncCacheRequest("package", "hit")
			return &p, nil
		}
	case !errors.Is(err, redis.Nil):
		metrics.IncCacheRequest("package", "error")
	}

	metrics.IncCacheRequest("package", "miss")
	p, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if p != nil {
		if b, err := json.Marshal(p); err == nil {
			_ = d.cache.Set(ctx, key, b, d.ttl)
		}
	}
	return p, nil
}

func (d *packageRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPackage) error {
	_ = d.cache.Del(ctx, packageKey(p.ID), packageListKey)
	return d.inner.Save(ctx, tx, p)
}

func (d *packageRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.SubscriptionPackage, error) {
	if tx != nil {
		return d.inner.ListAll(ctx, tx)
	}
	val, err := d.cache.Get(ctx, packageListKey)
	if err == nil {
		var list []*model.SubscriptionPackage
		if json.Unmarshal([]byte(val), &list) == nil {
			metrics.IncCacheRequest("package_list", "hit")
			return list, nil
		}
	}

	metrics.IncCacheRequest("package_list", "miss")
	list, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if len(list) > 0 {
		if b, err := json.Marshal(list); err == nil {
			_ = d.cache.Set(ctx, packageListKey, b, d.ttl)
		}
	}
	return list, nil
}
