// Package cache provides caching implementations for repository interfaces.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"retail_backend/internal/feature/catalog/domain/entity"
	"retail_backend/internal/feature/catalog/usecase"
)

// CachingProductRepository decorates a ProductRepository with Redis caching.
// The full catalog snapshot is cached under a single key and dropped whenever
// the catalog is written.
type CachingProductRepository struct {
	inner     usecase.ProductRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.ProductRepository = (*CachingProductRepository)(nil)

// NewCachingProductRepository decorates a ProductRepository with Redis caching.
// If ttl is 0, it defaults to 1 minute. If namespace is empty, it uses "catalog".
func NewCachingProductRepository(rdb *redis.Client, ttl time.Duration, inner usecase.ProductRepository, namespace string) *CachingProductRepository {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if namespace == "" {
		namespace = "catalog"
	}
	return &CachingProductRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// UpsertBatch writes products and invalidates every cached snapshot.
func (c *CachingProductRepository) UpsertBatch(ctx context.Context, products []entity.Product) error {
	if err := c.inner.UpsertBatch(ctx, products); err != nil {
		return err
	}
	if c.rdb == nil || len(products) == 0 {
		return nil
	}
	_ = c.deleteByPattern(ctx, c.keyPrefix()+"*") // best effort
	return nil
}

// ListAll returns the catalog snapshot, checking cache first then falling back to the database.
func (c *CachingProductRepository) ListAll(ctx context.Context) ([]entity.Product, error) {
	if c.rdb == nil {
		return c.inner.ListAll(ctx)
	}

	key := c.snapshotKey()

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.Product
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

func (c *CachingProductRepository) keyPrefix() string {
	return safe(c.namespace) + ":"
}

func (c *CachingProductRepository) snapshotKey() string {
	return fmt.Sprintf("%sall", c.keyPrefix())
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingProductRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

// safe escapes characters that are problematic for Redis keys.
func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}
