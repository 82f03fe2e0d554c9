package di

import (
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	catalogadapters "retail_backend/internal/feature/catalog/adapters"
	"retail_backend/internal/feature/catalog/usecase"
	"retail_backend/internal/platform/cache"
	"retail_backend/internal/platform/config"
)

// NewProductRepository はカタログのProductRepositoryを生成します。
// Redisが利用可能な場合はキャッシュでラップし、そうでなければDBを直接参照します。
func NewProductRepository(db *gorm.DB, rdb *redis.Client, cfg config.CatalogConfig) usecase.ProductRepository {
	repo := catalogadapters.NewProductRepository(db)
	if rdb == nil {
		return repo
	}
	return cache.NewCachingProductRepository(rdb, cfg.CacheTTL, repo, cfg.CacheNamespace)
}
