// Package usecase はcatalogフィーチャーのビジネスロジックを実装します。
package usecase

import (
	"context"
	"fmt"
	"strings"

	"retail_backend/internal/feature/catalog/domain/entity"
)

// ProductRepository は商品カタログの永続化インターフェースです。
// Goの慣例に従い、インターフェースは利用者（usecase）側で定義します。
type ProductRepository interface {
	// ListAll は全商品をID昇順で返します。
	ListAll(ctx context.Context) ([]entity.Product, error)
	// UpsertBatch はSKUをキーに商品を挿入または更新します。
	UpsertBatch(ctx context.Context, products []entity.Product) error
}

// SeedUsecase はカタログへの初期データ投入を行います。
type SeedUsecase struct {
	repo ProductRepository
}

// NewSeedUsecase はSeedUsecaseの新しいインスタンスを生成します。
func NewSeedUsecase(repo ProductRepository) *SeedUsecase {
	return &SeedUsecase{repo: repo}
}

// Seed は商品を検証・正規化してからまとめて投入し、投入件数を返します。
// 同じSKUが複数ある場合は最初の1件のみを採用します。
func (u *SeedUsecase) Seed(ctx context.Context, products []entity.Product) (int, error) {
	if len(products) == 0 {
		return 0, ErrNoProducts
	}

	seen := make(map[string]struct{}, len(products))
	batch := make([]entity.Product, 0, len(products))
	for i, p := range products {
		p.Name = strings.TrimSpace(p.Name)
		p.SKU = strings.TrimSpace(p.SKU)
		p.Category = strings.TrimSpace(p.Category)
		if p.Name == "" || p.SKU == "" {
			return 0, fmt.Errorf("product #%d: %w", i, ErrInvalidProduct)
		}
		if _, dup := seen[p.SKU]; dup {
			continue
		}
		seen[p.SKU] = struct{}{}
		batch = append(batch, p)
	}

	if err := u.repo.UpsertBatch(ctx, batch); err != nil {
		return 0, fmt.Errorf("upsert products: %w", err)
	}
	return len(batch), nil
}
