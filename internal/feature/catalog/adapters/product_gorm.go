package adapters

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"retail_backend/internal/feature/catalog/domain/entity"
	"retail_backend/internal/feature/catalog/usecase"
)

type productGorm struct {
	db *gorm.DB
}

var _ usecase.ProductRepository = (*productGorm)(nil)

// NewProductRepository はgormを使ったProductRepositoryを生成します。
func NewProductRepository(db *gorm.DB) *productGorm {
	return &productGorm{db: db}
}

type ProductModel struct {
	ID       uint   `gorm:"primaryKey"`
	SKU      string `gorm:"size:64;not null;uniqueIndex"`
	Name     string `gorm:"size:255;not null"`
	Category string `gorm:"size:128;index"`
}

func (ProductModel) TableName() string {
	return "products"
}

func toModel(e entity.Product) ProductModel {
	return ProductModel{
		ID:       e.ID,
		SKU:      e.SKU,
		Name:     e.Name,
		Category: e.Category,
	}
}

func (r *productGorm) UpsertBatch(ctx context.Context, products []entity.Product) error {
	if len(products) == 0 {
		return nil
	}
	ms := make([]ProductModel, 0, len(products))
	for _, e := range products {
		ms = append(ms, toModel(e))
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "sku"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "category"}),
	}).Create(&ms).Error
}

func (r *productGorm) ListAll(ctx context.Context) ([]entity.Product, error) {
	var rows []ProductModel
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]entity.Product, 0, len(rows))
	for _, m := range rows {
		out = append(out, entity.Product{
			ID:       m.ID,
			SKU:      m.SKU,
			Name:     m.Name,
			Category: m.Category,
		})
	}
	return out, nil
}
