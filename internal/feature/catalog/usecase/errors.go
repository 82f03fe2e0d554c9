package usecase

import "errors"

var (
	// ErrInvalidProduct は商品名またはSKUが空の場合に返されます。
	ErrInvalidProduct = errors.New("product name and sku are required")
	// ErrNoProducts はシード対象が1件もない場合に返されます。
	ErrNoProducts = errors.New("no products to seed")
)
