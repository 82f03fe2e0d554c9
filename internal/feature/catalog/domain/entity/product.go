// Package entity はcatalogフィーチャーのドメインモデルを定義します。
package entity

// Product はカタログに登録された商品です。
type Product struct {
	ID       uint   `json:"id"`
	SKU      string `json:"sku"`
	Name     string `json:"name"`
	Category string `json:"category"`
}
