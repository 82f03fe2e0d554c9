package adapters

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"retail_backend/internal/feature/catalog/domain/entity"
)

// seedFile はカタログ初期データファイルの形式です。
//
//	products:
//	  - sku: FRU-001
//	    name: Banana
//	    category: Fruit
type seedFile struct {
	Products []seedRow `yaml:"products"`
}

type seedRow struct {
	SKU      string `yaml:"sku"`
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
}

// LoadSeedFile はYAMLの初期データファイルを読み込みます。
func LoadSeedFile(path string) ([]entity.Product, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed はYAMLの初期データを商品一覧に変換します。未知のキーはエラーになります。
func ParseSeed(data []byte) ([]entity.Product, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var f seedFile
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	out := make([]entity.Product, 0, len(f.Products))
	for _, p := range f.Products {
		out = append(out, entity.Product{SKU: p.SKU, Name: p.Name, Category: p.Category})
	}
	return out, nil
}
