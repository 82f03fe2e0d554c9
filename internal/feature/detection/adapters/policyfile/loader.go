// Package policyfile は検出ポリシーのテーブルをYAMLファイルから読み込みます。
package policyfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"retail_backend/internal/feature/detection/usecase"
)

// Load は組み込みのテーブルにYAMLファイルの内容を重ねてポリシーを構築します。
// スカラー値とリストはファイルの値で置き換え、マップ（label_mappings, class_floors）はキー単位で上書きします。
// path が空の場合は組み込みのポリシーを返します。
func Load(path string) (*usecase.Policy, error) {
	if path == "" {
		return usecase.DefaultPolicy(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("policy %s: %w", path, err)
	}
	return p, nil
}

// Parse はYAMLのバイト列からポリシーを構築します。未知のキーはエラーにします。
func Parse(data []byte) (*usecase.Policy, error) {
	tables := usecase.DefaultTables()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&tables); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode: %w", err)
	}
	return usecase.NewPolicy(tables)
}
