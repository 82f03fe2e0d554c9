// Package labels はモデルのクラスIDとクラス名の対応表を管理します。
package labels

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Registry はクラスIDとクラス名の双方向の対応表です。複数のゴルーチンから安全に利用できます。
type Registry struct {
	mu    sync.RWMutex
	names []string
	ids   map[string]int
}

// NewRegistry は与えられた順序でIDを割り当てたRegistryを生成します。
func NewRegistry(names ...string) *Registry {
	r := &Registry{ids: make(map[string]int, len(names))}
	for _, n := range names {
		r.add(n)
	}
	return r
}

// LoadFile はラベルファイルを読み込みます。
// .yaml/.yml はultralyticsのデータセット定義（names: のリストまたはマップ）、
// それ以外は1行1クラスのテキストとして扱います。空行と # で始まる行は無視します。
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read labels %s: %w", path, err)
	}

	var names []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		names, err = parseYAML(data)
		if err != nil {
			return nil, fmt.Errorf("parse labels %s: %w", path, err)
		}
	default:
		names = parseLines(data)
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("labels %s: no class names", path)
	}
	return NewRegistry(names...), nil
}

func parseLines(data []byte) []string {
	var names []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	return names
}

func parseYAML(data []byte) ([]string, error) {
	var doc struct {
		Names yaml.Node `yaml:"names"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}

	switch doc.Names.Kind {
	case yaml.SequenceNode:
		var list []string
		if err := doc.Names.Decode(&list); err != nil {
			return nil, err
		}
		return list, nil
	case yaml.MappingNode:
		var m map[int]string
		if err := doc.Names.Decode(&m); err != nil {
			return nil, err
		}
		ids := make([]int, 0, len(m))
		for id := range m {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		names := make([]string, 0, len(ids))
		for i, id := range ids {
			if id != i {
				return nil, fmt.Errorf("class ids must be contiguous from 0, got %d at position %d", id, i)
			}
			names = append(names, m[id])
		}
		return names, nil
	case 0:
		return nil, fmt.Errorf("missing names key")
	default:
		return nil, fmt.Errorf("names must be a list or a mapping")
	}
}

// Name はクラスIDに対応する名前を返します。範囲外の場合は空文字列です。
func (r *Registry) Name(id int) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id < 0 || id >= len(r.names) {
		return ""
	}
	return r.names[id]
}

// ID はクラス名に対応するIDを返します。未登録の名前は末尾に追加して新しいIDを割り当てます。
func (r *Registry) ID(name string) int {
	r.mu.RLock()
	id, ok := r.ids[name]
	r.mu.RUnlock()
	if ok {
		return id
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	return r.add(name)
}

// Len は登録済みのクラス数を返します。
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// add は r.mu を保持した状態で呼び出します。
func (r *Registry) add(name string) int {
	if id, ok := r.ids[name]; ok {
		return id
	}
	id := len(r.names)
	r.names = append(r.names, name)
	r.ids[name] = id
	return id
}
