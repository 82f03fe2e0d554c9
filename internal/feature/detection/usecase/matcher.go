package usecase

import (
	"regexp"
	"sort"
	"strings"

	catalogentity "retail_backend/internal/feature/catalog/domain/entity"
	"retail_backend/internal/feature/detection/domain/entity"
)

// nonAlphanumeric は深い正規化で取り除く文字です（小文字化後に適用）。
var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]`)

// CatalogMatcher は検出の表示名をカタログ上の商品に対応付けます。
// 状態を持たないため、複数のリクエストから同時に利用できます。
type CatalogMatcher struct{}

// NewCatalogMatcher はCatalogMatcherの新しいインスタンスを生成します。
func NewCatalogMatcher() *CatalogMatcher {
	return &CatalogMatcher{}
}

// Match は完全一致、正規化一致、部分文字列一致の順に照合し、最初に成立したものを採用します。
// カタログはID昇順で評価するため、同じ入力に対しては常に同じ結果を返します。
func (m *CatalogMatcher) Match(fused []entity.FusedDetection, catalog []catalogentity.Product) []entity.MatchedDetection {
	idx := newCatalogIndex(catalog)

	out := make([]entity.MatchedDetection, 0, len(fused))
	for _, d := range fused {
		md := entity.MatchedDetection{
			DisplayName: d.DisplayName,
			Confidence:  d.Confidence,
			BBox:        d.BBox,
		}
		if p, kind := idx.lookup(d.DisplayName); p != nil {
			id := p.ID
			md.ProductID = &id
			md.Match = kind
		}
		out = append(out, md)
	}
	return out
}

type indexedProduct struct {
	product    catalogentity.Product
	normalized string
}

// catalogIndex は1リクエスト分のカタログスナップショットの検索用インデックスです。
type catalogIndex struct {
	byName       map[string]catalogentity.Product
	byNormalized map[string]catalogentity.Product
	ordered      []indexedProduct
}

func newCatalogIndex(catalog []catalogentity.Product) *catalogIndex {
	sorted := make([]catalogentity.Product, len(catalog))
	copy(sorted, catalog)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	idx := &catalogIndex{
		byName:       make(map[string]catalogentity.Product, len(sorted)),
		byNormalized: make(map[string]catalogentity.Product, len(sorted)),
		ordered:      make([]indexedProduct, 0, len(sorted)),
	}
	for _, p := range sorted {
		name := cleanName(p.Name)
		norm := normalizeName(p.Name)
		// 重複キーは最小IDを優先
		if _, ok := idx.byName[name]; !ok && name != "" {
			idx.byName[name] = p
		}
		if _, ok := idx.byNormalized[norm]; !ok && norm != "" {
			idx.byNormalized[norm] = p
		}
		if norm != "" {
			idx.ordered = append(idx.ordered, indexedProduct{product: p, normalized: norm})
		}
	}
	return idx
}

func (idx *catalogIndex) lookup(displayName string) (*catalogentity.Product, entity.MatchKind) {
	if p, ok := idx.byName[cleanName(displayName)]; ok {
		return &p, entity.MatchExact
	}

	norm := normalizeName(displayName)
	if norm == "" {
		return nil, entity.MatchNone
	}
	if p, ok := idx.byNormalized[norm]; ok {
		return &p, entity.MatchNormalized
	}
	for _, ip := range idx.ordered {
		if strings.Contains(ip.normalized, norm) || strings.Contains(norm, ip.normalized) {
			p := ip.product
			return &p, entity.MatchFuzzy
		}
	}
	return nil, entity.MatchNone
}

func cleanName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// normalizeName は英数字以外を取り除いた小文字の名前を返します（"Coca-Cola 1.5L" -> "cocacola15l"）。
func normalizeName(s string) string {
	return nonAlphanumeric.ReplaceAllString(strings.ToLower(s), "")
}
