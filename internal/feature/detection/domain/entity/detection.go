package entity

// Tier はフュージョン時の優先度クラスです。
type Tier string

const (
	TierBrand   Tier = "brand"
	TierProduce Tier = "produce"
	TierGeneral Tier = "general"
)

// FusedDetection はフュージョンエンジンが採用した検出です。
type FusedDetection struct {
	BBox        BBox
	Confidence  float64
	DisplayName string
	Tier        Tier
}

// MatchKind はカタログ照合がどの段階で成立したかを表します。
type MatchKind string

const (
	MatchNone       MatchKind = ""
	MatchExact      MatchKind = "exact"
	MatchNormalized MatchKind = "normalized"
	MatchFuzzy      MatchKind = "fuzzy"
)

// MatchedDetection はカタログ照合後の最終的な検出結果です。
// ProductID がnilの場合は未登録商品を表します。
type MatchedDetection struct {
	DisplayName string
	ProductID   *uint
	Confidence  float64
	BBox        BBox
	Match       MatchKind
}

// Matched はカタログ上の商品に紐付いたかどうかを返します。
func (m MatchedDetection) Matched() bool {
	return m.ProductID != nil
}
