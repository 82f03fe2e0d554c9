package entity

// Source は候補を出力した検出モデルを表します。
type Source string

const (
	// SourceBrand はブランド（カスタム）検出モデルです。
	SourceBrand Source = "brand_model"
	// SourceGeneral は汎用検出モデルです。
	SourceGeneral Source = "general_model"
)

// DetectParams は検出モデル1回分の推論パラメータです。
type DetectParams struct {
	ConfidenceFloor float64 // これ未満の信頼度は検出器側で捨てられる
	IoUSuppression  float64 // 検出器内部のNMS閾値
	InferenceSize   int     // 推論解像度（正方形の一辺, px）
}

// RawDetection は検出モデルが返す生の検出結果です。
type RawDetection struct {
	BBox       BBox
	Confidence float64
	ClassID    int
}

// RawCandidate はフュージョン前の未確定の検出候補です。
type RawCandidate struct {
	BBox       BBox
	Confidence float64
	ClassName  string // 小文字化済み
	Source     Source
	IsProduce  bool
}

// CandidateSet は1フレーム分の候補をモデルごとにまとめたものです。
type CandidateSet struct {
	Brand   []RawCandidate
	General []RawCandidate
}
