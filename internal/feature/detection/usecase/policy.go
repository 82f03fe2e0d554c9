package usecase

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"retail_backend/internal/feature/detection/domain/entity"
)

// Tables は検出ポリシーのチューニング用データです。YAMLファイルで上書きできます。
type Tables struct {
	Inference     InferenceTables   `yaml:"inference"`
	General       GeneralTables     `yaml:"general"`
	Brand         BrandTables       `yaml:"brand"`
	Fusion        FusionTables      `yaml:"fusion"`
	Video         VideoTables       `yaml:"video"`
	LabelMappings map[string]string `yaml:"label_mappings"`
}

// InferenceTables は推論解像度と検出器側の閾値です。
type InferenceTables struct {
	StillSize              int     `yaml:"still_size"`
	SmallStillSize         int     `yaml:"small_still_size"`
	SmallStillMaxSide      int     `yaml:"small_still_max_side"` // 長辺がこれ未満なら小さい静止画
	VideoSize              int     `yaml:"video_size"`
	BrandConfidenceFloor   float64 `yaml:"brand_confidence_floor"`
	GeneralConfidenceFloor float64 `yaml:"general_confidence_floor"`
	IoUSuppression         float64 `yaml:"iou_suppression"`
}

// GeneralTables は汎用モデルの候補に適用するクラス別ポリシーです。
type GeneralTables struct {
	Blacklist        []string           `yaml:"blacklist"`
	ProduceClasses   []string           `yaml:"produce_classes"`
	PackagingClasses []string           `yaml:"packaging_classes"`
	ProduceFloor     float64            `yaml:"produce_floor"`
	PackagingFloor   float64            `yaml:"packaging_floor"`
	StandardFloor    float64            `yaml:"standard_floor"`
	ClassFloors      map[string]float64 `yaml:"class_floors"`
}

// BrandTables はブランドモデルの候補に適用するポリシーです。
type BrandTables struct {
	Floor       float64         `yaml:"floor"`
	NoisyBrands []string        `yaml:"noisy_brands"`
	NoisyFloor  float64         `yaml:"noisy_floor"`
	Overrides   []BrandOverride `yaml:"overrides"`
}

// BrandOverride はクラス名に Contains を含むブランドの表示名を固定します。先頭から評価されます。
type BrandOverride struct {
	Contains    string `yaml:"contains"`
	DisplayName string `yaml:"display_name"`
}

// FusionTables はティア間の重複抑制の閾値です。
type FusionTables struct {
	BrandOverlapIoU   float64 `yaml:"brand_overlap_iou"`
	ProduceOverlapIoU float64 `yaml:"produce_overlap_iou"`
	GeneralOverlapIoU float64 `yaml:"general_overlap_iou"`
	GeneralFloor      float64 `yaml:"general_floor"`
}

// VideoTables は動画のサンプリングとフレーム間重複排除の設定です。
type VideoTables struct {
	MaxSamples         int     `yaml:"max_samples"`
	SampleEverySeconds float64 `yaml:"sample_every_seconds"`
	SameNameIoU        float64 `yaml:"same_name_iou"`
	CrossNameIoU       float64 `yaml:"cross_name_iou"`
}

// DefaultTables は組み込みのポリシーを返します。呼び出しごとに新しいマップを生成します。
func DefaultTables() Tables {
	return Tables{
		Inference: InferenceTables{
			StillSize:              1024,
			SmallStillSize:         640,
			SmallStillMaxSide:      400,
			VideoSize:              1280,
			BrandConfidenceFloor:   0.01,
			GeneralConfidenceFloor: 0.002,
			IoUSuppression:         0.85,
		},
		General: GeneralTables{
			Blacklist: []string{
				"pizza", "clock", "zebra", "giraffe", "elephant", "hot dog",
				"sandwich", "toilet", "refrigerator", "dog", "cat", "horse",
			},
			ProduceClasses: []string{
				"apple", "orange", "banana", "broccoli", "carrot", "tomato",
				"potato", "pear", "lemon", "pepper", "cucumber", "sports ball",
			},
			PackagingClasses: []string{"suitcase", "handbag", "book", "backpack"},
			ProduceFloor:     0.10,
			PackagingFloor:   0.05,
			StandardFloor:    0.08,
			ClassFloors:      map[string]float64{"banana": 0.25},
		},
		Brand: BrandTables{
			Floor:       0.15,
			NoisyBrands: []string{"amour", "chocapic", "selecto", "wafa", "dziriya"},
			NoisyFloor:  0.35,
			Overrides: []BrandOverride{
				{Contains: "coca", DisplayName: "Coca Cola"},
				{Contains: "fanta", DisplayName: "Fanta"},
				{Contains: "nestle", DisplayName: "Nestle"},
				{Contains: "nescafe", DisplayName: "Nescafe"},
				{Contains: "ricamar", DisplayName: "Ricamar"},
			},
		},
		Fusion: FusionTables{
			BrandOverlapIoU:   0.4,
			ProduceOverlapIoU: 0.65,
			GeneralOverlapIoU: 0.5,
			GeneralFloor:      0.05,
		},
		Video: VideoTables{
			MaxSamples:         50,
			SampleEverySeconds: 1.5,
			SameNameIoU:        0.45,
			CrossNameIoU:       0.75,
		},
		LabelMappings: map[string]string{
			"apple":        "Apple",
			"orange":       "Orange",
			"banana":       "Banana",
			"broccoli":     "Broccoli",
			"carrot":       "Carrot",
			"tomato":       "Tomato",
			"potato":       "Potato",
			"pear":         "Pear",
			"lemon":        "Lemon",
			"pepper":       "Bell Pepper",
			"cucumber":     "Cucumber",
			"sports ball":  "Fresh Produce",
			"bowl":         "Produce Container",
			"cup":          "Coffee Cup",
			"tv":           "Packaged Goods",
			"book":         "Packaged Food",
			"suitcase":     "Packaged Goods",
			"handbag":      "Dairy Carton",
			"backpack":     "Packaged Inventory",
			"chair":        "Stool",
			"potted plant": "Store Item",
		},
	}
}

// Policy は起動時に一度だけ構築される読み取り専用の検出ポリシーです。
// 複数のリクエストから同時に参照できます。
type Policy struct {
	tables      Tables
	blacklist   map[string]struct{}
	produce     map[string]struct{}
	packaging   map[string]struct{}
	noisyBrands map[string]struct{}
	classFloors map[string]float64
	labels      map[string]string
	overrides   []BrandOverride
}

// NewPolicy はテーブルを検証し、検索用のインデックスを構築します。
func NewPolicy(t Tables) (*Policy, error) {
	if err := validateTables(t); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	p := &Policy{
		tables:      t,
		blacklist:   toSet(t.General.Blacklist),
		produce:     toSet(t.General.ProduceClasses),
		packaging:   toSet(t.General.PackagingClasses),
		noisyBrands: toSet(t.Brand.NoisyBrands),
		classFloors: make(map[string]float64, len(t.General.ClassFloors)),
		labels:      make(map[string]string, len(t.LabelMappings)),
		overrides:   make([]BrandOverride, 0, len(t.Brand.Overrides)),
	}
	for k, v := range t.General.ClassFloors {
		p.classFloors[normalizeClass(k)] = v
	}
	for k, v := range t.LabelMappings {
		p.labels[normalizeClass(k)] = v
	}
	for _, o := range t.Brand.Overrides {
		p.overrides = append(p.overrides, BrandOverride{
			Contains:    normalizeClass(o.Contains),
			DisplayName: o.DisplayName,
		})
	}
	return p, nil
}

// DefaultPolicy は組み込みテーブルから構築したポリシーを返します。
// 組み込みテーブルが不正な場合はpanicします。
func DefaultPolicy() *Policy {
	p, err := NewPolicy(DefaultTables())
	if err != nil {
		panic(err)
	}
	return p
}

// InferenceSize は入力の種類と大きさから推論解像度を決定します。
func (p *Policy) InferenceSize(isVideo bool, width, height int) int {
	it := p.tables.Inference
	switch {
	case isVideo:
		return it.VideoSize
	case max(width, height) < it.SmallStillMaxSide:
		return it.SmallStillSize
	default:
		return it.StillSize
	}
}

// BrandParams はブランドモデルの推論パラメータを返します。
func (p *Policy) BrandParams(size int) entity.DetectParams {
	return entity.DetectParams{
		ConfidenceFloor: p.tables.Inference.BrandConfidenceFloor,
		IoUSuppression:  p.tables.Inference.IoUSuppression,
		InferenceSize:   size,
	}
}

// GeneralParams は汎用モデルの推論パラメータを返します。
func (p *Policy) GeneralParams(size int) entity.DetectParams {
	return entity.DetectParams{
		ConfidenceFloor: p.tables.Inference.GeneralConfidenceFloor,
		IoUSuppression:  p.tables.Inference.IoUSuppression,
		InferenceSize:   size,
	}
}

// IsBlacklisted は小売画像で誤検出が多いクラスかどうかを返します。
func (p *Policy) IsBlacklisted(class string) bool {
	_, ok := p.blacklist[class]
	return ok
}

// IsProduce は青果クラスかどうかを返します。
func (p *Policy) IsProduce(class string) bool {
	_, ok := p.produce[class]
	return ok
}

// GeneralFloor は汎用モデルの候補に適用するクラス別の信頼度下限を返します。
func (p *Policy) GeneralFloor(class string) float64 {
	if f, ok := p.classFloors[class]; ok {
		return f
	}
	if p.IsProduce(class) {
		return p.tables.General.ProduceFloor
	}
	if _, ok := p.packaging[class]; ok {
		return p.tables.General.PackagingFloor
	}
	return p.tables.General.StandardFloor
}

// BrandFloor はブランドティアで採用するための信頼度下限を返します（この値を超える必要があります）。
func (p *Policy) BrandFloor(class string) float64 {
	if _, ok := p.noisyBrands[class]; ok {
		return p.tables.Brand.NoisyFloor
	}
	return p.tables.Brand.Floor
}

// BrandDisplayName はブランドクラスの表示名を返します。
func (p *Policy) BrandDisplayName(class string) string {
	for _, o := range p.overrides {
		if o.Contains != "" && strings.Contains(class, o.Contains) {
			return o.DisplayName
		}
	}
	return titleCase(class)
}

// DisplayName は汎用クラスの表示名を返します。辞書にない場合はタイトルケースにします。
func (p *Policy) DisplayName(class string) string {
	if name, ok := p.labels[class]; ok {
		return name
	}
	return titleCase(class)
}

// Fusion はフュージョンの閾値を返します。
func (p *Policy) Fusion() FusionTables {
	return p.tables.Fusion
}

// Video は動画処理の設定を返します。
func (p *Policy) Video() VideoTables {
	return p.tables.Video
}

func validateTables(t Tables) error {
	it := t.Inference
	if it.StillSize <= 0 || it.SmallStillSize <= 0 || it.VideoSize <= 0 {
		return fmt.Errorf("inference sizes must be positive")
	}
	if t.Video.MaxSamples <= 0 {
		return fmt.Errorf("video.max_samples must be positive, got %d", t.Video.MaxSamples)
	}
	if t.Video.SampleEverySeconds <= 0 {
		return fmt.Errorf("video.sample_every_seconds must be positive, got %v", t.Video.SampleEverySeconds)
	}

	ratios := map[string]float64{
		"inference.brand_confidence_floor":   it.BrandConfidenceFloor,
		"inference.general_confidence_floor": it.GeneralConfidenceFloor,
		"inference.iou_suppression":          it.IoUSuppression,
		"general.produce_floor":              t.General.ProduceFloor,
		"general.packaging_floor":            t.General.PackagingFloor,
		"general.standard_floor":             t.General.StandardFloor,
		"brand.floor":                        t.Brand.Floor,
		"brand.noisy_floor":                  t.Brand.NoisyFloor,
		"fusion.brand_overlap_iou":           t.Fusion.BrandOverlapIoU,
		"fusion.produce_overlap_iou":         t.Fusion.ProduceOverlapIoU,
		"fusion.general_overlap_iou":         t.Fusion.GeneralOverlapIoU,
		"fusion.general_floor":               t.Fusion.GeneralFloor,
		"video.same_name_iou":                t.Video.SameNameIoU,
		"video.cross_name_iou":               t.Video.CrossNameIoU,
	}
	if err := checkKeyCollisions("general.class_floors", t.General.ClassFloors); err != nil {
		return err
	}
	if err := checkKeyCollisions("label_mappings", t.LabelMappings); err != nil {
		return err
	}
	for class, f := range t.General.ClassFloors {
		ratios["general.class_floors."+class] = f
	}
	for name, v := range ratios {
		if v < 0 || v > 1 {
			return fmt.Errorf("%s must be within [0,1], got %v", name, v)
		}
	}
	return nil
}

// checkKeyCollisions は正規化（小文字化・トリム）後に同じになるキーを拒否します。
func checkKeyCollisions[V any](field string, m map[string]V) error {
	seen := make(map[string]string, len(m))
	for _, k := range slices.Sorted(maps.Keys(m)) {
		n := normalizeClass(k)
		if prev, ok := seen[n]; ok {
			return fmt.Errorf("%s: keys %q and %q both normalize to %q", field, prev, k, n)
		}
		seen[n] = k
	}
	return nil
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, it := range items {
		set[normalizeClass(it)] = struct{}{}
	}
	return set
}

// normalizeClass はクラス名を比較用に小文字化・トリムします。
func normalizeClass(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// titleCase は文字以外（空白、"_"、"'"、数字など）の直後を単語の先頭とみなして大文字にします。
// "sports ball" -> "Sports Ball"、"dziriya_lait" -> "Dziriya_Lait"、"o'reilly" -> "O'Reilly"。
// cases.Caserはゴルーチン間で共有できないため呼び出しごとに生成します。
func titleCase(s string) string {
	caser := cases.Title(language.Und)

	var b strings.Builder
	b.Grow(len(s))
	start := -1
	for i, r := range s {
		switch {
		case unicode.IsLetter(r):
			if start < 0 {
				start = i
			}
		default:
			if start >= 0 {
				b.WriteString(caser.String(s[start:i]))
				start = -1
			}
			b.WriteRune(r)
		}
	}
	if start >= 0 {
		b.WriteString(caser.String(s[start:]))
	}
	return b.String()
}
