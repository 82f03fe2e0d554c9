package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/usecase"
)

func brandCand(class string, conf float64, b entity.BBox) entity.RawCandidate {
	return entity.RawCandidate{BBox: b, Confidence: conf, ClassName: class, Source: entity.SourceBrand}
}

func generalCand(class string, conf float64, b entity.BBox, produce bool) entity.RawCandidate {
	return entity.RawCandidate{BBox: b, Confidence: conf, ClassName: class, Source: entity.SourceGeneral, IsProduce: produce}
}

func TestFusionEngine_Fuse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		brand   []entity.RawCandidate
		general []entity.RawCandidate
		want    []entity.FusedDetection
	}{
		{
			name: "empty input",
			want: []entity.FusedDetection{},
		},
		{
			name: "brand floors and display names",
			brand: []entity.RawCandidate{
				brandCand("amour", 0.30, box(0, 0, 10, 10)),          // noisy brand below 0.35
				brandCand("amour", 0.40, box(0, 0, 10, 10)),          // noisy brand accepted
				brandCand("sprite", 0.15, box(20, 0, 30, 10)),        // floor is exclusive
				brandCand("sprite", 0.16, box(20, 0, 30, 10)),        // overlapping brands both kept
				brandCand("coca cola 1l", 0.50, box(20, 0, 30, 10)),  // canonicalised
				brandCand("nescafe classic", 0.9, box(50, 0, 60, 10)),
			},
			want: []entity.FusedDetection{
				{BBox: box(0, 0, 10, 10), Confidence: 0.40, DisplayName: "Amour", Tier: entity.TierBrand},
				{BBox: box(20, 0, 30, 10), Confidence: 0.16, DisplayName: "Sprite", Tier: entity.TierBrand},
				{BBox: box(20, 0, 30, 10), Confidence: 0.50, DisplayName: "Coca Cola", Tier: entity.TierBrand},
				{BBox: box(50, 0, 60, 10), Confidence: 0.9, DisplayName: "Nescafe", Tier: entity.TierBrand},
			},
		},
		{
			name: "produce intra-tier dedup keeps first accepted",
			general: []entity.RawCandidate{
				generalCand("apple", 0.9, box(0, 0, 100, 100), true),
				generalCand("apple", 0.3, box(1, 1, 100, 100), true),
			},
			want: []entity.FusedDetection{
				{BBox: box(0, 0, 100, 100), Confidence: 0.9, DisplayName: "Apple", Tier: entity.TierProduce},
			},
		},
		{
			name:  "general candidate inside brand box is suppressed regardless of confidence",
			brand: []entity.RawCandidate{brandCand("selecto", 0.36, box(0, 0, 100, 100))},
			general: []entity.RawCandidate{
				generalCand("bottle", 0.99, box(10, 10, 90, 90), false),
			},
			want: []entity.FusedDetection{
				{BBox: box(0, 0, 100, 100), Confidence: 0.36, DisplayName: "Selecto", Tier: entity.TierBrand},
			},
		},
		{
			name:  "produce yields to brand of equal confidence",
			brand: []entity.RawCandidate{brandCand("wafa", 0.5, box(0, 0, 100, 100))},
			general: []entity.RawCandidate{
				generalCand("orange", 0.5, box(0, 0, 100, 90), true),
			},
			want: []entity.FusedDetection{
				{BBox: box(0, 0, 100, 100), Confidence: 0.5, DisplayName: "Wafa", Tier: entity.TierBrand},
			},
		},
		{
			name:  "higher confidence produce coexists with overlapping brand",
			brand: []entity.RawCandidate{brandCand("dole", 0.2, box(0, 0, 100, 100))},
			general: []entity.RawCandidate{
				generalCand("banana", 0.8, box(0, 0, 100, 90), true),
			},
			want: []entity.FusedDetection{
				{BBox: box(0, 0, 100, 100), Confidence: 0.2, DisplayName: "Dole", Tier: entity.TierBrand},
				{BBox: box(0, 0, 100, 90), Confidence: 0.8, DisplayName: "Banana", Tier: entity.TierProduce},
			},
		},
		{
			name:  "produce skipped by brand falls through to general tier",
			brand: []entity.RawCandidate{brandCand("dole", 0.6, box(0, 0, 100, 100))},
			general: []entity.RawCandidate{
				generalCand("pepper", 0.3, box(0, 0, 100, 45), true), // IoU 0.45 with brand
			},
			want: []entity.FusedDetection{
				{BBox: box(0, 0, 100, 100), Confidence: 0.6, DisplayName: "Dole", Tier: entity.TierBrand},
				{BBox: box(0, 0, 100, 45), Confidence: 0.3, DisplayName: "Bell Pepper", Tier: entity.TierGeneral},
			},
		},
		{
			name: "general tier prefers higher confidence and applies exclusive floor",
			general: []entity.RawCandidate{
				generalCand("bottle", 0.3, box(0, 0, 100, 100), false),
				generalCand("cup", 0.6, box(5, 0, 105, 100), false),
				generalCand("vase", 0.05, box(300, 300, 310, 310), false),
				generalCand("chair", 0.051, box(500, 500, 510, 510), false),
			},
			want: []entity.FusedDetection{
				{BBox: box(5, 0, 105, 100), Confidence: 0.6, DisplayName: "Coffee Cup", Tier: entity.TierGeneral},
				{BBox: box(500, 500, 510, 510), Confidence: 0.051, DisplayName: "Stool", Tier: entity.TierGeneral},
			},
		},
		{
			name:  "tiers are emitted in priority order",
			brand: []entity.RawCandidate{brandCand("fanta can", 0.2, box(200, 0, 300, 100))},
			general: []entity.RawCandidate{
				generalCand("water bottle", 0.9, box(0, 200, 100, 300), false),
				generalCand("lemon", 0.4, box(0, 0, 100, 100), true),
			},
			want: []entity.FusedDetection{
				{BBox: box(200, 0, 300, 100), Confidence: 0.2, DisplayName: "Fanta", Tier: entity.TierBrand},
				{BBox: box(0, 0, 100, 100), Confidence: 0.4, DisplayName: "Lemon", Tier: entity.TierProduce},
				{BBox: box(0, 200, 100, 300), Confidence: 0.9, DisplayName: "Water Bottle", Tier: entity.TierGeneral},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			e := usecase.NewFusionEngine(usecase.DefaultPolicy())

			got := e.Fuse(tt.brand, tt.general)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFusionEngine_Fuse_BrandTierIsPermutationInvariant(t *testing.T) {
	t.Parallel()

	e := usecase.NewFusionEngine(usecase.DefaultPolicy())
	brand := []entity.RawCandidate{
		brandCand("fanta", 0.9, box(0, 0, 10, 10)),
		brandCand("sprite", 0.2, box(0, 0, 10, 10)),
		brandCand("chocapic", 0.3, box(5, 5, 15, 15)),
		brandCand("selecto", 0.4, box(5, 5, 15, 15)),
	}
	reversed := []entity.RawCandidate{brand[3], brand[2], brand[1], brand[0]}
	rotated := []entity.RawCandidate{brand[2], brand[0], brand[3], brand[1]}

	want := e.Fuse(brand, nil)
	require.Len(t, want, 3)
	assert.ElementsMatch(t, want, e.Fuse(reversed, nil))
	assert.ElementsMatch(t, want, e.Fuse(rotated, nil))
}

func TestFusionEngine_Fuse_Deterministic(t *testing.T) {
	t.Parallel()

	e := usecase.NewFusionEngine(usecase.DefaultPolicy())
	general := []entity.RawCandidate{
		generalCand("bottle", 0.5, box(0, 0, 10, 10), false),
		generalCand("cup", 0.5, box(0, 0, 10, 10), false),
		generalCand("apple", 0.4, box(20, 20, 30, 30), true),
	}

	first := e.Fuse(nil, general)
	for range 5 {
		assert.Equal(t, first, e.Fuse(nil, general))
	}
	require.Len(t, first, 2)
	assert.Equal(t, "Bottle", first[1].DisplayName, "stable sort keeps input order on ties")
}
