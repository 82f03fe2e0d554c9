package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogentity "retail_backend/internal/feature/catalog/domain/entity"
	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/usecase"
)

func fused(name string) entity.FusedDetection {
	return entity.FusedDetection{BBox: box(1, 2, 3, 4), Confidence: 0.5, DisplayName: name, Tier: entity.TierGeneral}
}

func TestCatalogMatcher_Match(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		display   string
		catalog   []catalogentity.Product
		wantID    *uint
		wantMatch entity.MatchKind
	}{
		{
			name:    "exact match wins over normalized match",
			display: "  Coca Cola ",
			catalog: []catalogentity.Product{
				{ID: 1, Name: "cocacola"},
				{ID: 2, Name: "coca cola"},
			},
			wantID:    uintPtr(2),
			wantMatch: entity.MatchExact,
		},
		{
			name:      "normalized match ignores punctuation and spacing",
			display:   "Coca Cola",
			catalog:   []catalogentity.Product{{ID: 1, Name: "Coca-Cola"}},
			wantID:    uintPtr(1),
			wantMatch: entity.MatchNormalized,
		},
		{
			name:      "catalog name contains detection name",
			display:   "Bottle",
			catalog:   []catalogentity.Product{{ID: 1, Name: "Water Bottle"}},
			wantID:    uintPtr(1),
			wantMatch: entity.MatchFuzzy,
		},
		{
			name:      "detection name contains catalog name",
			display:   "Coca Cola Zero 1L",
			catalog:   []catalogentity.Product{{ID: 7, Name: "Coca Cola"}},
			wantID:    uintPtr(7),
			wantMatch: entity.MatchFuzzy,
		},
		{
			name:    "fuzzy ties resolve to lowest id",
			display: "Apple",
			catalog: []catalogentity.Product{
				{ID: 5, Name: "Green Apple"},
				{ID: 3, Name: "Red Apple"},
			},
			wantID:    uintPtr(3),
			wantMatch: entity.MatchFuzzy,
		},
		{
			name:    "duplicate exact names resolve to lowest id",
			display: "Fanta",
			catalog: []catalogentity.Product{
				{ID: 9, Name: "fanta"},
				{ID: 4, Name: "FANTA"},
			},
			wantID:    uintPtr(4),
			wantMatch: entity.MatchExact,
		},
		{
			name:      "no match leaves product unidentified",
			display:   "Stool",
			catalog:   []catalogentity.Product{{ID: 1, Name: "Water Bottle"}},
			wantMatch: entity.MatchNone,
		},
		{
			name:      "punctuation-only name never matches by substring",
			display:   "---",
			catalog:   []catalogentity.Product{{ID: 1, Name: "Water Bottle"}},
			wantMatch: entity.MatchNone,
		},
		{
			name:      "punctuation-only catalog entry is not a wildcard",
			display:   "Water",
			catalog:   []catalogentity.Product{{ID: 1, Name: "***"}},
			wantMatch: entity.MatchNone,
		},
		{
			name:      "empty catalog",
			display:   "Apple",
			wantMatch: entity.MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			m := usecase.NewCatalogMatcher()

			got := m.Match([]entity.FusedDetection{fused(tt.display)}, tt.catalog)

			require.Len(t, got, 1)
			assert.Equal(t, tt.wantID, got[0].ProductID)
			assert.Equal(t, tt.wantMatch, got[0].Match)
			assert.Equal(t, tt.wantID != nil, got[0].Matched())
			assert.Equal(t, tt.display, got[0].DisplayName)
			assert.Equal(t, box(1, 2, 3, 4), got[0].BBox)
			assert.Equal(t, 0.5, got[0].Confidence)
		})
	}
}

func TestCatalogMatcher_Match_IdempotentAndPure(t *testing.T) {
	t.Parallel()

	m := usecase.NewCatalogMatcher()
	catalog := []catalogentity.Product{
		{ID: 5, Name: "Green Apple"},
		{ID: 3, Name: "Red Apple"},
		{ID: 1, Name: "Water Bottle"},
	}
	snapshot := append([]catalogentity.Product(nil), catalog...)
	dets := []entity.FusedDetection{fused("Apple"), fused("Bottle"), fused("Stool")}

	first := m.Match(dets, catalog)
	second := m.Match(dets, catalog)

	assert.Equal(t, first, second)
	assert.Equal(t, snapshot, catalog, "catalog must not be reordered")
	require.Len(t, first, 3)
	assert.Equal(t, uintPtr(3), first[0].ProductID)
	assert.Equal(t, uintPtr(1), first[1].ProductID)
	assert.Nil(t, first[2].ProductID)
}

func TestCatalogMatcher_Match_Empty(t *testing.T) {
	t.Parallel()

	got := usecase.NewCatalogMatcher().Match(nil, []catalogentity.Product{{ID: 1, Name: "Apple"}})

	assert.NotNil(t, got)
	assert.Empty(t, got)
}
