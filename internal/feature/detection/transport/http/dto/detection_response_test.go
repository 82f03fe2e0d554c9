package dto

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"retail_backend/internal/feature/detection/domain/entity"
)

func TestFromMatched(t *testing.T) {
	t.Parallel()

	id := uint(4)
	resp := FromMatched([]entity.MatchedDetection{
		{
			DisplayName: "Coca Cola",
			ProductID:   &id,
			Confidence:  0.87654,
			BBox:        entity.BBox{X1: 10.9, Y1: 20.2, X2: 110.99, Y2: 220.5},
			Match:       entity.MatchExact,
		},
		{
			DisplayName: "Stool",
			Confidence:  0.0516,
			BBox:        entity.BBox{X1: 0, Y1: 0, X2: 5, Y2: 5},
		},
	})

	data, err := json.Marshal(resp)
	require.NoError(t, err)

	assert.JSONEq(t, `{
		"success": true,
		"detections": [
			{"product_name": "Coca Cola", "product_exists": true, "product_id": 4, "confidence": 0.877,
			 "bbox": {"x1": 10, "y1": 20, "x2": 110, "y2": 220}},
			{"product_name": "Stool", "product_exists": false, "product_id": null, "confidence": 0.052,
			 "bbox": {"x1": 0, "y1": 0, "x2": 5, "y2": 5}}
		]
	}`, string(data))
}

func TestFromMatched_Empty(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(FromMatched(nil))
	require.NoError(t, err)

	assert.JSONEq(t, `{"success": true, "detections": []}`, string(data))
}

func TestNewErrorResponse(t *testing.T) {
	t.Parallel()

	data, err := json.Marshal(NewErrorResponse("Decode failed"))
	require.NoError(t, err)

	assert.JSONEq(t, `{"success": false, "error": "Decode failed"}`, string(data))
}
