package usecase

import "retail_backend/internal/feature/detection/domain/entity"

// IoU は2つの軸平行ボックスのIntersection over Unionを返します。
// 和集合の面積が0以下の場合は0を返します。
func IoU(a, b entity.BBox) float64 {
	inter := entity.BBox{
		X1: max(a.X1, b.X1),
		Y1: max(a.Y1, b.Y1),
		X2: min(a.X2, b.X2),
		Y2: min(a.Y2, b.Y2),
	}.Area()

	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
