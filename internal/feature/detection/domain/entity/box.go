// Package entity はdetectionフィーチャーのドメインモデルを定義します。
package entity

// BBox は画像座標系の軸平行バウンディングボックス（左上 X1,Y1 / 右下 X2,Y2）です。
type BBox struct {
	X1 float64
	Y1 float64
	X2 float64
	Y2 float64
}

// Width はボックスの幅を返します。逆転したボックスは0を返します。
func (b BBox) Width() float64 {
	return max(0, b.X2-b.X1)
}

// Height はボックスの高さを返します。逆転したボックスは0を返します。
func (b BBox) Height() float64 {
	return max(0, b.Y2-b.Y1)
}

// Area はボックスの面積を返します。
func (b BBox) Area() float64 {
	return b.Width() * b.Height()
}
