package entity

// Frame はデコード済みの1枚の画像です。1つのリクエストが所有し、使用後にCloseします。
type Frame interface {
	Width() int
	Height() int
	// Encode はフレームをJPEGにエンコードしたバイト列を返します。
	Encode() ([]byte, error)
	Close() error
}
