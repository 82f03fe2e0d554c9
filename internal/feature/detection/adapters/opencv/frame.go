// Package opencv はgocv（OpenCV）による画像デコード、動画読み出し、ONNXモデル推論を提供します。
package opencv

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/usecase"
)

// ErrEmptyImage はデコード結果が空の場合に返されます。
var ErrEmptyImage = errors.New("decoded image is empty or unsupported format")

// Frame はgocv.Matを保持するフレームです。Close でネイティブメモリを解放します。
type Frame struct {
	mat gocv.Mat
	raw []byte // デコード元のバイト列（あれば Encode で再利用）
}

var _ entity.Frame = (*Frame)(nil)

// NewFrame はMatの所有権を引き受けたFrameを生成します。
func NewFrame(mat gocv.Mat) *Frame {
	return &Frame{mat: mat}
}

// Mat は内部のMatを返します。呼び出し側はCloseしてはいけません。
func (f *Frame) Mat() gocv.Mat {
	return f.mat
}

func (f *Frame) Width() int  { return f.mat.Cols() }
func (f *Frame) Height() int { return f.mat.Rows() }

// Encode はフレームをJPEGにエンコードします。デコード元のバイト列があればそれを返します。
func (f *Frame) Encode() ([]byte, error) {
	if len(f.raw) > 0 {
		return f.raw, nil
	}
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.mat)
	if err != nil {
		return nil, fmt.Errorf("imencode: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

func (f *Frame) Close() error {
	return f.mat.Close()
}

// Decoder は画像バイト列をBGRのMatにデコードします。
type Decoder struct{}

var _ usecase.FrameDecoder = (*Decoder)(nil)

// NewDecoder はDecoderの新しいインスタンスを生成します。
func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(data []byte) (entity.Frame, error) {
	mat, err := gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return nil, fmt.Errorf("imdecode: %w", err)
	}
	if mat.Empty() {
		_ = mat.Close()
		return nil, ErrEmptyImage
	}
	return &Frame{mat: mat, raw: data}, nil
}

// matFrom はフレームからMatを取り出します。他の実装のフレームはエンコードしてデコードし直します。
// owned が true の場合、呼び出し側がMatをCloseします。
func matFrom(frame entity.Frame) (mat gocv.Mat, owned bool, err error) {
	if f, ok := frame.(*Frame); ok {
		return f.mat, false, nil
	}
	data, err := frame.Encode()
	if err != nil {
		return gocv.Mat{}, false, err
	}
	mat, err = gocv.IMDecode(data, gocv.IMReadColor)
	if err != nil {
		return gocv.Mat{}, false, fmt.Errorf("imdecode: %w", err)
	}
	if mat.Empty() {
		_ = mat.Close()
		return gocv.Mat{}, false, ErrEmptyImage
	}
	return mat, true, nil
}
