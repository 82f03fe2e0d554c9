package opencv

import (
	"errors"
	"fmt"

	"gocv.io/x/gocv"

	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/usecase"
)

// ErrFrameUnreadable は指定フレームを読み出せない場合に返されます。
var ErrFrameUnreadable = errors.New("frame could not be read")

// VideoOpener はgocv.VideoCaptureで動画ファイルを開きます。
type VideoOpener struct{}

var _ usecase.VideoOpener = (*VideoOpener)(nil)

// NewVideoOpener はVideoOpenerの新しいインスタンスを生成します。
func NewVideoOpener() *VideoOpener {
	return &VideoOpener{}
}

func (o *VideoOpener) Open(path string) (usecase.VideoSource, error) {
	vc, err := gocv.VideoCaptureFile(path)
	if err != nil {
		return nil, fmt.Errorf("open video: %w", err)
	}
	if !vc.IsOpened() {
		_ = vc.Close()
		return nil, fmt.Errorf("open video: capture not opened")
	}
	return &videoSource{vc: vc}, nil
}

// videoSource は1本の動画ファイルのハンドルです。1リクエスト内で逐次的に使用します。
type videoSource struct {
	vc *gocv.VideoCapture
}

func (s *videoSource) FrameCount() int {
	return int(s.vc.Get(gocv.VideoCaptureFrameCount))
}

func (s *videoSource) FPS() float64 {
	return s.vc.Get(gocv.VideoCaptureFPS)
}

func (s *videoSource) ReadFrame(index int) (entity.Frame, error) {
	s.vc.Set(gocv.VideoCapturePosFrames, float64(index))

	mat := gocv.NewMat()
	if ok := s.vc.Read(&mat); !ok || mat.Empty() {
		_ = mat.Close()
		return nil, fmt.Errorf("%w: %d", ErrFrameUnreadable, index)
	}
	return NewFrame(mat), nil
}

func (s *videoSource) Close() error {
	return s.vc.Close()
}
