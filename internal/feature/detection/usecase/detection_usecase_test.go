package usecase_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogentity "retail_backend/internal/feature/catalog/domain/entity"
	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/usecase"
)

// mockDecoder はFrameDecoderインターフェースのモック実装です。
type mockDecoder struct {
	DecodeFunc func(data []byte) (entity.Frame, error)
}

func (m *mockDecoder) Decode(data []byte) (entity.Frame, error) {
	return m.DecodeFunc(data)
}

// mockVideoSource はVideoSourceインターフェースのモック実装です。
type mockVideoSource struct {
	frameCount int
	fps        float64
	failAt     map[int]bool

	mu     sync.Mutex
	reads  []int
	frames []*fakeFrame
	closed bool
}

func (m *mockVideoSource) FrameCount() int { return m.frameCount }
func (m *mockVideoSource) FPS() float64    { return m.fps }

func (m *mockVideoSource) ReadFrame(index int) (entity.Frame, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads = append(m.reads, index)
	if m.failAt[index] {
		return nil, errors.New("read failed")
	}
	f := newFakeFrame(index, 1920, 1080)
	m.frames = append(m.frames, f)
	return f, nil
}

func (m *mockVideoSource) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// mockVideoOpener はVideoOpenerインターフェースのモック実装です。
type mockVideoOpener struct {
	OpenFunc func(path string) (usecase.VideoSource, error)
	opened   []string
}

func (m *mockVideoOpener) Open(path string) (usecase.VideoSource, error) {
	m.opened = append(m.opened, path)
	return m.OpenFunc(path)
}

func sourceOpener(src *mockVideoSource) *mockVideoOpener {
	return &mockVideoOpener{OpenFunc: func(path string) (usecase.VideoSource, error) {
		return src, nil
	}}
}

func decoderFor(frame *fakeFrame) *mockDecoder {
	return &mockDecoder{DecodeFunc: func(data []byte) (entity.Frame, error) {
		return frame, nil
	}}
}

func assertDirEmpty(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged video must be removed")
}

func TestDetectionUsecase_DetectImage_Success(t *testing.T) {
	t.Parallel()

	frame := newFakeFrame(0, 1280, 720)
	general := staticDetector(map[int]string{0: "bottle", 1: "pizza"},
		entity.RawDetection{BBox: box(10, 20, 110, 220), Confidence: 0.7, ClassID: 0},
		entity.RawDetection{BBox: box(300, 300, 400, 400), Confidence: 0.99, ClassID: 1},
	)
	brand := staticDetector(map[int]string{})
	catalog := staticCatalog(catalogentity.Product{ID: 1, SKU: "WB-1", Name: "Water Bottle"})

	uc := usecase.NewDetectionUsecase(brand, general, decoderFor(frame), nil, catalog, usecase.DefaultPolicy(), t.TempDir())

	got, err := uc.DetectImage(context.Background(), []byte("image-bytes"))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Bottle", got[0].DisplayName)
	assert.Equal(t, uintPtr(1), got[0].ProductID)
	assert.Equal(t, entity.MatchFuzzy, got[0].Match)
	assert.Equal(t, 0.7, got[0].Confidence)
	assert.Equal(t, box(10, 20, 110, 220), got[0].BBox)
	assert.True(t, frame.isClosed())
	assert.Equal(t, 1, catalog.ListAllCalls)
	assert.Equal(t, 1024, general.calls()[0].InferenceSize)
}

func TestDetectionUsecase_DetectImage_Errors(t *testing.T) {
	t.Parallel()

	errDB := errors.New("db down")
	errModel := errors.New("model failed")

	tests := []struct {
		name       string
		data       []byte
		decodeErr  error
		general    *mockDetector
		catalog    *mockCatalog
		wantErr    error
		inputError bool
	}{
		{
			name:       "error: empty input",
			data:       nil,
			wantErr:    usecase.ErrEmptyInput,
			inputError: true,
		},
		{
			name:       "error: input too large",
			data:       make([]byte, usecase.MaxImageSize+1),
			wantErr:    usecase.ErrInputTooLarge,
			inputError: true,
		},
		{
			name:       "error: undecodable image",
			data:       []byte("not an image"),
			decodeErr:  errors.New("imdecode: empty mat"),
			wantErr:    usecase.ErrUndecodableImage,
			inputError: true,
		},
		{
			name: "error: detector failure is internal",
			data: []byte("img"),
			general: &mockDetector{DetectFunc: func(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error) {
				return nil, errModel
			}},
			wantErr: errModel,
		},
		{
			name: "error: catalog failure is internal",
			data: []byte("img"),
			general: staticDetector(map[int]string{0: "bottle"},
				entity.RawDetection{BBox: box(0, 0, 10, 10), Confidence: 0.5, ClassID: 0}),
			catalog: &mockCatalog{ListAllFunc: func(ctx context.Context) ([]catalogentity.Product, error) {
				return nil, errDB
			}},
			wantErr: errDB,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			frame := newFakeFrame(0, 640, 480)
			decoder := &mockDecoder{DecodeFunc: func(data []byte) (entity.Frame, error) {
				if tt.decodeErr != nil {
					return nil, tt.decodeErr
				}
				return frame, nil
			}}
			general := tt.general
			if general == nil {
				general = staticDetector(nil)
			}
			catalog := tt.catalog
			if catalog == nil {
				catalog = staticCatalog()
			}

			uc := usecase.NewDetectionUsecase(staticDetector(nil), general, decoder, nil, catalog, usecase.DefaultPolicy(), t.TempDir())

			got, err := uc.DetectImage(context.Background(), tt.data)

			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.inputError, usecase.IsInputError(err))
			if tt.general != nil {
				assert.True(t, frame.isClosed(), "frame must be released on failure")
			}
		})
	}
}

func TestDetectionUsecase_DetectImage_NoDetectionsSkipsCatalog(t *testing.T) {
	t.Parallel()

	catalog := &mockCatalog{}
	uc := usecase.NewDetectionUsecase(staticDetector(nil), staticDetector(nil), decoderFor(newFakeFrame(0, 100, 100)), nil, catalog, usecase.DefaultPolicy(), t.TempDir())

	got, err := uc.DetectImage(context.Background(), []byte("img"))

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.Zero(t, catalog.ListAllCalls)
}

func TestDetectionUsecase_DetectVideo_Success(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := &mockVideoSource{frameCount: 135, fps: 30, failAt: map[int]bool{90: true}}
	opener := sourceOpener(src)

	// 各フレームで同じ位置のりんごを検出し、信頼度だけが変わる
	general := &mockDetector{
		Names: map[int]string{0: "apple"},
		DetectFunc: func(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error) {
			conf := 0.5
			if frame.(*fakeFrame).id == 45 {
				conf = 0.9
			}
			return []entity.RawDetection{{BBox: box(0, 0, 100, 100), Confidence: conf, ClassID: 0}}, nil
		},
	}
	catalog := staticCatalog(
		catalogentity.Product{ID: 2, Name: "Red Apple"},
		catalogentity.Product{ID: 8, Name: "Apple"},
	)

	uc := usecase.NewDetectionUsecase(staticDetector(nil), general, nil, opener, catalog, usecase.DefaultPolicy(), dir)

	got, err := uc.DetectVideo(context.Background(), []byte("video-bytes"))

	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Apple", got[0].DisplayName)
	assert.Equal(t, 0.9, got[0].Confidence)
	assert.Equal(t, uintPtr(8), got[0].ProductID)
	assert.Equal(t, entity.MatchExact, got[0].Match)

	assert.Equal(t, []int{0, 45, 90}, src.reads)
	require.Len(t, src.frames, 2)
	for _, f := range src.frames {
		assert.True(t, f.isClosed())
	}
	assert.True(t, src.closed)
	assert.Equal(t, 1, catalog.ListAllCalls)
	for _, p := range general.calls() {
		assert.Equal(t, 1280, p.InferenceSize)
	}
	require.Len(t, opener.opened, 1)
	assert.Contains(t, opener.opened[0], dir)
	assertDirEmpty(t, dir)
}

func TestDetectionUsecase_DetectVideo_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		data       []byte
		openErr    error
		source     *mockVideoSource
		wantErr    error
		inputError bool
	}{
		{
			name:       "error: empty input",
			wantErr:    usecase.ErrEmptyInput,
			inputError: true,
		},
		{
			name:       "error: input too large",
			data:       make([]byte, usecase.MaxVideoSize+1),
			wantErr:    usecase.ErrInputTooLarge,
			inputError: true,
		},
		{
			name:       "error: container cannot be opened",
			data:       []byte("garbage"),
			openErr:    errors.New("VideoCapture not opened"),
			wantErr:    usecase.ErrVideoOpenFailed,
			inputError: true,
		},
		{
			name:       "error: zero frames",
			data:       []byte("video"),
			source:     &mockVideoSource{frameCount: 0, fps: 30},
			wantErr:    usecase.ErrInvalidVideo,
			inputError: true,
		},
		{
			name:       "error: zero fps",
			data:       []byte("video"),
			source:     &mockVideoSource{frameCount: 100, fps: 0},
			wantErr:    usecase.ErrInvalidVideo,
			inputError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			dir := t.TempDir()
			opener := &mockVideoOpener{OpenFunc: func(path string) (usecase.VideoSource, error) {
				if tt.openErr != nil {
					return nil, tt.openErr
				}
				return tt.source, nil
			}}
			catalog := &mockCatalog{}

			uc := usecase.NewDetectionUsecase(staticDetector(nil), staticDetector(nil), nil, opener, catalog, usecase.DefaultPolicy(), dir)

			got, err := uc.DetectVideo(context.Background(), tt.data)

			require.Error(t, err)
			assert.Nil(t, got)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, tt.inputError, usecase.IsInputError(err))
			assert.Zero(t, catalog.ListAllCalls)
			if tt.source != nil {
				assert.True(t, tt.source.closed)
			}
			assertDirEmpty(t, dir)
		})
	}
}

func TestDetectionUsecase_DetectVideo_Cancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	src := &mockVideoSource{frameCount: 300, fps: 30}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	uc := usecase.NewDetectionUsecase(staticDetector(nil), staticDetector(nil), nil, sourceOpener(src), &mockCatalog{}, usecase.DefaultPolicy(), dir)

	_, err := uc.DetectVideo(ctx, []byte("video"))

	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, src.reads)
	assert.True(t, src.closed)
	assertDirEmpty(t, dir)
}
