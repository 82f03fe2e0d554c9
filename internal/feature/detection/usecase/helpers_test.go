package usecase_test

import (
	"context"
	"errors"
	"sync"

	catalogentity "retail_backend/internal/feature/catalog/domain/entity"
	"retail_backend/internal/feature/detection/domain/entity"
)

// fakeFrame はテスト用のFrame実装です。
type fakeFrame struct {
	id     int
	width  int
	height int

	mu     sync.Mutex
	closed bool
}

func newFakeFrame(id, width, height int) *fakeFrame {
	return &fakeFrame{id: id, width: width, height: height}
}

func (f *fakeFrame) Width() int              { return f.width }
func (f *fakeFrame) Height() int             { return f.height }
func (f *fakeFrame) Encode() ([]byte, error) { return []byte("jpeg"), nil }

func (f *fakeFrame) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeFrame) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

// mockDetector はDetectorインターフェースのモック実装です。
type mockDetector struct {
	DetectFunc func(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error)
	Names      map[int]string

	mu     sync.Mutex
	params []entity.DetectParams
}

func (m *mockDetector) Detect(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error) {
	m.mu.Lock()
	m.params = append(m.params, params)
	m.mu.Unlock()
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, frame, params)
	}
	return nil, nil
}

func (m *mockDetector) ClassName(classID int) string {
	return m.Names[classID]
}

func (m *mockDetector) calls() []entity.DetectParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]entity.DetectParams(nil), m.params...)
}

// staticDetector は常に同じ検出結果を返すDetectorを生成します。
func staticDetector(names map[int]string, dets ...entity.RawDetection) *mockDetector {
	return &mockDetector{
		Names: names,
		DetectFunc: func(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error) {
			return dets, nil
		},
	}
}

// mockCatalog はProductCatalogインターフェースのモック実装です。
type mockCatalog struct {
	ListAllFunc  func(ctx context.Context) ([]catalogentity.Product, error)
	ListAllCalls int
}

func (m *mockCatalog) ListAll(ctx context.Context) ([]catalogentity.Product, error) {
	m.ListAllCalls++
	if m.ListAllFunc != nil {
		return m.ListAllFunc(ctx)
	}
	return nil, errors.New("ListAllFunc is not implemented")
}

func staticCatalog(products ...catalogentity.Product) *mockCatalog {
	return &mockCatalog{
		ListAllFunc: func(ctx context.Context) ([]catalogentity.Product, error) {
			return products, nil
		},
	}
}

func box(x1, y1, x2, y2 float64) entity.BBox {
	return entity.BBox{X1: x1, Y1: y1, X2: x2, Y2: y2}
}

func uintPtr(v uint) *uint {
	return &v
}
