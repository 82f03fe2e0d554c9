package opencv

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"retail_backend/internal/feature/detection/adapters/labels"
	"retail_backend/internal/feature/detection/domain/entity"
	"retail_backend/internal/feature/detection/usecase"
)

// YOLODetector はultralytics形式でエクスポートされたYOLOv8のONNXモデルをOpenCV DNNで実行します。
// 出力は [1, 4+クラス数, アンカー数] を想定しています。
type YOLODetector struct {
	mu     sync.Mutex // gocv.Net はスレッドセーフではない
	net    gocv.Net
	labels *labels.Registry
}

var _ usecase.Detector = (*YOLODetector)(nil)

// NewYOLODetector はモデルを読み込んでYOLODetectorを生成します。
func NewYOLODetector(modelPath string, reg *labels.Registry) (*YOLODetector, error) {
	if reg == nil || reg.Len() == 0 {
		return nil, errors.New("yolo: labels are required")
	}
	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("yolo: failed to load model %s", modelPath)
	}
	if err := net.SetPreferableBackend(gocv.NetBackendDefault); err != nil {
		_ = net.Close()
		return nil, fmt.Errorf("yolo: set backend: %w", err)
	}
	if err := net.SetPreferableTarget(gocv.NetTargetCPU); err != nil {
		_ = net.Close()
		return nil, fmt.Errorf("yolo: set target: %w", err)
	}
	return &YOLODetector{net: net, labels: reg}, nil
}

// ClassName はクラスIDに対応するラベルを返します。
func (d *YOLODetector) ClassName(classID int) string {
	return d.labels.Name(classID)
}

// Close はモデルを解放します。
func (d *YOLODetector) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.net.Close()
}

// Detect はレターボックスでリサイズしたフレームに推論をかけ、クラスごとにNMSを適用した検出を元画像の座標で返します。
func (d *YOLODetector) Detect(ctx context.Context, frame entity.Frame, params entity.DetectParams) ([]entity.RawDetection, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if params.InferenceSize <= 0 {
		return nil, fmt.Errorf("yolo: invalid inference size %d", params.InferenceSize)
	}

	img, owned, err := matFrom(frame)
	if err != nil {
		return nil, fmt.Errorf("yolo: %w", err)
	}
	if owned {
		defer img.Close()
	}

	size := image.Pt(params.InferenceSize, params.InferenceSize)
	blobParams := gocv.NewImageToBlobParams(
		1.0/255.0,
		size,
		gocv.NewScalar(0, 0, 0, 0),
		true,
		gocv.MatTypeCV32F,
		gocv.DataLayoutNCHW,
		gocv.PaddingModeLetterbox,
		gocv.NewScalar(114, 114, 114, 0),
	)
	blob := gocv.BlobFromImageWithParams(img, blobParams)
	defer blob.Close()

	d.mu.Lock()
	d.net.SetInput(blob, "")
	output := d.net.Forward("")
	d.mu.Unlock()
	defer output.Close()

	if output.Empty() || len(output.Size()) != 3 {
		return nil, fmt.Errorf("yolo: unexpected output shape %v", output.Size())
	}

	// [1, 4+nc, N] -> [1, N, 4+nc]
	transposed := gocv.NewMat()
	defer transposed.Close()
	if err := gocv.TransposeND(output, []int{0, 2, 1}, &transposed); err != nil {
		return nil, fmt.Errorf("yolo: transpose: %w", err)
	}
	rows := transposed.Reshape(1, transposed.Size()[1])
	defer rows.Close()

	cands := decodeRows(rows, float32(params.ConfidenceFloor))
	if len(cands) == 0 {
		return []entity.RawDetection{}, nil
	}

	kept := nmsPerClass(cands, float32(params.ConfidenceFloor), float32(params.IoUSuppression))
	rects := make([]image.Rectangle, len(kept))
	for i, c := range kept {
		rects[i] = c.rect
	}
	rects = blobParams.BlobRectsToImageRects(rects, image.Pt(img.Cols(), img.Rows()))

	out := make([]entity.RawDetection, 0, len(kept))
	for i, c := range kept {
		r := rects[i].Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))
		out = append(out, entity.RawDetection{
			BBox: entity.BBox{
				X1: float64(r.Min.X),
				Y1: float64(r.Min.Y),
				X2: float64(r.Max.X),
				Y2: float64(r.Max.Y),
			},
			Confidence: float64(c.score),
			ClassID:    c.classID,
		})
	}
	return out, nil
}

type candidate struct {
	rect    image.Rectangle
	score   float32
	classID int
}

// decodeRows は各アンカー行から最大スコアのクラスを取り出します。座標はブロブ上の (cx, cy, w, h) です。
func decodeRows(rows gocv.Mat, floor float32) []candidate {
	cols := rows.Cols()
	var out []candidate
	for i := 0; i < rows.Rows(); i++ {
		func() {
			row := rows.RowRange(i, i+1)
			defer row.Close()
			scores := row.ColRange(4, cols)
			defer scores.Close()

			_, score, _, loc := gocv.MinMaxLoc(scores)
			if score < floor {
				return
			}
			cx, cy := row.GetFloatAt(0, 0), row.GetFloatAt(0, 1)
			w, h := row.GetFloatAt(0, 2), row.GetFloatAt(0, 3)
			out = append(out, candidate{
				rect:    image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)),
				score:   score,
				classID: loc.X,
			})
		}()
	}
	return out
}

// nmsPerClass はクラスごとに独立してNMSを適用します。結果はクラスIDの初出順、クラス内はNMSの順です。
func nmsPerClass(cands []candidate, scoreThreshold, nmsThreshold float32) []candidate {
	var order []int
	groups := make(map[int][]candidate)
	for _, c := range cands {
		if _, ok := groups[c.classID]; !ok {
			order = append(order, c.classID)
		}
		groups[c.classID] = append(groups[c.classID], c)
	}

	var kept []candidate
	for _, classID := range order {
		group := groups[classID]
		boxes := make([]image.Rectangle, len(group))
		scores := make([]float32, len(group))
		for i, c := range group {
			boxes[i] = c.rect
			scores[i] = c.score
		}
		for _, idx := range gocv.NMSBoxes(boxes, scores, scoreThreshold, nmsThreshold) {
			kept = append(kept, group[idx])
		}
	}
	return kept
}
