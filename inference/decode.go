package inference

import (
	"github.com/chewxy/math32"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// AnchorCount returns the number of YOLOv8 prediction slots for a square
// input of the given size (strides 8, 16 and 32).
func AnchorCount(size int) int {
	n := 0
	for _, stride := range []int{8, 16, 32} {
		side := size / stride
		n += side * side
	}
	return n
}

// DecodeYOLOv8 turns a YOLOv8 detection head output into raw detections in
// original image pixels.
//
// The output is laid out as [4+numClasses, anchors]: rows 0-3 hold the box
// centre and size in model pixels, the remaining rows hold per-class scores.
// Each anchor takes its best class; anchors scoring at or below minConf are
// dropped. Boxes are mapped back through the letterbox and clamped to the
// image.
//
// Arguments:
//   - output: The flattened output tensor.
//   - numClasses: The number of classes the model predicts.
//   - anchors: The number of prediction slots.
//   - lb: The letterbox used to prepare the input.
//   - width, height: The original image dimensions.
//   - minConf: The global confidence floor.
//
// Returns:
//   - []postprocess.RawDetection: Candidates before NMS, in anchor order.
//   - error: An error if the output does not have the expected size.
func DecodeYOLOv8(output []float32, numClasses, anchors int, lb Letterbox,
	width, height int, minConf float64,
) ([]postprocess.RawDetection, error) {
	rows := 4 + numClasses
	if numClasses <= 0 || anchors <= 0 || len(output) != rows*anchors {
		return nil, errors.Wrapf(ErrDetector, "output holds %d floats, expected %dx%d", len(output), rows, anchors)
	}

	backing := make([]float32, len(output))
	copy(backing, output)

	// Transpose to [anchors, 4+numClasses] so each prediction is contiguous.
	t := tensor.New(tensor.WithShape(rows, anchors), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "transpose output")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "materialize transposed output")
	}
	data, ok := t.Data().([]float32)
	if !ok || len(data) != len(output) {
		return nil, errors.Wrap(ErrDetector, "unexpected output tensor type")
	}

	maxX := float32(width)
	maxY := float32(height)
	detections := make([]postprocess.RawDetection, 0, 64)

	for a := 0; a < anchors; a++ {
		pred := data[a*rows : (a+1)*rows]

		classID := 0
		best := pred[4]
		for c := 1; c < numClasses; c++ {
			if pred[4+c] > best {
				best = pred[4+c]
				classID = c
			}
		}
		if float64(best) <= minConf {
			continue
		}

		cx, cy, w, h := pred[0], pred[1], pred[2], pred[3]
		x1, y1 := lb.Unscale(cx-w/2, cy-h/2)
		x2, y2 := lb.Unscale(cx+w/2, cy+h/2)

		x1 = math32.Max(0, math32.Min(x1, maxX))
		y1 = math32.Max(0, math32.Min(y1, maxY))
		x2 = math32.Max(0, math32.Min(x2, maxX))
		y2 = math32.Max(0, math32.Min(y2, maxY))
		if x2-x1 < 1 || y2-y1 < 1 {
			continue
		}

		detections = append(detections, postprocess.RawDetection{
			ClassID:    classID,
			Confidence: float64(best),
			X1:         float64(x1),
			Y1:         float64(y1),
			X2:         float64(x2),
			Y2:         float64(y2),
		})
	}

	return detections, nil
}
