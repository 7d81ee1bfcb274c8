// Package images - Geometry and image decoding utilities for layout regions.
package images

import (
	"fmt"
	"image"
	"math"
)

// Rect is a lightweight pixel bounding box.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int
}

// Box is a bounding box in fractional pixel coordinates, as detectors report it.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// Area returns the area of the box, or 0 when it is empty or inverted.
func (b Box) Area() float64 {
	w := b.X2 - b.X1
	h := b.Y2 - b.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the box has no area.
func (b Box) Empty() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Rect returns the smallest pixel Rect that encloses the box. A non-empty box
// always gives a non-empty Rect, even when it is narrower than a pixel.
func (b Box) Rect() Rect {
	return Rect{
		X1: int(math.Floor(b.X1)),
		Y1: int(math.Floor(b.Y1)),
		X2: int(math.Ceil(b.X2)),
		Y2: int(math.Ceil(b.Y2)),
	}
}

func (b Box) String() string {
	return fmt.Sprintf("(%g,%g)-(%g,%g)", b.X1, b.Y1, b.X2, b.Y2)
}

// NormBox is a center-form box relative to the image size (YOLO convention).
type NormBox struct {
	CX, CY, W, H float64
}

// Area returns the pixel area of the rectangle, or 0 when it is empty or inverted.
func (r Rect) Area() int {
	w := r.X2 - r.X1
	h := r.Y2 - r.Y1
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// Empty reports whether the rectangle encloses no pixels.
func (r Rect) Empty() bool {
	return r.X2 <= r.X1 || r.Y2 <= r.Y1
}

// ToRectangle converts the box to an image.Rectangle.
func (r Rect) ToRectangle() image.Rectangle {
	return image.Rect(r.X1, r.Y1, r.X2, r.Y2)
}

func (r Rect) String() string {
	return fmt.Sprintf("(%d,%d)-(%d,%d)", r.X1, r.Y1, r.X2, r.Y2)
}

// CalculateIoU returns the Intersection over Union of two pixel rectangles.
//
// The intersection corner is the maximum of the top-left corners and the
// minimum of the bottom-right corners. When the rectangles do not overlap
// (zero or negative intersection width or height) the IoU is 0. The union
// follows inclusion-exclusion:
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// and a non-positive union also yields 0.
//
// Arguments:
//   - r: The first rectangle.
//   - o: The other rectangle to compare against.
//
// Returns:
//   - float64: A value between 0.0 and 1.0 representing the IoU score.
//
// Example:
//
// ```go
//
//	a := Rect{X1: 0, Y1: 0, X2: 10, Y2: 10}
//	b := Rect{X1: 5, Y1: 5, X2: 15, Y2: 15}
//	iou := CalculateIoU(a, b) // 25 / (100 + 100 - 25) = 0.142857
//
// ```
func CalculateIoU(r, o Rect) float64 {
	ix1 := max(r.X1, o.X1)
	iy1 := max(r.Y1, o.Y1)
	ix2 := min(r.X2, o.X2)
	iy2 := min(r.Y2, o.Y2)

	interW := ix2 - ix1
	interH := iy2 - iy1
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := r.Area() + o.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return float64(interArea) / float64(unionArea)
}

// BoxIoU returns the Intersection over Union of two fractional boxes, with
// the same conventions as CalculateIoU.
func BoxIoU(a, b Box) float64 {
	interW := min(a.X2, b.X2) - max(a.X1, b.X1)
	interH := min(a.Y2, b.Y2) - max(a.Y1, b.Y1)
	if interW <= 0 || interH <= 0 {
		return 0.0
	}
	interArea := interW * interH

	unionArea := a.Area() + b.Area() - interArea
	if unionArea <= 0 {
		return 0.0
	}

	return interArea / unionArea
}

// Normalize converts pixel corner coordinates into a center-form box relative
// to an image of the given size.
//
// Arguments:
//   - x1, y1, x2, y2: Corner coordinates in pixels.
//   - width, height: The image dimensions in pixels (must be positive).
//
// Returns:
//   - NormBox: The normalized center-form box.
func Normalize(x1, y1, x2, y2 float64, width, height int) NormBox {
	w := float64(width)
	h := float64(height)
	return NormBox{
		CX: (x1 + x2) / (2 * w),
		CY: (y1 + y2) / (2 * h),
		W:  (x2 - x1) / w,
		H:  (y2 - y1) / h,
	}
}

// Denormalize is the inverse of Normalize, returning corner coordinates in pixels.
func (n NormBox) Denormalize(width, height int) (x1, y1, x2, y2 float64) {
	w := float64(width)
	h := float64(height)
	x1 = (n.CX - n.W/2) * w
	y1 = (n.CY - n.H/2) * h
	x2 = (n.CX + n.W/2) * w
	y2 = (n.CY + n.H/2) * h
	return x1, y1, x2, y2
}

// Finite reports whether every value is a finite float.
func Finite(values ...float64) bool {
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}
