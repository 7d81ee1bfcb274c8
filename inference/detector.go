// Package inference - Layout detector backends.
package inference

import (
	"context"

	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/pkg/errors"
)

// Defaults for per-request inference parameters.
const (
	DefaultImageSize     = 1280
	DefaultIoU           = 0.5
	DefaultMinConfidence = 0.001
	// MaxImageSize bounds the inference size a request may ask for.
	MaxImageSize = 4096
	// DefaultMaxDetections caps the boxes kept after NMS.
	DefaultMaxDetections = 300
)

var (
	// ErrInvalidParams is returned for out-of-range inference parameters.
	ErrInvalidParams = errors.New("invalid inference parameters")
	// ErrDetector is the cause of every failure inside a detector backend.
	ErrDetector = errors.New("detector failure")
)

// Params are the per-request knobs passed to the detector.
type Params struct {
	// ImageSize is the square inference size in pixels.
	ImageSize int `json:"imgsz"`
	// IoU is the NMS overlap threshold.
	IoU float64 `json:"iou"`
	// MinConfidence is the global score floor applied before per-class thresholds.
	MinConfidence float64 `json:"conf_min"`
}

// DefaultParams returns the parameters used when a request sets none.
func DefaultParams() Params {
	return Params{
		ImageSize:     DefaultImageSize,
		IoU:           DefaultIoU,
		MinConfidence: DefaultMinConfidence,
	}
}

// Validate checks the parameters are usable.
func (p Params) Validate() error {
	if p.ImageSize < 32 || p.ImageSize > MaxImageSize {
		return errors.Wrapf(ErrInvalidParams, "imgsz %d outside [32,%d]", p.ImageSize, MaxImageSize)
	}
	if !(p.IoU >= 0 && p.IoU <= 1) {
		return errors.Wrapf(ErrInvalidParams, "iou %v outside [0,1]", p.IoU)
	}
	if !(p.MinConfidence >= 0 && p.MinConfidence <= 1) {
		return errors.Wrapf(ErrInvalidParams, "conf_min %v outside [0,1]", p.MinConfidence)
	}
	return nil
}

// Detector runs the layout model on one image and returns raw boxes in the
// image's own pixel space.
type Detector interface {
	// Detect runs inference once for the image.
	Detect(ctx context.Context, img *images.Image, params Params) ([]postprocess.RawDetection, error)
	// Source describes the model the detector serves (a path or a URL).
	Source() string
	// Close releases the backend's resources.
	Close() error
}

// StrideAlign rounds an inference size up to the model's 32 pixel stride.
func StrideAlign(size int) int {
	if size < 32 {
		return 32
	}
	return (size + 31) / 32 * 32
}
