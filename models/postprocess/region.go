// Package postprocess - turns raw detector output into the final set of layout regions.
package postprocess

import (
	"fmt"

	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/models"
	"github.com/pkg/errors"
)

var (
	// ErrInvalidDetection is returned for a raw detection with non-finite,
	// out-of-range or inverted values.
	ErrInvalidDetection = errors.New("invalid detection")
	// ErrInvalidImageSize is returned when the image dimensions are not positive.
	ErrInvalidImageSize = errors.New("invalid image size")
)

// RawDetection is one box as produced by a detector, in original image pixels.
type RawDetection struct {
	ClassID    int     `json:"cls_id"`
	Confidence float64 `json:"conf"`
	X1         float64 `json:"x1"`
	Y1         float64 `json:"y1"`
	X2         float64 `json:"x2"`
	Y2         float64 `json:"y2"`
}

// Box returns the detection's box as reported.
func (d RawDetection) Box() images.Box {
	return images.Box{X1: d.X1, Y1: d.Y1, X2: d.X2, Y2: d.Y2}
}

// Validate checks that the detection can be turned into a Region.
func (d RawDetection) Validate() error {
	if !images.Finite(d.Confidence, d.X1, d.Y1, d.X2, d.Y2) {
		return errors.Wrap(ErrInvalidDetection, "non-finite value")
	}
	if d.Confidence < 0 || d.Confidence > 1 {
		return errors.Wrapf(ErrInvalidDetection, "confidence %v outside [0,1]", d.Confidence)
	}
	if d.X2 <= d.X1 || d.Y2 <= d.Y1 {
		return errors.Wrapf(ErrInvalidDetection, "inverted box (%v,%v)-(%v,%v)", d.X1, d.Y1, d.X2, d.Y2)
	}
	return nil
}

// Region is one detected layout element flowing between post-processing stages.
type Region struct {
	// Index is the position of the detection in the detector's batch.
	Index int
	// ClassID is the 0-based index into the class vocabulary.
	ClassID int
	// ClassName is the label resolved from ClassID.
	ClassName string
	// Confidence is the detector score in [0,1].
	Confidence float64
	// Exact is the box as the detector reported it. The layout rules compare these.
	Exact images.Box
	// Box is the pixel box enclosing Exact, used for output and drawing.
	Box images.Rect
	// Normalized is the same box in image-relative center form.
	Normalized images.NormBox
}

func (r Region) String() string {
	return fmt.Sprintf("%s#%d (confidence %.3f): %s", r.ClassName, r.Index, r.Confidence, r.Box)
}

// ClassLabel resolves a class id against the vocabulary. Ids the vocabulary
// does not know get a synthetic `cls_<id>` label so they stay visible downstream.
func ClassLabel(vocab *models.Vocabulary, classID int) string {
	if name, ok := vocab.Name(classID); ok {
		return name
	}
	return fmt.Sprintf("cls_%d", classID)
}

// NewRegion validates a raw detection and converts it into a Region.
//
// Arguments:
//   - raw: The raw detection in original image pixels.
//   - index: The position of the detection in its batch.
//   - vocab: The class vocabulary used to resolve the label.
//   - width, height: The image dimensions in pixels.
//
// Returns:
//   - Region: The region record.
//   - error: ErrInvalidDetection or ErrInvalidImageSize.
func NewRegion(raw RawDetection, index int, vocab *models.Vocabulary, width, height int) (Region, error) {
	if width <= 0 || height <= 0 {
		return Region{}, errors.Wrapf(ErrInvalidImageSize, "%dx%d", width, height)
	}
	if err := raw.Validate(); err != nil {
		return Region{}, errors.Wrapf(err, "detection %d", index)
	}

	return Region{
		Index:      index,
		ClassID:    raw.ClassID,
		ClassName:  ClassLabel(vocab, raw.ClassID),
		Confidence: raw.Confidence,
		Exact:      raw.Box(),
		Box:        raw.Box().Rect(),
		Normalized: images.Normalize(raw.X1, raw.Y1, raw.X2, raw.Y2, width, height),
	}, nil
}

// BuildRegions converts a detector batch into regions, stopping at the first
// invalid detection.
func BuildRegions(raw []RawDetection, vocab *models.Vocabulary, width, height int) ([]Region, error) {
	if width <= 0 || height <= 0 {
		return nil, errors.Wrapf(ErrInvalidImageSize, "%dx%d", width, height)
	}

	regions := make([]Region, 0, len(raw))
	for i, d := range raw {
		r, err := NewRegion(d, i, vocab, width, height)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}
