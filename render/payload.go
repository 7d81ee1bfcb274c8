// Package render - Output formats for layout regions.
package render

import (
	"fmt"
	"strings"

	"github.com/nvr-ai/go-layout/models/postprocess"
)

// Detection is one region as returned by the JSON endpoints.
type Detection struct {
	ClassName  string  `json:"cls_name"`
	ClassID    int     `json:"cls_id"`
	Confidence float64 `json:"conf"`
	X1         int     `json:"x1"`
	Y1         int     `json:"y1"`
	X2         int     `json:"x2"`
	Y2         int     `json:"y2"`
	CX         float64 `json:"cx"`
	CY         float64 `json:"cy"`
	W          float64 `json:"w"`
	H          float64 `json:"h"`
}

// Payload is the JSON body of a detection response.
type Payload struct {
	Width      int         `json:"width"`
	Height     int         `json:"height"`
	Detections []Detection `json:"detections"`
}

// NewPayload builds the response body for the final regions of an image.
// Detections is never nil so it always encodes as a list.
func NewPayload(regions []postprocess.Region, width, height int) Payload {
	p := Payload{
		Width:      width,
		Height:     height,
		Detections: make([]Detection, 0, len(regions)),
	}
	for _, r := range regions {
		p.Detections = append(p.Detections, Detection{
			ClassName:  r.ClassName,
			ClassID:    r.ClassID,
			Confidence: r.Confidence,
			X1:         r.Box.X1,
			Y1:         r.Box.Y1,
			X2:         r.Box.X2,
			Y2:         r.Box.Y2,
			CX:         r.Normalized.CX,
			CY:         r.Normalized.CY,
			W:          r.Normalized.W,
			H:          r.Normalized.H,
		})
	}
	return p
}

// YOLOText formats regions as YOLO label lines, `cls cx cy w h` with six
// decimals. Every line ends with a newline; no regions gives "".
func YOLOText(regions []postprocess.Region) string {
	var b strings.Builder
	for _, r := range regions {
		n := r.Normalized
		fmt.Fprintf(&b, "%d %.6f %.6f %.6f %.6f\n", r.ClassID, n.CX, n.CY, n.W, n.H)
	}
	return b.String()
}
