package render

import (
	"fmt"
	"image"
	"image/color"

	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// MaxLegendEntries bounds the classes listed in the legend.
const MaxLegendEntries = 20

// Style controls how regions are drawn.
type Style struct {
	// Palette colours each class.
	Palette Palette
	// FillAlpha is the opacity of the box fill.
	FillAlpha float64
	// Thickness is the outline width in pixels.
	Thickness int
	// FontScale is the label font scale.
	FontScale float64
	// ShowLegend lists the classes present in the top-left corner.
	ShowLegend bool
}

// DefaultStyle returns the style used by the annotated image endpoint.
func DefaultStyle() Style {
	return Style{
		Palette:    DefaultPalette,
		FillAlpha:  0.15,
		Thickness:  2,
		FontScale:  0.6,
		ShowLegend: true,
	}
}

// Annotate draws regions onto a copy of a BGR image.
//
// Boxes get a translucent fill, an anti-aliased outline and a label chip
// `"<name> <conf>"`. The chip moves below the box top when it would leave
// the image.
//
// Arguments:
//   - src: The BGR image. It is not modified.
//   - regions: The regions to draw.
//   - style: The drawing style.
//
// Returns:
//   - gocv.Mat: The annotated image. Callers must Close it.
//   - error: An error if the source image is empty.
func Annotate(src gocv.Mat, regions []postprocess.Region, style Style) (gocv.Mat, error) {
	if src.Empty() {
		return gocv.NewMat(), errors.New("cannot annotate an empty image")
	}

	img := src.Clone()
	if len(regions) == 0 {
		return img, nil
	}

	overlay := img.Clone()
	defer overlay.Close()

	for _, r := range regions {
		gocv.Rectangle(&overlay, r.Box.ToRectangle(), style.Palette.Color(r.ClassName), -1)
	}
	gocv.AddWeighted(overlay, style.FillAlpha, img, 1-style.FillAlpha, 0, &img)

	for _, r := range regions {
		c := style.Palette.Color(r.ClassName)
		gocv.RectangleWithParams(&img, r.Box.ToRectangle(), c, style.Thickness, gocv.LineAA, 0)
		drawLabel(&img, r, c, style)
	}

	if style.ShowLegend {
		drawLegend(&img, LegendEntries(regions), style.Palette)
	}

	return img, nil
}

// AnnotatePNG annotates an image and encodes the result as PNG.
func AnnotatePNG(src gocv.Mat, regions []postprocess.Region, style Style) ([]byte, error) {
	img, err := Annotate(src, regions, style)
	if err != nil {
		return nil, err
	}
	defer img.Close()

	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, errors.Wrap(err, "encode png")
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}

// Label returns the text drawn next to a region.
func Label(r postprocess.Region) string {
	return fmt.Sprintf("%s %.2f", r.ClassName, r.Confidence)
}

// LabelChip returns the chip rectangle for a label of the given text size
// anchored at the box's top-left corner.
func LabelChip(anchor, text image.Point) (chip image.Rectangle, baseline image.Point) {
	x1, y1 := anchor.X, anchor.Y
	x2 := x1 + text.X + 8

	top := y1 - text.Y - 8
	if top < 0 {
		chip = image.Rect(x1, y1, x2, y1+text.Y+8)
		return chip, image.Pt(x1+4, y1+text.Y+4)
	}
	chip = image.Rect(x1, top, x2, y1-2)
	return chip, image.Pt(x1+4, y1-6)
}

func drawLabel(img *gocv.Mat, r postprocess.Region, c color.RGBA, style Style) {
	text := Label(r)
	size := gocv.GetTextSize(text, gocv.FontHersheySimplex, style.FontScale, style.Thickness)
	chip, org := LabelChip(image.Pt(r.Box.X1, r.Box.Y1), size)

	gocv.Rectangle(img, chip, c, -1)
	gocv.PutTextWithParams(img, text, org, gocv.FontHersheySimplex, style.FontScale,
		TextColor(c), style.Thickness, gocv.LineAA, false)
}

// LegendEntries returns the distinct class names in first-seen order,
// capped at MaxLegendEntries.
func LegendEntries(regions []postprocess.Region) []string {
	seen := make(map[string]struct{}, len(regions))
	names := make([]string, 0, len(regions))
	for _, r := range regions {
		if _, ok := seen[r.ClassName]; ok {
			continue
		}
		seen[r.ClassName] = struct{}{}
		names = append(names, r.ClassName)
		if len(names) == MaxLegendEntries {
			break
		}
	}
	return names
}

func drawLegend(img *gocv.Mat, names []string, palette Palette) {
	const (
		x0     = 12
		y0     = 12
		line   = 22
		swatch = 16
	)
	for i, name := range names {
		c := palette.Color(name)
		y := y0 + i*line
		gocv.Rectangle(img, image.Rect(x0, y, x0+swatch, y+swatch), c, -1)
		gocv.PutTextWithParams(img, name, image.Pt(x0+swatch+6, y+14), gocv.FontHersheySimplex, 0.5,
			TextColor(c), 1, gocv.LineAA, false)
	}
}
