package inference

import (
	"image"

	"github.com/chewxy/math32"
	"github.com/nfnt/resize"
)

// letterboxFill is the grey used for padding, as in Ultralytics.
const letterboxFill = float32(114) / 255.0

// Letterbox records how an image was fitted into the square model input so
// that boxes can be mapped back.
type Letterbox struct {
	// Size is the side of the square model input.
	Size int
	// Gain is the resize factor from original to model pixels.
	Gain float32
	// PadX, PadY are the left and top padding in model pixels.
	PadX, PadY float32
}

// Unscale maps an x/y pair from model input pixels back to original pixels.
func (l Letterbox) Unscale(x, y float32) (float32, float32) {
	return (x - l.PadX) / l.Gain, (y - l.PadY) / l.Gain
}

// PrepareInput letterboxes the image into a size×size RGB CHW tensor with
// values in [0,1].
//
// The image is resized keeping its aspect ratio and centred on a grey canvas.
//
// Arguments:
//   - img: The image to prepare.
//   - size: The side of the square model input.
//
// Returns:
//   - []float32: The tensor data, 3*size*size floats.
//   - Letterbox: The geometry needed to map boxes back.
func PrepareInput(img image.Image, size int) ([]float32, Letterbox) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	gain := math32.Min(float32(size)/float32(h), float32(size)/float32(w))
	newW := clampInt(int(math32.Floor(float32(w)*gain+0.5)), 1, size)
	newH := clampInt(int(math32.Floor(float32(h)*gain+0.5)), 1, size)

	left := int(math32.Floor(float32(size-newW)/2 - 0.1 + 0.5))
	top := int(math32.Floor(float32(size-newH)/2 - 0.1 + 0.5))

	channelSize := size * size
	data := make([]float32, channelSize*3)
	for i := range data {
		data[i] = letterboxFill
	}
	red := data[0:channelSize]
	green := data[channelSize : channelSize*2]
	blue := data[channelSize*2 : channelSize*3]

	resized := resize.Resize(uint(newW), uint(newH), img, resize.Bilinear)
	rb := resized.Bounds()
	for y := 0; y < newH && y < rb.Dy(); y++ {
		row := (top + y) * size
		for x := 0; x < newW && x < rb.Dx(); x++ {
			r, g, bl, _ := resized.At(rb.Min.X+x, rb.Min.Y+y).RGBA()
			i := row + left + x
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(bl>>8) / 255.0
		}
	}

	return data, Letterbox{
		Size: size,
		Gain: gain,
		PadX: float32(left),
		PadY: float32(top),
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
