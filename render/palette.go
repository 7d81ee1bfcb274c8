package render

import (
	"hash/fnv"
	"image/color"

	"github.com/chewxy/math32"
)

// Palette maps class names to their box colours.
type Palette map[string]color.RGBA

// DefaultPalette holds fixed colours for the document layout classes.
var DefaultPalette = Palette{
	"Header":             {R: 0, G: 0, B: 255, A: 255},
	"Title":              {R: 255, G: 0, B: 0, A: 255},
	"Text":               {R: 0, G: 170, B: 0, A: 255},
	"Table":              {R: 255, G: 255, B: 0, A: 255},
	"Image":              {R: 255, G: 0, B: 255, A: 255},
	"Footer":             {R: 0, G: 255, B: 255, A: 255},
	"Stamp or Signature": {R: 255, G: 140, B: 0, A: 255},
	"Caption":            {R: 255, G: 20, B: 147, A: 255},
	"Keyvalue":           {R: 127, G: 255, B: 0, A: 255},
	"List-item":          {R: 0, G: 128, B: 255, A: 255},
	"Check-box":          {R: 128, G: 128, B: 128, A: 255},
}

// Color returns the colour of a class, falling back to a colour derived
// from the name for classes the palette does not list.
func (p Palette) Color(name string) color.RGBA {
	if c, ok := p[name]; ok {
		return c
	}
	return HashColor(name)
}

// HashColor derives a stable saturated colour from a class name.
func HashColor(name string) color.RGBA {
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	hue := float32(h.Sum32()%360) / 360
	return hsvToRGB(hue, 0.75, 1.0)
}

// TextColor picks black or white text for a background by perceived luminance.
func TextColor(bg color.RGBA) color.RGBA {
	y := 0.299*float32(bg.R) + 0.587*float32(bg.G) + 0.114*float32(bg.B)
	if y > 170 {
		return color.RGBA{A: 255}
	}
	return color.RGBA{R: 255, G: 255, B: 255, A: 255}
}

func hsvToRGB(h, s, v float32) color.RGBA {
	i := math32.Floor(h * 6)
	f := h*6 - i
	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float32
	switch int(i) % 6 {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}
	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 255}
}
