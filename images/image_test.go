package images

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/image/tiff"
)

func page(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 250, G: 250, B: 250, A: 255})
		}
	}
	return img
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func encodeTIFF(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate}))
	return buf.Bytes()
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want ImageFormat
	}{
		{"png", encodePNG(t, page(4, 4)), FormatPNG},
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0x10, 'J', 'F', 'I', 'F'}, FormatJPEG},
		{"bmp", []byte("BM\x00\x00\x00\x00"), FormatBMP},
		{"webp", []byte("RIFF\x00\x00\x00\x00WEBPVP8 "), FormatWebP},
		{"tiff little endian", []byte("II*\x00\x08\x00\x00\x00"), FormatTIFF},
		{"tiff big endian", []byte("MM\x00*\x00\x00\x00\x08"), FormatTIFF},
		{"pdf", []byte("%PDF-1.7"), FormatUnknown},
		{"empty", nil, FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.data))
		})
	}
}

func TestDecode_PNG(t *testing.T) {
	data := encodePNG(t, page(120, 80))

	img, err := Decode(data)
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, FormatPNG, img.Format)
	assert.Equal(t, 120, img.Width)
	assert.Equal(t, 80, img.Height)
	assert.Equal(t, data, img.Data)

	goImg, err := img.ToImage()
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 120, 80), goImg.Bounds())
}

func TestDecode_TIFF(t *testing.T) {
	img, err := Decode(encodeTIFF(t, page(64, 96)))
	require.NoError(t, err)
	defer img.Close()

	assert.Equal(t, FormatTIFF, img.Format)
	assert.Equal(t, 64, img.Width)
	assert.Equal(t, 96, img.Height)
	assert.Equal(t, 3, img.Mat.Channels())
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode([]byte("not an image at all"))
	assert.Equal(t, ErrUnsupportedFormat, errors.Cause(err))

	_, err = Decode([]byte("II*\x00garbage"))
	assert.Equal(t, ErrDecode, errors.Cause(err))

	truncated := encodePNG(t, page(32, 32))[:40]
	_, err = Decode(truncated)
	assert.Equal(t, ErrDecode, errors.Cause(err))
}
