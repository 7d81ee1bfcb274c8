package images

import (
	"bytes"
	"image"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/image/tiff"
)

var (
	// ErrUnsupportedFormat is returned when the upload is not a known image format.
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrDecode is returned when OpenCV cannot decode the upload.
	ErrDecode = errors.New("image could not be decoded")
)

// Image is an uploaded image decoded once per request and shared by the
// detector (as image.Image) and the renderer (as a BGR gocv.Mat).
type Image struct {
	// The format of the image.
	Format ImageFormat
	// The encoded bytes as uploaded.
	Data []byte
	// The decoded BGR pixels.
	Mat gocv.Mat
	// The width of the image.
	Width int
	// The height of the image.
	Height int
}

// Decode decodes raw upload bytes into an Image.
//
// Arguments:
//   - data: The encoded image bytes.
//
// Returns:
//   - *Image: The decoded image. Callers must Close it.
//   - error: ErrUnsupportedFormat or ErrDecode.
func Decode(data []byte) (*Image, error) {
	format := DetectFormat(data)
	if format == FormatUnknown {
		return nil, ErrUnsupportedFormat
	}

	mat, err := decodeMat(format, data)
	if err != nil {
		return nil, errors.Wrap(ErrDecode, err.Error())
	}
	if mat.Empty() {
		mat.Close()
		return nil, ErrDecode
	}

	return &Image{
		Format: format,
		Data:   data,
		Mat:    mat,
		Width:  mat.Cols(),
		Height: mat.Rows(),
	}, nil
}

// decodeMat decodes TIFF scans in Go, since OpenCV builds without libtiff
// cannot read them, and everything else through OpenCV.
func decodeMat(format ImageFormat, data []byte) (gocv.Mat, error) {
	if format != FormatTIFF {
		return gocv.IMDecode(data, gocv.IMReadColor)
	}

	img, err := tiff.Decode(bytes.NewReader(data))
	if err != nil {
		return gocv.Mat{}, err
	}
	return gocv.ImageToMatRGB(img)
}

// ToImage converts the decoded pixels into a Go image for the detector.
func (i *Image) ToImage() (image.Image, error) {
	img, err := i.Mat.ToImage()
	if err != nil {
		return nil, errors.Wrap(err, "convert mat to image")
	}
	return img, nil
}

// Close releases the underlying OpenCV memory.
func (i *Image) Close() error {
	return i.Mat.Close()
}
