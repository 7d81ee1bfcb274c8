package images

import (
	"bytes"
	"net/http"
)

// ImageFormat represents supported upload formats.
type ImageFormat string

const (
	// FormatJPEG is the JPEG image format.
	FormatJPEG ImageFormat = "jpeg"
	// FormatPNG is the PNG image format.
	FormatPNG ImageFormat = "png"
	// FormatWebP is the WebP image format.
	FormatWebP ImageFormat = "webp"
	// FormatBMP is the BMP image format.
	FormatBMP ImageFormat = "bmp"
	// FormatTIFF is the TIFF image format, common for scanned pages.
	FormatTIFF ImageFormat = "tiff"
	// FormatUnknown is returned for anything OpenCV is not asked to decode.
	FormatUnknown ImageFormat = ""
)

var (
	tiffLittleEndian = []byte("II*\x00")
	tiffBigEndian    = []byte("MM\x00*")
)

// DetectFormat sniffs the image format from the leading bytes of data.
func DetectFormat(data []byte) ImageFormat {
	if bytes.HasPrefix(data, tiffLittleEndian) || bytes.HasPrefix(data, tiffBigEndian) {
		return FormatTIFF
	}

	switch http.DetectContentType(data) {
	case "image/jpeg":
		return FormatJPEG
	case "image/png":
		return FormatPNG
	case "image/webp":
		return FormatWebP
	case "image/bmp":
		return FormatBMP
	default:
		return FormatUnknown
	}
}
