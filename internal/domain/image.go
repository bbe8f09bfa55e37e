// Package domain contains core business types and interfaces.
//
// This file defines limits and formats for submitted meal photos.
package domain

// SupportedImageTypes maps accepted upload MIME types to human-readable names.
// HEIC and WebP are rejected (no pure-Go decoder is registered for them).
var SupportedImageTypes = map[string]string{
	"image/jpeg": "JPEG",
	"image/png":  "PNG",
	"image/gif":  "GIF",
}

const (
	// MaxImageSize is the default maximum accepted upload size (10MB).
	MaxImageSize = 10 * 1024 * 1024

	// DefaultImageMaxDimension bounds the longest edge of the normalized
	// image sent to the analyzer.
	DefaultImageMaxDimension = 1568

	// NormalizedJPEGQuality is the JPEG quality of normalized images (0-100).
	NormalizedJPEGQuality = 85

	// NormalizedContentType is the MIME type of every dispatched image.
	NormalizedContentType = "image/jpeg"
)

// IsSupportedImageType reports whether contentType may be submitted.
func IsSupportedImageType(contentType string) bool {
	_, ok := SupportedImageTypes[contentType]
	return ok
}

// NormalizedImage is an upload after orientation, resizing and re-encoding.
type NormalizedImage struct {
	Data           []byte
	ContentType    string
	OriginalWidth  int
	OriginalHeight int
	Width          int
	Height         int
}
