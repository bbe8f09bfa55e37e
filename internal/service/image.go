// Package service contains the business logic layer.
//
// This file normalizes uploaded meal photos before they are stored and
// dispatched to the analyzer.
package service

import (
	"bytes"
	"fmt"
	"image"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/disintegration/imaging"
)

// ImageProcessor prepares uploaded images for analysis.
type ImageProcessor interface {
	// Normalize applies EXIF orientation, bounds the longest edge by
	// maxDimension while preserving aspect ratio, and re-encodes as JPEG.
	Normalize(data []byte, maxDimension int) (*domain.NormalizedImage, error)
}

// imagingProcessor implements ImageProcessor using the imaging library.
type imagingProcessor struct {
	quality int
}

// NewImagingProcessor creates a new processor using the imaging library.
func NewImagingProcessor() ImageProcessor {
	return &imagingProcessor{quality: domain.NormalizedJPEGQuality}
}

// Normalize decodes, orients, resizes and re-encodes data. Images already
// within bounds are re-encoded without resizing so metadata is stripped.
func (p *imagingProcessor) Normalize(data []byte, maxDimension int) (*domain.NormalizedImage, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	originalWidth, originalHeight := bounds.Dx(), bounds.Dy()

	var out image.Image = img
	if maxDimension > 0 && (originalWidth > maxDimension || originalHeight > maxDimension) {
		out = imaging.Fit(img, maxDimension, maxDimension, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	b := out.Bounds()
	return &domain.NormalizedImage{
		Data:           buf.Bytes(),
		ContentType:    domain.NormalizedContentType,
		OriginalWidth:  originalWidth,
		OriginalHeight: originalHeight,
		Width:          b.Dx(),
		Height:         b.Dy(),
	}, nil
}
