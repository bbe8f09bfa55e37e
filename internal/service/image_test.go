package service

import (
	"bytes"
	"image/jpeg"
	"testing"

	"github.com/bjhnbjh/vibecoding-camera/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImagingProcessor_Normalize(t *testing.T) {
	p := NewImagingProcessor()

	tests := []struct {
		name         string
		w, h         int
		maxDimension int
		wantW, wantH int
	}{
		{"landscape is fit", 400, 200, 100, 100, 50},
		{"portrait is fit", 150, 300, 100, 50, 100},
		{"small image kept", 80, 60, 100, 80, 60},
		{"no bound", 120, 90, 0, 120, 90},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := p.Normalize(testJPEG(t, tt.w, tt.h), tt.maxDimension)
			require.NoError(t, err)

			assert.Equal(t, domain.NormalizedContentType, out.ContentType)
			assert.Equal(t, tt.w, out.OriginalWidth)
			assert.Equal(t, tt.h, out.OriginalHeight)
			assert.Equal(t, tt.wantW, out.Width)
			assert.Equal(t, tt.wantH, out.Height)

			cfg, err := jpeg.DecodeConfig(bytes.NewReader(out.Data))
			require.NoError(t, err)
			assert.Equal(t, tt.wantW, cfg.Width)
		})
	}
}

func TestImagingProcessor_RejectsGarbage(t *testing.T) {
	_, err := NewImagingProcessor().Normalize([]byte("not an image"), 100)
	assert.Error(t, err)
}
