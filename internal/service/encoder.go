package service

import (
	"bytes"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const (
	DefaultPhotoMaxWidth = 1600
	defaultJPEGQuality   = 80
)

// ImageEncoder turns an uploaded photo into the bytes that get stored.
type ImageEncoder interface {
	Encode(r io.Reader) (data []byte, contentType string, err error)
	Extension() string
}

// JPEGEncoder downsizes photos wider than MaxWidth and re-encodes them as JPEG.
type JPEGEncoder struct {
	MaxWidth int
	Quality  int
}

func NewJPEGEncoder(maxWidth int) *JPEGEncoder {
	if maxWidth <= 0 {
		maxWidth = DefaultPhotoMaxWidth
	}
	return &JPEGEncoder{MaxWidth: maxWidth, Quality: defaultJPEGQuality}
}

func (e *JPEGEncoder) Encode(r io.Reader) ([]byte, string, error) {
	img, err := imaging.Decode(r, imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("decode photo: %w", err)
	}
	if img.Bounds().Dx() > e.MaxWidth {
		img = imaging.Resize(img, e.MaxWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(e.Quality)); err != nil {
		return nil, "", fmt.Errorf("encode photo: %w", err)
	}
	return buf.Bytes(), "image/jpeg", nil
}

func (e *JPEGEncoder) Extension() string { return ".jpg" }
