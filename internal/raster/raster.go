// Package raster turns the view mounted on the render surface into PNG and
// PDF output.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/webitel/inspection-exporter/internal/render"
)

const (
	DefaultScale = 2
	// DefaultMaxPixels bounds the upscaled canvas.
	DefaultMaxPixels = 64 << 20

	dataURIPrefix = "data:image/png;base64,"
)

var ErrNothingMounted = errors.New("raster: no view mounted on the surface")

type Rasterizer struct {
	surface   *render.Surface
	scale     int
	maxPixels int
	log       *slog.Logger
}

type Option func(*Rasterizer)

func WithScale(s int) Option {
	return func(r *Rasterizer) {
		if s > 0 {
			r.scale = s
		}
	}
}

func WithMaxPixels(n int) Option {
	return func(r *Rasterizer) {
		if n > 0 {
			r.maxPixels = n
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(r *Rasterizer) { r.log = l } }

func New(surface *render.Surface, opts ...Option) *Rasterizer {
	r := &Rasterizer{
		surface:   surface,
		scale:     DefaultScale,
		maxPixels: DefaultMaxPixels,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Capture paints the mounted view with the print-safe override in place and
// returns it upscaled. The override is removed before Capture returns.
func (r *Rasterizer) Capture(ctx context.Context) (*image.NRGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v := r.surface.View()
	if v == nil {
		return nil, ErrNothingMounted
	}

	remove := r.surface.ApplyOverride(PrintSafe())
	defer remove()

	w, h := v.Width, v.VisibleHeight()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("raster: empty view %dx%d", w, h)
	}
	if w*r.scale*h*r.scale > r.maxPixels {
		return nil, fmt.Errorf("raster: canvas %dx%d exceeds %d pixels", w*r.scale, h*r.scale, r.maxPixels)
	}

	p := &painter{dst: image.NewRGBA(image.Rect(0, 0, w, h)), resolve: r.surface.Resolve}
	p.paint(v)
	if r.scale == 1 {
		return imaging.Clone(p.dst), nil
	}
	return imaging.Resize(p.dst, w*r.scale, h*r.scale, imaging.Lanczos), nil
}

func (r *Rasterizer) PNG(ctx context.Context) ([]byte, error) {
	img, err := r.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return encodePNG(img)
}

// DataURI returns the capture as a data:image/png;base64 URI.
func (r *Rasterizer) DataURI(ctx context.Context) (string, error) {
	b, err := r.PNG(ctx)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(b), nil
}

// DecodeDataURI is the inverse of DataURI.
func DecodeDataURI(uri string) ([]byte, error) {
	if len(uri) < len(dataURIPrefix) || uri[:len(dataURIPrefix)] != dataURIPrefix {
		return nil, fmt.Errorf("raster: not a png data uri")
	}
	return base64.StdEncoding.DecodeString(uri[len(dataURIPrefix):])
}

func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("raster: encode png: %w", err)
	}
	return buf.Bytes(), nil
}
