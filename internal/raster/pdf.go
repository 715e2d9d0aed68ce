package raster

import (
	"context"
	"encoding/base64"
	"fmt"
	"image"
	"math"

	"github.com/disintegration/imaging"
	"github.com/johnfercher/maroto/pkg/consts"
	"github.com/johnfercher/maroto/pkg/pdf"
	"github.com/johnfercher/maroto/pkg/props"
)

// pageSlack keeps a slice row clear of maroto's automatic page break.
const pageSlack = 2.0

// PDF captures the mounted view and lays it out on A4 portrait pages, one
// page-height slice of the single image per page.
func (r *Rasterizer) PDF(ctx context.Context) ([]byte, error) {
	img, err := r.Capture(ctx)
	if err != nil {
		return nil, err
	}
	return paginate(img)
}

func paginate(img image.Image) ([]byte, error) {
	m := pdf.NewMaroto(consts.Portrait, consts.A4)
	m.SetBorder(false)

	pageW, pageH := m.GetPageSize()
	left, top, right, bottom := m.GetPageMargins()
	usableW := pageW - left - right
	usableH := pageH - top - bottom - pageSlack

	b := img.Bounds()
	slices := SliceHeights(b.Dx(), b.Dy(), usableW, usableH)
	y := b.Min.Y
	for i, sh := range slices {
		part := imaging.Crop(img, image.Rect(b.Min.X, y, b.Max.X, y+sh))
		y += sh

		data, err := encodePNG(part)
		if err != nil {
			return nil, err
		}
		rowH := float64(sh) * usableW / float64(b.Dx())

		var imgErr error
		m.Row(rowH, func() {
			m.Col(12, func() {
				imgErr = m.Base64Image(base64.StdEncoding.EncodeToString(data), consts.Png, props.Rect{Percent: 100})
			})
		})
		if imgErr != nil {
			return nil, fmt.Errorf("raster: add page %d: %w", i+1, imgErr)
		}
		if i < len(slices)-1 {
			m.AddPage()
		}
	}

	buf, err := m.Output()
	if err != nil {
		return nil, fmt.Errorf("raster: generate pdf: %w", err)
	}
	return buf.Bytes(), nil
}

// SliceHeights splits an image of w x h pixels into the pixel heights of the
// page slices it takes when scaled to pageW and cut every pageH (both mm).
func SliceHeights(w, h int, pageW, pageH float64) []int {
	if w <= 0 || h <= 0 || pageW <= 0 || pageH <= 0 {
		return nil
	}
	per := int(math.Floor(pageH * float64(w) / pageW))
	if per < 1 {
		per = 1
	}
	out := make([]int, 0, h/per+1)
	for rest := h; rest > 0; rest -= per {
		out = append(out, min(per, rest))
	}
	return out
}
