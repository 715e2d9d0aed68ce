package raster

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/webitel/inspection-exporter/internal/render"
)

// painter draws a laid-out view at 1x, resolving colors through the surface
// so an installed override wins over the view theme.
type painter struct {
	dst     *image.RGBA
	resolve func(render.ColorClass) color.RGBA
}

func (p *painter) fill(r image.Rectangle, class render.ColorClass) {
	if class == "" {
		return
	}
	draw.Draw(p.dst, r, image.NewUniform(p.resolve(class)), image.Point{}, draw.Src)
}

func (p *painter) text(x, baseline int, s string, class render.ColorClass) {
	d := &font.Drawer{
		Dst:  p.dst,
		Src:  image.NewUniform(p.resolve(class)),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

func textWidth(s string) int {
	return font.MeasureString(basicfont.Face7x13, s).Round()
}

func (p *painter) paint(v *render.View) {
	p.fill(p.dst.Bounds(), render.ClassPage)
	for _, box := range v.Layout() {
		if !box.Rect.Overlaps(p.dst.Bounds()) {
			continue
		}
		p.paintBox(box)
	}
}

func (p *painter) paintBox(box render.Box) {
	b, r := box.Block, box.Rect
	p.fill(r, b.Background)
	mid := r.Min.Y + r.Dy()/2 + 4
	switch b.Kind {
	case render.BlockTitle:
		p.text(r.Min.X+8, mid, b.Text, b.Foreground)
		if b.Value != "" {
			p.text(r.Max.X-8-textWidth(b.Value), mid, b.Value, b.ValueClass)
		}
	case render.BlockField:
		label := b.Text + ":"
		p.text(r.Min.X, mid, label, b.Foreground)
		p.text(r.Min.X+textWidth(label)+render.GlyphWidth, mid, b.Value, b.ValueClass)
	case render.BlockSection:
		p.text(r.Min.X+8, mid, b.Text, b.Foreground)
	case render.BlockCheck:
		p.text(r.Min.X+8, mid, b.Text, b.Foreground)
		p.text(r.Max.X-8-textWidth(b.Value), mid, b.Value, b.ValueClass)
		p.fill(image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), render.ClassBorder)
	case render.BlockText:
		for i, line := range box.Lines {
			p.text(r.Min.X+8, r.Min.Y+4+(i+1)*render.LineHeight-4, line, b.Foreground)
		}
	case render.BlockPhotos:
		p.photos(r, b)
	case render.BlockDivider:
		p.fill(image.Rect(r.Min.X, mid-4, r.Max.X, mid-3), b.Background)
	}
}

func (p *painter) photos(r image.Rectangle, b render.Block) {
	for i, cell := range render.PhotoCells(r, len(b.Photos)) {
		img := b.Photos[i]
		if img == nil {
			p.fill(cell, render.ClassBorder)
			msg := "photo unavailable"
			p.text(cell.Min.X+(cell.Dx()-textWidth(msg))/2, cell.Min.Y+cell.Dy()/2, msg, b.Foreground)
			continue
		}
		fit := imaging.Fit(img, cell.Dx(), cell.Dy(), imaging.Lanczos)
		off := image.Pt(cell.Min.X+(cell.Dx()-fit.Bounds().Dx())/2, cell.Min.Y+(cell.Dy()-fit.Bounds().Dy())/2)
		draw.Draw(p.dst, fit.Bounds().Add(off), fit, fit.Bounds().Min, draw.Over)
	}
}
