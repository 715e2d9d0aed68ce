package raster

import (
	"image/color"

	"github.com/webitel/inspection-exporter/internal/render"
)

var (
	white     = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	nearBlack = color.RGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}
	lightGray = color.RGBA{R: 0xd4, G: 0xd4, B: 0xd4, A: 0xff}
	midGray   = color.RGBA{R: 0x55, G: 0x55, B: 0x55, A: 0xff}
)

// PrintSafe is the override applied for the duration of a capture: dark
// text on white regardless of the active theme. The good and bad status
// colors are not part of it so they keep their theme values.
func PrintSafe() render.Palette {
	return render.Palette{
		render.ClassPage:   white,
		render.ClassCard:   white,
		render.ClassHeader: white,
		render.ClassText:   nearBlack,
		render.ClassMuted:  midGray,
		render.ClassBorder: lightGray,
		render.ClassNA:     midGray,
		render.ClassUnset:  midGray,
	}
}
