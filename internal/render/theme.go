package render

import "image/color"

// ColorClass names a themeable color role used by report blocks.
type ColorClass string

const (
	ClassPage   ColorClass = "bg-page"
	ClassCard   ColorClass = "bg-card"
	ClassHeader ColorClass = "bg-header"
	ClassText   ColorClass = "text-primary"
	ClassMuted  ColorClass = "text-muted"
	ClassBorder ColorClass = "border"
	ClassGood   ColorClass = "status-good"
	ClassBad    ColorClass = "status-bad"
	ClassNA     ColorClass = "status-na"
	ClassUnset  ColorClass = "status-unset"
)

// Palette resolves color classes to concrete colors.
type Palette map[ColorClass]color.RGBA

// Clone returns a copy that can be changed without touching p.
func (p Palette) Clone() Palette {
	out := make(Palette, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

type Theme struct {
	Name    string
	Palette Palette
}

func rgb(r, g, b uint8) color.RGBA { return color.RGBA{R: r, G: g, B: b, A: 0xff} }

var (
	StatusGood = rgb(0x16, 0xa3, 0x4a)
	StatusBad  = rgb(0xdc, 0x26, 0x26)
)

var Light = Theme{
	Name: "light",
	Palette: Palette{
		ClassPage:   rgb(0xf3, 0xf4, 0xf6),
		ClassCard:   rgb(0xff, 0xff, 0xff),
		ClassHeader: rgb(0xe5, 0xe7, 0xeb),
		ClassText:   rgb(0x11, 0x18, 0x27),
		ClassMuted:  rgb(0x6b, 0x72, 0x80),
		ClassBorder: rgb(0xd1, 0xd5, 0xdb),
		ClassGood:   StatusGood,
		ClassBad:    StatusBad,
		ClassNA:     rgb(0x9c, 0xa3, 0xaf),
		ClassUnset:  rgb(0xd9, 0x77, 0x06),
	},
}

var Dark = Theme{
	Name: "dark",
	Palette: Palette{
		ClassPage:   rgb(0x03, 0x07, 0x12),
		ClassCard:   rgb(0x11, 0x18, 0x27),
		ClassHeader: rgb(0x1f, 0x29, 0x37),
		ClassText:   rgb(0xf9, 0xfa, 0xfb),
		ClassMuted:  rgb(0x9c, 0xa3, 0xaf),
		ClassBorder: rgb(0x37, 0x41, 0x51),
		ClassGood:   StatusGood,
		ClassBad:    StatusBad,
		ClassNA:     rgb(0x6b, 0x72, 0x80),
		ClassUnset:  rgb(0xf5, 0x9e, 0x0b),
	},
}

func ThemeByName(name string) (Theme, bool) {
	switch name {
	case "", Light.Name:
		return Light, true
	case Dark.Name:
		return Dark, true
	default:
		return Theme{}, false
	}
}
