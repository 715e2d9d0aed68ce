package render

import (
	"image"
	"strings"
)

type Overflow int

const (
	// OverflowHidden clips the view to MaxHeight, like a scrollable panel.
	OverflowHidden Overflow = iota
	OverflowVisible
)

// Constraints are the layout limits of the panel the view is shown in.
type Constraints struct {
	MaxHeight int
	Overflow  Overflow
}

type BlockKind int

const (
	BlockTitle BlockKind = iota
	BlockField
	BlockSection
	BlockCheck
	BlockText
	BlockPhotos
	BlockDivider
)

// Block is one laid-out element of a report view.
type Block struct {
	Kind       BlockKind
	Text       string
	Value      string
	Foreground ColorClass
	Background ColorClass
	ValueClass ColorClass
	// Photos holds decoded images; a nil entry is a photo that failed to load.
	Photos []image.Image
}

// Box is a block placed at its final position.
type Box struct {
	Block Block
	Rect  image.Rectangle
	Lines []string
}

const (
	GlyphWidth  = 7
	LineHeight  = 16
	Padding     = 16
	titleHeight = 40
	fieldHeight = 20
	rowHeight   = 22
	sectionGap  = 10
	photoGap    = 8
	photoCols   = 2
)

// View is the report view of one inspection, ready to be painted.
type View struct {
	RecordID    int64
	Width       int
	Theme       Theme
	Constraints Constraints
	Blocks      []Block
}

// RelaxConstraints lifts the height limit so the whole content is captured.
// The returned func puts the original constraints back.
func (v *View) RelaxConstraints() (restore func()) {
	saved := v.Constraints
	v.Constraints = Constraints{MaxHeight: 0, Overflow: OverflowVisible}
	return func() { v.Constraints = saved }
}

// Classes lists the color classes the view uses, page background first.
func (v *View) Classes() []ColorClass {
	seen := map[ColorClass]bool{ClassPage: true}
	out := []ColorClass{ClassPage}
	add := func(c ColorClass) {
		if c != "" && !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	for _, b := range v.Blocks {
		add(b.Background)
		add(b.Foreground)
		add(b.ValueClass)
	}
	return out
}

func (v *View) innerWidth() int {
	return v.Width - 2*Padding
}

// Layout stacks the blocks vertically and returns their boxes.
func (v *View) Layout() []Box {
	boxes := make([]Box, 0, len(v.Blocks))
	y := Padding
	inner := v.innerWidth()
	for _, b := range v.Blocks {
		box := Box{Block: b}
		h := 0
		switch b.Kind {
		case BlockTitle:
			h = titleHeight
		case BlockField:
			h = fieldHeight
		case BlockSection:
			y += sectionGap
			h = rowHeight + 4
		case BlockCheck:
			h = rowHeight
		case BlockText:
			box.Lines = Wrap(b.Text, inner/GlyphWidth)
			h = len(box.Lines)*LineHeight + 8
		case BlockPhotos:
			h = photoGridHeight(inner, len(b.Photos))
		case BlockDivider:
			h = 9
		}
		box.Rect = image.Rect(Padding, y, Padding+inner, y+h)
		boxes = append(boxes, box)
		y += h
	}
	return boxes
}

// ContentHeight is the full height of the laid-out content.
func (v *View) ContentHeight() int {
	boxes := v.Layout()
	if len(boxes) == 0 {
		return 2 * Padding
	}
	return boxes[len(boxes)-1].Rect.Max.Y + Padding
}

// VisibleHeight is what a capture of the view currently sees.
func (v *View) VisibleHeight() int {
	h := v.ContentHeight()
	if v.Constraints.Overflow == OverflowHidden && v.Constraints.MaxHeight > 0 && h > v.Constraints.MaxHeight {
		return v.Constraints.MaxHeight
	}
	return h
}

// PhotoCells splits a photo block into grid cells.
func PhotoCells(r image.Rectangle, n int) []image.Rectangle {
	cw, ch := photoCellSize(r.Dx())
	cells := make([]image.Rectangle, 0, n)
	for i := 0; i < n; i++ {
		col, row := i%photoCols, i/photoCols
		x := r.Min.X + col*(cw+photoGap)
		y := r.Min.Y + row*(ch+photoGap)
		cells = append(cells, image.Rect(x, y, x+cw, y+ch))
	}
	return cells
}

func photoCellSize(inner int) (int, int) {
	cw := (inner - (photoCols-1)*photoGap) / photoCols
	return cw, cw * 3 / 4
}

func photoGridHeight(inner, n int) int {
	if n == 0 {
		return 0
	}
	_, ch := photoCellSize(inner)
	rows := (n + photoCols - 1) / photoCols
	return rows*ch + (rows-1)*photoGap + photoGap
}

// Wrap breaks text into lines of at most width characters on word boundaries.
func Wrap(text string, width int) []string {
	if width <= 0 {
		width = 1
	}
	var lines []string
	for _, para := range strings.Split(text, "\n") {
		words := strings.Fields(para)
		if len(words) == 0 {
			lines = append(lines, "")
			continue
		}
		line := ""
		for _, w := range words {
			for len(w) > width {
				if line != "" {
					lines = append(lines, line)
					line = ""
				}
				lines = append(lines, w[:width])
				w = w[width:]
			}
			switch {
			case line == "":
				line = w
			case len(line)+1+len(w) <= width:
				line += " " + w
			default:
				lines = append(lines, line)
				line = w
			}
		}
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
