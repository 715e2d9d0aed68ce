package raster

import (
	"bytes"
	"context"
	"fmt"
	"image/color"
	"image/png"
	"regexp"
	"testing"
	"time"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webitel/inspection-exporter/internal/domain/model/inspection"
	"github.com/webitel/inspection-exporter/internal/render"
)

func mountedSurface(t *testing.T, theme render.Theme) (*render.Surface, *render.View) {
	t.Helper()
	rec := &inspection.Record{
		ID:          1,
		Vehicle:     inspection.Vehicle{ID: 1, Name: "Truck"},
		InspectedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		Checks:      map[inspection.CheckName]inspection.CheckResult{"tyres": inspection.Defective},
		Comments:    "worn",
	}
	v, err := render.NewReportRenderer(nil, render.WithTheme(theme), render.WithWidth(300)).Render(context.Background(), rec)
	require.NoError(t, err)

	s := render.NewSurface()
	unmount, err := s.Mount(v)
	require.NoError(t, err)
	t.Cleanup(unmount)
	return s, v
}

func TestPrintSafeLeavesStatusColors(t *testing.T) {
	p := PrintSafe()
	_, good := p[render.ClassGood]
	_, bad := p[render.ClassBad]
	assert.False(t, good)
	assert.False(t, bad)
	for class := range render.Dark.Palette {
		if class == render.ClassGood || class == render.ClassBad {
			continue
		}
		assert.Contains(t, p, class)
	}
	assert.Equal(t, white, p[render.ClassPage])
}

func TestCaptureScalesAndRemovesOverride(t *testing.T) {
	s, v := mountedSurface(t, render.Dark)
	r := New(s)

	img, err := r.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, v.Width*2, img.Bounds().Dx())
	assert.Equal(t, v.VisibleHeight()*2, img.Bounds().Dy())

	c := img.NRGBAAt(0, 0)
	for _, ch := range []uint8{c.R, c.G, c.B} {
		assert.GreaterOrEqual(t, ch, uint8(0xf8))
	}

	assert.Nil(t, s.Override())
	assert.Equal(t, render.Dark.Palette[render.ClassPage], s.Resolve(render.ClassPage))
}

func TestCaptureFailureRemovesOverride(t *testing.T) {
	s, _ := mountedSurface(t, render.Dark)
	r := New(s, WithMaxPixels(10))

	_, err := r.PNG(context.Background())
	require.Error(t, err)
	assert.Nil(t, s.Override())
}

func TestCaptureWithoutView(t *testing.T) {
	_, err := New(render.NewSurface()).PNG(context.Background())
	assert.ErrorIs(t, err, ErrNothingMounted)
}

func TestDataURIRoundTrip(t *testing.T) {
	s, v := mountedSurface(t, render.Light)
	uri, err := New(s).DataURI(context.Background())
	require.NoError(t, err)
	assert.Contains(t, uri, "data:image/png;base64,")

	raw, err := DecodeDataURI(uri)
	require.NoError(t, err)
	img, err := png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, v.Width*2, img.Bounds().Dx())

	_, err = DecodeDataURI("data:text/plain,hi")
	assert.Error(t, err)
}

func TestSliceHeights(t *testing.T) {
	assert.Equal(t, []int{100, 100, 50}, SliceHeights(100, 250, 10, 10))
	assert.Equal(t, []int{40}, SliceHeights(100, 40, 10, 10))
	assert.Nil(t, SliceHeights(0, 40, 10, 10))
}

func TestPDF(t *testing.T) {
	s, _ := mountedSurface(t, render.Light)
	out, err := New(s).PDF(context.Background())
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
	assert.Nil(t, s.Override())
}

var pageObject = regexp.MustCompile(`/Type /Page\b`)

func TestPaginateTallCapture(t *testing.T) {
	cases := map[int]int{500: 1, 3000: 2, 8000: 4}
	for height, pages := range cases {
		t.Run(fmt.Sprintf("%dpx", height), func(t *testing.T) {
			img := imaging.New(2*render.DefaultWidth, height, color.White)
			out, err := paginate(img)
			require.NoError(t, err)
			assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
			assert.Len(t, pageObject.FindAll(out, -1), pages)
		})
	}
}
