package render

import (
	"context"
	"errors"
	"image/color"
	"sync"
)

var ErrSurfaceBusy = errors.New("render surface already has a mounted view")

// Surface is the off-screen region report views are mounted on before they
// are painted. One surface is shared by the whole process and holds at most
// one view at a time.
type Surface struct {
	slot chan struct{}

	mu       sync.Mutex
	view     *View
	override Palette
}

func NewSurface() *Surface {
	return &Surface{slot: make(chan struct{}, 1)}
}

// Acquire blocks until the caller owns the surface or ctx is done.
func (s *Surface) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case s.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	var once sync.Once
	return func() { once.Do(func() { <-s.slot }) }, nil
}

// Mount places v on the surface. The returned func takes it off again.
func (s *Surface) Mount(v *View) (unmount func(), err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.view != nil {
		return nil, ErrSurfaceBusy
	}
	s.view = v
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.view == v {
			s.view = nil
		}
	}, nil
}

func (s *Surface) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.view
}

// ApplyOverride installs p on top of the mounted view's theme. The returned
// func removes it.
func (s *Surface) ApplyOverride(p Palette) (remove func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.override = p.Clone()
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.override = nil
	}
}

// Override returns the active override, nil when none is installed.
func (s *Surface) Override() Palette {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.override == nil {
		return nil
	}
	return s.override.Clone()
}

// Resolve returns the color for class, override first, then the view theme.
func (s *Surface) Resolve(class ColorClass) color.RGBA {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.override[class]; ok {
		return c
	}
	if s.view != nil {
		if c, ok := s.view.Theme.Palette[class]; ok {
			return c
		}
	}
	return color.RGBA{A: 0xff}
}
