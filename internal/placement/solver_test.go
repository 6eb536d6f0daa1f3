package placement

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rahul/onboardly/internal/dom"
)

var desktop = dom.Size{Width: 1280, Height: 800}

func TestCompute_DirectCandidateWhenRoom(t *testing.T) {
	s := NewSolver(desktop)
	target := dom.Rect{Top: 400, Left: 500, Width: 100, Height: 40}
	panel := dom.Size{Width: 300, Height: 150}

	tests := []struct {
		requested Placement
		want      Result
	}{
		{Top, Result{Top: 234, Left: 400, Placement: Top}},
		{Bottom, Result{Top: 456, Left: 400, Placement: Bottom}},
		{Left, Result{Top: 345, Left: 184, Placement: Left}},
		{Right, Result{Top: 345, Left: 616, Placement: Right}},
	}
	for _, tt := range tests {
		t.Run(string(tt.requested), func(t *testing.T) {
			assert.Equal(t, tt.want, s.Compute(target, panel, tt.requested))
		})
	}
}

func TestCompute_FlipsToOppositeSide(t *testing.T) {
	s := NewSolver(desktop)
	panel := dom.Size{Width: 300, Height: 150}

	tests := []struct {
		name      string
		target    dom.Rect
		requested Placement
		want      Result
	}{
		{
			name:      "flush top flips to bottom",
			target:    dom.Rect{Top: 0, Left: 500, Width: 100, Height: 40},
			requested: Top,
			want:      Result{Top: 56, Left: 400, Placement: Bottom},
		},
		{
			name:      "near bottom flips to top",
			target:    dom.Rect{Top: 700, Left: 500, Width: 100, Height: 40},
			requested: Bottom,
			want:      Result{Top: 534, Left: 400, Placement: Top},
		},
		{
			name:      "flush left flips to right",
			target:    dom.Rect{Top: 300, Left: 10, Width: 100, Height: 40},
			requested: Left,
			want:      Result{Top: 245, Left: 126, Placement: Right},
		},
		{
			name:      "near right edge flips to left",
			target:    dom.Rect{Top: 300, Left: 1150, Width: 100, Height: 40},
			requested: Right,
			want:      Result{Top: 245, Left: 834, Placement: Left},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Compute(tt.target, panel, tt.requested))
		})
	}
}

func TestCompute_DoesNotCascadePastOpposite(t *testing.T) {
	s := NewSolver(dom.Size{Width: 1280, Height: 300})
	target := dom.Rect{Top: 0, Left: 500, Width: 100, Height: 250}
	panel := dom.Size{Width: 300, Height: 150}

	got := s.Compute(target, panel, Top)

	// Bottom overflows as well, but the solver keeps it and clamps.
	assert.Equal(t, Bottom, got.Placement)
	assert.Equal(t, 134.0, got.Top)
}

func TestCompute_ClampsHorizontally(t *testing.T) {
	s := NewSolver(desktop)
	got := s.Compute(dom.Rect{Top: 400, Left: 0, Width: 40, Height: 40}, dom.Size{Width: 300, Height: 150}, Top)
	assert.Equal(t, 16.0, got.Left)
	assert.Equal(t, Top, got.Placement)
}

func TestCompute_OversizedPanelPinnedToPadding(t *testing.T) {
	s := NewSolver(desktop)
	got := s.Compute(dom.Rect{Top: 400, Left: 600, Width: 40, Height: 40}, dom.Size{Width: 2000, Height: 1000}, Bottom)
	assert.Equal(t, 16.0, got.Left)
	assert.Equal(t, 16.0, got.Top)
}

func TestCompute_UnknownPlacementDefaultsToTop(t *testing.T) {
	s := NewSolver(desktop)
	target := dom.Rect{Top: 400, Left: 500, Width: 100, Height: 40}
	panel := dom.Size{Width: 300, Height: 150}
	assert.Equal(t, s.Compute(target, panel, Top), s.Compute(target, panel, Placement("diagonal")))
	assert.Equal(t, s.Compute(target, panel, Top), s.Compute(target, panel, ""))
}

func TestCompute_Mobile(t *testing.T) {
	s := NewSolver(dom.Size{Width: 375, Height: 667})
	panel := dom.Size{Width: 335, Height: 150}
	assert.True(t, s.Mobile())

	above := s.Compute(dom.Rect{Top: 400, Left: 300, Width: 40, Height: 40}, panel, Right)
	assert.Equal(t, Result{Top: 230, Left: 20, Placement: Top, Centered: true}, above)

	below := s.Compute(dom.Rect{Top: 50, Left: 0, Width: 40, Height: 40}, panel, Top)
	assert.Equal(t, Result{Top: 110, Left: 20, Placement: Bottom, Centered: true}, below)

	// Below the fold: clamped back into the viewport.
	clamped := s.Compute(dom.Rect{Top: 10, Left: 0, Width: 40, Height: 640}, panel, Top)
	assert.Equal(t, Bottom, clamped.Placement)
	assert.Equal(t, 667.0-150-16, clamped.Top)
}

func TestCompute_ResultAlwaysInsideViewport(t *testing.T) {
	viewports := []dom.Size{desktop, {Width: 1024, Height: 600}, {Width: 400, Height: 700}}
	panel := dom.Size{Width: 320, Height: 180}
	placements := []Placement{Top, Bottom, Left, Right}

	for _, vp := range viewports {
		s := NewSolver(vp)
		for y := -200.0; y <= vp.Height+200; y += 97 {
			for x := -200.0; x <= vp.Width+200; x += 113 {
				for _, p := range placements {
					target := dom.Rect{Top: y, Left: x, Width: 120, Height: 48}
					got := s.Compute(target, panel, p)
					name := fmt.Sprintf("%v %v %s", vp, target, p)
					assert.GreaterOrEqual(t, got.Top, s.Padding, name)
					assert.LessOrEqual(t, got.Top, vp.Height-panel.Height-s.Padding, name)
					assert.GreaterOrEqual(t, got.Left, s.Padding, name)
					assert.LessOrEqual(t, got.Left, vp.Width-panel.Width-s.Padding, name)
				}
			}
		}
	}
}

func TestParseAndOpposite(t *testing.T) {
	assert.Equal(t, Left, Parse("left"))
	assert.Equal(t, Top, Parse("TOP"))
	assert.Equal(t, Bottom, Top.Opposite())
	assert.Equal(t, Right, Left.Opposite())
}
