// Package placement computes where a floating panel renders next to an
// anchor element so that it stays inside the viewport.
package placement

import (
	"math"

	"github.com/rahul/onboardly/internal/dom"
)

// Placement is the side of the anchor a panel is attached to.
type Placement string

const (
	Top    Placement = "top"
	Bottom Placement = "bottom"
	Left   Placement = "left"
	Right  Placement = "right"
)

const (
	DefaultPadding          = 16.0
	DefaultMobileBreakpoint = 768.0
	DefaultMobileGap        = 20.0
)

// Parse maps a requested placement string to a Placement, defaulting to Top
// for empty or unknown values.
func Parse(s string) Placement {
	switch p := Placement(s); p {
	case Top, Bottom, Left, Right:
		return p
	default:
		return Top
	}
}

// Opposite returns the placement on the other side of the anchor.
func (p Placement) Opposite() Placement {
	switch p {
	case Top:
		return Bottom
	case Bottom:
		return Top
	case Left:
		return Right
	case Right:
		return Left
	}
	return Bottom
}

// Result is a panel position in viewport coordinates. Placement is the side
// actually used after fallback; Centered marks the mobile layout where the
// panel is centred horizontally in the viewport.
type Result struct {
	Top       float64   `json:"top"`
	Left      float64   `json:"left"`
	Placement Placement `json:"placement"`
	Centered  bool      `json:"centered"`
}

// Solver holds the viewport and layout constants for one computation.
type Solver struct {
	Viewport         dom.Size
	Padding          float64
	MobileBreakpoint float64
	MobileGap        float64
}

// NewSolver returns a Solver for viewport with the default constants.
func NewSolver(viewport dom.Size) Solver {
	return Solver{
		Viewport:         viewport,
		Padding:          DefaultPadding,
		MobileBreakpoint: DefaultMobileBreakpoint,
		MobileGap:        DefaultMobileGap,
	}
}

// Mobile reports whether the viewport uses the narrow layout.
func (s Solver) Mobile() bool {
	return s.Viewport.Width < s.MobileBreakpoint
}

// Compute positions a panel of the given size relative to target.
//
// The requested side is tried first. If it overflows the matching viewport
// edge the opposite side is used instead; there is no third attempt. The
// final position is always clamped into the viewport.
func (s Solver) Compute(target dom.Rect, panel dom.Size, requested Placement) Result {
	if s.Mobile() {
		return s.computeMobile(target, panel)
	}

	requested = Parse(string(requested))
	top, left := s.candidate(target, panel, requested)
	effective := requested
	if s.overflows(top, left, panel, requested) {
		effective = requested.Opposite()
		top, left = s.candidate(target, panel, effective)
	}

	return Result{
		Top:       clamp(top, s.Padding, s.Viewport.Height-panel.Height-s.Padding),
		Left:      clamp(left, s.Padding, s.Viewport.Width-panel.Width-s.Padding),
		Placement: effective,
	}
}

func (s Solver) candidate(target dom.Rect, panel dom.Size, p Placement) (top, left float64) {
	switch p {
	case Bottom:
		top = target.Bottom() + s.Padding
		left = target.Left + (target.Width-panel.Width)/2
	case Left:
		top = target.Top + (target.Height-panel.Height)/2
		left = target.Left - panel.Width - s.Padding
	case Right:
		top = target.Top + (target.Height-panel.Height)/2
		left = target.Right() + s.Padding
	default:
		top = target.Top - panel.Height - s.Padding
		left = target.Left + (target.Width-panel.Width)/2
	}
	return top, left
}

func (s Solver) overflows(top, left float64, panel dom.Size, p Placement) bool {
	switch p {
	case Bottom:
		return top+panel.Height > s.Viewport.Height-s.Padding
	case Left:
		return left < s.Padding
	case Right:
		return left+panel.Width > s.Viewport.Width-s.Padding
	default:
		return top < s.Padding
	}
}

// computeMobile centres the panel horizontally and only picks the vertical
// side: above the anchor when there is room, otherwise below.
func (s Solver) computeMobile(target dom.Rect, panel dom.Size) Result {
	res := Result{
		Left:      (s.Viewport.Width - panel.Width) / 2,
		Placement: Top,
		Centered:  true,
	}
	above := target.Top - panel.Height - s.MobileGap
	if above > s.MobileGap {
		res.Top = above
	} else {
		res.Top = target.Bottom() + s.MobileGap
		res.Placement = Bottom
	}
	res.Top = clamp(res.Top, s.Padding, s.Viewport.Height-panel.Height-s.Padding)
	res.Left = clamp(res.Left, s.Padding, s.Viewport.Width-panel.Width-s.Padding)
	return res
}

// clamp bounds v to [lo, hi]; lo wins when the range is empty so an oversized
// panel stays pinned to the top/left padding.
func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(v, hi))
}
