package render

import (
	"context"
	"fmt"

	"github.com/rahul/onboardly/internal/dom"
)

// SpotlightPadding is the gap between the anchor and the cut-out edge.
const SpotlightPadding = 4.0

// Spotlight dims the page except for a cut-out around the anchor.
type Spotlight struct {
	ev Evaluator
}

func NewSpotlight(ev Evaluator) *Spotlight {
	return &Spotlight{ev: ev}
}

func (s *Spotlight) Show(ctx context.Context, target dom.Rect) error {
	style := fmt.Sprintf("top:%.1fpx;left:%.1fpx;width:%.1fpx;height:%.1fpx",
		target.Top-SpotlightPadding, target.Left-SpotlightPadding,
		target.Width+2*SpotlightPadding, target.Height+2*SpotlightPadding)
	if err := s.ev.Evaluate(ctx, mountScript(spotlightID, "div", "", "", style), nil); err != nil {
		return fmt.Errorf("show spotlight: %w", err)
	}
	return nil
}

// Hide removes the overlay. Hiding twice is harmless.
func (s *Spotlight) Hide(ctx context.Context) error {
	return s.ev.Evaluate(ctx, removeScript(spotlightID), nil)
}
