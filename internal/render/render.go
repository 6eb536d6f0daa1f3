// Package render draws the tour's on-page chrome: the spotlight overlay,
// the step panel and the persistent reset button. Everything is injected
// into the host page through JavaScript evaluation, and button clicks come
// back through page bindings.
package render

import (
	"context"

	"github.com/microcosm-cc/bluemonday"

	"github.com/rahul/onboardly/internal/browser"
	"github.com/rahul/onboardly/internal/tour"
)

// Evaluator runs JavaScript in the host page.
type Evaluator interface {
	Evaluate(ctx context.Context, expr string, res any) error
}

// Host is an Evaluator that can also route page-side calls back to Go.
type Host interface {
	Evaluator
	Bind(ctx context.Context, name string, fn browser.BindingFunc) error
}

// Handlers are the panel's callbacks. A nil handler disables its control.
type Handlers struct {
	OnNext func(context.Context)
	OnPrev func(context.Context)
	OnSkip func(context.Context)
}

// Sanitizer cleans author-supplied step text before it reaches the page.
// Titles are reduced to plain text; bodies keep basic formatting.
type Sanitizer struct {
	title *bluemonday.Policy
	body  *bluemonday.Policy
}

func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		title: bluemonday.StrictPolicy(),
		body:  bluemonday.UGCPolicy(),
	}
}

func (s *Sanitizer) Title(in string) string { return s.title.Sanitize(in) }

func (s *Sanitizer) Body(in string) string { return s.body.Sanitize(in) }

// Content is what one panel shows.
type Content struct {
	TourID       string
	StepID       string
	Title        string
	Body         string
	Index        int
	Total        int
	ShowProgress bool
	AllowSkip    bool
}

// NewContent describes step index of def. It returns false for an index out
// of range.
func NewContent(def *tour.Definition, index int) (Content, bool) {
	step, ok := def.Step(index)
	if !ok {
		return Content{}, false
	}
	return Content{
		TourID:       def.TourID,
		StepID:       step.ID,
		Title:        step.Title,
		Body:         step.Content,
		Index:        index,
		Total:        len(def.Steps),
		ShowProgress: def.ShowProgress,
		AllowSkip:    def.SkipAllowed(),
	}, true
}

func (c Content) First() bool { return c.Index == 0 }

func (c Content) Last() bool { return c.Index >= c.Total-1 }

func (c Content) NextLabel() string {
	if c.Last() {
		return "Finish"
	}
	return "Next"
}

func (c Content) SkipLabel() string {
	if c.Last() {
		return "Close"
	}
	return "Skip"
}

// Percent is the progress bar fill for the current step.
func (c Content) Percent() int {
	if c.Total <= 0 {
		return 0
	}
	return (c.Index + 1) * 100 / c.Total
}
