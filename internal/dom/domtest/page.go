// Package domtest provides an in-memory dom.Page for tests.
package domtest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rahul/onboardly/internal/dom"
)

// ErrInvalidSelector is returned by Query for selectors registered with
// RejectSelector.
var ErrInvalidSelector = errors.New("invalid selector")

// Page is a mutable fake document. Elements are keyed by selector.
type Page struct {
	mu       sync.Mutex
	elements map[string]dom.Rect
	rejected map[string]bool
	viewport dom.Size
	subs     map[int]*subscription
	nextSub  int

	Scrolls     []string
	TopScrolls  int
	Subscribed  int
	QueryCounts map[string]int
}

// NewPage returns an empty page with the given viewport.
func NewPage(width, height float64) *Page {
	return &Page{
		elements:    make(map[string]dom.Rect),
		rejected:    make(map[string]bool),
		viewport:    dom.Size{Width: width, Height: height},
		subs:        make(map[int]*subscription),
		QueryCounts: make(map[string]int),
	}
}

// Add inserts (or moves) an element and notifies subscribers.
func (p *Page) Add(selector string, r dom.Rect) {
	p.mu.Lock()
	p.elements[selector] = r
	p.mu.Unlock()
	p.Mutate()
}

// Remove detaches an element and notifies subscribers.
func (p *Page) Remove(selector string) {
	p.mu.Lock()
	delete(p.elements, selector)
	p.mu.Unlock()
	p.Mutate()
}

// RejectSelector makes Query fail for selector, like a syntax error would.
func (p *Page) RejectSelector(selector string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rejected[selector] = true
}

// Mutate fires a change notification without altering the element set.
func (p *Page) Mutate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.subs {
		select {
		case s.ch <- struct{}{}:
		default:
		}
	}
}

// ActiveSubscriptions reports subscriptions not yet closed.
func (p *Page) ActiveSubscriptions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.subs)
}

// Queries reports how many times selector was queried.
func (p *Page) Queries(selector string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.QueryCounts[selector]
}

// ScrollLog returns a copy of the selectors scrolled into view.
func (p *Page) ScrollLog() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.Scrolls...)
}

func (p *Page) Query(ctx context.Context, selector string) (dom.Element, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.QueryCounts[selector]++
	if p.rejected[selector] {
		return dom.Element{}, false, fmt.Errorf("%w: %q", ErrInvalidSelector, selector)
	}
	r, ok := p.elements[selector]
	if !ok {
		return dom.Element{}, false, nil
	}
	return dom.Element{Selector: selector, Bounds: r}, true, nil
}

func (p *Page) Subscribe(ctx context.Context) (dom.Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	id := p.nextSub
	p.nextSub++
	p.Subscribed++
	s := &subscription{ch: make(chan struct{}, 1), close: func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}}
	p.subs[id] = s
	return s, nil
}

func (p *Page) ScrollIntoView(ctx context.Context, el dom.Element) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Scrolls = append(p.Scrolls, el.Selector)
	return nil
}

func (p *Page) ScrollToTop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TopScrolls++
	return nil
}

func (p *Page) Bounds(ctx context.Context, el dom.Element) (dom.Rect, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.elements[el.Selector]
	if !ok {
		return dom.Rect{}, fmt.Errorf("element %q detached", el.Selector)
	}
	return r, nil
}

func (p *Page) Viewport(ctx context.Context) (dom.Size, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.viewport, nil
}

type subscription struct {
	ch    chan struct{}
	once  sync.Once
	close func()
}

func (s *subscription) Notify() <-chan struct{} { return s.ch }

func (s *subscription) Close() error {
	s.once.Do(s.close)
	return nil
}
