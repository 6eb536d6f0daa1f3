// Package dom holds the host-page vocabulary shared by the waiter, the
// placement solver and the engine: geometry, element handles and the page
// contract a host environment implements.
package dom

import "context"

// Rect is a bounding box in viewport (CSS pixel) coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Left   float64 `json:"left"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Bottom returns the y coordinate of the lower edge.
func (r Rect) Bottom() float64 { return r.Top + r.Height }

// Right returns the x coordinate of the right edge.
func (r Rect) Right() float64 { return r.Left + r.Width }

// Size is a width/height pair, used for panels and the viewport.
type Size struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Element is a resolved anchor. It is only a handle: the element may detach
// after resolution, so callers re-measure through Page.Bounds before use.
type Element struct {
	Selector string
	Bounds   Rect
}

// Subscription delivers structural change notifications until closed.
// Notifications are coalesced; a receiver must re-probe the page state.
type Subscription interface {
	Notify() <-chan struct{}
	Close() error
}

// Page is the host page the engine drives.
type Page interface {
	// Query resolves selector against the live document. A missing element
	// is reported with ok=false and a nil error.
	Query(ctx context.Context, selector string) (el Element, ok bool, err error)
	Subscribe(ctx context.Context) (Subscription, error)
	ScrollIntoView(ctx context.Context, el Element) error
	ScrollToTop(ctx context.Context) error
	Bounds(ctx context.Context, el Element) (Rect, error)
	Viewport(ctx context.Context) (Size, error)
}
