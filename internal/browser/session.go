// Package browser drives a Chrome tab through chromedp and exposes it as a
// dom.Page: element queries, smooth scrolling, viewport metrics and
// structural change notifications from a page-side MutationObserver.
package browser

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"

	"github.com/rahul/onboardly/internal/dom"
)

// ErrNotStarted is returned by every page operation before Start or after
// Close.
var ErrNotStarted = errors.New("browser session not started")

const mutationBinding = "__onboardlyMutation"

// observerScript runs in every new document and reports DOM changes through
// the mutation binding, at most once per 16ms.
const observerScript = `(() => {
  if (window.__onboardlyObserver) return;
  let pending = false;
  const notify = () => {
    if (pending) return;
    pending = true;
    setTimeout(() => {
      pending = false;
      if (typeof window.` + mutationBinding + ` === "function") window.` + mutationBinding + `("");
    }, 16);
  };
  window.__onboardlyObserver = new MutationObserver(notify);
  window.__onboardlyObserver.observe(document, { childList: true, subtree: true, attributes: true });
})();`

// Options configures the Chrome process.
type Options struct {
	Headless bool
	Width    int
	Height   int
	ExecPath string
}

// BindingFunc handles a call to a page-side binding. It runs on its own
// goroutine.
type BindingFunc func(ctx context.Context, payload string)

// Session owns one browser and one tab.
type Session struct {
	mu            sync.Mutex
	opts          Options
	allocCtx      context.Context
	browserCtx    context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc

	baseCtx    context.Context
	baseCancel context.CancelFunc

	bindings map[string]BindingFunc
	subs     map[int]*subscription
	nextSub  int
}

func NewSession(opts Options) *Session {
	if opts.Width <= 0 {
		opts.Width = 1280
	}
	if opts.Height <= 0 {
		opts.Height = 800
	}
	return &Session{
		opts:     opts,
		bindings: make(map[string]BindingFunc),
		subs:     make(map[int]*subscription),
	}
}

// Start launches the browser, installs the mutation observer and registers
// every binding added so far.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.browserCtx != nil {
		select {
		case <-s.browserCtx.Done():
			s.cleanup()
		default:
			s.mu.Unlock()
			return nil
		}
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.NoSandbox,
		chromedp.Flag("headless", s.opts.Headless),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
		chromedp.WindowSize(s.opts.Width, s.opts.Height),
	)
	if s.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(s.opts.ExecPath))
	}

	s.allocCtx, s.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	s.browserCtx, s.browserCancel = chromedp.NewContext(s.allocCtx)
	s.baseCtx, s.baseCancel = context.WithCancel(context.Background())
	browserCtx := s.browserCtx

	names := make([]string, 0, len(s.bindings)+1)
	names = append(names, mutationBinding)
	for name := range s.bindings {
		names = append(names, name)
	}
	s.mu.Unlock()

	chromedp.ListenTarget(browserCtx, func(ev any) {
		if e, ok := ev.(*runtime.EventBindingCalled); ok {
			go s.dispatch(e.Name, e.Payload)
		}
	})

	actions := []chromedp.Action{
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(observerScript).Do(ctx)
			return err
		}),
	}
	for _, name := range names {
		actions = append(actions, runtime.AddBinding(name))
	}
	if err := s.run(ctx, actions...); err != nil {
		s.Close()
		return fmt.Errorf("failed to initialize browser: %w", err)
	}
	return nil
}

// Close shuts the browser down. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleanup()
	clear(s.subs)
	return nil
}

func (s *Session) cleanup() {
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
	if s.baseCancel != nil {
		s.baseCancel()
	}
	s.browserCtx = nil
	s.allocCtx = nil
}

// Done is closed when the browser exits or the session is closed.
func (s *Session) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCtx == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.browserCtx.Done()
}

// Bind registers fn for calls to window.<name>(payload) in the page.
func (s *Session) Bind(ctx context.Context, name string, fn BindingFunc) error {
	s.mu.Lock()
	s.bindings[name] = fn
	started := s.browserCtx != nil
	s.mu.Unlock()
	if !started {
		return nil
	}
	return s.run(ctx, runtime.AddBinding(name))
}

func (s *Session) dispatch(name, payload string) {
	s.mu.Lock()
	if name == mutationBinding {
		for _, sub := range s.subs {
			sub.notify()
		}
		s.mu.Unlock()
		return
	}
	fn := s.bindings[name]
	ctx := s.baseCtx
	s.mu.Unlock()

	if fn == nil {
		log.Printf("browser: call to unregistered binding %s", name)
		return
	}
	fn(ctx, payload)
}

// run executes actions against the tab, cancelled when either ctx or the
// session ends.
func (s *Session) run(ctx context.Context, actions ...chromedp.Action) error {
	s.mu.Lock()
	bctx := s.browserCtx
	s.mu.Unlock()
	if bctx == nil {
		return ErrNotStarted
	}
	runCtx, cancel := context.WithCancel(bctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// Navigate loads url in the tab.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate to %s: %w", url, err)
	}
	return nil
}

// Evaluate runs a JavaScript expression and decodes its result into res,
// which may be nil.
func (s *Session) Evaluate(ctx context.Context, expr string, res any) error {
	return s.run(ctx, chromedp.Evaluate(expr, res))
}

// ------------------------------------------------------------
// dom.Page
// ------------------------------------------------------------

type queryResult struct {
	Found bool `json:"found"`
	dom.Rect
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func rectScript(selector string) string {
	return `(() => {
  const el = document.querySelector(` + quote(selector) + `);
  if (!el) return { found: false };
  const r = el.getBoundingClientRect();
  return { found: true, top: r.top, left: r.left, width: r.width, height: r.height };
})()`
}

func (s *Session) Query(ctx context.Context, selector string) (dom.Element, bool, error) {
	var res queryResult
	if err := s.Evaluate(ctx, rectScript(selector), &res); err != nil {
		return dom.Element{}, false, fmt.Errorf("query %q: %w", selector, err)
	}
	if !res.Found {
		return dom.Element{}, false, nil
	}
	return dom.Element{Selector: selector, Bounds: res.Rect}, true, nil
}

func (s *Session) Bounds(ctx context.Context, el dom.Element) (dom.Rect, error) {
	got, ok, err := s.Query(ctx, el.Selector)
	if err != nil {
		return dom.Rect{}, err
	}
	if !ok {
		return dom.Rect{}, fmt.Errorf("element %q is no longer attached", el.Selector)
	}
	return got.Bounds, nil
}

func (s *Session) ScrollIntoView(ctx context.Context, el dom.Element) error {
	expr := `(() => {
  const el = document.querySelector(` + quote(el.Selector) + `);
  if (!el) return false;
  el.scrollIntoView({ behavior: "smooth", block: "center" });
  return true;
})()`
	var ok bool
	if err := s.Evaluate(ctx, expr, &ok); err != nil {
		return fmt.Errorf("scroll to %q: %w", el.Selector, err)
	}
	if !ok {
		return fmt.Errorf("element %q is no longer attached", el.Selector)
	}
	return nil
}

func (s *Session) ScrollToTop(ctx context.Context) error {
	return s.Evaluate(ctx, `window.scrollTo({ top: 0, behavior: "smooth" }), true`, nil)
}

func (s *Session) Viewport(ctx context.Context) (dom.Size, error) {
	var size dom.Size
	err := s.Evaluate(ctx, `({ width: window.innerWidth, height: window.innerHeight })`, &size)
	return size, err
}

// Subscribe starts delivering change notifications.
func (s *Session) Subscribe(context.Context) (dom.Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCtx == nil {
		return nil, ErrNotStarted
	}
	id := s.nextSub
	s.nextSub++
	sub := &subscription{s: s, id: id, ch: make(chan struct{}, 1)}
	s.subs[id] = sub
	return sub, nil
}

type subscription struct {
	s  *Session
	id int
	ch chan struct{}
}

func (sub *subscription) Notify() <-chan struct{} { return sub.ch }

// notify must be called with the session lock held.
func (sub *subscription) notify() {
	select {
	case sub.ch <- struct{}{}:
	default:
	}
}

func (sub *subscription) Close() error {
	sub.s.mu.Lock()
	defer sub.s.mu.Unlock()
	delete(sub.s.subs, sub.id)
	return nil
}

// ActiveSubscriptions reports how many subscriptions are open.
func (s *Session) ActiveSubscriptions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

var _ dom.Page = (*Session)(nil)
