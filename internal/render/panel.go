package render

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rahul/onboardly/internal/dom"
	"github.com/rahul/onboardly/internal/placement"
)

// Panel is the step popover. Each Show issues a fresh token; clicks carrying
// an older token come from a panel that has since been replaced and are
// dropped.
type Panel struct {
	host      Host
	sanitizer *Sanitizer

	bindOnce sync.Once
	bindErr  error

	mu       sync.Mutex
	token    int
	handlers Handlers
}

func NewPanel(host Host, sanitizer *Sanitizer) *Panel {
	if sanitizer == nil {
		sanitizer = NewSanitizer()
	}
	return &Panel{host: host, sanitizer: sanitizer}
}

func (p *Panel) bind(ctx context.Context) error {
	p.bindOnce.Do(func() {
		for name, pick := range map[string]func(Handlers) func(context.Context){
			bindNext: func(h Handlers) func(context.Context) { return h.OnNext },
			bindPrev: func(h Handlers) func(context.Context) { return h.OnPrev },
			bindSkip: func(h Handlers) func(context.Context) { return h.OnSkip },
		} {
			pick := pick
			if err := p.host.Bind(ctx, name, func(ctx context.Context, payload string) {
				if fn := p.handler(payload, pick); fn != nil {
					fn(ctx)
				}
			}); err != nil {
				p.bindErr = fmt.Errorf("bind %s: %w", name, err)
				return
			}
		}
	})
	return p.bindErr
}

// handler returns the callback for a click carrying payload, or nil when
// the click is stale.
func (p *Panel) handler(payload string, pick func(Handlers) func(context.Context)) func(context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if payload != strconv.Itoa(p.token) {
		return nil
	}
	return pick(p.handlers)
}

// Measure renders c invisibly and returns the panel's size.
func (p *Panel) Measure(ctx context.Context, c Content) (dom.Size, error) {
	html, err := renderPanel(c, p.sanitizer, "", false)
	if err != nil {
		return dom.Size{}, err
	}
	style := "top:0;left:0;visibility:hidden"
	if err := p.host.Evaluate(ctx, mountScript(panelID, "div", "", html, style), nil); err != nil {
		return dom.Size{}, fmt.Errorf("render panel: %w", err)
	}
	var size dom.Size
	expr := `(() => { const r = document.getElementById(` + jsString(panelID) + `).getBoundingClientRect(); return { width: r.width, height: r.height }; })()`
	if err := p.host.Evaluate(ctx, expr, &size); err != nil {
		return dom.Size{}, fmt.Errorf("measure panel: %w", err)
	}
	return size, nil
}

// Show renders c at pos and routes its buttons to h.
func (p *Panel) Show(ctx context.Context, c Content, pos placement.Result, h Handlers) error {
	if err := p.bind(ctx); err != nil {
		return err
	}

	p.mu.Lock()
	p.token++
	token := strconv.Itoa(p.token)
	p.handlers = h
	p.mu.Unlock()

	html, err := renderPanel(c, p.sanitizer, token, !pos.Centered)
	if err != nil {
		return err
	}
	class := "ob-" + string(pos.Placement)
	style := fmt.Sprintf("top:%.1fpx;left:%.1fpx", pos.Top, pos.Left)
	if err := p.host.Evaluate(ctx, mountScript(panelID, "div", class, html, style), nil); err != nil {
		return fmt.Errorf("show panel: %w", err)
	}
	return nil
}

// Hide removes the panel and disarms its buttons.
func (p *Panel) Hide(ctx context.Context) error {
	p.mu.Lock()
	p.token++
	p.handlers = Handlers{}
	p.mu.Unlock()
	return p.host.Evaluate(ctx, removeScript(panelID), nil)
}

// ResetButton is the persistent "restart tour" control.
type ResetButton struct {
	host Host

	bindOnce sync.Once
	bindErr  error

	mu      sync.Mutex
	onReset func(context.Context)
}

func NewResetButton(host Host) *ResetButton {
	return &ResetButton{host: host}
}

func (r *ResetButton) Show(ctx context.Context, onReset func(context.Context)) error {
	r.bindOnce.Do(func() {
		r.bindErr = r.host.Bind(ctx, bindReset, func(ctx context.Context, _ string) {
			r.mu.Lock()
			fn := r.onReset
			r.mu.Unlock()
			if fn != nil {
				fn(ctx)
			}
		})
	})
	if r.bindErr != nil {
		return fmt.Errorf("bind %s: %w", bindReset, r.bindErr)
	}

	r.mu.Lock()
	r.onReset = onReset
	r.mu.Unlock()

	if err := r.host.Evaluate(ctx, mountScript(resetID, "div", "", resetMarkup, ""), nil); err != nil {
		return fmt.Errorf("show reset button: %w", err)
	}
	return nil
}

func (r *ResetButton) Hide(ctx context.Context) error {
	r.mu.Lock()
	r.onReset = nil
	r.mu.Unlock()
	return r.host.Evaluate(ctx, removeScript(resetID), nil)
}
