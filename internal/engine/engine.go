// Package engine runs one guided tour against one page: it restores
// progress, waits for each step's anchor, positions the spotlight and panel,
// and reports lifecycle events.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rahul/onboardly/internal/analytics"
	"github.com/rahul/onboardly/internal/dom"
	"github.com/rahul/onboardly/internal/placement"
	"github.com/rahul/onboardly/internal/progress"
	"github.com/rahul/onboardly/internal/render"
	"github.com/rahul/onboardly/internal/store"
	"github.com/rahul/onboardly/internal/tour"
	"github.com/rahul/onboardly/internal/waiter"
)

const (
	DefaultScrollSettle = 300 * time.Millisecond
	DefaultResetSettle  = 1000 * time.Millisecond
)

// ErrNoSteps is returned by Start for a definition without steps.
var ErrNoSteps = errors.New("tour has no steps")

// Highlighter draws attention to the current anchor.
type Highlighter interface {
	Show(ctx context.Context, target dom.Rect) error
	Hide(ctx context.Context) error
}

// Panel shows the current step's text and controls. Show must not call the
// handlers synchronously.
type Panel interface {
	Measure(ctx context.Context, c render.Content) (dom.Size, error)
	Show(ctx context.Context, c render.Content, pos placement.Result, h render.Handlers) error
	Hide(ctx context.Context) error
}

// ResetControl is the persistent restart affordance.
type ResetControl interface {
	Show(ctx context.Context, onReset func(context.Context)) error
	Hide(ctx context.Context) error
}

// Config wires an Engine. Reset, Sink and Source are optional.
type Config struct {
	Page        dom.Page
	Highlighter Highlighter
	Panel       Panel
	Reset       ResetControl
	Store       store.Store
	Sink        analytics.Sink
	// Source, when set, is asked for a fresh definition on every restart so
	// edits made while the tour runs take effect.
	Source tour.Source

	WaitTimeout  time.Duration
	ScrollSettle time.Duration
	ResetSettle  time.Duration
	// SessionID stamps every event; a random one is used when empty.
	SessionID string
}

// StartStatus is the outcome of Start.
type StartStatus int

const (
	StatusStarted StartStatus = iota
	StatusAlreadyCompleted
	StatusAlreadySkipped
)

func (s StartStatus) String() string {
	switch s {
	case StatusStarted:
		return "started"
	case StatusAlreadyCompleted:
		return "already completed"
	case StatusAlreadySkipped:
		return "already skipped"
	}
	return fmt.Sprintf("StartStatus(%d)", int(s))
}

type StartResult struct {
	Status StartStatus
	// Index is the step the tour resumed at.
	Index int
}

// Snapshot is the engine state as seen from outside.
type Snapshot struct {
	TourID    string
	SessionID string
	Index     int
	State     progress.State
	// Displayed is the index of the step currently on screen, or -1.
	Displayed int
}

// Engine is safe for concurrent use. Every step presentation carries a
// generation number; starting another presentation, hiding, skipping or
// resetting cancels the pending one, and a superseded presentation never
// renders.
type Engine struct {
	cfg       Config
	waiter    *waiter.Waiter
	sink      analytics.Sink
	sessionID string

	mu      sync.Mutex
	def     *tour.Definition
	machine *progress.Machine
	gen     uint64
	cancel  context.CancelFunc
	shown   int
}

func New(cfg Config) *Engine {
	if cfg.WaitTimeout <= 0 {
		cfg.WaitTimeout = waiter.DefaultTimeout
	}
	if cfg.ScrollSettle < 0 {
		cfg.ScrollSettle = 0
	} else if cfg.ScrollSettle == 0 {
		cfg.ScrollSettle = DefaultScrollSettle
	}
	if cfg.ResetSettle < 0 {
		cfg.ResetSettle = 0
	} else if cfg.ResetSettle == 0 {
		cfg.ResetSettle = DefaultResetSettle
	}
	sink := cfg.Sink
	if sink == nil {
		sink = analytics.Discard{}
	}
	sessionID := cfg.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	return &Engine{
		cfg:       cfg,
		waiter:    waiter.New(cfg.Page),
		sink:      sink,
		sessionID: sessionID,
		shown:     -1,
	}
}

func (e *Engine) SessionID() string { return e.sessionID }

// Start restores progress for def and shows the current step. A tour that
// was already completed or skipped is not shown again; the result says
// which. The reset control is offered either way.
func (e *Engine) Start(ctx context.Context, def *tour.Definition) (StartResult, error) {
	if def == nil || len(def.Steps) == 0 {
		return StartResult{}, ErrNoSteps
	}

	e.mu.Lock()
	e.teardownLocked(ctx)
	m := progress.Restore(def.TourID, e.cfg.Store, len(def.Steps))
	e.def = def
	e.machine = m
	index := m.Index()
	state := m.State()
	e.mu.Unlock()

	if e.cfg.Reset != nil {
		if err := e.cfg.Reset.Show(ctx, e.onReset); err != nil {
			log.Printf("engine: show reset control: %v", err)
		}
	}

	switch state {
	case progress.Completed:
		return StartResult{Status: StatusAlreadyCompleted, Index: index}, nil
	case progress.Skipped:
		return StartResult{Status: StatusAlreadySkipped, Index: index}, nil
	}

	e.emit(ctx, def.TourID, analytics.TourStarted, nil)
	e.showStep(ctx, index)
	return StartResult{Status: StatusStarted, Index: index}, nil
}

func (e *Engine) onReset(ctx context.Context) {
	if _, err := e.ResetAndRestart(ctx); err != nil {
		log.Printf("engine: restart: %v", err)
	}
}

// Advance completes the displayed step and moves on, finishing the tour
// after the last step. It is a no-op while no step is displayed.
func (e *Engine) Advance(ctx context.Context) {
	e.mu.Lock()
	index := e.shown
	e.mu.Unlock()
	if index >= 0 {
		e.advanceFrom(ctx, index)
	}
}

// advanceFrom advances only if step index is still the one on screen, so a
// repeated click on the same panel counts once.
func (e *Engine) advanceFrom(ctx context.Context, index int) {
	e.mu.Lock()
	if e.machine == nil || !e.machine.Active() || e.shown != index || e.machine.Index() != index {
		e.mu.Unlock()
		return
	}
	e.shown = -1
	e.mu.Unlock()
	e.advance(ctx, 0)
}

// advance is the shared next path of the panel and of step failures. A
// nonzero gen ties the advance to that presentation: once it is superseded
// the advance is dropped.
func (e *Engine) advance(ctx context.Context, gen uint64) {
	e.mu.Lock()
	if e.machine == nil || !e.machine.Active() || (gen != 0 && e.gen != gen) {
		e.mu.Unlock()
		return
	}
	def, m := e.def, e.machine
	index := m.Index()
	e.mu.Unlock()

	step, _ := def.Step(index)
	e.emit(ctx, def.TourID, analytics.StepCompleted, map[string]any{"stepId": step.ID, "stepIndex": index})

	e.mu.Lock()
	if e.machine != m || (gen != 0 && e.gen != gen) {
		e.mu.Unlock()
		return
	}
	if m.Next(len(def.Steps)) {
		next := m.Index()
		e.mu.Unlock()
		e.showStep(ctx, next)
		return
	}
	e.mu.Unlock()

	e.emit(ctx, def.TourID, analytics.TourCompleted, nil)
	e.mu.Lock()
	if e.machine == m {
		m.Complete()
		e.teardownLocked(ctx)
	}
	e.mu.Unlock()
}

// Retreat shows the previous step; a no-op on the first step.
func (e *Engine) Retreat(ctx context.Context) {
	e.mu.Lock()
	index := e.shown
	e.mu.Unlock()
	if index >= 0 {
		e.retreatFrom(ctx, index)
	}
}

func (e *Engine) retreatFrom(ctx context.Context, index int) {
	e.mu.Lock()
	if e.machine == nil || e.shown != index || e.machine.Index() != index || !e.machine.Prev() {
		e.mu.Unlock()
		return
	}
	e.shown = -1
	prev := e.machine.Index()
	e.mu.Unlock()
	e.showStep(ctx, prev)
}

// Skip ends the tour as skipped and removes the overlay.
func (e *Engine) Skip(ctx context.Context) {
	e.mu.Lock()
	if e.machine == nil || !e.machine.Active() {
		e.mu.Unlock()
		return
	}
	tourID := e.def.TourID
	e.mu.Unlock()

	e.emit(ctx, tourID, analytics.TourSkipped, nil)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.machine.Skip()
	e.teardownLocked(ctx)
}

// ResetAndRestart forgets the tour's progress, scrolls to the top, lets the
// page settle and starts the tour again from the first step. With a Source
// configured the definition is reloaded first; a reload failure keeps the
// definition already in use.
func (e *Engine) ResetAndRestart(ctx context.Context) (StartResult, error) {
	e.mu.Lock()
	def, m := e.def, e.machine
	if def == nil {
		e.mu.Unlock()
		return StartResult{}, ErrNoSteps
	}
	e.teardownLocked(ctx)
	gen := e.gen
	rctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	err := m.Reset()
	e.mu.Unlock()
	defer cancel()

	if err != nil {
		log.Printf("engine: %v", err)
	}
	if err := e.cfg.Page.ScrollToTop(rctx); err != nil {
		log.Printf("engine: scroll to top: %v", err)
	}
	if err := sleep(rctx, e.cfg.ResetSettle); err != nil {
		return StartResult{}, err
	}
	if e.cfg.Source != nil {
		fresh, err := e.cfg.Source.Load(rctx, def.TourID)
		if err != nil {
			log.Printf("engine: reload %s, keeping previous definition: %v", def.TourID, err)
		} else {
			def = fresh
		}
	}
	if !e.current(gen) {
		return StartResult{}, context.Canceled
	}
	return e.Start(ctx, def)
}

// Hide cancels any pending step and removes the spotlight and panel. The
// tour's progress is untouched.
func (e *Engine) Hide(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.teardownLocked(ctx)
}

// Close hides everything, including the reset control.
func (e *Engine) Close(ctx context.Context) {
	e.Hide(ctx)
	if e.cfg.Reset != nil {
		if err := e.cfg.Reset.Hide(ctx); err != nil {
			log.Printf("engine: hide reset control: %v", err)
		}
	}
}

func (e *Engine) Status() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	s := Snapshot{SessionID: e.sessionID, Displayed: e.shown}
	if e.machine != nil {
		s.TourID = e.machine.TourID()
		s.Index = e.machine.Index()
		s.State = e.machine.State()
	}
	return s
}

// teardownLocked supersedes the pending presentation and hides the
// overlay. e.mu must be held.
func (e *Engine) teardownLocked(ctx context.Context) {
	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	e.gen++
	e.shown = -1
	if err := e.cfg.Highlighter.Hide(ctx); err != nil {
		log.Printf("engine: hide highlight: %v", err)
	}
	if err := e.cfg.Panel.Hide(ctx); err != nil {
		log.Printf("engine: hide panel: %v", err)
	}
}

func (e *Engine) current(gen uint64) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gen == gen
}

// showStep presents step index. A failure that is not a supersession is
// reported as step_error and recovered by advancing.
func (e *Engine) showStep(parent context.Context, index int) {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	e.gen++
	gen := e.gen
	e.shown = -1
	ctx, cancel := context.WithCancel(parent)
	e.cancel = cancel
	def := e.def
	e.mu.Unlock()
	defer cancel()

	step, ok := def.Step(index)
	if !ok {
		return
	}

	err := e.present(ctx, gen, def, index, step)
	switch {
	case err == nil:
		e.emit(parent, def.TourID, analytics.StepViewed, map[string]any{"stepId": step.ID, "stepIndex": index})
		return
	case errors.Is(err, errSuperseded), ctx.Err() != nil:
		return
	}

	if !e.current(gen) {
		return
	}
	log.Printf("engine: failed to show step %s: %v", step.ID, err)
	e.emit(parent, def.TourID, analytics.StepError, map[string]any{"stepId": step.ID, "error": err.Error()})
	e.advance(parent, gen)
}

var errSuperseded = errors.New("presentation superseded")

func (e *Engine) present(ctx context.Context, gen uint64, def *tour.Definition, index int, step tour.Step) error {
	el, err := e.waiter.Wait(ctx, step.TargetSelector, e.cfg.WaitTimeout)
	if err != nil {
		return err
	}
	if err := e.cfg.Page.ScrollIntoView(ctx, el); err != nil {
		return err
	}
	// Geometry measured mid-scroll would be stale.
	if err := sleep(ctx, e.cfg.ScrollSettle); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.gen != gen {
		return errSuperseded
	}

	target, err := e.cfg.Page.Bounds(ctx, el)
	if err != nil {
		return err
	}
	viewport, err := e.cfg.Page.Viewport(ctx)
	if err != nil {
		return fmt.Errorf("read viewport: %w", err)
	}
	content, _ := render.NewContent(def, index)
	size, err := e.cfg.Panel.Measure(ctx, content)
	if err != nil {
		return err
	}
	pos := placement.NewSolver(viewport).Compute(target, size, step.RequestedPlacement())

	if err := e.cfg.Highlighter.Show(ctx, target); err != nil {
		return err
	}
	handlers := render.Handlers{
		OnNext: func(ctx context.Context) { e.advanceFrom(ctx, index) },
		OnPrev: func(ctx context.Context) { e.retreatFrom(ctx, index) },
	}
	if content.AllowSkip {
		handlers.OnSkip = e.Skip
	}
	if err := e.cfg.Panel.Show(ctx, content, pos, handlers); err != nil {
		return err
	}
	e.shown = index
	return nil
}

func (e *Engine) emit(ctx context.Context, tourID string, typ analytics.EventType, data map[string]any) {
	e.sink.Track(ctx, analytics.Event{
		TourID:    tourID,
		Type:      typ,
		Timestamp: time.Now(),
		SessionID: e.sessionID,
		Data:      data,
	})
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
