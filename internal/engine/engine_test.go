package engine

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/rahul/onboardly/internal/analytics"
	"github.com/rahul/onboardly/internal/dom"
	"github.com/rahul/onboardly/internal/dom/domtest"
	"github.com/rahul/onboardly/internal/placement"
	"github.com/rahul/onboardly/internal/progress"
	"github.com/rahul/onboardly/internal/render"
	"github.com/rahul/onboardly/internal/store"
	"github.com/rahul/onboardly/internal/tour"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeHighlighter struct {
	mu      sync.Mutex
	visible bool
	targets []dom.Rect
}

func (f *fakeHighlighter) Show(_ context.Context, r dom.Rect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
	f.targets = append(f.targets, r)
	return nil
}

func (f *fakeHighlighter) Hide(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
	return nil
}

func (f *fakeHighlighter) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

type shownPanel struct {
	content  render.Content
	pos      placement.Result
	handlers render.Handlers
}

type fakePanel struct {
	mu      sync.Mutex
	visible bool
	shown   []shownPanel
}

func (f *fakePanel) Measure(context.Context, render.Content) (dom.Size, error) {
	return dom.Size{Width: 200, Height: 100}, nil
}

func (f *fakePanel) Show(_ context.Context, c render.Content, pos placement.Result, h render.Handlers) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = true
	f.shown = append(f.shown, shownPanel{content: c, pos: pos, handlers: h})
	return nil
}

func (f *fakePanel) Hide(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.visible = false
	return nil
}

func (f *fakePanel) Visible() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.visible
}

func (f *fakePanel) Shown() []shownPanel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]shownPanel(nil), f.shown...)
}

func (f *fakePanel) Last() shownPanel {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.shown[len(f.shown)-1]
}

type fakeReset struct {
	mu      sync.Mutex
	onReset func(context.Context)
}

func (f *fakeReset) Show(_ context.Context, fn func(context.Context)) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReset = fn
	return nil
}

func (f *fakeReset) Hide(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReset = nil
	return nil
}

type harness struct {
	page   *domtest.Page
	hl     *fakeHighlighter
	panel  *fakePanel
	reset  *fakeReset
	store  *store.MemoryStore
	events *analytics.Recorder
	engine *Engine
}

func newHarness(t *testing.T, selectors ...string) *harness {
	t.Helper()
	h := &harness{
		page:   domtest.NewPage(1280, 800),
		hl:     &fakeHighlighter{},
		panel:  &fakePanel{},
		reset:  &fakeReset{},
		store:  store.NewMemoryStore(),
		events: &analytics.Recorder{},
	}
	for i, sel := range selectors {
		h.page.Add(sel, dom.Rect{Top: 200 + float64(i)*100, Left: 400, Width: 120, Height: 40})
	}
	h.engine = New(Config{
		Page:         h.page,
		Highlighter:  h.hl,
		Panel:        h.panel,
		Reset:        h.reset,
		Store:        h.store,
		Sink:         h.events,
		WaitTimeout:  50 * time.Millisecond,
		ScrollSettle: time.Millisecond,
		ResetSettle:  time.Millisecond,
		SessionID:    "test-session",
	})
	return h
}

func definition(id string, selectors ...string) *tour.Definition {
	def := &tour.Definition{TourID: id}
	for _, sel := range selectors {
		def.Steps = append(def.Steps, tour.Step{ID: sel[1:], TargetSelector: sel, Title: sel})
	}
	return def
}

func TestEngine_ThreeStepTour(t *testing.T) {
	h := newHarness(t, "#nav", "#search", "#profile")
	def := definition("welcome", "#nav", "#search", "#profile")
	ctx := context.Background()

	res, err := h.engine.Start(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, res.Status)

	for i := 0; i < 3; i++ {
		assert.Equal(t, i, h.engine.Status().Displayed)
		h.engine.Advance(ctx)
	}

	assert.Equal(t, []analytics.EventType{
		analytics.TourStarted,
		analytics.StepViewed,
		analytics.StepCompleted,
		analytics.StepViewed,
		analytics.StepCompleted,
		analytics.StepViewed,
		analytics.StepCompleted,
		analytics.TourCompleted,
	}, h.events.Types())

	for _, evt := range h.events.Events() {
		assert.Equal(t, "welcome", evt.TourID)
		assert.Equal(t, "test-session", evt.SessionID)
	}
	viewed := h.events.Events()[3]
	assert.Equal(t, map[string]any{"stepId": "search", "stepIndex": 1}, viewed.Data)

	p, ok, err := h.store.Load("welcome")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, p.Completed)
	assert.Equal(t, 2, p.CurrentStepIndex)

	assert.False(t, h.hl.Visible())
	assert.False(t, h.panel.Visible())
	assert.Equal(t, []string{"#nav", "#search", "#profile"}, h.page.ScrollLog())

	// Terminal: further input is ignored.
	h.engine.Advance(ctx)
	h.engine.Retreat(ctx)
	assert.Len(t, h.events.Types(), 8)
	assert.Equal(t, progress.Completed, h.engine.Status().State)
}

func TestEngine_AlreadyCompleted(t *testing.T) {
	h := newHarness(t, "#nav")
	require.NoError(t, h.store.Save("welcome", store.Progress{CurrentStepIndex: 0, Completed: true}))

	res, err := h.engine.Start(context.Background(), definition("welcome", "#nav"))
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyCompleted, res.Status)
	assert.Empty(t, h.events.Types())
	assert.Empty(t, h.panel.Shown())
	assert.NotNil(t, h.reset.onReset, "reset control is offered for finished tours")
}

func TestEngine_CompletedTourStaysCompletedAfterStepsRemoved(t *testing.T) {
	h := newHarness(t, "#a", "#b", "#c")
	require.NoError(t, h.store.Save("welcome", store.Progress{CurrentStepIndex: 4, Completed: true}))

	res, err := h.engine.Start(context.Background(), definition("welcome", "#a", "#b", "#c"))
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyCompleted, res.Status)
	assert.Equal(t, 2, res.Index)
	assert.Empty(t, h.events.Types())
	assert.Empty(t, h.panel.Shown())
}

func TestEngine_AlreadySkipped(t *testing.T) {
	h := newHarness(t, "#nav")
	require.NoError(t, h.store.Save("welcome", store.Progress{CurrentStepIndex: 0, Skipped: true}))

	res, err := h.engine.Start(context.Background(), definition("welcome", "#nav"))
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadySkipped, res.Status)
	assert.Empty(t, h.events.Types())
}

func TestEngine_ResumesStoredStep(t *testing.T) {
	h := newHarness(t, "#a", "#b", "#c")
	require.NoError(t, h.store.Save("welcome", store.Progress{CurrentStepIndex: 1}))

	res, err := h.engine.Start(context.Background(), definition("welcome", "#a", "#b", "#c"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Index)
	assert.Equal(t, "b", h.panel.Last().content.StepID)
}

func TestEngine_StartRejectsEmptyTour(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), &tour.Definition{TourID: "empty"})
	assert.ErrorIs(t, err, ErrNoSteps)
}

func TestEngine_MissingAnchorAutoAdvances(t *testing.T) {
	h := newHarness(t, "#a", "#c")
	ctx := context.Background()

	_, err := h.engine.Start(ctx, definition("welcome", "#a", "#missing", "#c"))
	require.NoError(t, err)
	h.engine.Advance(ctx)

	assert.Equal(t, []analytics.EventType{
		analytics.TourStarted,
		analytics.StepViewed,
		analytics.StepCompleted,
		analytics.StepError,
		analytics.StepCompleted,
		analytics.StepViewed,
	}, h.events.Types())

	errEvt := h.events.Events()[3]
	assert.Equal(t, "missing", errEvt.Data["stepId"])
	assert.Contains(t, errEvt.Data["error"], `element with selector "#missing" not found within 50ms`)
	assert.Equal(t, 2, h.engine.Status().Displayed)
	assert.Equal(t, 0, h.page.ActiveSubscriptions())
}

func TestEngine_HideDuringStepErrorStopsAutoAdvance(t *testing.T) {
	h := newHarness(t, "#c")
	ctx := context.Background()
	h.engine.sink = analytics.Multi(h.events, analytics.SinkFunc(func(ctx context.Context, evt analytics.Event) {
		if evt.Type == analytics.StepError {
			h.engine.Hide(ctx)
		}
	}))

	_, err := h.engine.Start(ctx, definition("welcome", "#missing", "#c"))
	require.NoError(t, err)

	assert.Equal(t, []analytics.EventType{analytics.TourStarted, analytics.StepError}, h.events.Types())
	assert.Empty(t, h.panel.Shown())
	assert.False(t, h.panel.Visible())
	st := h.engine.Status()
	assert.Equal(t, 0, st.Index)
	assert.Equal(t, -1, st.Displayed)
	assert.Equal(t, progress.Active, st.State)
}

func TestEngine_MissingLastAnchorCompletes(t *testing.T) {
	h := newHarness(t)
	_, err := h.engine.Start(context.Background(), definition("welcome", "#missing"))
	require.NoError(t, err)

	assert.Equal(t, []analytics.EventType{
		analytics.TourStarted,
		analytics.StepError,
		analytics.StepCompleted,
		analytics.TourCompleted,
	}, h.events.Types())
	assert.Equal(t, progress.Completed, h.engine.Status().State)
}

func TestEngine_LateAnchorIsShown(t *testing.T) {
	h := newHarness(t)
	h.engine.cfg.WaitTimeout = 2 * time.Second

	go func() {
		time.Sleep(100 * time.Millisecond)
		h.page.Add("#late", dom.Rect{Top: 10, Left: 10, Width: 50, Height: 20})
	}()
	_, err := h.engine.Start(context.Background(), definition("welcome", "#late"))
	require.NoError(t, err)
	assert.Equal(t, []analytics.EventType{analytics.TourStarted, analytics.StepViewed}, h.events.Types())
}

func TestEngine_SupersededWaitNeverRenders(t *testing.T) {
	h := newHarness(t)
	h.engine.cfg.WaitTimeout = 5 * time.Second
	ctx := context.Background()

	done := make(chan StartResult, 1)
	go func() {
		res, _ := h.engine.Start(ctx, definition("welcome", "#late"))
		done <- res
	}()
	require.Eventually(t, func() bool { return h.page.ActiveSubscriptions() == 1 }, time.Second, 5*time.Millisecond)

	h.engine.Hide(ctx)
	select {
	case res := <-done:
		assert.Equal(t, StatusStarted, res.Status)
	case <-time.After(time.Second):
		t.Fatal("pending wait was not cancelled")
	}

	h.page.Add("#late", dom.Rect{Top: 10, Left: 10, Width: 50, Height: 20})
	time.Sleep(20 * time.Millisecond)

	assert.Empty(t, h.panel.Shown())
	assert.Equal(t, []analytics.EventType{analytics.TourStarted}, h.events.Types())
	assert.Equal(t, 0, h.page.ActiveSubscriptions())
}

func TestEngine_SkipTearsDown(t *testing.T) {
	h := newHarness(t, "#a", "#b")
	ctx := context.Background()

	_, err := h.engine.Start(ctx, definition("welcome", "#a", "#b"))
	require.NoError(t, err)
	require.True(t, h.panel.Visible())

	h.engine.Skip(ctx)
	assert.False(t, h.hl.Visible())
	assert.False(t, h.panel.Visible())
	assert.Equal(t, []analytics.EventType{analytics.TourStarted, analytics.StepViewed, analytics.TourSkipped}, h.events.Types())

	p, _, err := h.store.Load("welcome")
	require.NoError(t, err)
	assert.True(t, p.Skipped)

	h.engine.Advance(ctx)
	h.engine.Skip(ctx)
	assert.Len(t, h.events.Types(), 3)

	res, err := h.engine.Start(ctx, definition("welcome", "#a", "#b"))
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadySkipped, res.Status)
}

func TestEngine_Retreat(t *testing.T) {
	h := newHarness(t, "#a", "#b")
	ctx := context.Background()

	_, err := h.engine.Start(ctx, definition("welcome", "#a", "#b"))
	require.NoError(t, err)

	h.engine.Retreat(ctx)
	assert.Len(t, h.panel.Shown(), 1, "back on the first step is a no-op")
	assert.True(t, h.panel.Last().content.First())

	h.engine.Advance(ctx)
	h.engine.Retreat(ctx)
	shown := h.panel.Shown()
	require.Len(t, shown, 3)
	assert.Equal(t, "a", shown[2].content.StepID)
	assert.Equal(t, 0, h.engine.Status().Index)
}

func TestEngine_ResetAtIndexTwoOfFive(t *testing.T) {
	sels := []string{"#s1", "#s2", "#s3", "#s4", "#s5"}
	h := newHarness(t, sels...)
	ctx := context.Background()

	_, err := h.engine.Start(ctx, definition("welcome", sels...))
	require.NoError(t, err)
	h.engine.Advance(ctx)
	h.engine.Advance(ctx)
	require.Equal(t, 2, h.engine.Status().Index)
	h.events.Reset()

	res, err := h.engine.ResetAndRestart(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, res.Status)
	assert.Equal(t, 0, res.Index)

	_, ok, err := h.store.Load("welcome")
	require.NoError(t, err)
	assert.False(t, ok, "progress is cleared")
	assert.Equal(t, 1, h.page.TopScrolls)
	assert.Equal(t, []analytics.EventType{analytics.TourStarted, analytics.StepViewed}, h.events.Types())
	assert.Equal(t, 0, h.engine.Status().Displayed)
}

func TestEngine_ResetControlRestartsFinishedTour(t *testing.T) {
	h := newHarness(t, "#a")
	ctx := context.Background()
	require.NoError(t, h.store.Save("welcome", store.Progress{Completed: true}))

	_, err := h.engine.Start(ctx, definition("welcome", "#a"))
	require.NoError(t, err)

	h.reset.mu.Lock()
	onReset := h.reset.onReset
	h.reset.mu.Unlock()
	onReset(ctx)

	assert.Equal(t, []analytics.EventType{analytics.TourStarted, analytics.StepViewed}, h.events.Types())
	assert.Equal(t, progress.Active, h.engine.Status().State)
}

func TestEngine_RestartPicksUpEditedDefinition(t *testing.T) {
	h := newHarness(t, "#a", "#b")
	dir := t.TempDir()
	path := filepath.Join(dir, "welcome.yaml")
	write := func(body string) {
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	}
	write("tourId: welcome\nsteps:\n  - id: a\n    targetSelector: \"#a\"\n    title: Old\n    content: x\n")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := tour.NewFileSource(dir, nil)
	require.NoError(t, src.Watch(ctx))
	h.engine.cfg.Source = src

	def, err := src.Load(ctx, "welcome")
	require.NoError(t, err)
	_, err = h.engine.Start(ctx, def)
	require.NoError(t, err)
	assert.Equal(t, "Old", h.panel.Last().content.Title)

	write("tourId: welcome\nsteps:\n  - id: a\n    targetSelector: \"#a\"\n    title: New\n    content: x\n  - id: b\n    targetSelector: \"#b\"\n    title: Added\n    content: x\n")
	require.Eventually(t, func() bool {
		def, err := src.Load(ctx, "welcome")
		return err == nil && len(def.Steps) == 2
	}, 3*time.Second, 20*time.Millisecond)

	_, err = h.engine.ResetAndRestart(ctx)
	require.NoError(t, err)
	last := h.panel.Last().content
	assert.Equal(t, "New", last.Title)
	assert.Equal(t, 2, last.Total)
}

func TestEngine_RestartKeepsDefinitionWhenReloadFails(t *testing.T) {
	h := newHarness(t, "#a")
	h.engine.cfg.Source = tour.Static{}
	ctx := context.Background()

	_, err := h.engine.Start(ctx, definition("welcome", "#a"))
	require.NoError(t, err)
	res, err := h.engine.ResetAndRestart(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusStarted, res.Status)
	assert.Equal(t, "a", h.panel.Last().content.StepID)
}

func TestEngine_PanelHandlers(t *testing.T) {
	h := newHarness(t, "#a", "#b")
	ctx := context.Background()
	def := definition("welcome", "#a", "#b")
	no := false
	def.AllowSkip = &no

	_, err := h.engine.Start(ctx, def)
	require.NoError(t, err)

	first := h.panel.Last()
	assert.Nil(t, first.handlers.OnSkip, "skip is not wired when the tour disallows it")
	first.handlers.OnNext(ctx)
	first.handlers.OnNext(ctx)

	assert.Equal(t, []analytics.EventType{
		analytics.TourStarted,
		analytics.StepViewed,
		analytics.StepCompleted,
		analytics.StepViewed,
	}, h.events.Types(), "a double click only advances once")
}

func TestEngine_Placement(t *testing.T) {
	h := newHarness(t)
	h.page.Add("#edge", dom.Rect{Top: 300, Left: 1200, Width: 60, Height: 30})
	def := &tour.Definition{TourID: "welcome", Steps: []tour.Step{
		{ID: "edge", TargetSelector: "#edge", Placement: placement.Right},
	}}

	_, err := h.engine.Start(context.Background(), def)
	require.NoError(t, err)

	pos := h.panel.Last().pos
	assert.Equal(t, placement.Left, pos.Placement, "no room on the right flips to the left")
	assert.Equal(t, 1200.0-200-16, pos.Left)
}

func TestEngine_HideKeepsProgress(t *testing.T) {
	h := newHarness(t, "#a", "#b")
	ctx := context.Background()
	_, err := h.engine.Start(ctx, definition("welcome", "#a", "#b"))
	require.NoError(t, err)
	h.engine.Advance(ctx)

	h.engine.Hide(ctx)
	h.engine.Hide(ctx)
	assert.False(t, h.panel.Visible())
	assert.Equal(t, 1, h.engine.Status().Index)
	assert.Equal(t, -1, h.engine.Status().Displayed)
	assert.Equal(t, progress.Active, h.engine.Status().State)

	h.engine.Close(ctx)
	assert.Nil(t, h.reset.onReset)
}
