package observability

import (
	"context"
	"sync"
	"time"

	"github.com/rahul/onboardly/internal/analytics"
)

type Phase string

const (
	PhaseIdle      Phase = "IDLE"
	PhaseTouring   Phase = "TOURING"
	PhaseSkipped   Phase = "SKIPPED"
	PhaseCompleted Phase = "COMPLETED"
)

// Status follows the lifecycle events of one page context. It is an
// analytics.Sink so it sees exactly what the collector sees.
type Status struct {
	mu        sync.RWMutex
	tourID    string
	phase     Phase
	stepID    string
	stepIndex int
	total     int
	errors    int
	lastEvent analytics.EventType
	lastAt    time.Time
}

func NewStatus(total int) *Status {
	return &Status{phase: PhaseIdle, total: total, lastAt: time.Now()}
}

// StatusSnapshot is a copy of the tracked state.
type StatusSnapshot struct {
	TourID    string
	Phase     Phase
	StepID    string
	StepIndex int
	Total     int
	Errors    int
	LastEvent analytics.EventType
	LastAt    time.Time
}

func (s *Status) Track(_ context.Context, evt analytics.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tourID = evt.TourID
	s.lastEvent = evt.Type
	s.lastAt = evt.Timestamp

	switch evt.Type {
	case analytics.TourStarted:
		s.phase = PhaseTouring
		s.errors = 0
	case analytics.StepViewed:
		s.phase = PhaseTouring
		if id, ok := evt.Data["stepId"].(string); ok {
			s.stepID = id
		}
		if idx, ok := evt.Data["stepIndex"].(int); ok {
			s.stepIndex = idx
		}
	case analytics.StepError:
		s.errors++
	case analytics.TourSkipped:
		s.phase = PhaseSkipped
	case analytics.TourCompleted:
		s.phase = PhaseCompleted
	}
}

// SetTotal records the number of steps of the running tour.
func (s *Status) SetTotal(total int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.total = total
}

func (s *Status) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusSnapshot{
		TourID:    s.tourID,
		Phase:     s.phase,
		StepID:    s.stepID,
		StepIndex: s.stepIndex,
		Total:     s.total,
		Errors:    s.errors,
		LastEvent: s.lastEvent,
		LastAt:    s.lastAt,
	}
}

// Finished reports whether the tour reached a terminal phase.
func (s *Status) Finished() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase == PhaseSkipped || s.phase == PhaseCompleted
}
