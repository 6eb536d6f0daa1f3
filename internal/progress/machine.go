// Package progress implements the tour state machine: Active(i), Completed
// and Skipped, mirrored to a store.Store on every transition.
package progress

import (
	"fmt"
	"log"

	"github.com/rahul/onboardly/internal/store"
)

// State is the coarse machine state.
type State int

const (
	Active State = iota
	Completed
	Skipped
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Completed:
		return "completed"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Machine owns the in-memory progress of one tour run. It is not safe for
// concurrent use; the engine serializes access.
type Machine struct {
	tourID string
	store  store.Store
	p      store.Progress

	// OnSaveError is called when persisting a transition fails. The
	// transition itself still takes effect in memory.
	OnSaveError func(error)
}

// Restore loads stored progress for tourID. Missing records start at
// Active(0). Corrupt records, and active records whose index does not fit a
// tour of totalSteps, are logged and replaced by Active(0). A finished tour
// stays finished when the definition shrinks; only its index is clamped.
func Restore(tourID string, st store.Store, totalSteps int) *Machine {
	m := &Machine{tourID: tourID, store: st}
	p, ok, err := st.Load(tourID)
	switch {
	case err != nil:
		log.Printf("progress: discarding stored state for %s: %v", tourID, err)
	case !ok:
	case p.Completed || p.Skipped:
		if p.CurrentStepIndex >= totalSteps {
			p.CurrentStepIndex = max(totalSteps-1, 0)
		}
		m.p = p
	case p.CurrentStepIndex >= totalSteps:
		log.Printf("progress: discarding stored state for %s: index %d out of range for %d steps",
			tourID, p.CurrentStepIndex, totalSteps)
	default:
		m.p = p
	}
	return m
}

func (m *Machine) TourID() string { return m.tourID }

// Index returns the current step index.
func (m *Machine) Index() int { return m.p.CurrentStepIndex }

// Progress returns a copy of the current record.
func (m *Machine) Progress() store.Progress { return m.p }

func (m *Machine) State() State {
	switch {
	case m.p.Completed:
		return Completed
	case m.p.Skipped:
		return Skipped
	}
	return Active
}

func (m *Machine) Active() bool { return m.State() == Active }

// Next moves to the following step. At the last step it returns false and
// leaves the index alone; the caller decides whether to Complete.
func (m *Machine) Next(totalSteps int) bool {
	if !m.Active() || m.p.CurrentStepIndex >= totalSteps-1 {
		return false
	}
	m.p.CurrentStepIndex++
	m.save()
	return true
}

// Prev moves to the previous step; false at index 0 or when terminal.
func (m *Machine) Prev() bool {
	if !m.Active() || m.p.CurrentStepIndex <= 0 {
		return false
	}
	m.p.CurrentStepIndex--
	m.save()
	return true
}

// Skip ends the tour as skipped. False when already terminal.
func (m *Machine) Skip() bool {
	if !m.Active() {
		return false
	}
	m.p.Skipped = true
	m.save()
	return true
}

// Complete ends the tour as completed. False when already terminal.
func (m *Machine) Complete() bool {
	if !m.Active() {
		return false
	}
	m.p.Completed = true
	m.save()
	return true
}

// Reset returns to Active(0) and deletes the stored record.
func (m *Machine) Reset() error {
	m.p = store.Progress{}
	if err := m.store.Clear(m.tourID); err != nil {
		return fmt.Errorf("clear progress %s: %w", m.tourID, err)
	}
	return nil
}

func (m *Machine) save() {
	if err := m.store.Save(m.tourID, m.p); err != nil {
		if m.OnSaveError != nil {
			m.OnSaveError(err)
			return
		}
		log.Printf("progress: save %s: %v", m.tourID, err)
	}
}
