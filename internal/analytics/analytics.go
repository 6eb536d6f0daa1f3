// Package analytics carries tour lifecycle events to collectors. Delivery is
// fire-and-forget: a failing sink logs and never reaches the engine.
package analytics

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// EventType names a lifecycle event. The values are part of the collector
// contract and must not change.
type EventType string

const (
	TourStarted   EventType = "tour_started"
	StepViewed    EventType = "step_viewed"
	StepCompleted EventType = "step_completed"
	StepError     EventType = "step_error"
	TourSkipped   EventType = "tour_skipped"
	TourCompleted EventType = "tour_completed"
)

// timestampLayout matches JavaScript's Date.toISOString.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Event is one lifecycle record.
type Event struct {
	TourID    string         `json:"tourId"`
	Type      EventType      `json:"eventType"`
	Timestamp time.Time      `json:"timestamp"`
	SessionID string         `json:"sessionId,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// Wire returns the collector body: data keys are spread next to the fixed
// fields, which win on collision.
func (e Event) Wire() map[string]any {
	body := make(map[string]any, len(e.Data)+4)
	for k, v := range e.Data {
		body[k] = v
	}
	body["tourId"] = e.TourID
	body["eventType"] = string(e.Type)
	body["timestamp"] = e.Timestamp.UTC().Format(timestampLayout)
	if e.SessionID != "" {
		body["sessionId"] = e.SessionID
	}
	return body
}

// MarshalWire encodes the collector body.
func (e Event) MarshalWire() ([]byte, error) {
	return json.Marshal(e.Wire())
}

// Sink accepts events. Track must not block the caller on delivery.
type Sink interface {
	Track(ctx context.Context, evt Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, evt Event)

func (f SinkFunc) Track(ctx context.Context, evt Event) { f(ctx, evt) }

// Discard drops every event.
type Discard struct{}

func (Discard) Track(context.Context, Event) {}

type multiSink []Sink

// Multi fans events out to every non-nil sink in order.
func Multi(sinks ...Sink) Sink {
	filtered := make(multiSink, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			filtered = append(filtered, s)
		}
	}
	switch len(filtered) {
	case 0:
		return Discard{}
	case 1:
		return filtered[0]
	}
	return filtered
}

func (m multiSink) Track(ctx context.Context, evt Event) {
	for _, s := range m {
		s.Track(ctx, evt)
	}
}

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Track(_ context.Context, evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

// Events returns a copy of everything recorded.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
