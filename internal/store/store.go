package store

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrCorrupt is returned by Load when a stored record cannot be decoded.
var ErrCorrupt = errors.New("stored progress is corrupt")

// Progress is the durable state of one tour for one user.
type Progress struct {
	CurrentStepIndex int  `json:"currentStepIndex"`
	Completed        bool `json:"completed"`
	Skipped          bool `json:"skipped"`
}

// Store persists progress keyed by tour id. Implementations are synchronous
// and only guarantee last-writer-wins between processes sharing a tour id.
type Store interface {
	// Load returns ok=false when no record exists.
	Load(tourID string) (p Progress, ok bool, err error)
	Save(tourID string, p Progress) error
	Clear(tourID string) error
}

// Key is the storage key for a tour, shared by every backend.
func Key(tourID string) string {
	return "tour_" + tourID
}

// Encode renders progress in its wire form.
func Encode(p Progress) ([]byte, error) {
	return json.Marshal(p)
}

// Decode parses a stored record. Undecodable input and records with both
// terminal flags set are reported as ErrCorrupt.
func Decode(data []byte) (Progress, error) {
	var p Progress
	if err := json.Unmarshal(data, &p); err != nil {
		return Progress{}, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if p.CurrentStepIndex < 0 {
		return Progress{}, fmt.Errorf("%w: negative step index %d", ErrCorrupt, p.CurrentStepIndex)
	}
	if p.Completed && p.Skipped {
		return Progress{}, fmt.Errorf("%w: both completed and skipped", ErrCorrupt)
	}
	return p, nil
}
