// Package tour defines tour definitions and the sources they are loaded
// from: local YAML/JSON files and a remote query endpoint.
package tour

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rahul/onboardly/internal/placement"
)

// Interaction hints tell the renderer how the user is expected to engage
// with the anchor. They never change engine behaviour.
type Interaction string

const (
	InteractionClick Interaction = "click"
	InteractionHover Interaction = "hover"
	InteractionFocus Interaction = "focus"
	InteractionNone  Interaction = "none"
)

// Step is one stop of a tour.
type Step struct {
	ID             string              `json:"id" yaml:"id" jsonschema:"minLength=1"`
	TargetSelector string              `json:"targetSelector" yaml:"targetSelector" jsonschema:"minLength=1"`
	Title          string              `json:"title" yaml:"title"`
	Content        string              `json:"content" yaml:"content"`
	Placement      placement.Placement `json:"placement,omitempty" yaml:"placement,omitempty" jsonschema:"enum=top,enum=bottom,enum=left,enum=right"`
	Action         Interaction         `json:"action,omitempty" yaml:"action,omitempty" jsonschema:"enum=click,enum=hover,enum=focus,enum=none"`
}

// RequestedPlacement returns the placement to ask the solver for.
func (s Step) RequestedPlacement() placement.Placement {
	return placement.Parse(string(s.Placement))
}

// Interaction returns the hint, defaulting to none.
func (s Step) Interaction() Interaction {
	if s.Action == "" {
		return InteractionNone
	}
	return s.Action
}

// Definition is an immutable, ordered tour.
type Definition struct {
	TourID       string `json:"tourId" yaml:"tourId" jsonschema:"minLength=1"`
	Steps        []Step `json:"steps" yaml:"steps" jsonschema:"minItems=1"`
	AutoStart    bool   `json:"autoStart,omitempty" yaml:"autoStart,omitempty"`
	ShowProgress bool   `json:"showProgress,omitempty" yaml:"showProgress,omitempty"`
	AllowSkip    *bool  `json:"allowSkip,omitempty" yaml:"allowSkip,omitempty"`
}

// SkipAllowed reports whether skip/close controls are offered. Absent means
// allowed.
func (d *Definition) SkipAllowed() bool {
	return d.AllowSkip == nil || *d.AllowSkip
}

// Step returns the step at index, or false when out of range.
func (d *Definition) Step(index int) (Step, bool) {
	if index < 0 || index >= len(d.Steps) {
		return Step{}, false
	}
	return d.Steps[index], true
}

// LoadFile parses a definition file (YAML or JSON).
func LoadFile(path string) (*Definition, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tour: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load parses a definition with strict unknown-field rejection. JSON input
// is accepted since it is valid YAML.
func Load(r io.Reader) (*Definition, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var def Definition
	if err := dec.Decode(&def); err != nil {
		return nil, fmt.Errorf("decode tour: %w", err)
	}
	return &def, nil
}
