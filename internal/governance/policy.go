package governance

import (
	"context"
	"fmt"
	"regexp"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// Request describes a tour definition about to be accepted for a run.
type Request struct {
	TourID    string
	StepCount int
	Selectors []string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates tour definitions against product rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefinitionPolicy enforces a configurable minimum step count and rejects
// anchors matching denied selector patterns. MinSteps below 1 means 1.
type DefinitionPolicy struct {
	MinSteps        int
	DeniedSelectors []*regexp.Regexp
}

func NewDefinitionPolicy(minSteps int) *DefinitionPolicy {
	return &DefinitionPolicy{
		MinSteps:        minSteps,
		DeniedSelectors: make([]*regexp.Regexp, 0),
	}
}

// DenySelectors adds a pattern; steps anchored on a matching selector are
// rejected.
func (p *DefinitionPolicy) DenySelectors(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	p.DeniedSelectors = append(p.DeniedSelectors, re)
	return nil
}

func (p *DefinitionPolicy) Evaluate(ctx context.Context, req Request) (Result, error) {
	minSteps := max(p.MinSteps, 1)
	if req.StepCount < minSteps {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("Tour '%s' has %d step(s), policy requires at least %d", req.TourID, req.StepCount, minSteps),
		}, nil
	}

	for _, sel := range req.Selectors {
		for _, re := range p.DeniedSelectors {
			if re.MatchString(sel) {
				return Result{
					Effect: EffectDeny,
					Reason: fmt.Sprintf("Selector '%s' matches restricted pattern: %s", sel, re.String()),
				}, nil
			}
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by definition policy",
	}, nil
}
