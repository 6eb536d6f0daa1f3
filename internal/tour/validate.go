package tour

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rahul/onboardly/internal/governance"
)

// ValidationError is a single finding with its location in the document.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("[%s] %s", e.Phase, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile runs the full pipeline on a definition file:
// structural (strict decode), semantic (JSON Schema), domain (Go rules and
// the definition policy).
func ValidateFile(ctx context.Context, path string, policy governance.PolicyEngine) (*Definition, []*ValidationError) {
	def, err := LoadFile(path)
	if err != nil {
		return nil, []*ValidationError{{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		}}
	}
	return def, Validate(ctx, def, policy)
}

// Validate runs the semantic and domain phases. policy may be nil.
func Validate(ctx context.Context, def *Definition, policy governance.PolicyEngine) []*ValidationError {
	errs := validateSemantic(def)
	errs = append(errs, validateDomain(ctx, def, policy)...)
	return errs
}

// Errors keeps only error-severity findings.
func Errors(all []*ValidationError) []*ValidationError {
	var out []*ValidationError
	for _, e := range all {
		if e.Severity != "warning" {
			out = append(out, e)
		}
	}
	return out
}

func validateSemantic(def *Definition) []*ValidationError {
	semantic := func(msg string) []*ValidationError {
		return []*ValidationError{{Phase: "semantic", Message: msg, Severity: "error"}}
	}

	sch, err := compiledSchema()
	if err != nil {
		return semantic(err.Error())
	}
	data, err := json.Marshal(def)
	if err != nil {
		return semantic(fmt.Sprintf("marshal for schema validation: %v", err))
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return semantic(fmt.Sprintf("unmarshal document: %v", err))
	}

	err = sch.Validate(doc)
	if err == nil {
		return nil
	}
	ve, ok := err.(*sjsonschema.ValidationError)
	if !ok {
		return semantic(err.Error())
	}
	var errs []*ValidationError
	for _, cause := range flattenValidationErrors(ve) {
		errs = append(errs, &ValidationError{
			Phase:    "semantic",
			Path:     strings.Join(cause.InstanceLocation, "/"),
			Message:  fmt.Sprintf("%v", cause.ErrorKind),
			Severity: "error",
		})
	}
	return errs
}

func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

func validateDomain(ctx context.Context, def *Definition, policy governance.PolicyEngine) []*ValidationError {
	var errs []*ValidationError
	domain := func(path, severity, format string, args ...any) {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     path,
			Message:  fmt.Sprintf(format, args...),
			Severity: severity,
		})
	}

	if len(def.Steps) == 0 {
		domain("steps", "error", "a tour needs at least one step")
	}

	seen := make(map[string]int, len(def.Steps))
	selectors := make([]string, 0, len(def.Steps))
	for i, s := range def.Steps {
		path := fmt.Sprintf("steps[%d]", i)
		if prev, dup := seen[s.ID]; dup && s.ID != "" {
			domain(path+".id", "error", "duplicate step id %q (first used by steps[%d])", s.ID, prev)
		} else {
			seen[s.ID] = i
		}
		if strings.TrimSpace(s.TargetSelector) == "" {
			domain(path+".targetSelector", "error", "target selector is blank")
		}
		if s.Title == "" && s.Content == "" {
			domain(path, "warning", "step has neither title nor content")
		}
		selectors = append(selectors, s.TargetSelector)
	}

	if policy != nil {
		res, err := policy.Evaluate(ctx, governance.Request{
			TourID:    def.TourID,
			StepCount: len(def.Steps),
			Selectors: selectors,
		})
		switch {
		case err != nil:
			domain("", "error", "policy evaluation failed: %v", err)
		case res.Effect == governance.EffectDeny:
			domain("", "error", "%s", res.Reason)
		}
	}
	return errs
}
