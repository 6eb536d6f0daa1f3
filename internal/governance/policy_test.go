package governance

import (
	"context"
	"testing"
)

func TestDefinitionPolicy_Evaluate(t *testing.T) {
	ctx := context.Background()

	// Default: a single step is enough
	policy := NewDefinitionPolicy(0)
	res, err := policy.Evaluate(ctx, Request{TourID: "welcome", StepCount: 1, Selectors: []string{"#nav"}})
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if res.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s (%s)", res.Effect, res.Reason)
	}

	res, _ = policy.Evaluate(ctx, Request{TourID: "empty", StepCount: 0})
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny for empty tour, got %s", res.Effect)
	}

	// Stricter product minimum
	strict := NewDefinitionPolicy(5)
	res, _ = strict.Evaluate(ctx, Request{TourID: "short", StepCount: 3})
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res.Effect)
	}
	res, _ = strict.Evaluate(ctx, Request{TourID: "long", StepCount: 5})
	if res.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s", res.Effect)
	}
}

func TestDefinitionPolicy_DeniedSelectors(t *testing.T) {
	policy := NewDefinitionPolicy(1)
	if err := policy.DenySelectors(`^(html|body)$`); err != nil {
		t.Fatal(err)
	}
	if err := policy.DenySelectors(`(`); err == nil {
		t.Error("Expected invalid pattern to be rejected")
	}

	res, _ := policy.Evaluate(context.Background(), Request{TourID: "welcome", StepCount: 2, Selectors: []string{"#nav", "body"}})
	if res.Effect != EffectDeny {
		t.Errorf("Expected EffectDeny, got %s", res.Effect)
	}

	res, _ = policy.Evaluate(context.Background(), Request{TourID: "welcome", StepCount: 2, Selectors: []string{"#nav", "body > main"}})
	if res.Effect != EffectAllow {
		t.Errorf("Expected EffectAllow, got %s (%s)", res.Effect, res.Reason)
	}
}
