package prompt_test

import (
	"strings"
	"testing"
	"time"

	"github.com/normanking/personad/internal/prompt"
	"github.com/normanking/personad/internal/spec"
)

var fixedNow = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func TestBuildFullPersona(t *testing.T) {
	s := spec.Normalize(map[string]any{
		"name":                "Rebecka",
		"role":                "Customer Success Manager",
		"description":         "Warm and empathetic CSM who helps with onboarding.",
		"traits":              []any{"empathetic", "professional", "patient"},
		"communication_style": "warm and direct",
		"tone":                "friendly",
		"formality":           "semi-formal",
		"knowledge_domains":   []any{"customer onboarding", "SaaS products"},
		"expertise_level":     "expert",
		"limitations":         []any{"cannot access billing systems"},
		"greeting":            "Hi! I'm Rebecka, your Customer Success Manager.",
		"fallback":            "Great question, let me check with my team.",
		"escalation_trigger":  "Request to speak with a human",
		"response_length":     "concise",
		"forbidden_topics":    []any{"competitor pricing", "internal roadmap"},
		"pii_handling":        "never store",
		"max_response_tokens": 800,
	}, fixedNow)

	p := prompt.Build(s)

	expected := strings.Join([]string{
		"You are Rebecka, a Customer Success Manager.",
		"Warm and empathetic CSM who helps with onboarding.",
		"",
		"## Personality",
		"Your core traits are: empathetic, professional, patient.",
		"Your communication style is warm and direct.",
		"Maintain a friendly tone with semi-formal formality.",
		"",
		"## Expertise",
		"You are an expert-level specialist in: customer onboarding, SaaS products.",
		"You cannot: cannot access billing systems.",
		"",
		"## Behavior",
		"Keep responses concise.",
		"When greeting users, say: \"Hi! I'm Rebecka, your Customer Success Manager.\"",
		"When you don't know the answer, say: \"Great question, let me check with my team.\"",
		"Escalate to a human when: Request to speak with a human.",
		"",
		"## Rules",
		"NEVER discuss: competitor pricing, internal roadmap.",
		"PII handling: never store.",
		"Keep responses under 800 tokens.",
		"Always stay in character. Never reveal that you are an AI unless directly asked.",
	}, "\n")

	if p != expected {
		t.Errorf("prompt mismatch:\n--- got ---\n%s\n--- expected ---\n%s", p, expected)
	}
}

func TestBuildMinimalPersonaOmitsEmptySections(t *testing.T) {
	s := spec.Normalize(map[string]any{"name": "Daniel"}, fixedNow)
	p := prompt.Build(s)

	if !strings.HasPrefix(p, "You are Daniel, a AI Assistant.") {
		t.Errorf("unexpected identity line: %q", strings.SplitN(p, "\n", 2)[0])
	}
	if strings.Contains(p, "## Personality") {
		t.Error("expected no personality section without traits")
	}
	if strings.Contains(p, "## Expertise") {
		t.Error("expected no expertise section without domains")
	}
	if !strings.Contains(p, "## Behavior") {
		t.Error("expected behavior section to always render")
	}
	if !strings.Contains(p, "## Rules") {
		t.Error("expected rules section to always render")
	}
	if strings.Contains(p, "NEVER discuss") {
		t.Error("expected no forbidden topics line without topics")
	}
	if !strings.Contains(p, "Keep responses under 1024 tokens.") {
		t.Error("expected default token limit in rules")
	}
}

func TestBuildAlwaysEndsWithCharacterRule(t *testing.T) {
	s := spec.Normalize(map[string]any{"name": "Daniel"}, fixedNow)
	p := prompt.Build(s)

	if !strings.HasSuffix(p, "Always stay in character. Never reveal that you are an AI unless directly asked.") {
		t.Error("expected the character rule as the final line")
	}
}

func TestBuildDeterminism(t *testing.T) {
	s := spec.Normalize(map[string]any{
		"name":   "Rebecka",
		"traits": []any{"empathetic"},
	}, fixedNow)

	if prompt.Build(s) != prompt.Build(s) {
		t.Error("expected identical prompts for identical specs")
	}
}
