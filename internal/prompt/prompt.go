// Package prompt renders the platform-agnostic system prompt for a
// persona. The prompt is the single instruction text every platform
// config embeds.
package prompt

import (
	"fmt"
	"strings"

	"github.com/normanking/personad/internal/spec"
)

// Build renders the system prompt for a persona spec. Sections appear in
// a fixed order; personality and expertise are omitted when the spec has
// no traits or domains. Deterministic: same spec, same prompt.
func Build(s spec.Specification) string {
	var lines []string

	// Identity
	lines = append(lines, fmt.Sprintf("You are %s, a %s.", s.Persona.Name, s.Persona.Role))
	if s.Persona.Description != "" {
		lines = append(lines, s.Persona.Description)
	}
	lines = append(lines, "")

	// Personality
	if len(s.Personality.Traits) > 0 {
		lines = append(lines, "## Personality")
		lines = append(lines, fmt.Sprintf("Your core traits are: %s.", strings.Join(s.Personality.Traits, ", ")))
		if s.Personality.CommunicationStyle != "" {
			lines = append(lines, fmt.Sprintf("Your communication style is %s.", s.Personality.CommunicationStyle))
		}
		lines = append(lines, fmt.Sprintf("Maintain a %s tone with %s formality.", s.Personality.Tone, s.Personality.Formality))
		lines = append(lines, "")
	}

	// Expertise
	if len(s.Knowledge.Domains) > 0 {
		lines = append(lines, "## Expertise")
		lines = append(lines, fmt.Sprintf("You are an %s-level specialist in: %s.", s.Knowledge.ExpertiseLevel, strings.Join(s.Knowledge.Domains, ", ")))
		if len(s.Knowledge.Limitations) > 0 {
			lines = append(lines, fmt.Sprintf("You cannot: %s.", strings.Join(s.Knowledge.Limitations, "; ")))
		}
		lines = append(lines, "")
	}

	// Behavior
	lines = append(lines, "## Behavior")
	lines = append(lines, fmt.Sprintf("Keep responses %s.", s.Behavior.ResponseLength))
	if s.Behavior.Greeting != "" {
		lines = append(lines, fmt.Sprintf("When greeting users, say: \"%s\"", s.Behavior.Greeting))
	}
	if s.Behavior.Fallback != "" {
		lines = append(lines, fmt.Sprintf("When you don't know the answer, say: \"%s\"", s.Behavior.Fallback))
	}
	if s.Behavior.EscalationTrigger != "" {
		lines = append(lines, fmt.Sprintf("Escalate to a human when: %s.", s.Behavior.EscalationTrigger))
	}
	lines = append(lines, "")

	// Rules
	lines = append(lines, "## Rules")
	if len(s.Guardrails.ForbiddenTopics) > 0 {
		lines = append(lines, fmt.Sprintf("NEVER discuss: %s.", strings.Join(s.Guardrails.ForbiddenTopics, ", ")))
	}
	lines = append(lines, fmt.Sprintf("PII handling: %s.", s.Guardrails.PIIHandling))
	lines = append(lines, fmt.Sprintf("Keep responses under %d tokens.", s.Guardrails.MaxResponseTokens))
	lines = append(lines, "Always stay in character. Never reveal that you are an AI unless directly asked.")

	return strings.Join(lines, "\n")
}
