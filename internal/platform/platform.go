// Package platform turns a persona spec and its system prompt into
// ready-to-send request bodies for the supported LLM platforms.
package platform

import (
	"os"

	"github.com/normanking/personad/internal/spec"
)

// Default models, overridable through the environment.
const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultClaudeModel = "claude-sonnet-4-20250514"
)

// toneTemperature maps tone to sampling temperature. Reserved tones run
// cooler, expressive tones warmer.
var toneTemperature = map[spec.Tone]float64{
	spec.ToneProfessional:  0.3,
	spec.ToneFormal:        0.2,
	spec.ToneAuthoritative: 0.2,
	spec.ToneNeutral:       0.4,
	spec.ToneFriendly:      0.5,
	spec.ToneEmpathetic:    0.5,
	spec.ToneCasual:        0.7,
	spec.TonePlayful:       0.8,
}

// lengthTokens maps target response length to a token ceiling. The
// guardrail limit caps it further.
var lengthTokens = map[spec.ResponseLength]int{
	spec.LengthConcise:  512,
	spec.LengthModerate: 1024,
	spec.LengthDetailed: 2048,
}

// expressiveTones get wider sampling parameters on both platforms.
var expressiveTones = map[spec.Tone]bool{
	spec.ToneCasual:   true,
	spec.TonePlayful:  true,
	spec.ToneFriendly: true,
}

// Message is a single chat message in a platform payload.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Metadata tags a generated config with its source persona.
type Metadata struct {
	PersonaName    string              `json:"persona_name"`
	PersonaSlug    string              `json:"persona_slug"`
	PersonaRole    string              `json:"persona_role"`
	Tone           spec.Tone           `json:"tone"`
	ResponseLength spec.ResponseLength `json:"response_length"`
}

func metadataFor(s spec.Specification) Metadata {
	return Metadata{
		PersonaName:    s.Persona.Name,
		PersonaSlug:    s.Persona.Slug,
		PersonaRole:    s.Persona.Role,
		Tone:           s.Personality.Tone,
		ResponseLength: s.Behavior.ResponseLength,
	}
}

func temperatureFor(tone spec.Tone) float64 {
	if t, ok := toneTemperature[tone]; ok {
		return t
	}
	return 0.4
}

// tokenCap is the effective max_tokens: the response-length ceiling
// bounded by the guardrail limit.
func tokenCap(s spec.Specification) int {
	base, ok := lengthTokens[s.Behavior.ResponseLength]
	if !ok {
		base = 1024
	}
	return min(base, s.Guardrails.MaxResponseTokens)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
