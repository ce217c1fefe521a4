package platform

import "github.com/normanking/personad/internal/spec"

// ClaudeConfig is a Messages API request body. The system prompt rides
// in the dedicated system field; messages start empty.
type ClaudeConfig struct {
	Model       string    `json:"model"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
	TopK        int       `json:"top_k"`
	System      string    `json:"system"`
	Messages    []Message `json:"messages"`
	Metadata    Metadata  `json:"metadata"`
}

// Claude builds the Messages API config for a persona. The model comes
// from CLAUDE_MODEL when set.
func Claude(s spec.Specification, systemPrompt string) ClaudeConfig {
	// Lower top_k keeps reserved personas focused.
	topK := 20
	if expressiveTones[s.Personality.Tone] {
		topK = 40
	}

	return ClaudeConfig{
		Model:       envOr("CLAUDE_MODEL", DefaultClaudeModel),
		MaxTokens:   tokenCap(s),
		Temperature: temperatureFor(s.Personality.Tone),
		TopK:        topK,
		System:      systemPrompt,
		Messages:    []Message{},
		Metadata:    metadataFor(s),
	}
}
