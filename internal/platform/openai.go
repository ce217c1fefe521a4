package platform

import "github.com/normanking/personad/internal/spec"

// OpenAIConfig is a Chat Completions request body carrying the persona's
// system prompt and tuned sampling parameters.
type OpenAIConfig struct {
	Model            string    `json:"model"`
	Messages         []Message `json:"messages"`
	Temperature      float64   `json:"temperature"`
	MaxTokens        int       `json:"max_tokens"`
	TopP             float64   `json:"top_p"`
	FrequencyPenalty float64   `json:"frequency_penalty"`
	PresencePenalty  float64   `json:"presence_penalty"`
	Metadata         Metadata  `json:"metadata"`
}

// OpenAI builds the Chat Completions config for a persona. The model
// comes from OPENAI_MODEL when set.
func OpenAI(s spec.Specification, systemPrompt string) OpenAIConfig {
	topP := 0.8
	if expressiveTones[s.Personality.Tone] {
		topP = 0.9
	}

	// Concise personas get a stronger repetition penalty.
	frequencyPenalty := 0.1
	if s.Behavior.ResponseLength == spec.LengthConcise {
		frequencyPenalty = 0.3
	}

	return OpenAIConfig{
		Model: envOr("OPENAI_MODEL", DefaultOpenAIModel),
		Messages: []Message{
			{Role: "system", Content: systemPrompt},
		},
		Temperature:      temperatureFor(s.Personality.Tone),
		MaxTokens:        tokenCap(s),
		TopP:             topP,
		FrequencyPenalty: frequencyPenalty,
		PresencePenalty:  0.1,
		Metadata:         metadataFor(s),
	}
}
