// Package spec defines the canonical persona specification and the
// tolerant normalizer that produces it from raw definitions.
package spec

// SpecVersion is the schema version stamped on every normalized spec.
const SpecVersion = "1.0.0"

// TimestampFormat is the UTC layout used for all spec timestamps.
const TimestampFormat = "2006-01-02T15:04:05Z"

// Specification is the canonical persona spec. Every section is always
// populated after Normalize; validation strictness lives in the validate
// package, not here.
type Specification struct {
	SpecVersion string      `yaml:"spec_version" json:"spec_version"`
	Persona     Persona     `yaml:"persona" json:"persona"`
	Personality Personality `yaml:"personality" json:"personality"`
	Knowledge   Knowledge   `yaml:"knowledge" json:"knowledge"`
	Behavior    Behavior    `yaml:"behavior" json:"behavior"`
	Guardrails  Guardrails  `yaml:"guardrails" json:"guardrails"`
	Metadata    Metadata    `yaml:"metadata" json:"metadata"`
}

// Persona identifies who the persona is.
type Persona struct {
	Name        string `yaml:"name" json:"name"`               // Display name (e.g., "Rebecka")
	Slug        string `yaml:"slug" json:"slug"`               // Kebab-case identifier derived from Name
	Role        string `yaml:"role" json:"role"`               // Primary role description
	Description string `yaml:"description" json:"description"` // One-paragraph summary
}

// Personality defines how the persona comes across.
type Personality struct {
	Traits             []string  `yaml:"traits" json:"traits"`
	CommunicationStyle string    `yaml:"communication_style" json:"communication_style"`
	Tone               Tone      `yaml:"tone" json:"tone"`
	Formality          Formality `yaml:"formality" json:"formality"`
}

// Knowledge defines what the persona knows and where it stops.
type Knowledge struct {
	Domains        []string       `yaml:"domains" json:"domains"`
	ExpertiseLevel ExpertiseLevel `yaml:"expertise_level" json:"expertise_level"`
	Limitations    []string       `yaml:"limitations" json:"limitations"`
}

// Behavior defines the persona's conversational moves.
type Behavior struct {
	Greeting          string         `yaml:"greeting" json:"greeting"`
	Fallback          string         `yaml:"fallback" json:"fallback"`
	EscalationTrigger string         `yaml:"escalation_trigger" json:"escalation_trigger"`
	ResponseLength    ResponseLength `yaml:"response_length" json:"response_length"`
}

// Guardrails defines the persona's safety envelope.
type Guardrails struct {
	ForbiddenTopics   []string    `yaml:"forbidden_topics" json:"forbidden_topics"`
	PIIHandling       PIIHandling `yaml:"pii_handling" json:"pii_handling"`
	MaxResponseTokens int         `yaml:"max_response_tokens" json:"max_response_tokens"`
}

// Metadata carries provenance for the spec itself.
type Metadata struct {
	CreatedAt string   `yaml:"created_at" json:"created_at"`
	UpdatedAt string   `yaml:"updated_at" json:"updated_at"`
	Author    string   `yaml:"author" json:"author"`
	Notes     []string `yaml:"notes" json:"notes"`
}

// Tone is the persona's communication tone.
type Tone string

const (
	ToneFriendly      Tone = "friendly"
	ToneProfessional  Tone = "professional"
	ToneCasual        Tone = "casual"
	ToneFormal        Tone = "formal"
	ToneEmpathetic    Tone = "empathetic"
	ToneAuthoritative Tone = "authoritative"
	TonePlayful       Tone = "playful"
	ToneNeutral       Tone = "neutral"
)

// ValidTones is the set of accepted tones.
var ValidTones = map[Tone]bool{
	ToneFriendly:      true,
	ToneProfessional:  true,
	ToneCasual:        true,
	ToneFormal:        true,
	ToneEmpathetic:    true,
	ToneAuthoritative: true,
	TonePlayful:       true,
	ToneNeutral:       true,
}

// Formality is the persona's register.
type Formality string

const (
	FormalityFormal     Formality = "formal"
	FormalitySemiFormal Formality = "semi-formal"
	FormalityCasual     Formality = "casual"
)

// ValidFormality is the set of accepted formality levels.
var ValidFormality = map[Formality]bool{
	FormalityFormal:     true,
	FormalitySemiFormal: true,
	FormalityCasual:     true,
}

// ResponseLength is the target verbosity for responses.
type ResponseLength string

const (
	LengthConcise  ResponseLength = "concise"
	LengthModerate ResponseLength = "moderate"
	LengthDetailed ResponseLength = "detailed"
)

// ValidResponseLengths is the set of accepted response lengths.
var ValidResponseLengths = map[ResponseLength]bool{
	LengthConcise:  true,
	LengthModerate: true,
	LengthDetailed: true,
}

// ExpertiseLevel is the persona's depth in its knowledge domains.
type ExpertiseLevel string

const (
	ExpertiseBeginner     ExpertiseLevel = "beginner"
	ExpertiseIntermediate ExpertiseLevel = "intermediate"
	ExpertiseExpert       ExpertiseLevel = "expert"
)

// ValidExpertiseLevels is the set of accepted expertise levels.
var ValidExpertiseLevels = map[ExpertiseLevel]bool{
	ExpertiseBeginner:     true,
	ExpertiseIntermediate: true,
	ExpertiseExpert:       true,
}

// PIIHandling is the persona's policy for personally identifiable information.
// Normalize passes unknown values through; validation rejects them.
type PIIHandling string

const (
	PIINeverStore PIIHandling = "never store"
	PIIAnonymize  PIIHandling = "anonymize"
	PIIEncrypt    PIIHandling = "encrypt"
)

// ValidPIIHandling is the set of accepted PII policies.
var ValidPIIHandling = map[PIIHandling]bool{
	PIINeverStore: true,
	PIIAnonymize:  true,
	PIIEncrypt:    true,
}
