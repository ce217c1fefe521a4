// Package score rates a persona build. The confidence score weighs
// validation results, spec completeness, scenario coverage, and guardrail
// strength into a single 0..1 figure with a letter grade.
package score

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/normanking/personad/internal/spec"
	"github.com/normanking/personad/internal/validate"
)

// Component weights. They sum to 1.0; the total is clamped anyway so a
// future weight tweak cannot push scores past 1.
const (
	weightValidation   = 0.30
	weightCompleteness = 0.30
	weightCoverage     = 0.20
	weightGuardrails   = 0.20
)

// fullCoverageScenarios is the scenario count treated as full coverage.
const fullCoverageScenarios = 8

const (
	SeverityHigh   = "high"
	SeverityMedium = "medium"
	SeverityLow    = "low"
)

// Flag marks a concern surfaced during scoring.
type Flag struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Confidence is the scored result for one persona build.
type Confidence struct {
	Score             float64   `json:"score"`
	Grade             string    `json:"grade"`
	Breakdown         Breakdown `json:"breakdown"`
	Flags             []Flag    `json:"flags"`
	HighSeverityFlags []Flag    `json:"high_severity_flags"`
}

// Breakdown itemizes the four scored components.
type Breakdown struct {
	Validation   ValidationComponent   `json:"validation"`
	Completeness CompletenessComponent `json:"completeness"`
	TestCoverage CoverageComponent     `json:"test_coverage"`
	Guardrails   GuardrailComponent    `json:"guardrails"`
}

// ValidationComponent reflects the validator's pass ratio.
type ValidationComponent struct {
	Weight        float64 `json:"weight"`
	RawScore      float64 `json:"raw_score"`
	WeightedScore float64 `json:"weighted_score"`
}

// CompletenessComponent reflects how many descriptive fields are filled.
type CompletenessComponent struct {
	Weight        float64 `json:"weight"`
	RawScore      float64 `json:"raw_score"`
	WeightedScore float64 `json:"weighted_score"`
	FieldsPresent int     `json:"fields_present"`
	FieldsTotal   int     `json:"fields_total"`
}

// CoverageComponent reflects generated scenario coverage.
type CoverageComponent struct {
	Weight        float64 `json:"weight"`
	RawScore      float64 `json:"raw_score"`
	WeightedScore float64 `json:"weighted_score"`
	Scenarios     int     `json:"scenarios"`
}

// GuardrailComponent reflects the safety checklist.
type GuardrailComponent struct {
	Weight        float64 `json:"weight"`
	RawScore      float64 `json:"raw_score"`
	WeightedScore float64 `json:"weighted_score"`
	ChecksPassed  int     `json:"checks_passed"`
	ChecksTotal   int     `json:"checks_total"`
}

var gradeThresholds = []struct {
	threshold float64
	grade     string
}{
	{0.90, "A"},
	{0.80, "B"},
	{0.65, "C"},
	{0.50, "D"},
	{0.00, "F"},
}

// GradeFor maps a score to its letter grade.
func GradeFor(score float64) string {
	for _, gt := range gradeThresholds {
		if score >= gt.threshold {
			return gt.grade
		}
	}
	return "F"
}

// Format renders a score for display. Whole values keep one decimal so a
// perfect run reads "1.0"; fractional values print without trailing zeros.
func Format(v float64) string {
	if v == math.Trunc(v) {
		return strconv.FormatFloat(v, 'f', 1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Score rates a persona build. scenarios is the generated scenario count.
// Deterministic: breakdown ratios round to four decimals for display while
// the total accumulates unrounded, then clamps to 1.0 and rounds once.
func Score(s spec.Specification, report validate.Report, scenarios int) Confidence {
	flags := []Flag{}

	// Validation (30%)
	validationRatio := float64(report.ChecksPassed) / float64(max(report.ChecksRun, 1))
	validationScore := validationRatio * weightValidation

	if !report.Valid {
		flags = append(flags, Flag{
			Severity: SeverityHigh,
			Message:  fmt.Sprintf("Validation failed with %d errors", len(report.Errors)),
		})
	}
	if n := len(report.Warnings); n > 0 {
		flags = append(flags, Flag{
			Severity: SeverityLow,
			Message:  fmt.Sprintf("Validation has %d warning(s)", n),
		})
	}

	// Completeness (30%)
	fields := []struct {
		name    string
		present bool
	}{
		{"persona.name", s.Persona.Name != ""},
		{"persona.role", s.Persona.Role != ""},
		{"persona.description", s.Persona.Description != ""},
		{"personality.traits", len(s.Personality.Traits) > 0},
		{"personality.tone", s.Personality.Tone != ""},
		{"personality.communication_style", s.Personality.CommunicationStyle != ""},
		{"knowledge.domains", len(s.Knowledge.Domains) > 0},
		{"knowledge.expertise_level", s.Knowledge.ExpertiseLevel != ""},
		{"behavior.greeting", s.Behavior.Greeting != ""},
		{"behavior.fallback", s.Behavior.Fallback != ""},
		{"behavior.escalation_trigger", s.Behavior.EscalationTrigger != ""},
		{"guardrails.forbidden_topics", len(s.Guardrails.ForbiddenTopics) > 0},
		{"guardrails.pii_handling", s.Guardrails.PIIHandling != ""},
	}

	fieldsPresent := 0
	for _, f := range fields {
		if f.present {
			fieldsPresent++
			continue
		}
		severity := SeverityLow
		if strings.Contains(f.name, "name") || strings.Contains(f.name, "role") {
			severity = SeverityMedium
		}
		flags = append(flags, Flag{
			Severity: severity,
			Message:  fmt.Sprintf("%s is missing or empty", f.name),
		})
	}

	completenessRatio := float64(fieldsPresent) / float64(max(len(fields), 1))
	completenessScore := completenessRatio * weightCompleteness

	// Test coverage (20%)
	coverageRatio := math.Min(float64(scenarios)/fullCoverageScenarios, 1.0)
	coverageScore := coverageRatio * weightCoverage

	if scenarios < 5 {
		flags = append(flags, Flag{
			Severity: SeverityMedium,
			Message:  fmt.Sprintf("Only %d test scenarios generated (expected 5-8)", scenarios),
		})
	}

	// Guardrail strength (20%)
	guardrailChecks := []bool{
		len(s.Guardrails.ForbiddenTopics) > 0,
		spec.ValidPIIHandling[s.Guardrails.PIIHandling],
		s.Guardrails.MaxResponseTokens >= 1 && s.Guardrails.MaxResponseTokens <= 16384,
		s.Behavior.EscalationTrigger != "",
		s.Behavior.Fallback != "",
	}

	guardrailsPassed := 0
	for _, ok := range guardrailChecks {
		if ok {
			guardrailsPassed++
		}
	}

	guardrailRatio := float64(guardrailsPassed) / float64(len(guardrailChecks))
	guardrailScore := guardrailRatio * weightGuardrails

	if guardrailRatio < 0.6 {
		flags = append(flags, Flag{
			Severity: SeverityHigh,
			Message:  "Weak guardrails — fewer than 60% of safety checks pass",
		})
	}

	total := validationScore + completenessScore + coverageScore + guardrailScore
	total = round4(math.Min(total, 1.0))

	high := []Flag{}
	for _, f := range flags {
		if f.Severity == SeverityHigh {
			high = append(high, f)
		}
	}

	return Confidence{
		Score: total,
		Grade: GradeFor(total),
		Breakdown: Breakdown{
			Validation: ValidationComponent{
				Weight:        weightValidation,
				RawScore:      round4(validationRatio),
				WeightedScore: round4(validationScore),
			},
			Completeness: CompletenessComponent{
				Weight:        weightCompleteness,
				RawScore:      round4(completenessRatio),
				WeightedScore: round4(completenessScore),
				FieldsPresent: fieldsPresent,
				FieldsTotal:   len(fields),
			},
			TestCoverage: CoverageComponent{
				Weight:        weightCoverage,
				RawScore:      round4(coverageRatio),
				WeightedScore: round4(coverageScore),
				Scenarios:     scenarios,
			},
			Guardrails: GuardrailComponent{
				Weight:        weightGuardrails,
				RawScore:      round4(guardrailRatio),
				WeightedScore: round4(guardrailScore),
				ChecksPassed:  guardrailsPassed,
				ChecksTotal:   len(guardrailChecks),
			},
		},
		Flags:             flags,
		HighSeverityFlags: high,
	}
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
