// Package validate runs the structural rule set against a normalized
// persona spec. Where the normalizer is tolerant, this package is strict:
// every deviation is reported, none is repaired.
package validate

import (
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/normanking/personad/internal/spec"
)

// Rule categories:
//   PS: persona schema
//   PT: personality and traits
//   KD: knowledge domains
//   BH: behavior
//   GR: guardrails
//   MD: metadata

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

var (
	semverPattern = regexp.MustCompile(`^\d+\.\d+\.\d+$`)
	slugPattern   = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)
)

// Issue is a single rule violation.
type Issue struct {
	RuleID   string `json:"rule_id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Report is the outcome of a validation run. Warnings count as passed
// checks, so valid is equivalent to errors being empty.
type Report struct {
	Valid        bool    `json:"valid"`
	Errors       []Issue `json:"errors"`
	Warnings     []Issue `json:"warnings"`
	ChecksRun    int     `json:"checks_run"`
	ChecksPassed int     `json:"checks_passed"`
	ChecksFailed int     `json:"checks_failed"`
	Timestamp    string  `json:"timestamp"`
}

var (
	toneChoices      = choices(spec.ValidTones)
	formalityChoices = choices(spec.ValidFormality)
	lengthChoices    = choices(spec.ValidResponseLengths)
	expertiseChoices = choices(spec.ValidExpertiseLevels)
	piiChoices       = choices(spec.ValidPIIHandling)
)

// Validate runs all 25 rules against the spec in a fixed order.
func Validate(s spec.Specification) Report {
	// Slices start non-nil so an all-clear report serializes its error
	// and warning lists as [] rather than null.
	r := &runner{errors: []Issue{}, warnings: []Issue{}}

	// PS: persona schema
	r.check("PS-001", semverPattern.MatchString(s.SpecVersion),
		"spec_version must be a valid semver string")
	r.check("PS-002", s.Persona.Name != "",
		"persona.name is required")
	r.check("PS-003", slugPattern.MatchString(s.Persona.Slug),
		"persona.slug must be a valid kebab-case string")
	r.check("PS-004", s.Persona.Role != "",
		"persona.role is required")
	r.check("PS-005", s.Persona.Description != "",
		"persona.description is required")

	// PS-006..PS-008 assert section presence. The typed Specification
	// always carries its sections, so they hold structurally; they stay
	// in the sequence to keep rule numbering and check counts stable.
	r.check("PS-006", true, "personality section is required")
	r.check("PS-007", true, "knowledge section is required")
	r.check("PS-008", true, "behavior section is required")

	// PT: personality and traits
	r.warnIfNot("PT-001", len(s.Personality.Traits) > 0,
		"personality.traits is empty — persona may lack character definition")
	r.check("PT-002", spec.ValidTones[s.Personality.Tone],
		fmt.Sprintf("personality.tone must be one of %v", toneChoices))
	r.check("PT-003", spec.ValidFormality[s.Personality.Formality],
		fmt.Sprintf("personality.formality must be one of %v", formalityChoices))
	r.check("PT-004", s.Personality.CommunicationStyle != "",
		"personality.communication_style is required")

	// KD: knowledge domains
	r.warnIfNot("KD-001", len(s.Knowledge.Domains) > 0,
		"knowledge.domains is empty — persona has no domain expertise defined")
	r.check("KD-002", spec.ValidExpertiseLevels[s.Knowledge.ExpertiseLevel],
		fmt.Sprintf("knowledge.expertise_level must be one of %v", expertiseChoices))
	r.check("KD-003", s.Knowledge.Limitations != nil,
		"knowledge.limitations must be a list")

	// BH: behavior
	r.check("BH-001", s.Behavior.Greeting != "",
		"behavior.greeting is required")
	r.check("BH-002", s.Behavior.Fallback != "",
		"behavior.fallback is required")
	r.check("BH-003", s.Behavior.EscalationTrigger != "",
		"behavior.escalation_trigger is required")
	r.check("BH-004", spec.ValidResponseLengths[s.Behavior.ResponseLength],
		fmt.Sprintf("behavior.response_length must be one of %v", lengthChoices))

	// GR: guardrails
	r.check("GR-001", s.Guardrails.ForbiddenTopics != nil,
		"guardrails.forbidden_topics must be a list")
	r.check("GR-002", spec.ValidPIIHandling[s.Guardrails.PIIHandling],
		fmt.Sprintf("guardrails.pii_handling must be one of %v", piiChoices))
	r.check("GR-003", s.Guardrails.MaxResponseTokens >= 1 && s.Guardrails.MaxResponseTokens <= 16384,
		"guardrails.max_response_tokens must be an integer 1–16384")

	// MD: metadata
	r.check("MD-001", s.Metadata.CreatedAt != "",
		"metadata.created_at is required")
	r.check("MD-002", s.Metadata.Author != "",
		"metadata.author is required")
	r.check("MD-003", s.Metadata.Notes != nil,
		"metadata.notes must be a list")

	return Report{
		Valid:        len(r.errors) == 0,
		Errors:       r.errors,
		Warnings:     r.warnings,
		ChecksRun:    r.run,
		ChecksPassed: r.passed,
		ChecksFailed: r.run - r.passed,
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}

type runner struct {
	errors   []Issue
	warnings []Issue
	run      int
	passed   int
}

func (r *runner) check(ruleID string, ok bool, msg string) {
	r.run++
	if ok {
		r.passed++
		return
	}
	r.errors = append(r.errors, Issue{RuleID: ruleID, Severity: SeverityError, Message: msg})
}

// warnIfNot records a warning instead of an error; the check still counts
// as passed, so warnings never flip a spec to invalid.
func (r *runner) warnIfNot(ruleID string, ok bool, msg string) {
	r.run++
	r.passed++
	if !ok {
		r.warnings = append(r.warnings, Issue{RuleID: ruleID, Severity: SeverityWarning, Message: msg})
	}
}

func choices[E ~string](valid map[E]bool) []string {
	out := make([]string, 0, len(valid))
	for v := range valid {
		out = append(out, string(v))
	}
	sort.Strings(out)
	return out
}
