// Package delivery assembles persona build artifacts into versioned
// delivery packs on disk and reads them back for inventory queries.
//
// A delivery pack lives at <root>/<slug>/v<version>/ and holds the
// normalized spec, the system prompt, both platform configs, the
// validation report, the confidence report, the test suite, a human
// readable summary, and a JSON manifest indexing all of it.
package delivery

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/normanking/personad/internal/platform"
	"github.com/normanking/personad/internal/scenario"
	"github.com/normanking/personad/internal/score"
	"github.com/normanking/personad/internal/spec"
	"github.com/normanking/personad/internal/validate"
)

// Artifact file names, in the order they are written.
const (
	FileSpec       = "persona_spec.json"
	FilePrompt     = "system_prompt.txt"
	FileOpenAI     = "openai_config.json"
	FileClaude     = "claude_config.json"
	FileValidation = "validation_report.json"
	FileConfidence = "confidence.json"
	FileSuite      = "test_suite.json"
	FileSummary    = "delivery_summary.md"
	FilePack       = "delivery_pack.json"
)

// promptPreviewChars caps the system prompt excerpt in the summary.
const promptPreviewChars = 500

// Bundle carries every artifact one persona build produces.
type Bundle struct {
	Spec         spec.Specification
	SystemPrompt string
	OpenAI       platform.OpenAIConfig
	Claude       platform.ClaudeConfig
	Report       validate.Report
	Confidence   score.Confidence
	Suite        scenario.Suite
}

// Pack is the delivery manifest, written as delivery_pack.json and
// returned from Write.
type Pack struct {
	Slug               string   `json:"slug"`
	Version            int      `json:"version"`
	VersionStr         string   `json:"version_str"`
	PersonaName        string   `json:"persona_name"`
	PersonaRole        string   `json:"persona_role"`
	OutputDir          string   `json:"output_dir"`
	Files              []string `json:"files"`
	ConfidenceScore    float64  `json:"confidence_score"`
	ConfidenceGrade    string   `json:"confidence_grade"`
	SpecValid          bool     `json:"spec_valid"`
	TotalTestScenarios int      `json:"total_test_scenarios"`
}

// Packager writes delivery packs under a root output directory.
type Packager struct {
	root string
}

// NewPackager returns a Packager rooted at the given output directory.
func NewPackager(root string) *Packager {
	return &Packager{root: root}
}

// Root returns the output root directory.
func (p *Packager) Root() string {
	return p.root
}

// Write lays out <root>/<slug>/v<version>/ with the full artifact set
// and returns the pack manifest.
func (p *Packager) Write(slug string, version int, b Bundle) (Pack, error) {
	versionStr := "v" + strconv.Itoa(version)
	outputDir := filepath.Join(p.root, slug, versionStr)
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return Pack{}, fmt.Errorf("failed to create delivery directory: %w", err)
	}

	var written []string
	writeJSON := func(name string, v any) error {
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(outputDir, name), data, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, name)
		return nil
	}
	writeText := func(name, text string) error {
		if err := os.WriteFile(filepath.Join(outputDir, name), []byte(text), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
		written = append(written, name)
		return nil
	}

	if err := writeJSON(FileSpec, b.Spec); err != nil {
		return Pack{}, err
	}
	if err := writeText(FilePrompt, b.SystemPrompt); err != nil {
		return Pack{}, err
	}
	if err := writeJSON(FileOpenAI, b.OpenAI); err != nil {
		return Pack{}, err
	}
	if err := writeJSON(FileClaude, b.Claude); err != nil {
		return Pack{}, err
	}
	if err := writeJSON(FileValidation, b.Report); err != nil {
		return Pack{}, err
	}
	if err := writeJSON(FileConfidence, b.Confidence); err != nil {
		return Pack{}, err
	}
	if err := writeJSON(FileSuite, b.Suite); err != nil {
		return Pack{}, err
	}
	if err := writeText(FileSummary, summaryMarkdown(slug, versionStr, b, written)); err != nil {
		return Pack{}, err
	}

	pack := Pack{
		Slug:               slug,
		Version:            version,
		VersionStr:         versionStr,
		PersonaName:        b.Spec.Persona.Name,
		PersonaRole:        b.Spec.Persona.Role,
		OutputDir:          outputDir,
		Files:              written,
		ConfidenceScore:    b.Confidence.Score,
		ConfidenceGrade:    b.Confidence.Grade,
		SpecValid:          b.Report.Valid,
		TotalTestScenarios: b.Suite.TotalScenarios,
	}
	if err := writeJSON(FilePack, pack); err != nil {
		return Pack{}, err
	}
	// The manifest on disk lists the eight files written before it; the
	// returned pack also names the manifest itself.
	pack.Files = written
	return pack, nil
}

// summaryMarkdown renders delivery_summary.md. The written slice holds
// the artifacts laid down before the summary itself.
func summaryMarkdown(slug, versionStr string, b Bundle, written []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# Persona Delivery Summary — %s\n\n", b.Spec.Persona.Name)
	fmt.Fprintf(&sb, "**Slug:** %s\n", slug)
	fmt.Fprintf(&sb, "**Version:** %s\n", versionStr)
	fmt.Fprintf(&sb, "**Role:** %s\n", b.Spec.Persona.Role)
	fmt.Fprintf(&sb, "**Tone:** %s\n", b.Spec.Personality.Tone)
	fmt.Fprintf(&sb, "**Date:** %s\n\n", time.Now().UTC().Format(spec.TimestampFormat))

	sb.WriteString("## Confidence\n")
	fmt.Fprintf(&sb, "- Score: %s\n", score.Format(b.Confidence.Score))
	fmt.Fprintf(&sb, "- Grade: %s\n\n", b.Confidence.Grade)

	sb.WriteString("## Validation\n")
	fmt.Fprintf(&sb, "- Valid: %t\n", b.Report.Valid)
	fmt.Fprintf(&sb, "- Errors: %d\n", len(b.Report.Errors))
	fmt.Fprintf(&sb, "- Warnings: %d\n\n", len(b.Report.Warnings))

	sb.WriteString("## Test Coverage\n")
	fmt.Fprintf(&sb, "- Scenarios: %d\n", b.Suite.TotalScenarios)
	fmt.Fprintf(&sb, "- Categories: %s\n\n", strings.Join(categoryOrder(b.Suite), ", "))

	sb.WriteString("## Artifacts\n")
	for _, f := range written {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	fmt.Fprintf(&sb, "- %s\n\n", FileSummary)

	sb.WriteString("## Platform Configs\n")
	fmt.Fprintf(&sb, "- OpenAI: model=%s\n", b.OpenAI.Model)
	fmt.Fprintf(&sb, "- Claude: model=%s\n\n", b.Claude.Model)

	sb.WriteString("## System Prompt Preview\n")
	sb.WriteString("```\n")
	sb.WriteString(promptPreview(b.SystemPrompt))
	sb.WriteString("\n```\n")
	return sb.String()
}

// categoryOrder lists scenario categories in first-appearance order.
func categoryOrder(s scenario.Suite) []string {
	seen := make(map[string]bool, len(s.Categories))
	order := make([]string, 0, len(s.Categories))
	for _, sc := range s.Scenarios {
		if !seen[sc.Category] {
			seen[sc.Category] = true
			order = append(order, sc.Category)
		}
	}
	return order
}

// promptPreview truncates the prompt to its first 500 characters.
func promptPreview(prompt string) string {
	r := []rune(prompt)
	if len(r) <= promptPreviewChars {
		return prompt
	}
	return string(r[:promptPreviewChars]) + "..."
}
