package delivery_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/normanking/personad/internal/delivery"
	"github.com/normanking/personad/internal/platform"
	"github.com/normanking/personad/internal/prompt"
	"github.com/normanking/personad/internal/scenario"
	"github.com/normanking/personad/internal/score"
	"github.com/normanking/personad/internal/spec"
	"github.com/normanking/personad/internal/validate"
)

var fixedNow = time.Date(2026, 2, 18, 12, 0, 0, 0, time.UTC)

func fullDefinition() map[string]any {
	return map[string]any{
		"name":                "Rebecka",
		"role":                "Customer Success Manager",
		"description":         "Warm CSM for onboarding.",
		"traits":              []any{"empathetic", "professional"},
		"communication_style": "warm and direct",
		"tone":                "friendly",
		"knowledge_domains":   []any{"onboarding", "SaaS"},
		"limitations":         []any{"no billing access"},
		"greeting":            "Hi! I'm Rebecka.",
		"fallback":            "Let me check on that.",
		"escalation_trigger":  "Speak to human",
		"forbidden_topics":    []any{"pricing"},
		"max_response_tokens": 800,
		"author":              "brian",
	}
}

func buildBundle(raw map[string]any) delivery.Bundle {
	s := spec.Normalize(raw, fixedNow)
	systemPrompt := prompt.Build(s)
	report := validate.Validate(s)
	suite := scenario.Generate(s, systemPrompt)
	return delivery.Bundle{
		Spec:         s,
		SystemPrompt: systemPrompt,
		OpenAI:       platform.OpenAI(s, systemPrompt),
		Claude:       platform.Claude(s, systemPrompt),
		Report:       report,
		Confidence:   score.Score(s, report, suite.TotalScenarios),
		Suite:        suite,
	}
}

func TestWriteCreatesFullPack(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)

	pack, err := p.Write("rebecka", 1, buildBundle(fullDefinition()))
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if pack.Slug != "rebecka" {
		t.Errorf("expected slug 'rebecka', got %q", pack.Slug)
	}
	if pack.Version != 1 || pack.VersionStr != "v1" {
		t.Errorf("expected version 1/v1, got %d/%s", pack.Version, pack.VersionStr)
	}
	if pack.PersonaName != "Rebecka" {
		t.Errorf("expected persona_name 'Rebecka', got %q", pack.PersonaName)
	}
	if pack.PersonaRole != "Customer Success Manager" {
		t.Errorf("expected persona_role 'Customer Success Manager', got %q", pack.PersonaRole)
	}
	wantDir := filepath.Join(root, "rebecka", "v1")
	if pack.OutputDir != wantDir {
		t.Errorf("expected output_dir %q, got %q", wantDir, pack.OutputDir)
	}
	if pack.ConfidenceScore != 1.0 || pack.ConfidenceGrade != "A" {
		t.Errorf("expected confidence 1.0/A, got %v/%s", pack.ConfidenceScore, pack.ConfidenceGrade)
	}
	if !pack.SpecValid {
		t.Error("expected spec_valid")
	}
	if pack.TotalTestScenarios != 8 {
		t.Errorf("expected 8 test scenarios, got %d", pack.TotalTestScenarios)
	}

	wantFiles := []string{
		delivery.FileSpec,
		delivery.FilePrompt,
		delivery.FileOpenAI,
		delivery.FileClaude,
		delivery.FileValidation,
		delivery.FileConfidence,
		delivery.FileSuite,
		delivery.FileSummary,
		delivery.FilePack,
	}
	if len(pack.Files) != len(wantFiles) {
		t.Fatalf("expected %d files, got %d: %v", len(wantFiles), len(pack.Files), pack.Files)
	}
	for i, name := range wantFiles {
		if pack.Files[i] != name {
			t.Errorf("files[%d]: expected %s, got %s", i, name, pack.Files[i])
		}
		if _, err := os.Stat(filepath.Join(wantDir, name)); err != nil {
			t.Errorf("expected %s on disk: %v", name, err)
		}
	}
}

func TestManifestOnDiskOmitsItself(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)
	if _, err := p.Write("rebecka", 1, buildBundle(fullDefinition())); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "rebecka", "v1", delivery.FilePack))
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var onDisk delivery.Pack
	if err := json.Unmarshal(data, &onDisk); err != nil {
		t.Fatalf("failed to decode manifest: %v", err)
	}

	if len(onDisk.Files) != 8 {
		t.Fatalf("expected 8 files in on-disk manifest, got %d: %v", len(onDisk.Files), onDisk.Files)
	}
	if onDisk.Files[len(onDisk.Files)-1] != delivery.FileSummary {
		t.Errorf("expected last file %s, got %s", delivery.FileSummary, onDisk.Files[len(onDisk.Files)-1])
	}
	for _, f := range onDisk.Files {
		if f == delivery.FilePack {
			t.Error("on-disk manifest should not list itself")
		}
	}
}

func TestSummaryLayout(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)
	if _, err := p.Write("rebecka", 1, buildBundle(fullDefinition())); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "rebecka", "v1", delivery.FileSummary))
	if err != nil {
		t.Fatalf("failed to read summary: %v", err)
	}
	md := string(data)

	for _, want := range []string{
		"# Persona Delivery Summary — Rebecka",
		"**Slug:** rebecka",
		"**Version:** v1",
		"**Role:** Customer Success Manager",
		"**Tone:** friendly",
		"**Date:** ",
		"- Score: 1.0",
		"- Grade: A",
		"- Valid: true",
		"- Errors: 0",
		"- Warnings: 0",
		"- Scenarios: 8",
		"- Categories: greeting, knowledge, guardrails, escalation, fallback, personality, behavior, identity",
		"- persona_spec.json",
		"- delivery_summary.md",
		"- OpenAI: model=gpt-4o",
		"- Claude: model=claude-sonnet-4-20250514",
		"## System Prompt Preview",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("summary missing %q", want)
		}
	}
	if strings.Contains(md, "- delivery_pack.json") {
		t.Error("summary should not list the manifest, it is written afterwards")
	}
}

func TestSummaryTruncatesLongPrompt(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)

	b := buildBundle(fullDefinition())
	b.SystemPrompt = strings.Repeat("x", 600)
	if _, err := p.Write("long-prompt", 1, b); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(root, "long-prompt", "v1", delivery.FileSummary))
	if err != nil {
		t.Fatalf("failed to read summary: %v", err)
	}
	md := string(data)

	if !strings.Contains(md, strings.Repeat("x", 500)+"...") {
		t.Error("expected prompt preview truncated at 500 characters with ellipsis")
	}
	if strings.Contains(md, strings.Repeat("x", 501)) {
		t.Error("expected no more than 500 preview characters")
	}
}

func TestArtifactsRoundTrip(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)
	if _, err := p.Write("rebecka", 1, buildBundle(fullDefinition())); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	dir := filepath.Join(root, "rebecka", "v1")

	specData, err := os.ReadFile(filepath.Join(dir, delivery.FileSpec))
	if err != nil {
		t.Fatalf("failed to read spec artifact: %v", err)
	}
	var s spec.Specification
	if err := json.Unmarshal(specData, &s); err != nil {
		t.Fatalf("failed to decode spec artifact: %v", err)
	}
	if s.Persona.Name != "Rebecka" || s.SpecVersion != spec.SpecVersion {
		t.Errorf("unexpected spec artifact: name=%q spec_version=%q", s.Persona.Name, s.SpecVersion)
	}

	reportData, err := os.ReadFile(filepath.Join(dir, delivery.FileValidation))
	if err != nil {
		t.Fatalf("failed to read validation artifact: %v", err)
	}
	var report validate.Report
	if err := json.Unmarshal(reportData, &report); err != nil {
		t.Fatalf("failed to decode validation artifact: %v", err)
	}
	if report.ChecksRun != 25 || !report.Valid {
		t.Errorf("unexpected validation artifact: checks_run=%d valid=%t", report.ChecksRun, report.Valid)
	}

	promptData, err := os.ReadFile(filepath.Join(dir, delivery.FilePrompt))
	if err != nil {
		t.Fatalf("failed to read prompt artifact: %v", err)
	}
	if !strings.HasPrefix(string(promptData), "You are Rebecka") {
		t.Errorf("unexpected prompt artifact start: %q", string(promptData[:40]))
	}
}

func TestWriteSecondVersionKeepsFirst(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)
	b := buildBundle(fullDefinition())

	if _, err := p.Write("rebecka", 1, b); err != nil {
		t.Fatalf("Write v1 failed: %v", err)
	}
	pack2, err := p.Write("rebecka", 2, b)
	if err != nil {
		t.Fatalf("Write v2 failed: %v", err)
	}

	if pack2.VersionStr != "v2" {
		t.Errorf("expected v2, got %s", pack2.VersionStr)
	}
	for _, v := range []string{"v1", "v2"} {
		if _, err := os.Stat(filepath.Join(root, "rebecka", v, delivery.FilePack)); err != nil {
			t.Errorf("expected %s manifest on disk: %v", v, err)
		}
	}
}
