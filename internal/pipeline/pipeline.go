// Package pipeline runs persona definitions through the full build
// chain: normalize, validate, prompt, scenarios, platform configs,
// confidence. It owns version allocation for both the delivery tree on
// disk and the database ledger, and is the only package that decides
// whether a persona may be packaged or deployed.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/normanking/personad/internal/data"
	"github.com/normanking/personad/internal/delivery"
	"github.com/normanking/personad/internal/platform"
	"github.com/normanking/personad/internal/prompt"
	"github.com/normanking/personad/internal/scenario"
	"github.com/normanking/personad/internal/score"
	"github.com/normanking/personad/internal/spec"
	"github.com/normanking/personad/internal/validate"
	"github.com/normanking/personad/internal/version"
)

// MinDeployConfidence is the score floor for deployment. It equals the
// grade D threshold: D deploys, F does not.
const MinDeployConfidence = 0.50

// buildHint points assess callers at the endpoint that actually writes
// artifacts.
const buildHint = "Use POST /persona/build to run the full pipeline and write artifacts to disk."

// Pipeline wires the pure stages to storage. The database store is
// optional; without one, Deploy refuses to run.
type Pipeline struct {
	packager  *delivery.Packager
	inventory *delivery.Inventory
	fsAlloc   *version.Allocator
	store     *data.Store
	dbAlloc   *version.Allocator
	log       zerolog.Logger
	now       func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithStore attaches a database store, enabling Deploy. The store also
// backs the database version allocator.
func WithStore(store *data.Store) Option {
	return func(p *Pipeline) {
		p.store = store
		p.dbAlloc = version.New(store)
	}
}

// WithLogger sets the pipeline logger.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// New creates a Pipeline writing delivery packs under outputRoot.
func New(outputRoot string, opts ...Option) *Pipeline {
	p := &Pipeline{
		packager:  delivery.NewPackager(outputRoot),
		inventory: delivery.NewInventory(outputRoot),
		fsAlloc:   version.New(version.NewDirStore(outputRoot)),
		log:       zerolog.Nop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// OutputRoot returns the delivery tree root.
func (p *Pipeline) OutputRoot() string {
	return p.packager.Root()
}

// ValidationSummary condenses a validation report for API responses.
type ValidationSummary struct {
	ChecksRun    int              `json:"checks_run"`
	ChecksPassed int              `json:"checks_passed"`
	ChecksFailed int              `json:"checks_failed"`
	Errors       []validate.Issue `json:"errors"`
	Warnings     []validate.Issue `json:"warnings"`
}

// ConfidenceSummary condenses a confidence report for API responses.
type ConfidenceSummary struct {
	Score float64 `json:"score"`
	Grade string  `json:"grade"`
}

// AssessResult is the dry-run report: everything the pipeline would
// conclude about a definition, with nothing written anywhere.
type AssessResult struct {
	PersonaName       string            `json:"persona_name"`
	PersonaSlug       string            `json:"persona_slug"`
	SpecValid         bool              `json:"spec_valid"`
	Validation        ValidationSummary `json:"validation"`
	Confidence        ConfidenceSummary `json:"confidence"`
	HighSeverityFlags []score.Flag      `json:"high_severity_flags"`
	TestScenarios     int               `json:"test_scenarios"`
	Hint              string            `json:"hint"`
}

// BuildResult reports a successful build and packaging run.
type BuildResult struct {
	Success       bool              `json:"success"`
	PersonaName   string            `json:"persona_name"`
	Slug          string            `json:"slug"`
	Version       int               `json:"version"`
	OutputDir     string            `json:"output_dir"`
	Files         []string          `json:"files"`
	Confidence    ConfidenceSummary `json:"confidence"`
	SpecValid     bool              `json:"spec_valid"`
	TestScenarios int               `json:"test_scenarios"`
}

// BuildRejection reports a build refused by validation.
type BuildRejection struct {
	Success  bool             `json:"success"`
	Reason   string           `json:"reason"`
	Errors   []validate.Issue `json:"errors"`
	Warnings []validate.Issue `json:"warnings"`
}

// TestResult carries the generated scenario suite.
type TestResult struct {
	PersonaName    string              `json:"persona_name"`
	TotalScenarios int                 `json:"total_scenarios"`
	Categories     map[string]int      `json:"categories"`
	Scenarios      []scenario.Scenario `json:"scenarios"`
}

// DeployResult reports a successful deployment: artifacts on disk plus
// a deployed persona row in the database.
type DeployResult struct {
	Success       bool              `json:"success"`
	Deployed      bool              `json:"deployed"`
	PersonaName   string            `json:"persona_name"`
	Slug          string            `json:"slug"`
	DBVersion     int               `json:"db_version"`
	FSVersion     int               `json:"fs_version"`
	OutputDir     string            `json:"output_dir"`
	Files         []string          `json:"files"`
	Confidence    ConfidenceSummary `json:"confidence"`
	SpecValid     bool              `json:"spec_valid"`
	TestScenarios int               `json:"test_scenarios"`
}

// DeployRejection reports a deployment refused by one of the two gates.
// Errors is set for the validation gate, Grade and Flags for the
// confidence gate.
type DeployRejection struct {
	Success bool             `json:"success"`
	Reason  string           `json:"reason"`
	Errors  []validate.Issue `json:"errors,omitempty"`
	Grade   string           `json:"grade,omitempty"`
	Flags   []score.Flag     `json:"flags,omitempty"`
}

// ShowResult describes the latest version of one persona on disk.
type ShowResult struct {
	Slug            string   `json:"slug"`
	Version         int      `json:"version"`
	VersionStr      string   `json:"version_str"`
	Path            string   `json:"path"`
	Files           []string `json:"files"`
	ConfidenceScore *float64 `json:"confidence_score"`
	ConfidenceGrade *string  `json:"confidence_grade"`
	SpecValid       *bool    `json:"spec_valid"`
	PersonaName     *string  `json:"persona_name"`
	TotalVersions   int      `json:"total_versions"`
}

// artifacts holds every stage product for one definition.
type artifacts struct {
	spec   spec.Specification
	report validate.Report
	prompt string
	suite  scenario.Suite
	openai platform.OpenAIConfig
	claude platform.ClaudeConfig
	conf   score.Confidence
}

// materialize runs every pure stage. No gating, no writes.
func (p *Pipeline) materialize(raw map[string]any) artifacts {
	s := spec.Normalize(raw, p.now())
	report := validate.Validate(s)
	sys := prompt.Build(s)
	suite := scenario.Generate(s, sys)
	return artifacts{
		spec:   s,
		report: report,
		prompt: sys,
		suite:  suite,
		openai: platform.OpenAI(s, sys),
		claude: platform.Claude(s, sys),
		conf:   score.Score(s, report, suite.TotalScenarios),
	}
}

func bundleOf(a artifacts) delivery.Bundle {
	return delivery.Bundle{
		Spec:         a.spec,
		SystemPrompt: a.prompt,
		OpenAI:       a.openai,
		Claude:       a.claude,
		Report:       a.report,
		Confidence:   a.conf,
		Suite:        a.suite,
	}
}

// Assess runs the full chain without writing anything and reports what
// a build would conclude.
func (p *Pipeline) Assess(raw map[string]any) AssessResult {
	a := p.materialize(raw)

	return AssessResult{
		PersonaName: a.spec.Persona.Name,
		PersonaSlug: a.spec.Persona.Slug,
		SpecValid:   a.report.Valid,
		Validation: ValidationSummary{
			ChecksRun:    a.report.ChecksRun,
			ChecksPassed: a.report.ChecksPassed,
			ChecksFailed: a.report.ChecksFailed,
			Errors:       a.report.Errors,
			Warnings:     a.report.Warnings,
		},
		Confidence:        ConfidenceSummary{Score: a.conf.Score, Grade: a.conf.Grade},
		HighSeverityFlags: a.conf.HighSeverityFlags,
		TestScenarios:     a.suite.TotalScenarios,
		Hint:              buildHint,
	}
}

// Build runs the chain, and if validation passes, allocates the next
// version directory and writes the delivery pack. An invalid spec
// returns a rejection, not an error; errors are reserved for storage
// failures.
func (p *Pipeline) Build(ctx context.Context, raw map[string]any) (*BuildResult, *BuildRejection, error) {
	a := p.materialize(raw)

	if !a.report.Valid {
		p.log.Warn().
			Str("persona", a.spec.Persona.Name).
			Int("errors", len(a.report.Errors)).
			Msg("Build rejected by validation")
		return nil, &BuildRejection{
			Reason:   "Validation failed",
			Errors:   a.report.Errors,
			Warnings: a.report.Warnings,
		}, nil
	}

	slug := a.spec.Persona.Slug
	ver, err := p.fsAlloc.Next(ctx, slug)
	if err != nil {
		return nil, nil, fmt.Errorf("allocate version for %s: %w", slug, err)
	}

	pack, err := p.packager.Write(slug, ver, bundleOf(a))
	if err != nil {
		return nil, nil, fmt.Errorf("package %s v%d: %w", slug, ver, err)
	}

	p.log.Info().
		Str("persona", a.spec.Persona.Name).
		Str("slug", slug).
		Int("version", ver).
		Str("grade", a.conf.Grade).
		Msg("Build complete")

	return &BuildResult{
		Success:       true,
		PersonaName:   pack.PersonaName,
		Slug:          pack.Slug,
		Version:       pack.Version,
		OutputDir:     pack.OutputDir,
		Files:         pack.Files,
		Confidence:    ConfidenceSummary{Score: a.conf.Score, Grade: a.conf.Grade},
		SpecValid:     a.report.Valid,
		TestScenarios: a.suite.TotalScenarios,
	}, nil, nil
}

// TestSuite generates the behavioral scenario suite without gating or
// writing anything.
func (p *Pipeline) TestSuite(raw map[string]any) TestResult {
	a := p.materialize(raw)
	return TestResult{
		PersonaName:    a.spec.Persona.Name,
		TotalScenarios: a.suite.TotalScenarios,
		Categories:     a.suite.Categories,
		Scenarios:      a.suite.Scenarios,
	}
}

// Deploy runs the chain through both gates, packages the artifacts on
// disk, then writes the persona row, all eight artifacts, and the
// deployed status to the database in one transaction. The disk and
// database version counters advance independently.
func (p *Pipeline) Deploy(ctx context.Context, raw map[string]any) (*DeployResult, *DeployRejection, error) {
	if p.store == nil {
		return nil, nil, fmt.Errorf("%w: deployment requires a database", version.ErrStoreUnavailable)
	}

	a := p.materialize(raw)

	if !a.report.Valid {
		p.log.Warn().
			Str("persona", a.spec.Persona.Name).
			Int("errors", len(a.report.Errors)).
			Msg("Deploy rejected by validation")
		return nil, &DeployRejection{
			Reason: "Validation failed — cannot deploy",
			Errors: a.report.Errors,
		}, nil
	}

	if a.conf.Score < MinDeployConfidence {
		p.log.Warn().
			Str("persona", a.spec.Persona.Name).
			Float64("score", a.conf.Score).
			Str("grade", a.conf.Grade).
			Msg("Deploy rejected by confidence gate")
		return nil, &DeployRejection{
			Reason: fmt.Sprintf("Confidence too low (%s) — cannot deploy", score.Format(a.conf.Score)),
			Grade:  a.conf.Grade,
			Flags:  a.conf.Flags,
		}, nil
	}

	slug := a.spec.Persona.Slug
	fsVer, err := p.fsAlloc.Next(ctx, slug)
	if err != nil {
		return nil, nil, fmt.Errorf("allocate fs version for %s: %w", slug, err)
	}

	pack, err := p.packager.Write(slug, fsVer, bundleOf(a))
	if err != nil {
		return nil, nil, fmt.Errorf("package %s v%d: %w", slug, fsVer, err)
	}

	dbVer, err := p.dbAlloc.Next(ctx, slug)
	if err != nil {
		return nil, nil, fmt.Errorf("allocate db version for %s: %w", slug, err)
	}

	rec := &data.PersonaRecord{
		Name:        a.spec.Persona.Name,
		Slug:        slug,
		Version:     dbVer,
		Role:        a.spec.Persona.Role,
		Description: a.spec.Persona.Description,
	}
	arts, err := deployArtifacts(a, pack)
	if err != nil {
		return nil, nil, err
	}
	fin := data.Finalization{
		Status:          data.StatusDeployed,
		ConfidenceScore: &a.conf.Score,
		ConfidenceGrade: a.conf.Grade,
		SpecValid:       &a.report.Valid,
	}
	if err := p.store.DeployPersona(ctx, rec, arts, fin); err != nil {
		return nil, nil, fmt.Errorf("deploy %s v%d: %w", slug, dbVer, err)
	}

	p.log.Info().
		Str("persona", a.spec.Persona.Name).
		Str("slug", slug).
		Int("db_version", dbVer).
		Int("fs_version", fsVer).
		Str("grade", a.conf.Grade).
		Msg("Deploy complete")

	return &DeployResult{
		Success:       true,
		Deployed:      true,
		PersonaName:   a.spec.Persona.Name,
		Slug:          slug,
		DBVersion:     dbVer,
		FSVersion:     fsVer,
		OutputDir:     pack.OutputDir,
		Files:         pack.Files,
		Confidence:    ConfidenceSummary{Score: a.conf.Score, Grade: a.conf.Grade},
		SpecValid:     a.report.Valid,
		TestScenarios: a.suite.TotalScenarios,
	}, nil, nil
}

// deployArtifacts lays out the eight database artifacts in the same
// order the packager writes their file counterparts.
func deployArtifacts(a artifacts, pack delivery.Pack) ([]data.Artifact, error) {
	out := make([]data.Artifact, 0, 8)
	addJSON := func(artifactType string, v any) error {
		art, err := data.JSONArtifact(artifactType, v)
		if err != nil {
			return err
		}
		out = append(out, art)
		return nil
	}

	if err := addJSON(data.ArtifactSpec, a.spec); err != nil {
		return nil, err
	}
	out = append(out, data.TextArtifact(data.ArtifactSystemPrompt, a.prompt))
	if err := addJSON(data.ArtifactOpenAIConfig, a.openai); err != nil {
		return nil, err
	}
	if err := addJSON(data.ArtifactClaudeConfig, a.claude); err != nil {
		return nil, err
	}
	if err := addJSON(data.ArtifactValidationReport, a.report); err != nil {
		return nil, err
	}
	if err := addJSON(data.ArtifactConfidence, a.conf); err != nil {
		return nil, err
	}
	if err := addJSON(data.ArtifactTestSuite, a.suite); err != nil {
		return nil, err
	}
	if err := addJSON(data.ArtifactDeliveryPack, pack); err != nil {
		return nil, err
	}
	return out, nil
}

// Show returns the latest on-disk version of a persona, or false when
// none exist.
func (p *Pipeline) Show(slug string) (*ShowResult, bool) {
	set := p.inventory.Versions(slug)
	if set.TotalVersions == 0 {
		return nil, false
	}

	latest := set.Versions[len(set.Versions)-1]
	return &ShowResult{
		Slug:            set.Slug,
		Version:         latest.Version,
		VersionStr:      latest.VersionStr,
		Path:            latest.Path,
		Files:           latest.Files,
		ConfidenceScore: latest.ConfidenceScore,
		ConfidenceGrade: latest.ConfidenceGrade,
		SpecValid:       latest.SpecValid,
		PersonaName:     latest.PersonaName,
		TotalVersions:   set.TotalVersions,
	}, true
}

// Versions returns every on-disk version of a persona.
func (p *Pipeline) Versions(slug string) delivery.VersionSet {
	return p.inventory.Versions(slug)
}

// List returns every persona with at least one on-disk version.
func (p *Pipeline) List() []delivery.PersonaSummary {
	return p.inventory.ListPersonas()
}
