package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/normanking/personad/internal/spec"
)

// Persona status lifecycle: draft -> deployed | failed.
const (
	StatusDraft    = "draft"
	StatusDeployed = "deployed"
	StatusFailed   = "failed"
)

// Artifact types stored for a deployed persona.
const (
	ArtifactSpec             = "persona_spec"
	ArtifactSystemPrompt     = "system_prompt"
	ArtifactOpenAIConfig     = "openai_config"
	ArtifactClaudeConfig     = "claude_config"
	ArtifactValidationReport = "validation_report"
	ArtifactConfidence       = "confidence"
	ArtifactTestSuite        = "test_suite"
	ArtifactDeliveryPack     = "delivery_pack"
)

// PersonaRecord is one row of the personas table. Confidence fields are
// nil until the persona is finalized.
type PersonaRecord struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Slug            string   `json:"slug"`
	Version         int      `json:"version"`
	Role            string   `json:"role,omitempty"`
	Description     string   `json:"description,omitempty"`
	Status          string   `json:"status"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
	ConfidenceGrade string   `json:"confidence_grade,omitempty"`
	SpecValid       *bool    `json:"spec_valid,omitempty"`
	CreatedAt       string   `json:"created_at"`
	DeployedAt      string   `json:"deployed_at,omitempty"`
	FailureReason   string   `json:"failure_reason,omitempty"`
}

// Artifact is one row of the persona_artifacts table. Exactly one of
// ContentJSON / ContentText is set.
type Artifact struct {
	ID          string `json:"id"`
	PersonaID   string `json:"persona_id"`
	Type        string `json:"artifact_type"`
	ContentJSON string `json:"content_json,omitempty"`
	ContentText string `json:"content_text,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// JSONArtifact builds an artifact from any JSON-encodable value.
func JSONArtifact(artifactType string, v any) (Artifact, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Artifact{}, fmt.Errorf("marshal %s artifact: %w", artifactType, err)
	}
	return Artifact{Type: artifactType, ContentJSON: string(data)}, nil
}

// TextArtifact builds a plain-text artifact.
func TextArtifact(artifactType, text string) Artifact {
	return Artifact{Type: artifactType, ContentText: text}
}

// Finalization carries the terminal state of a persona build.
type Finalization struct {
	Status          string
	ConfidenceScore *float64
	ConfidenceGrade string
	SpecValid       *bool
	FailureReason   string
}

// execer is satisfied by both *sql.DB and *sql.Tx so the write helpers
// can run standalone or inside a deployment transaction.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// ═══════════════════════════════════════════════════════════════════════════════
// PERSONA OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// CreatePersona inserts a persona row. A missing ID is filled with a
// fresh UUID, a missing status defaults to draft, and a missing
// timestamp defaults to now.
func (s *Store) CreatePersona(ctx context.Context, rec *PersonaRecord) error {
	return insertPersona(ctx, s.db, rec)
}

func insertPersona(ctx context.Context, ex execer, rec *PersonaRecord) error {
	if rec.Name == "" {
		return fmt.Errorf("persona name cannot be empty")
	}
	if rec.Slug == "" {
		return fmt.Errorf("persona slug cannot be empty")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Status == "" {
		rec.Status = StatusDraft
	}
	if rec.CreatedAt == "" {
		rec.CreatedAt = time.Now().UTC().Format(spec.TimestampFormat)
	}

	query := `
		INSERT INTO personas (
			id, name, slug, version,
			role, description, status,
			confidence_score, confidence_grade, spec_valid,
			created_at, deployed_at, failure_reason
		) VALUES (
			?, ?, ?, ?,
			?, ?, ?,
			?, ?, ?,
			?, ?, ?
		)
	`

	_, err := ex.ExecContext(ctx, query,
		rec.ID, rec.Name, rec.Slug, rec.Version,
		nullString(rec.Role), nullString(rec.Description), rec.Status,
		nullFloat(rec.ConfidenceScore), nullString(rec.ConfidenceGrade), nullBool(rec.SpecValid),
		rec.CreatedAt, nullString(rec.DeployedAt), nullString(rec.FailureReason),
	)
	if err != nil {
		return fmt.Errorf("insert persona: %w", err)
	}

	return nil
}

// StoreArtifact inserts or replaces one artifact for a persona.
func (s *Store) StoreArtifact(ctx context.Context, personaID string, artifact Artifact) error {
	return upsertArtifact(ctx, s.db, personaID, artifact)
}

func upsertArtifact(ctx context.Context, ex execer, personaID string, artifact Artifact) error {
	if artifact.Type == "" {
		return fmt.Errorf("artifact type cannot be empty")
	}
	if artifact.ID == "" {
		artifact.ID = uuid.NewString()
	}
	if artifact.CreatedAt == "" {
		artifact.CreatedAt = time.Now().UTC().Format(spec.TimestampFormat)
	}

	query := `
		INSERT INTO persona_artifacts (
			id, persona_id, artifact_type,
			content_json, content_text, created_at
		) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (persona_id, artifact_type) DO UPDATE SET
			content_json = excluded.content_json,
			content_text = excluded.content_text,
			created_at = excluded.created_at
	`

	_, err := ex.ExecContext(ctx, query,
		artifact.ID, personaID, artifact.Type,
		nullString(artifact.ContentJSON), nullString(artifact.ContentText), artifact.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store %s artifact: %w", artifact.Type, err)
	}

	return nil
}

// FinalizePersona updates a persona row with its final status and
// scores. DeployedAt is stamped when the status is deployed.
func (s *Store) FinalizePersona(ctx context.Context, personaID string, fin Finalization) error {
	return finalizePersona(ctx, s.db, personaID, fin)
}

func finalizePersona(ctx context.Context, ex execer, personaID string, fin Finalization) error {
	var deployedAt sql.NullString
	if fin.Status == StatusDeployed {
		deployedAt = sql.NullString{String: time.Now().UTC().Format(spec.TimestampFormat), Valid: true}
	}

	query := `
		UPDATE personas SET
			status = ?,
			confidence_score = ?,
			confidence_grade = ?,
			spec_valid = ?,
			deployed_at = ?,
			failure_reason = ?
		WHERE id = ?
	`

	res, err := ex.ExecContext(ctx, query,
		fin.Status,
		nullFloat(fin.ConfidenceScore),
		nullString(fin.ConfidenceGrade),
		nullBool(fin.SpecValid),
		deployedAt,
		nullString(fin.FailureReason),
		personaID,
	)
	if err != nil {
		return fmt.Errorf("finalize persona: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize persona: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("persona not found: %s", personaID)
	}

	return nil
}

// DeployPersona writes the persona row, all of its artifacts, and the
// deployed status in a single transaction.
func (s *Store) DeployPersona(ctx context.Context, rec *PersonaRecord, artifacts []Artifact, fin Finalization) error {
	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if err := insertPersona(ctx, tx, rec); err != nil {
			return err
		}
		for _, artifact := range artifacts {
			if err := upsertArtifact(ctx, tx, rec.ID, artifact); err != nil {
				return err
			}
		}
		return finalizePersona(ctx, tx, rec.ID, fin)
	})
}

// GetPersona retrieves one persona row by slug and version.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetPersona(ctx context.Context, slug string, version int) (*PersonaRecord, error) {
	query := personaSelect + ` WHERE slug = ? AND version = ?`
	return scanPersona(s.db.QueryRowContext(ctx, query, slug, version))
}

// GetLatestPersona retrieves the highest-version row for a slug.
// Returns sql.ErrNoRows if not found.
func (s *Store) GetLatestPersona(ctx context.Context, slug string) (*PersonaRecord, error) {
	query := personaSelect + ` WHERE slug = ? ORDER BY version DESC LIMIT 1`
	return scanPersona(s.db.QueryRowContext(ctx, query, slug))
}

// ListPersonas retrieves every persona row ordered by slug then
// version. Returns an empty slice when the table is empty.
func (s *Store) ListPersonas(ctx context.Context) ([]*PersonaRecord, error) {
	query := personaSelect + ` ORDER BY slug, version`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query personas: %w", err)
	}
	defer rows.Close()

	personas := []*PersonaRecord{}
	for rows.Next() {
		rec, err := scanPersona(rows)
		if err != nil {
			return nil, err
		}
		personas = append(personas, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate personas: %w", err)
	}

	return personas, nil
}

// GetArtifact retrieves one artifact for a persona.
// Returns an error if the artifact does not exist.
func (s *Store) GetArtifact(ctx context.Context, personaID, artifactType string) (*Artifact, error) {
	query := `
		SELECT id, persona_id, artifact_type, content_json, content_text, created_at
		FROM persona_artifacts
		WHERE persona_id = ? AND artifact_type = ?
	`

	var artifact Artifact
	var contentJSON, contentText sql.NullString

	err := s.db.QueryRowContext(ctx, query, personaID, artifactType).Scan(
		&artifact.ID, &artifact.PersonaID, &artifact.Type,
		&contentJSON, &contentText, &artifact.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("artifact not found: %s/%s", personaID, artifactType)
		}
		return nil, fmt.Errorf("query artifact: %w", err)
	}

	artifact.ContentJSON = contentJSON.String
	artifact.ContentText = contentText.String
	return &artifact, nil
}

// CountArtifacts returns the number of artifacts stored for a persona.
func (s *Store) CountArtifacts(ctx context.Context, personaID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM persona_artifacts WHERE persona_id = ?`, personaID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count artifacts: %w", err)
	}
	return count, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// VERSION LEDGER (drives a version.Allocator)
// ═══════════════════════════════════════════════════════════════════════════════

// MaxVersion returns the highest version recorded for a slug, or 0 when
// none exists. Together with Record this lets the Store back a
// version.Allocator for database version numbers.
func (s *Store) MaxVersion(ctx context.Context, slug string) (int, error) {
	var highest int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM persona_versions WHERE slug = ?`, slug,
	).Scan(&highest)
	if err != nil {
		return 0, fmt.Errorf("query max version: %w", err)
	}
	return highest, nil
}

// Record marks a version number as issued for a slug. The primary key
// rejects double-issuing the same number.
func (s *Store) Record(ctx context.Context, slug string, version int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO persona_versions (slug, version, created_at) VALUES (?, ?, ?)`,
		slug, version, time.Now().UTC().Format(spec.TimestampFormat),
	)
	if err != nil {
		return fmt.Errorf("record version: %w", err)
	}
	return nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPER FUNCTIONS
// ═══════════════════════════════════════════════════════════════════════════════

const personaSelect = `
	SELECT
		id, name, slug, version,
		role, description, status,
		confidence_score, confidence_grade, spec_valid,
		created_at, deployed_at, failure_reason
	FROM personas`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPersona(row rowScanner) (*PersonaRecord, error) {
	var rec PersonaRecord
	var role, description, grade, deployedAt, failureReason sql.NullString
	var confidenceScore sql.NullFloat64
	var specValid sql.NullInt64

	err := row.Scan(
		&rec.ID, &rec.Name, &rec.Slug, &rec.Version,
		&role, &description, &rec.Status,
		&confidenceScore, &grade, &specValid,
		&rec.CreatedAt, &deployedAt, &failureReason,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan persona: %w", err)
	}

	rec.Role = role.String
	rec.Description = description.String
	rec.ConfidenceGrade = grade.String
	rec.DeployedAt = deployedAt.String
	rec.FailureReason = failureReason.String
	if confidenceScore.Valid {
		rec.ConfidenceScore = &confidenceScore.Float64
	}
	if specValid.Valid {
		valid := specValid.Int64 != 0
		rec.SpecValid = &valid
	}

	return &rec, nil
}

// nullString converts a string to sql.NullString.
// Returns NULL if the string is empty.
func nullString(s string) sql.NullString {
	return sql.NullString{
		String: s,
		Valid:  s != "",
	}
}

// nullFloat converts an optional float to sql.NullFloat64.
func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

// nullBool converts an optional bool to sql.NullInt64.
func nullBool(b *bool) sql.NullInt64 {
	if b == nil {
		return sql.NullInt64{}
	}
	v := int64(0)
	if *b {
		v = 1
	}
	return sql.NullInt64{Int64: v, Valid: true}
}
