// Package client provides a typed HTTP client for the personad API.
//
// The response types mirror the server's wire format so importers do not
// depend on personad internals. Pipeline rejections (HTTP 422 with a
// reason) surface as *RejectionError; every other error status surfaces
// as *APIError.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// Client is a personad REST client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the request timeout on the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// New creates a client for a personad server at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ───────────────────────────────────────────────────────────────────────────────
// RESPONSE TYPES
// ───────────────────────────────────────────────────────────────────────────────

// Issue is a single validation rule violation.
type Issue struct {
	RuleID   string `json:"rule_id"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// Flag marks a concern surfaced during confidence scoring.
type Flag struct {
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

// ValidationSummary condenses a validation run.
type ValidationSummary struct {
	ChecksRun    int     `json:"checks_run"`
	ChecksPassed int     `json:"checks_passed"`
	ChecksFailed int     `json:"checks_failed"`
	Errors       []Issue `json:"errors"`
	Warnings     []Issue `json:"warnings"`
}

// ConfidenceSummary is the scored confidence for a build.
type ConfidenceSummary struct {
	Score float64 `json:"score"`
	Grade string  `json:"grade"`
}

// Assessment is the result of POST /persona/assess.
type Assessment struct {
	PersonaName       string            `json:"persona_name"`
	PersonaSlug       string            `json:"persona_slug"`
	SpecValid         bool              `json:"spec_valid"`
	Validation        ValidationSummary `json:"validation"`
	Confidence        ConfidenceSummary `json:"confidence"`
	HighSeverityFlags []Flag            `json:"high_severity_flags"`
	TestScenarios     int               `json:"test_scenarios"`
	Hint              string            `json:"hint"`
}

// BuildResult is the result of POST /persona/build.
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

// Scenario is one generated behavioral test.
type Scenario struct {
	ID                string   `json:"id"`
	Category          string   `json:"category"`
	Description       string   `json:"description"`
	UserMessage       string   `json:"user_message"`
	ExpectedBehaviors []string `json:"expected_behaviors"`
	PassCriteria      string   `json:"pass_criteria"`
}

// TestSuite is the result of POST /persona/test.
type TestSuite struct {
	PersonaName    string         `json:"persona_name"`
	TotalScenarios int            `json:"total_scenarios"`
	Categories     map[string]int `json:"categories"`
	Scenarios      []Scenario     `json:"scenarios"`
}

// DeployResult is the result of POST /persona/deploy.
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

// PersonaSummary is one row of the persona listing.
type PersonaSummary struct {
	Slug          string `json:"slug"`
	TotalVersions int    `json:"total_versions"`
	LatestVersion int    `json:"latest_version"`
}

// PersonaList is the result of GET /personas.
type PersonaList struct {
	Total    int              `json:"total"`
	Personas []PersonaSummary `json:"personas"`
}

// PersonaInfo is the result of GET /persona/{name}: the latest delivery
// pack for one persona. Metadata pointers are nil when the pack manifest
// was missing or unreadable.
type PersonaInfo struct {
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

// VersionInfo describes one delivery pack version.
type VersionInfo struct {
	Version         int      `json:"version"`
	VersionStr      string   `json:"version_str"`
	Path            string   `json:"path"`
	Files           []string `json:"files"`
	ConfidenceScore *float64 `json:"confidence_score"`
	ConfidenceGrade *string  `json:"confidence_grade"`
	SpecValid       *bool    `json:"spec_valid"`
	PersonaName     *string  `json:"persona_name"`
}

// VersionList is the result of GET /persona/{name}/versions.
type VersionList struct {
	Slug          string        `json:"slug"`
	Versions      []VersionInfo `json:"versions"`
	TotalVersions int           `json:"total_versions"`
	LatestVersion int           `json:"latest_version"`
	NextVersion   int           `json:"next_version"`
}

// ───────────────────────────────────────────────────────────────────────────────
// ERRORS
// ───────────────────────────────────────────────────────────────────────────────

// APIError is the server's error envelope.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.Code)
}

// Rejection is the body of a pipeline gate refusal. Build rejections
// carry validation errors and warnings; deploy rejections carry either
// errors or a confidence grade with its flags.
type Rejection struct {
	Success  bool    `json:"success"`
	Reason   string  `json:"reason"`
	Errors   []Issue `json:"errors,omitempty"`
	Warnings []Issue `json:"warnings,omitempty"`
	Grade    string  `json:"grade,omitempty"`
	Flags    []Flag  `json:"flags,omitempty"`
}

// RejectionError wraps a pipeline rejection so callers can distinguish
// "the server refused this persona" from transport or server failures.
type RejectionError struct {
	Status    int
	Rejection Rejection
}

func (e *RejectionError) Error() string {
	return e.Rejection.Reason
}

// ───────────────────────────────────────────────────────────────────────────────
// API METHODS
// ───────────────────────────────────────────────────────────────────────────────

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		OK bool `json:"ok"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if !out.OK {
		return fmt.Errorf("health check failed: server reported not ok")
	}
	return nil
}

// Assess scores a persona definition without writing anything.
func (c *Client) Assess(ctx context.Context, definition map[string]any) (*Assessment, error) {
	var out Assessment
	if err := c.do(ctx, http.MethodPost, "/persona/assess", definition, &out); err != nil {
		return nil, fmt.Errorf("assess failed: %w", err)
	}
	return &out, nil
}

// Build runs the full pipeline and writes a versioned delivery pack.
func (c *Client) Build(ctx context.Context, definition map[string]any) (*BuildResult, error) {
	var out BuildResult
	if err := c.do(ctx, http.MethodPost, "/persona/build", definition, &out); err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}
	return &out, nil
}

// TestSuite generates the behavioral test scenarios for a definition.
func (c *Client) TestSuite(ctx context.Context, definition map[string]any) (*TestSuite, error) {
	var out TestSuite
	if err := c.do(ctx, http.MethodPost, "/persona/test", definition, &out); err != nil {
		return nil, fmt.Errorf("test suite failed: %w", err)
	}
	return &out, nil
}

// Deploy builds a persona and records the deployment in the database.
func (c *Client) Deploy(ctx context.Context, definition map[string]any) (*DeployResult, error) {
	var out DeployResult
	if err := c.do(ctx, http.MethodPost, "/persona/deploy", definition, &out); err != nil {
		return nil, fmt.Errorf("deploy failed: %w", err)
	}
	return &out, nil
}

// ListPersonas lists every persona with a delivery pack on disk.
func (c *Client) ListPersonas(ctx context.Context) (*PersonaList, error) {
	var out PersonaList
	if err := c.do(ctx, http.MethodGet, "/personas", nil, &out); err != nil {
		return nil, fmt.Errorf("list personas failed: %w", err)
	}
	return &out, nil
}

// GetPersona retrieves the latest delivery pack for a persona by name.
func (c *Client) GetPersona(ctx context.Context, name string) (*PersonaInfo, error) {
	var out PersonaInfo
	if err := c.do(ctx, http.MethodGet, "/persona/"+url.PathEscape(name), nil, &out); err != nil {
		return nil, fmt.Errorf("get persona failed: %w", err)
	}
	return &out, nil
}

// GetVersions retrieves every delivery pack version for a persona.
func (c *Client) GetVersions(ctx context.Context, name string) (*VersionList, error) {
	var out VersionList
	if err := c.do(ctx, http.MethodGet, "/persona/"+url.PathEscape(name)+"/versions", nil, &out); err != nil {
		return nil, fmt.Errorf("get versions failed: %w", err)
	}
	return &out, nil
}

// ───────────────────────────────────────────────────────────────────────────────
// TRANSPORT
// ───────────────────────────────────────────────────────────────────────────────

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "personad-client/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data)
	}
	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

// decodeError classifies an error body. Gate refusals carry a reason;
// everything else uses the APIError envelope.
func decodeError(status int, data []byte) error {
	var rej Rejection
	if err := json.Unmarshal(data, &rej); err == nil && rej.Reason != "" {
		return &RejectionError{Status: status, Rejection: rej}
	}

	var apiErr APIError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		return &apiErr
	}

	return fmt.Errorf("request failed: status %d: %s", status, strings.TrimSpace(string(data)))
}
