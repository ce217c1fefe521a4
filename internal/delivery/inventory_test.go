package delivery_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/normanking/personad/internal/delivery"
)

func TestVersionsUnknownPersona(t *testing.T) {
	inv := delivery.NewInventory(t.TempDir())

	set := inv.Versions("ghost")
	if set.Slug != "ghost" {
		t.Errorf("expected slug 'ghost', got %q", set.Slug)
	}
	if set.TotalVersions != 0 || set.LatestVersion != 0 || set.NextVersion != 1 {
		t.Errorf("expected 0/0/1, got %d/%d/%d", set.TotalVersions, set.LatestVersion, set.NextVersion)
	}

	data, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"versions":[]`) {
		t.Errorf("expected versions to serialize as an empty array, got %s", data)
	}
}

func TestVersionsAscending(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)
	b := buildBundle(fullDefinition())
	for v := 1; v <= 2; v++ {
		if _, err := p.Write("rebecka", v, b); err != nil {
			t.Fatalf("Write v%d failed: %v", v, err)
		}
	}

	set := delivery.NewInventory(root).Versions("rebecka")
	if set.TotalVersions != 2 || set.LatestVersion != 2 || set.NextVersion != 3 {
		t.Fatalf("expected 2/2/3, got %d/%d/%d", set.TotalVersions, set.LatestVersion, set.NextVersion)
	}

	v1 := set.Versions[0]
	if v1.Version != 1 || v1.VersionStr != "v1" {
		t.Errorf("expected version 1/v1, got %d/%s", v1.Version, v1.VersionStr)
	}
	if want := filepath.Join(root, "rebecka", "v1"); v1.Path != want {
		t.Errorf("expected path %q, got %q", want, v1.Path)
	}
	if len(v1.Files) != 9 {
		t.Errorf("expected 9 files, got %d: %v", len(v1.Files), v1.Files)
	}
	if len(v1.Files) > 0 && v1.Files[0] != "claude_config.json" {
		t.Errorf("expected files sorted by name, got first %q", v1.Files[0])
	}

	if v1.PersonaName == nil || *v1.PersonaName != "Rebecka" {
		t.Errorf("expected persona_name 'Rebecka', got %v", v1.PersonaName)
	}
	if v1.SpecValid == nil || !*v1.SpecValid {
		t.Errorf("expected spec_valid true, got %v", v1.SpecValid)
	}
	if v1.ConfidenceScore == nil || *v1.ConfidenceScore != 1.0 {
		t.Errorf("expected confidence_score 1.0, got %v", v1.ConfidenceScore)
	}
	if v1.ConfidenceGrade == nil || *v1.ConfidenceGrade != "A" {
		t.Errorf("expected confidence_grade 'A', got %v", v1.ConfidenceGrade)
	}
}

func TestCorruptManifestStillListed(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)
	if _, err := p.Write("rebecka", 1, buildBundle(fullDefinition())); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	v2 := filepath.Join(root, "rebecka", "v2")
	if err := os.MkdirAll(v2, 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(v2, delivery.FilePack), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(v2, delivery.FilePrompt), []byte("hello"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	set := delivery.NewInventory(root).Versions("rebecka")
	if set.TotalVersions != 2 {
		t.Fatalf("expected 2 versions, got %d", set.TotalVersions)
	}

	broken := set.Versions[1]
	if broken.Version != 2 {
		t.Fatalf("expected version 2, got %d", broken.Version)
	}
	if broken.PersonaName != nil || broken.ConfidenceScore != nil || broken.SpecValid != nil {
		t.Error("expected nil metadata for corrupt manifest")
	}
	if len(broken.Files) != 2 {
		t.Errorf("expected 2 files, got %v", broken.Files)
	}

	data, err := json.Marshal(broken)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if !strings.Contains(string(data), `"persona_name":null`) {
		t.Errorf("expected null persona_name in JSON, got %s", data)
	}
}

func TestVersionsOrderedNumerically(t *testing.T) {
	root := t.TempDir()
	for _, v := range []string{"v2", "v10"} {
		if err := os.MkdirAll(filepath.Join(root, "rebecka", v), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
	}

	set := delivery.NewInventory(root).Versions("rebecka")
	if set.TotalVersions != 2 {
		t.Fatalf("expected 2 versions, got %d", set.TotalVersions)
	}
	if set.Versions[0].Version != 2 || set.Versions[1].Version != 10 {
		t.Errorf("expected numeric order [2 10], got [%d %d]", set.Versions[0].Version, set.Versions[1].Version)
	}
	if set.LatestVersion != 10 || set.NextVersion != 11 {
		t.Errorf("expected latest 10 next 11, got %d/%d", set.LatestVersion, set.NextVersion)
	}
}

func TestVersionsIgnoresStrayEntries(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)
	if _, err := p.Write("rebecka", 1, buildBundle(fullDefinition())); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	personaDir := filepath.Join(root, "rebecka")
	for _, dir := range []string{"notes", "v", "v2beta"} {
		if err := os.MkdirAll(filepath.Join(personaDir, dir), 0o755); err != nil {
			t.Fatalf("mkdir failed: %v", err)
		}
	}
	// A file named like a version dir does not count either.
	if err := os.WriteFile(filepath.Join(personaDir, "v9"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	set := delivery.NewInventory(root).Versions("rebecka")
	if set.TotalVersions != 1 || set.LatestVersion != 1 {
		t.Errorf("expected only v1, got %d versions latest %d", set.TotalVersions, set.LatestVersion)
	}
}

func TestListPersonas(t *testing.T) {
	root := t.TempDir()
	p := delivery.NewPackager(root)
	b := buildBundle(fullDefinition())
	for _, slug := range []string{"rebecka", "daniel"} {
		if _, err := p.Write(slug, 1, b); err != nil {
			t.Fatalf("Write %s failed: %v", slug, err)
		}
	}

	// Underscore-prefixed dirs, version-less dirs, and plain files are
	// all skipped.
	if err := os.MkdirAll(filepath.Join(root, "_scratch", "v1"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatalf("mkdir failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "README.md"), []byte("x"), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	personas := delivery.NewInventory(root).ListPersonas()
	if len(personas) != 2 {
		t.Fatalf("expected 2 personas, got %d: %v", len(personas), personas)
	}
	if personas[0].Slug != "daniel" || personas[1].Slug != "rebecka" {
		t.Errorf("expected sorted [daniel rebecka], got [%s %s]", personas[0].Slug, personas[1].Slug)
	}
	for _, ps := range personas {
		if ps.TotalVersions != 1 || ps.LatestVersion != 1 {
			t.Errorf("%s: expected 1 version, got %d/%d", ps.Slug, ps.TotalVersions, ps.LatestVersion)
		}
	}
}

func TestListPersonasMissingRoot(t *testing.T) {
	inv := delivery.NewInventory(filepath.Join(t.TempDir(), "absent"))
	personas := inv.ListPersonas()
	if len(personas) != 0 {
		t.Errorf("expected no personas, got %v", personas)
	}
}
