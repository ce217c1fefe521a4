package delivery

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var versionDirPattern = regexp.MustCompile(`^v(\d+)$`)

// VersionInfo describes one delivery pack on disk. The metadata fields
// are nil when the pack manifest is missing or unreadable.
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

// VersionSet lists every version of one persona in ascending order.
type VersionSet struct {
	Slug          string        `json:"slug"`
	Versions      []VersionInfo `json:"versions"`
	TotalVersions int           `json:"total_versions"`
	LatestVersion int           `json:"latest_version"`
	NextVersion   int           `json:"next_version"`
}

// PersonaSummary is one row of the persona listing.
type PersonaSummary struct {
	Slug          string `json:"slug"`
	TotalVersions int    `json:"total_versions"`
	LatestVersion int    `json:"latest_version"`
}

// Inventory reads delivery packs back from an output root.
type Inventory struct {
	root string
}

// NewInventory returns an Inventory over the given output root.
func NewInventory(root string) *Inventory {
	return &Inventory{root: root}
}

// Root returns the output root directory.
func (inv *Inventory) Root() string {
	return inv.root
}

// Versions scans <root>/<slug>/ for version directories. A persona with
// no versions yields an empty set with NextVersion 1.
func (inv *Inventory) Versions(slug string) VersionSet {
	personaDir := filepath.Join(inv.root, slug)

	versions := []VersionInfo{}
	if entries, err := os.ReadDir(personaDir); err == nil {
		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			m := versionDirPattern.FindStringSubmatch(entry.Name())
			if m == nil {
				continue
			}
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			versions = append(versions, readVersionInfo(personaDir, entry.Name(), n))
		}
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Version < versions[j].Version
	})

	latest := 0
	if len(versions) > 0 {
		latest = versions[len(versions)-1].Version
	}
	return VersionSet{
		Slug:          slug,
		Versions:      versions,
		TotalVersions: len(versions),
		LatestVersion: latest,
		NextVersion:   latest + 1,
	}
}

// ListPersonas returns every persona under the root with at least one
// version, skipping entries whose names start with "_".
func (inv *Inventory) ListPersonas() []PersonaSummary {
	personas := []PersonaSummary{}
	entries, err := os.ReadDir(inv.root)
	if err != nil {
		return personas
	}
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), "_") {
			continue
		}
		set := inv.Versions(entry.Name())
		if set.TotalVersions == 0 {
			continue
		}
		personas = append(personas, PersonaSummary{
			Slug:          set.Slug,
			TotalVersions: set.TotalVersions,
			LatestVersion: set.LatestVersion,
		})
	}
	return personas
}

// readVersionInfo reads one version directory. Manifest metadata is
// best effort so a corrupt pack still leaves the version listable.
func readVersionInfo(personaDir, dirName string, version int) VersionInfo {
	versionPath := filepath.Join(personaDir, dirName)

	info := VersionInfo{
		Version:    version,
		VersionStr: dirName,
		Path:       versionPath,
		Files:      []string{},
	}

	if data, err := os.ReadFile(filepath.Join(versionPath, FilePack)); err == nil {
		var meta struct {
			ConfidenceScore *float64 `json:"confidence_score"`
			ConfidenceGrade *string  `json:"confidence_grade"`
			SpecValid       *bool    `json:"spec_valid"`
			PersonaName     *string  `json:"persona_name"`
		}
		if err := json.Unmarshal(data, &meta); err == nil {
			info.ConfidenceScore = meta.ConfidenceScore
			info.ConfidenceGrade = meta.ConfidenceGrade
			info.SpecValid = meta.SpecValid
			info.PersonaName = meta.PersonaName
		}
	}

	if entries, err := os.ReadDir(versionPath); err == nil {
		for _, entry := range entries {
			if entry.Type().IsRegular() {
				info.Files = append(info.Files, entry.Name())
			}
		}
	}
	return info
}
