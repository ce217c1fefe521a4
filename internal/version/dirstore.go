package version

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
)

var versionDirPattern = regexp.MustCompile(`^v(\d+)$`)

// DirStore keeps versions as v<n> directories under root/<key>/. Record
// creates the directory, which is what consumes the number; artifact
// writes fill it in afterwards. Safe for concurrent use only through an
// Allocator, which serializes the scan-then-create sequence per key.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at the output directory.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Root returns the output root directory.
func (d *DirStore) Root() string {
	return d.root
}

// Path returns the directory for a version of key.
func (d *DirStore) Path(key string, version int) string {
	return filepath.Join(d.root, key, fmt.Sprintf("v%d", version))
}

// MaxVersion scans the key's directory for v<n> entries and returns the
// highest number, or 0 when the persona has no versions yet.
func (d *DirStore) MaxVersion(_ context.Context, key string) (int, error) {
	entries, err := os.ReadDir(filepath.Join(d.root, key))
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to scan versions for %q: %w", key, err)
	}

	maxVersion := 0
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
		if n > maxVersion {
			maxVersion = n
		}
	}
	return maxVersion, nil
}

// Record creates the version directory for key.
func (d *DirStore) Record(_ context.Context, key string, version int) error {
	if err := os.MkdirAll(d.Path(key, version), 0o755); err != nil {
		return fmt.Errorf("failed to create version directory: %w", err)
	}
	return nil
}
