// Package data provides tests for the SQLite data access layer.
package data

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestNewDB verifies database initialization with various scenarios.
func TestNewDB(t *testing.T) {
	t.Run("creates database in valid directory", func(t *testing.T) {
		tmpDir := t.TempDir()

		store, err := NewDB(tmpDir)
		if err != nil {
			t.Fatalf("NewDB failed: %v", err)
		}
		defer store.Close()

		dbPath := filepath.Join(tmpDir, DBFileName)
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			t.Error("database file not created")
		}

		if err := store.Health(); err != nil {
			t.Errorf("health check failed: %v", err)
		}
	})

	t.Run("creates nested directory structure", func(t *testing.T) {
		tmpDir := t.TempDir()
		nestedDir := filepath.Join(tmpDir, "deep", "nested", "personad")

		store, err := NewDB(nestedDir)
		if err != nil {
			t.Fatalf("NewDB with nested dir failed: %v", err)
		}
		defer store.Close()

		if _, err := os.Stat(nestedDir); os.IsNotExist(err) {
			t.Error("nested directory not created")
		}
	})

	t.Run("idempotent migrations", func(t *testing.T) {
		tmpDir := t.TempDir()

		store1, err := NewDB(tmpDir)
		if err != nil {
			t.Fatalf("first NewDB failed: %v", err)
		}
		store1.Close()

		store2, err := NewDB(tmpDir)
		if err != nil {
			t.Fatalf("second NewDB failed: %v", err)
		}
		defer store2.Close()

		if err := store2.Health(); err != nil {
			t.Errorf("health check after re-open failed: %v", err)
		}

		// Running migrations again on an initialized schema is a no-op.
		if err := store2.Migrate(); err != nil {
			t.Errorf("re-running migrations failed: %v", err)
		}
	})

	t.Run("schema tables exist", func(t *testing.T) {
		store, err := NewDB(t.TempDir())
		if err != nil {
			t.Fatalf("NewDB failed: %v", err)
		}
		defer store.Close()

		for _, table := range []string{"personas", "persona_artifacts", "persona_versions"} {
			var name string
			err := store.DB().QueryRow(
				`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
			).Scan(&name)
			if err != nil {
				t.Errorf("table %s missing: %v", table, err)
			}
		}
	})
}

// TestWithTx verifies transaction commit and rollback behavior.
func TestWithTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commits on success", func(t *testing.T) {
		store, err := NewDB(t.TempDir())
		if err != nil {
			t.Fatalf("NewDB failed: %v", err)
		}
		defer store.Close()

		err = store.WithTx(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx,
				`INSERT INTO persona_versions (slug, version, created_at) VALUES (?, ?, ?)`,
				"rebecka", 1, "2026-02-18T12:00:00Z",
			)
			return err
		})
		if err != nil {
			t.Fatalf("WithTx failed: %v", err)
		}

		v, err := store.MaxVersion(ctx, "rebecka")
		if err != nil {
			t.Fatalf("MaxVersion failed: %v", err)
		}
		if v != 1 {
			t.Errorf("expected committed version 1, got %d", v)
		}
	})

	t.Run("rolls back on error", func(t *testing.T) {
		store, err := NewDB(t.TempDir())
		if err != nil {
			t.Fatalf("NewDB failed: %v", err)
		}
		defer store.Close()

		wantErr := errors.New("abort")
		err = store.WithTx(ctx, func(tx *sql.Tx) error {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO persona_versions (slug, version, created_at) VALUES (?, ?, ?)`,
				"rebecka", 1, "2026-02-18T12:00:00Z",
			); err != nil {
				return err
			}
			return wantErr
		})
		if !errors.Is(err, wantErr) {
			t.Fatalf("expected abort error, got %v", err)
		}

		v, err := store.MaxVersion(ctx, "rebecka")
		if err != nil {
			t.Fatalf("MaxVersion failed: %v", err)
		}
		if v != 0 {
			t.Errorf("expected rollback to drop the insert, got version %d", v)
		}
	})
}

// TestSplitSQL verifies the migration statement splitter.
func TestSplitSQL(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   int
	}{
		{
			name:   "two statements",
			script: "CREATE TABLE a (x INT);\nCREATE TABLE b (y INT);",
			want:   2,
		},
		{
			name:   "comments and blanks skipped",
			script: "-- header\n\nCREATE TABLE a (x INT);\n-- trailing comment\n",
			want:   1,
		},
		{
			name:   "multi-line statement",
			script: "CREATE TABLE a (\n    x INT,\n    y INT\n);",
			want:   1,
		},
		{
			name:   "trailing statement without semicolon",
			script: "CREATE TABLE a (x INT)",
			want:   1,
		},
		{
			name:   "empty script",
			script: "-- nothing here\n",
			want:   0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitSQL(tt.script)
			if len(got) != tt.want {
				t.Errorf("expected %d statements, got %d: %v", tt.want, len(got), got)
			}
			for _, stmt := range got {
				if strings.TrimSpace(stmt) == "" {
					t.Error("splitter produced an empty statement")
				}
			}
		})
	}
}
