package test_utils

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/baptistelechat/overti-me/internal/config"
	"github.com/baptistelechat/overti-me/internal/database"
)

// SetupLocalDB creates a migrated SQLite database in a temporary file.
// Each database is completely isolated from others.
func SetupLocalDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.OpenLocal(config.Local{Path: filepath.Join(t.TempDir(), "local.db")})
	if err != nil {
		t.Fatalf("Failed to open local database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

// findProjectRoot attempts to locate the project root directory
// It looks for .git directory or go.mod file
func findProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		if fileExists(filepath.Join(dir, ".git")) || fileExists(filepath.Join(dir, "go.mod")) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("could not find project root")
		}
		dir = parent
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
