package database

import (
	"os"
	"path/filepath"
	"testing"
)

func TestMigrationVersion(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		version int
		ok      bool
	}{
		{"initial schema", "001_initial_schema.sql", 1, true},
		{"double digit", "012_add_index.sql", 12, true},
		{"zero version", "000_nothing.sql", 0, false},
		{"not sql", "001_notes.md", 0, false},
		{"no separator", "001initial.sql", 0, false},
		{"not numeric", "abc_initial.sql", 0, false},
		{"too short", ".sql", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			version, ok := migrationVersion(tc.file)
			if ok != tc.ok || version != tc.version {
				t.Errorf("Expected (%d, %v), got (%d, %v)", tc.version, tc.ok, version, ok)
			}
		})
	}
}

func TestListMigrations(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"010_later.sql", "002_second.sql", "001_initial_schema.sql", "README.md"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("SELECT 1;"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "003_dir.sql"), 0o755); err != nil {
		t.Fatal(err)
	}

	migrations, err := listMigrations(dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	var got []int
	for _, m := range migrations {
		got = append(got, m.version)
	}
	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 10 {
		t.Errorf("Expected versions [1 2 10], got %v", got)
	}

	if err := os.WriteFile(filepath.Join(dir, "002_clash.sql"), []byte("SELECT 1;"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := listMigrations(dir); err == nil {
		t.Errorf("Expected an error for duplicate versions")
	}

	if _, err := listMigrations(filepath.Join(dir, "missing")); err == nil {
		t.Errorf("Expected an error for a missing directory")
	}
}
