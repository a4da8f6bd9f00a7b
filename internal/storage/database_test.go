package storage

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// newTestDB opens a migrated database in a temporary directory.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	return db
}

func TestNew(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")

	tests := []struct {
		name    string
		path    string
		wantErr bool
	}{
		{
			name:    "valid path",
			path:    dbPath,
			wantErr: false,
		},
		{
			name:    "invalid path",
			path:    filepath.Join(tmpDir, "missing", "dir", "db.db"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, err := New(tt.path)

			if tt.wantErr {
				if err == nil {
					t.Errorf("New() expected error, got nil")
				}
				if db != nil {
					_ = db.Close()
				}
				return
			}

			if err != nil {
				t.Errorf("New() unexpected error: %v", err)
				return
			}

			if db == nil {
				t.Fatal("New() returned nil database")
			}

			if db.Stats().MaxOpenConnections != 25 {
				t.Errorf("New() MaxOpenConnections = %v, want 25", db.Stats().MaxOpenConnections)
			}

			_ = db.Close()
		})
	}
}

func TestNew_Pragmas(t *testing.T) {
	db := newTestDB(t)

	var fkEnabled int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fkEnabled); err != nil {
		t.Fatalf("Failed to check foreign keys: %v", err)
	}
	if fkEnabled != 1 {
		t.Error("New() should enable foreign keys")
	}

	var mode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("Failed to check journal mode: %v", err)
	}
	if mode != "wal" {
		t.Errorf("New() journal_mode = %q, want wal", mode)
	}
}

func TestMigrate_Idempotent(t *testing.T) {
	db := newTestDB(t)

	if err := Migrate(db); err != nil {
		t.Fatalf("Migrate() second run error = %v", err)
	}

	tables := []string{"documents", "chunks"}
	for _, table := range tables {
		var count int
		err := db.QueryRow("SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&count)
		if err != nil {
			t.Fatalf("Failed to check table %s: %v", table, err)
		}
		if count != 1 {
			t.Errorf("Migrate() table %s not found after second run", table)
		}
	}
}

func TestEmbeddingCodec(t *testing.T) {
	in := []float32{0.25, -1, 0}
	s, err := EncodeEmbedding(in)
	if err != nil {
		t.Fatalf("EncodeEmbedding() error = %v", err)
	}
	if s != "[0.25,-1,0]" {
		t.Errorf("EncodeEmbedding() = %s, want [0.25,-1,0]", s)
	}

	out, err := DecodeEmbedding(s)
	if err != nil {
		t.Fatalf("DecodeEmbedding() error = %v", err)
	}
	if len(out) != 3 || out[0] != 0.25 || out[1] != -1 {
		t.Errorf("DecodeEmbedding() = %v, want %v", out, in)
	}

	if _, err := DecodeEmbedding("not json"); err == nil {
		t.Error("DecodeEmbedding() expected error for malformed input")
	}
}
