package backup

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

func newTestDB(t *testing.T, path string) {
	t.Helper()
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := db.Exec(`CREATE TABLE memories (id TEXT PRIMARY KEY, content TEXT)`); err != nil {
		t.Fatalf("create table: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO memories (id, content) VALUES ('1', 'hello')`); err != nil {
		t.Fatalf("insert row: %v", err)
	}
}

func TestRunBackupThenRestore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "source.db")
	newTestDB(t, dbPath)

	backupDir := filepath.Join(dir, "backups")
	result, err := Run(dbPath, backupDir, 5, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Verified {
		t.Fatal("expected backup to be verified")
	}

	restoredPath := filepath.Join(dir, "restored.db")
	if err := Restore(result.Path, restoredPath); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	db, err := sql.Open("sqlite", restoredPath)
	if err != nil {
		t.Fatalf("open restored db: %v", err)
	}
	defer func() { _ = db.Close() }()

	var content string
	if err := db.QueryRow("SELECT content FROM memories WHERE id = '1'").Scan(&content); err != nil {
		t.Fatalf("query restored row: %v", err)
	}
	if content != "hello" {
		t.Errorf("expected restored content 'hello', got %q", content)
	}
}

func TestRunPrunesToMaxCount(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "source.db")
	newTestDB(t, dbPath)

	backupDir := filepath.Join(dir, "backups")
	for i := 0; i < 3; i++ {
		if _, err := Run(dbPath, backupDir, 2, ""); err != nil {
			t.Fatalf("Run #%d: %v", i, err)
		}
	}

	backups, err := List(backupDir)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(backups) != 2 {
		t.Errorf("expected 2 backups retained, got %d", len(backups))
	}
}

func TestLatestReturnsNewest(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "source.db")
	newTestDB(t, dbPath)

	backupDir := filepath.Join(dir, "backups")
	first, err := Run(dbPath, backupDir, 10, "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	latest, err := Latest(backupDir)
	if err != nil {
		t.Fatalf("Latest: %v", err)
	}
	if latest.Path != first.Path {
		t.Errorf("expected latest %q, got %q", first.Path, latest.Path)
	}
}

func TestLatestErrorsOnEmptyDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if _, err := Latest(dir); err == nil {
		t.Fatal("expected error for empty backup directory")
	}
}

func TestRestoreRejectsCorruptBackup(t *testing.T) {
	dir := t.TempDir()
	badBackup := filepath.Join(dir, "bad.db")
	if err := os.WriteFile(badBackup, []byte("not a sqlite file"), 0o644); err != nil {
		t.Fatalf("write bad backup: %v", err)
	}

	if err := Restore(badBackup, filepath.Join(dir, "target.db")); err == nil {
		t.Fatal("expected restore to fail verification on a corrupt backup")
	}
}
