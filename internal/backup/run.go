package backup

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// RunResult reports what one scheduled backup invocation did.
type RunResult struct {
	Path     string
	Verified bool
	Pruned   int
	Mirrored bool
}

// Run writes a timestamp-named byte-identical copy of the database at
// dbPath into backupDir, verifies it, prunes the directory down to
// maxCount newest backups, and optionally mirrors the fresh copy into
// copyTo (spec C9: "Backup writes a timestamp-named byte-identical copy,
// prunes to backup.max_count, optionally mirrors to a secondary
// directory"). This is the simple count-based policy the spec describes;
// the tiered RetentionPolicy in retention.go remains available for
// interval-driven deployments that want hourly/daily/weekly/monthly tiers
// instead.
func Run(dbPath, backupDir string, maxCount int, copyTo string) (*RunResult, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: create backup dir: %w", err)
	}

	name := fmt.Sprintf("exocortex-%s.db", time.Now().UTC().Format("20060102T150405.000000000Z"))
	dest := filepath.Join(backupDir, name)

	if err := backupSQLite(dbPath, dest); err != nil {
		return nil, fmt.Errorf("backup: copy: %w", err)
	}

	result := &RunResult{Path: dest}
	if err := verifyBackup(dest); err != nil {
		return result, fmt.Errorf("backup: verify: %w", err)
	}
	result.Verified = true

	pruned, err := pruneToCount(backupDir, maxCount)
	if err != nil {
		return result, fmt.Errorf("backup: prune: %w", err)
	}
	result.Pruned = pruned

	if copyTo != "" {
		if err := mirrorTo(dest, copyTo); err != nil {
			return result, fmt.Errorf("backup: mirror: %w", err)
		}
		result.Mirrored = true
	}

	return result, nil
}

// pruneToCount deletes the oldest backups beyond the newest maxCount,
// returning how many were removed.
func pruneToCount(backupDir string, maxCount int) (int, error) {
	if maxCount <= 0 {
		return 0, nil
	}

	backups, err := listBackups(backupDir)
	if err != nil {
		return 0, err
	}
	if len(backups) <= maxCount {
		return 0, nil
	}

	removed := 0
	for _, b := range backups[maxCount:] {
		if err := os.Remove(b.Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Restore verifies the backup at backupPath and copies it over targetPath.
// The caller must ensure targetPath's database is not open elsewhere.
func Restore(backupPath, targetPath string) error {
	return restoreSQLite(backupPath, targetPath)
}

// Latest returns the most recent backup in backupDir, or an error if the
// directory holds none.
func Latest(backupDir string) (BackupInfo, error) {
	backups, err := listBackups(backupDir)
	if err != nil {
		return BackupInfo{}, err
	}
	if len(backups) == 0 {
		return BackupInfo{}, fmt.Errorf("backup: no backups found in %s", backupDir)
	}
	return backups[0], nil
}

// List returns every backup in backupDir, newest first.
func List(backupDir string) ([]BackupInfo, error) {
	return listBackups(backupDir)
}

// mirrorTo copies the backup at path into a secondary directory, preserving
// its filename.
func mirrorTo(path, copyTo string) error {
	if err := os.MkdirAll(copyTo, 0o755); err != nil {
		return fmt.Errorf("create mirror dir: %w", err)
	}

	src, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = src.Close() }()

	dst, err := os.Create(filepath.Join(copyTo, filepath.Base(path)))
	if err != nil {
		return err
	}
	defer func() { _ = dst.Close() }()

	if _, err := io.Copy(dst, src); err != nil {
		return err
	}
	return dst.Sync()
}
