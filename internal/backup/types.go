// Package backup provides automated database backup and restore functionality
// with tiered retention policies and integrity verification.
package backup

import (
	"time"
)

// RetentionPolicy defines how many backups to keep at each tier.
// Backups are categorized by age:
// - Hourly: backups less than 24 hours old
// - Daily: backups between 1-7 days old
// - Weekly: backups between 7-30 days old
// - Monthly: backups between 30-365 days old
type RetentionPolicy struct {
	// Hourly is the number of hourly backups to keep (default: 24)
	Hourly int

	// Daily is the number of daily backups to keep (default: 7)
	Daily int

	// Weekly is the number of weekly backups to keep (default: 4)
	Weekly int

	// Monthly is the number of monthly backups to keep (default: 12)
	Monthly int
}

// BackupInfo contains metadata about a backup file.
type BackupInfo struct {
	// Path is the full path to the backup file
	Path string

	// Timestamp is when the backup was created
	Timestamp time.Time

	// Size is the backup file size in bytes
	Size int64

	// Verified indicates if the backup passed integrity check
	Verified bool
}

