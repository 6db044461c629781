package domain

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"
)

// RestoreFileName is the fixed local name a downloaded restore point is saved under.
const RestoreFileName = "InfluxRestore.tar.gz"

// LatestRestorePoint selects the newest restore point of a database instead of an explicit key.
const LatestRestorePoint = "latest"

type BackupRequest struct {
	DatabaseName    string
	RetentionPolicy string
	ScratchDir      string
}

func (r BackupRequest) Validate() error {
	if err := ValidateDatabaseName(r.DatabaseName); err != nil {
		return err
	}
	if r.ScratchDir == "" {
		return fmt.Errorf("scratch directory is required")
	}
	return nil
}

type RestoreRequest struct {
	BackupKey    string
	LocalPath    string
	DatabaseName string
}

func (r RestoreRequest) Validate() error {
	if r.BackupKey == "" {
		return fmt.Errorf("backup key is required")
	}
	if r.LocalPath == "" {
		return fmt.Errorf("local path is required")
	}
	return ValidateDatabaseName(r.DatabaseName)
}

// ValidateDatabaseName accepts a single path element. The name becomes a
// directory under the restore path that is removed after a restore, and a
// component of object keys.
func ValidateDatabaseName(name string) error {
	if name == "" {
		return fmt.Errorf("database name is required")
	}
	if name == "." || name == ".." || name != filepath.Base(name) || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid database name %q: must be a single path element", name)
	}
	return nil
}

// Archive is a gzip-compressed tarball of shard files.
type Archive struct {
	Name  string
	Path  string
	Files []string
	Size  int64
}

type BackupResult struct {
	Key      string
	Archive  Archive
	Duration time.Duration
}

// ArchiveName returns <database>_<unix timestamp>.tar.gz.
func ArchiveName(databaseName string, at time.Time) string {
	return fmt.Sprintf("%s_%d.tar.gz", databaseName, at.Unix())
}
