package usecase

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/semmidev/influx-s3/internal/domain"
)

type Logger interface {
	Infof(template string, args ...interface{})
	Errorf(template string, args ...interface{})
	Warnf(template string, args ...interface{})
}

type Backup struct {
	db           domain.Database
	archiver     domain.Archiver
	store        domain.ObjectStore
	logger       Logger
	prefix       string
	shardPattern string
	timestamp    func() time.Time
}

// NewBackup wires a backup run. timestamp supplies the time embedded in the
// archive name; one-shot runs pass the process start time.
func NewBackup(
	db domain.Database,
	archiver domain.Archiver,
	store domain.ObjectStore,
	logger Logger,
	prefix string,
	shardPattern string,
	timestamp func() time.Time,
) *Backup {
	return &Backup{
		db:           db,
		archiver:     archiver,
		store:        store,
		logger:       logger,
		prefix:       prefix,
		shardPattern: shardPattern,
		timestamp:    timestamp,
	}
}

// Execute runs native backup, archive, upload and scratch cleanup in order.
// The first failing step ends the run; earlier steps are not undone.
func (uc *Backup) Execute(ctx context.Context, req domain.BackupRequest) (domain.BackupResult, error) {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return domain.BackupResult{}, fmt.Errorf("invalid backup request: %w", err)
	}

	dbName := req.DatabaseName
	uc.logger.Infof("[%s] Starting backup into %s", dbName, req.ScratchDir)

	if err := os.MkdirAll(req.ScratchDir, 0755); err != nil {
		return domain.BackupResult{}, fmt.Errorf("create scratch directory: %w", err)
	}

	if req.RetentionPolicy != "" {
		uc.logger.Infof("[%s] Running influxd backup (retention policy %s)...", dbName, req.RetentionPolicy)
	} else {
		uc.logger.Infof("[%s] Running influxd backup...", dbName)
	}
	if err := uc.db.Backup(ctx, dbName, req.RetentionPolicy, req.ScratchDir); err != nil {
		return domain.BackupResult{}, fmt.Errorf("backup: %w", err)
	}

	archiveName := domain.ArchiveName(dbName, uc.timestamp())
	uc.logger.Infof("[%s] Creating archive %s", dbName, archiveName)
	archive, err := uc.archiver.CreateArchive(req.ScratchDir, uc.shardPattern, filepath.Join(req.ScratchDir, archiveName))
	if err != nil {
		return domain.BackupResult{}, fmt.Errorf("archive: %w", err)
	}
	uc.logger.Infof("[%s] Archived %d shard file(s), size: %.2f MB",
		dbName, len(archive.Files), float64(archive.Size)/(1024*1024))

	key := ObjectKey(uc.prefix, archive.Name)
	uc.logger.Infof("[%s] Uploading to %s/%s...", dbName, uc.store.Bucket(), key)
	if err := uc.store.Upload(ctx, archive.Path, key); err != nil {
		return domain.BackupResult{}, fmt.Errorf("upload: %w", err)
	}

	removed, err := CleanScratch(req.ScratchDir)
	if err != nil {
		return domain.BackupResult{}, fmt.Errorf("clean scratch directory: %w", err)
	}
	uc.logger.Infof("[%s] Removed %d file(s) from %s", dbName, removed, req.ScratchDir)

	result := domain.BackupResult{Key: key, Archive: archive, Duration: time.Since(start)}
	uc.logger.Infof("[%s] Backup completed in %s: %s", dbName, result.Duration.Round(time.Second), key)

	return result, nil
}

// ObjectKey joins the upload prefix and an archive name with a slash.
func ObjectKey(prefix, name string) string {
	return path.Join(strings.Trim(prefix, "/"), name)
}

// CleanScratch deletes every non-directory entry directly under dir.
func CleanScratch(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
