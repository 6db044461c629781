package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/semmidev/influx-s3/internal/domain"
)

// Restore steps, in execution order.
const (
	StepPrepare        = "prepare"
	StepDownload       = "download"
	StepExtract        = "extract"
	StepRemoveArchive  = "remove archive"
	StepStopService    = "stop service"
	StepRestoreMeta    = "restore metadata"
	StepRestoreData    = "restore database"
	StepFixOwnership   = "fix ownership"
	StepStartService   = "start service"
	StepRemoveLocalDir = "remove restore directory"
)

type Restore struct {
	db       domain.Database
	service  domain.ServiceManager
	archiver domain.Archiver
	store    domain.ObjectStore
	points   *RestorePoints
	logger   Logger
}

func NewRestore(
	db domain.Database,
	service domain.ServiceManager,
	archiver domain.Archiver,
	store domain.ObjectStore,
	points *RestorePoints,
	logger Logger,
) *Restore {
	return &Restore{
		db:       db,
		service:  service,
		archiver: archiver,
		store:    store,
		points:   points,
		logger:   logger,
	}
}

// Execute downloads and unpacks the archive, then swaps it into the live
// database with the service stopped. Nothing is rolled back: a failure after
// the stop leaves the service down, which the returned *domain.RestoreError
// reports.
func (uc *Restore) Execute(ctx context.Context, req domain.RestoreRequest) error {
	start := time.Now()
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid restore request: %w", err)
	}

	dbName := req.DatabaseName
	stopped := false
	fail := func(step string, err error) error {
		uc.logger.Errorf("[%s] Restore failed at %q: %v", dbName, step, err)
		return &domain.RestoreError{Step: step, ServiceStopped: stopped, Err: err}
	}

	key := req.BackupKey
	if key == domain.LatestRestorePoint {
		point, err := uc.points.Latest(ctx, dbName)
		if err != nil {
			return fail(StepPrepare, err)
		}
		key = point.Key
		uc.logger.Infof("[%s] Latest restore point is %s", dbName, key)
	}

	if err := os.MkdirAll(filepath.Join(req.LocalPath, dbName), 0755); err != nil {
		return fail(StepPrepare, err)
	}

	uc.logger.Infof("[%s] Downloading restore point: %s", dbName, key)
	if err := uc.store.Download(ctx, key, filepath.Join(req.LocalPath, domain.RestoreFileName)); err != nil {
		return fail(StepDownload, err)
	}

	uc.logger.Infof("[%s] Extracting archive...", dbName)
	archivePath, err := uc.archiver.MostRecentFile(req.LocalPath, "*.gz")
	if err != nil {
		return fail(StepExtract, err)
	}
	if err := uc.archiver.ExtractArchive(archivePath, req.LocalPath); err != nil {
		return fail(StepExtract, err)
	}

	if err := removeMatching(req.LocalPath, "*.gz"); err != nil {
		return fail(StepRemoveArchive, err)
	}

	uc.logger.Infof("[%s] Stopping influxdb service", dbName)
	if err := uc.service.Stop(ctx); err != nil {
		return fail(StepStopService, err)
	}
	stopped = true

	uc.logger.Infof("[%s] Restoring metadata...", dbName)
	if err := uc.db.RestoreMeta(ctx, req.LocalPath); err != nil {
		return fail(StepRestoreMeta, err)
	}

	uc.logger.Infof("[%s] Restoring database...", dbName)
	if err := uc.db.RestoreData(ctx, dbName, req.LocalPath); err != nil {
		return fail(StepRestoreData, err)
	}

	uc.logger.Infof("[%s] Fixing data directory ownership...", dbName)
	if err := uc.db.FixOwnership(ctx); err != nil {
		return fail(StepFixOwnership, err)
	}

	uc.logger.Infof("[%s] Starting influxdb service", dbName)
	if err := uc.service.Start(ctx); err != nil {
		return fail(StepStartService, err)
	}
	stopped = false

	if err := os.RemoveAll(req.LocalPath); err != nil {
		return fail(StepRemoveLocalDir, err)
	}

	uc.logger.Infof("[%s] Restore of %s completed in %s", dbName, key, time.Since(start).Round(time.Second))
	return nil
}

func removeMatching(dir, pattern string) error {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return err
	}
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || info.IsDir() {
			continue
		}
		if err := os.Remove(m); err != nil {
			return err
		}
	}
	return nil
}
