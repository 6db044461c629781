package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/semmidev/influx-s3/internal/domain"
	"github.com/semmidev/influx-s3/internal/infrastructure/logger"
)

var testLogger = logger.NewNop()

// fakeInflux writes shard files on backup and records every call in events.
type fakeInflux struct {
	events     *[]string
	shards     map[string]string
	backupErr  error
	restoreErr error
	chownErr   error
	restored   []string
}

func (f *fakeInflux) Backup(ctx context.Context, databaseName, retentionPolicy, outputDir string) error {
	*f.events = append(*f.events, "backup "+databaseName+" "+retentionPolicy)
	if f.backupErr != nil {
		return f.backupErr
	}
	for name, body := range f.shards {
		if err := os.WriteFile(filepath.Join(outputDir, name), []byte(body), 0644); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeInflux) RestoreMeta(ctx context.Context, sourceDir string) error {
	*f.events = append(*f.events, "restore meta")
	return nil
}

func (f *fakeInflux) RestoreData(ctx context.Context, databaseName, sourceDir string) error {
	*f.events = append(*f.events, "restore data "+databaseName)
	if f.restoreErr != nil {
		return f.restoreErr
	}
	entries, err := os.ReadDir(sourceDir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		f.restored = append(f.restored, e.Name())
	}
	return nil
}

func (f *fakeInflux) FixOwnership(ctx context.Context) error {
	*f.events = append(*f.events, "chown")
	return f.chownErr
}

type fakeService struct {
	events  *[]string
	stopErr error
}

func (f *fakeService) Stop(ctx context.Context) error {
	*f.events = append(*f.events, "service stop")
	return f.stopErr
}

func (f *fakeService) Start(ctx context.Context) error {
	*f.events = append(*f.events, "service start")
	return nil
}

// failingUploads wraps a store and rejects every upload.
type failingUploads struct {
	domain.ObjectStore
}

func (failingUploads) Upload(ctx context.Context, localPath, key string) error {
	return domain.NewTransferError("upload "+key, errors.New("access denied"))
}
