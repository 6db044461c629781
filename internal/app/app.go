package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/semmidev/influx-s3/internal/adapter/archiver"
	"github.com/semmidev/influx-s3/internal/adapter/influxd"
	"github.com/semmidev/influx-s3/internal/adapter/notifier"
	"github.com/semmidev/influx-s3/internal/adapter/storage"
	"github.com/semmidev/influx-s3/internal/config"
	"github.com/semmidev/influx-s3/internal/domain"
	"github.com/semmidev/influx-s3/internal/infrastructure/lock"
	"github.com/semmidev/influx-s3/internal/infrastructure/logger"
	"github.com/semmidev/influx-s3/internal/infrastructure/scheduler"
	"github.com/semmidev/influx-s3/internal/usecase"
)

// Options override collaborators that are normally built from the config.
type Options struct {
	// StartedAt is embedded in the archive name of a one-shot backup.
	StartedAt time.Time
	// Runner executes influxd, chown and service. Defaults to os/exec.
	Runner influxd.Runner
	// Stdout receives restore point listings. Defaults to os.Stdout.
	Stdout io.Writer
	Logger *logger.Logger
}

type App struct {
	config    *config.Config
	logger    *logger.Logger
	store     domain.ObjectStore
	notifier  domain.Notifier
	locker    *lock.Locker
	stdout    io.Writer
	startedAt time.Time

	db        domain.Database
	archiver  domain.Archiver
	points    *usecase.RestorePoints
	restoreUC *usecase.Restore
	cleanupUC *usecase.Cleanup
}

func New(ctx context.Context, cfg *config.Config, opts Options) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	log := opts.Logger
	if log == nil {
		var err error
		log, err = logger.New(cfg.App.LogLevel, cfg.App.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}

	store, err := newObjectStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	notify, err := newNotifier(cfg, log)
	if err != nil {
		return nil, err
	}

	runner := opts.Runner
	if runner == nil {
		runner = influxd.NewExecRunner()
	}

	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	startedAt := opts.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now()
	}

	db := influxd.New(&cfg.InfluxDB, runner)
	arch := archiver.NewTarGz()
	points := usecase.NewRestorePoints(store, cfg.Storage.Prefix, cfg.Location())

	return &App{
		config:    cfg,
		logger:    log,
		store:     store,
		notifier:  notify,
		locker:    lock.New(cfg.Backup.LockTimeout),
		stdout:    stdout,
		startedAt: startedAt,
		db:        db,
		archiver:  arch,
		points:    points,
		restoreUC: usecase.NewRestore(db, newServiceManager(cfg, runner), arch, store, points, log.Named("restore")),
		cleanupUC: usecase.NewCleanup(points, log.Named("prune"), cfg.Backup.RetentionDays),
	}, nil
}

func newObjectStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (domain.ObjectStore, error) {
	switch cfg.Storage.Type {
	case "s3":
		s3Store, err := storage.NewS3(ctx, &cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize S3: %w", err)
		}
		log.Debugf("S3 bucket %s, credentials: %s", cfg.Storage.Bucket, s3Store.CredentialSource())
		return s3Store, nil
	case "local":
		localStore, err := storage.NewLocal(cfg.Storage.LocalPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local storage: %w", err)
		}
		log.Debugf("Local bucket %s", cfg.Storage.LocalPath)
		return localStore, nil
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", cfg.Storage.Type)
	}
}

func newNotifier(cfg *config.Config, log *logger.Logger) (domain.Notifier, error) {
	if !cfg.Notify.Telegram.Enabled {
		return notifier.Nop{}, nil
	}
	tg, err := notifier.NewTelegram(&cfg.Notify.Telegram)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Telegram: %w", err)
	}
	log.Infof("Telegram notifications enabled")
	return tg, nil
}

func newServiceManager(cfg *config.Config, runner influxd.Runner) domain.ServiceManager {
	if cfg.InfluxDB.ServiceManager == "systemd" {
		return influxd.NewSystemdService(cfg.InfluxDB.ServiceName)
	}
	return influxd.NewInitService(cfg.InfluxDB.ServiceName, runner)
}

func (a *App) newBackup(timestamp func() time.Time) *usecase.Backup {
	return usecase.NewBackup(
		a.db,
		a.archiver,
		a.store,
		a.logger.Named("backup"),
		a.config.Storage.Prefix,
		a.config.Backup.ShardPattern,
		timestamp,
	)
}

// Backup runs one backup of databaseName. scratchDir overrides the configured
// scratch directory when set.
func (a *App) Backup(ctx context.Context, databaseName, retentionPolicy, scratchDir string) error {
	uc := a.newBackup(func() time.Time { return a.startedAt })
	return a.runBackup(ctx, uc, databaseName, retentionPolicy, scratchDir)
}

func (a *App) runBackup(ctx context.Context, uc *usecase.Backup, databaseName, retentionPolicy, scratchDir string) error {
	if scratchDir == "" {
		scratchDir = a.config.Backup.ScratchDir
	}

	release, err := a.locker.Acquire(scratchDir)
	if err != nil {
		return err
	}
	defer release()

	result, err := uc.Execute(ctx, domain.BackupRequest{
		DatabaseName:    databaseName,
		RetentionPolicy: retentionPolicy,
		ScratchDir:      scratchDir,
	})
	if err != nil {
		a.notify(ctx, fmt.Sprintf("❌ Backup of %s failed: %v", databaseName, err))
		return err
	}

	a.notify(ctx, fmt.Sprintf("✅ Backup of %s uploaded to %s/%s (%s)",
		databaseName, a.store.Bucket(), result.Key, result.Duration.Round(time.Second)))
	return nil
}

// RunScheduled backs up databaseName on every tick of spec until ctx is done.
// Each run stamps its archive with its own start time and, when retention is
// configured, prunes expired restore points afterwards.
func (a *App) RunScheduled(ctx context.Context, spec, databaseName, retentionPolicy, scratchDir string) error {
	sched := scheduler.New()
	uc := a.newBackup(time.Now)

	job := func(jobCtx context.Context) error {
		a.logger.Infof("=== Triggered scheduled backup for %s ===", databaseName)
		if err := a.runBackup(jobCtx, uc, databaseName, retentionPolicy, scratchDir); err != nil {
			return err
		}
		if a.config.Backup.RetentionDays > 0 {
			if _, err := a.cleanupUC.Execute(jobCtx, databaseName); err != nil {
				return fmt.Errorf("prune after backup: %w", err)
			}
		}
		return nil
	}

	onError := func(err error) {
		a.logger.Errorf("[%s] Scheduled backup failed: %v", databaseName, err)
	}

	if err := sched.AddJob(spec, job, onError); err != nil {
		return fmt.Errorf("failed to schedule backup for %s: %w", databaseName, err)
	}

	sched.Start()
	a.logger.Infof("Scheduled backup for %s: %s", databaseName, spec)

	<-ctx.Done()
	a.logger.Infof("Stopping scheduler...")
	sched.Stop()
	return nil
}

// Restore restores backupKey (or "latest") into databaseName, staging the
// archive under <basePath>/<databaseName>.
func (a *App) Restore(ctx context.Context, backupKey, databaseName, basePath string) error {
	if basePath == "" {
		basePath = a.config.Restore.Path
	}
	req := domain.RestoreRequest{
		BackupKey:    backupKey,
		LocalPath:    RestorePath(basePath, databaseName),
		DatabaseName: databaseName,
	}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("invalid restore request: %w", err)
	}

	release, err := a.locker.Acquire(req.LocalPath)
	if err != nil {
		return err
	}
	defer release()

	if err := a.restoreUC.Execute(ctx, req); err != nil {
		a.notify(ctx, fmt.Sprintf("❌ Restore of %s from %s failed: %v", databaseName, backupKey, err))
		return err
	}

	a.notify(ctx, fmt.Sprintf("✅ Restore of %s from %s completed", databaseName, backupKey))
	return nil
}

// RestorePath is the directory a restore of databaseName is staged in.
func RestorePath(basePath, databaseName string) string {
	if databaseName == "" {
		return ""
	}
	return filepath.Join(basePath, databaseName)
}

// RestorePoints prints the restore points of databaseName to stdout.
func (a *App) RestorePoints(ctx context.Context, databaseName string) (int, error) {
	return a.points.Print(ctx, a.stdout, databaseName)
}

// Prune deletes restore points of databaseName older than the retention window.
func (a *App) Prune(ctx context.Context, databaseName string) (int, error) {
	return a.cleanupUC.Execute(ctx, databaseName)
}

func (a *App) notify(ctx context.Context, message string) {
	if err := a.notifier.Notify(ctx, message); err != nil {
		a.logger.Warnf("Failed to send notification: %v", err)
	}
}

func (a *App) Shutdown() {
	a.logger.Close()
}
