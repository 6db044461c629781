package influxd

import (
	"context"
	"fmt"

	"github.com/semmidev/influx-s3/internal/config"
)

// Influxd wraps the legacy influxd backup and restore subcommands.
type Influxd struct {
	config *config.InfluxDBConfig
	runner Runner
}

func New(cfg *config.InfluxDBConfig, runner Runner) *Influxd {
	return &Influxd{config: cfg, runner: runner}
}

func (i *Influxd) Backup(ctx context.Context, databaseName, retentionPolicy, outputDir string) error {
	args := []string{"backup", "-database", databaseName}
	if retentionPolicy != "" {
		args = append(args, "-retention", retentionPolicy)
	}
	args = append(args, outputDir)

	if _, err := i.runner.Run(ctx, i.config.Binary, args...); err != nil {
		return fmt.Errorf("influxd backup failed: %w", err)
	}
	return nil
}

func (i *Influxd) RestoreMeta(ctx context.Context, sourceDir string) error {
	if _, err := i.runner.Run(ctx, i.config.Binary, "restore", "-metadir", i.config.MetaDir, sourceDir); err != nil {
		return fmt.Errorf("influxd metadata restore failed: %w", err)
	}
	return nil
}

func (i *Influxd) RestoreData(ctx context.Context, databaseName, sourceDir string) error {
	args := []string{
		"restore",
		"-database", databaseName,
		"-datadir", i.config.DataDir,
		sourceDir,
	}

	if _, err := i.runner.Run(ctx, i.config.Binary, args...); err != nil {
		return fmt.Errorf("influxd database restore failed: %w", err)
	}
	return nil
}

func (i *Influxd) FixOwnership(ctx context.Context) error {
	if _, err := i.runner.Run(ctx, "chown", "-R", i.config.Owner, i.config.DataDir); err != nil {
		return fmt.Errorf("chown failed: %w", err)
	}
	return nil
}
