// Package cli is the influx-s3 command line front end.
package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/semmidev/influx-s3/internal/config"
)

// ConflictingModesMessage is printed when backup and restore are requested together.
const ConflictingModesMessage = "You cannot backup and restore at the same time!"

var (
	ErrConflictingModes = errors.New("backup and restore requested together")
	ErrMultipleModes    = errors.New("only one of --backup, --restore, --restorepoints and --prune may be given")
)

// App is the set of operations the command line drives.
type App interface {
	Backup(ctx context.Context, databaseName, retentionPolicy, scratchDir string) error
	RunScheduled(ctx context.Context, spec, databaseName, retentionPolicy, scratchDir string) error
	Restore(ctx context.Context, backupKey, databaseName, basePath string) error
	RestorePoints(ctx context.Context, databaseName string) (int, error)
	Prune(ctx context.Context, databaseName string) (int, error)
	Shutdown()
}

// AppFactory builds the App once flags have been folded into the config.
type AppFactory func(ctx context.Context, cfg *config.Config) (App, error)

type options struct {
	configFile      string
	backup          string
	path            string
	retentionPolicy string
	restore         string
	databaseName    string
	restorePoints   bool
	prune           bool
	profile         string
	schedule        string
}

func NewRootCommand(newApp AppFactory) *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "influx-s3",
		Short: "Backup or restore InfluxDB databases to/from S3",
		Long: `influx-s3 runs influxd backup, packs the shard files into a tar.gz archive and
uploads it to an S3 bucket. Restores download an archive, stop the influxdb
service, run influxd restore and start the service again.

Examples:
  # Back up a database
  influx-s3 --backup metrics

  # Back up every night at 02:30 and keep running
  influx-s3 --backup metrics --schedule "0 30 2 * * *"

  # List restore points
  influx-s3 --restorepoints --databasename metrics

  # Restore the newest restore point
  influx-s3 --restore latest --databasename metrics`,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, opts, newApp)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "config file (yaml)")
	flags.StringVarP(&opts.backup, "backup", "b", "", "backup the given database")
	flags.StringVarP(&opts.path, "path", "p", "", "scratch directory for backups, or base directory for restores (default from config, /var/tmp for restores)")
	flags.StringVar(&opts.retentionPolicy, "retentionpolicy", "", "retention policy to back up")
	flags.StringVarP(&opts.restore, "restore", "r", "", "restore the given object key, or \"latest\"")
	flags.StringVarP(&opts.databaseName, "databasename", "d", "", "database to restore, list or prune")
	flags.BoolVarP(&opts.restorePoints, "restorepoints", "l", false, "list available restore points")
	flags.BoolVar(&opts.prune, "prune", false, "delete restore points older than backup.retention_days")
	flags.StringVar(&opts.profile, "profile", "", "AWS shared config profile")
	flags.StringVar(&opts.schedule, "schedule", "", "cron spec with seconds; keep running and back up on every tick")

	return cmd
}

func run(cmd *cobra.Command, opts *options, newApp AppFactory) error {
	if opts.backup != "" && opts.restore != "" {
		fmt.Fprintln(cmd.OutOrStdout(), ConflictingModesMessage)
		return ErrConflictingModes
	}

	modes := 0
	for _, set := range []bool{opts.backup != "", opts.restore != "", opts.restorePoints, opts.prune} {
		if set {
			modes++
		}
	}
	if modes == 0 {
		return cmd.Usage()
	}
	if modes > 1 {
		return ErrMultipleModes
	}

	if opts.backup == "" && opts.databaseName == "" {
		return fmt.Errorf("--databasename is required")
	}

	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if opts.profile != "" {
		cfg.Storage.Profile = opts.profile
	}
	if opts.schedule != "" {
		cfg.Backup.Schedule = opts.schedule
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	application, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initialize app: %w", err)
	}
	defer application.Shutdown()

	switch {
	case opts.backup != "":
		if cfg.Backup.Schedule != "" {
			return application.RunScheduled(ctx, cfg.Backup.Schedule, opts.backup, opts.retentionPolicy, opts.path)
		}
		return application.Backup(ctx, opts.backup, opts.retentionPolicy, opts.path)

	case opts.restore != "":
		return application.Restore(ctx, opts.restore, opts.databaseName, opts.path)

	case opts.restorePoints:
		_, err := application.RestorePoints(ctx, opts.databaseName)
		return err

	default:
		n, err := application.Prune(ctx, opts.databaseName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d restore point(s) of %s\n", n, opts.databaseName)
		return nil
	}
}
