package domain

import "context"

// Database drives the native influxd backup and restore commands.
type Database interface {
	Backup(ctx context.Context, databaseName, retentionPolicy, outputDir string) error
	RestoreMeta(ctx context.Context, sourceDir string) error
	RestoreData(ctx context.Context, databaseName, sourceDir string) error
	// FixOwnership recursively hands the data directory back to the service account.
	FixOwnership(ctx context.Context) error
}

type ServiceManager interface {
	Stop(ctx context.Context) error
	Start(ctx context.Context) error
}

type Archiver interface {
	CreateArchive(sourceDir, pattern, outputPath string) (Archive, error)
	ExtractArchive(archivePath, destDir string) error
	MostRecentFile(dir, pattern string) (string, error)
}
