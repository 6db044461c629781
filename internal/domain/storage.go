package domain

import (
	"context"
	"iter"
	"time"
)

// RestorePoint is a backup archive available in object storage.
type RestorePoint struct {
	Key          string
	LastModified time.Time
	Size         int64
}

type ObjectStore interface {
	Upload(ctx context.Context, localPath string, key string) error
	Download(ctx context.Context, key string, localPath string) error
	// List yields the objects under prefix in store order. The sequence is
	// single use; pages are fetched while it is consumed.
	List(ctx context.Context, prefix string) iter.Seq2[RestorePoint, error]
	Delete(ctx context.Context, key string) error
	Bucket() string
}

type Notifier interface {
	Notify(ctx context.Context, message string) error
}
