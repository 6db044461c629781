package usecase

import (
	"context"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"github.com/semmidev/influx-s3/internal/domain"
)

// RestorePointLayout is the timestamp layout of a rendered restore point.
const RestorePointLayout = "2006-01-02_150405 MST"

type RestorePoints struct {
	store    domain.ObjectStore
	prefix   string
	location *time.Location
}

func NewRestorePoints(store domain.ObjectStore, prefix string, location *time.Location) *RestorePoints {
	if location == nil {
		location = time.UTC
	}
	return &RestorePoints{store: store, prefix: prefix, location: location}
}

// List yields restore points under <prefix>/<databaseName> in store order.
func (uc *RestorePoints) List(ctx context.Context, databaseName string) iter.Seq2[domain.RestorePoint, error] {
	return uc.store.List(ctx, DatabasePrefix(uc.prefix, databaseName))
}

// Print writes one line per restore point and returns how many it wrote.
func (uc *RestorePoints) Print(ctx context.Context, w io.Writer, databaseName string) (int, error) {
	if err := domain.ValidateDatabaseName(databaseName); err != nil {
		return 0, err
	}

	n := 0
	for point, err := range uc.List(ctx, databaseName) {
		if err != nil {
			return n, err
		}
		if _, err := fmt.Fprintln(w, FormatRestorePoint(point, uc.location)); err != nil {
			return n, fmt.Errorf("write restore point: %w", err)
		}
		n++
	}
	return n, nil
}

// Latest returns the newest archive of databaseName. Only keys named
// <databaseName>_<unix>.tar.gz count, so a database whose name extends
// another's is not picked up.
func (uc *RestorePoints) Latest(ctx context.Context, databaseName string) (domain.RestorePoint, error) {
	var latest domain.RestorePoint
	found := false

	for point, err := range uc.List(ctx, databaseName) {
		if err != nil {
			return domain.RestorePoint{}, err
		}
		if !ownsPoint(databaseName, point.Key) {
			continue
		}
		if !found || pointTime(point).After(pointTime(latest)) {
			latest, found = point, true
		}
	}

	if !found {
		return domain.RestorePoint{}, domain.NewNotFoundError("latest restore point",
			fmt.Errorf("no backups of %s under %s", databaseName, DatabasePrefix(uc.prefix, databaseName)))
	}
	return latest, nil
}

func FormatRestorePoint(point domain.RestorePoint, location *time.Location) string {
	return point.LastModified.In(location).Format(RestorePointLayout) + " " + point.Key
}

// DatabasePrefix is the key prefix every archive of databaseName starts with.
func DatabasePrefix(prefix, databaseName string) string {
	return strings.Trim(prefix, "/") + "/" + databaseName
}
