package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/influx-s3/internal/domain"
)

// Cleanup prunes restore points older than the retention window.
type Cleanup struct {
	points        *RestorePoints
	logger        Logger
	retentionDays int
	now           func() time.Time
}

func NewCleanup(points *RestorePoints, logger Logger, retentionDays int) *Cleanup {
	return &Cleanup{
		points:        points,
		logger:        logger,
		retentionDays: retentionDays,
		now:           time.Now,
	}
}

// Execute deletes expired archives of databaseName and returns how many were
// removed. Individual delete failures are logged and skipped.
func (uc *Cleanup) Execute(ctx context.Context, databaseName string) (int, error) {
	if err := domain.ValidateDatabaseName(databaseName); err != nil {
		return 0, err
	}
	if uc.retentionDays <= 0 {
		uc.logger.Warnf("[%s] Retention is disabled (retention_days=%d), nothing to prune", databaseName, uc.retentionDays)
		return 0, nil
	}

	cutoff := uc.now().AddDate(0, 0, -uc.retentionDays)
	uc.logger.Infof("[%s] Starting cleanup, retention: %d days (before %s)",
		databaseName, uc.retentionDays, cutoff.Format(time.RFC3339))

	var expired []string
	for point, err := range uc.points.List(ctx, databaseName) {
		if err != nil {
			return 0, fmt.Errorf("list restore points: %w", err)
		}
		if !ownsPoint(databaseName, point.Key) {
			continue
		}
		ts := pointTime(point)
		if ts.IsZero() {
			uc.logger.Warnf("[%s] Could not determine age of %s, keeping it", databaseName, point.Key)
			continue
		}
		if ts.Before(cutoff) {
			expired = append(expired, point.Key)
		}
	}

	deleted := 0
	for _, key := range expired {
		uc.logger.Infof("[%s] Deleting old backup: %s", databaseName, key)
		if err := uc.points.store.Delete(ctx, key); err != nil {
			uc.logger.Errorf("[%s] Failed to delete %s: %v", databaseName, key, err)
			continue
		}
		deleted++
	}

	uc.logger.Infof("[%s] Deleted %d of %d expired backup(s)", databaseName, deleted, len(expired))
	return deleted, nil
}
