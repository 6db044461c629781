package usecase

import (
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/semmidev/influx-s3/internal/domain"
)

// archiveTimestamp reads the unix time out of <database>_<unix>.tar.gz.
func archiveTimestamp(key string) (time.Time, error) {
	name := strings.TrimSuffix(path.Base(key), ".tar.gz")

	idx := strings.LastIndex(name, "_")
	if idx < 0 || idx == len(name)-1 {
		return time.Time{}, fmt.Errorf("invalid archive name: %s", key)
	}

	secs, err := strconv.ParseInt(name[idx+1:], 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid archive timestamp in %s: %w", key, err)
	}
	return time.Unix(secs, 0), nil
}

// pointTime prefers the store's modification time and falls back to the
// timestamp in the archive name.
func pointTime(point domain.RestorePoint) time.Time {
	if !point.LastModified.IsZero() {
		return point.LastModified
	}
	ts, err := archiveTimestamp(point.Key)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// ownsPoint reports whether key is named exactly <databaseName>_<unix>.tar.gz.
// Listing by prefix also returns databases whose name extends databaseName,
// such as metrics2 or metrics_old for metrics.
func ownsPoint(databaseName, key string) bool {
	stamp, ok := strings.CutPrefix(path.Base(key), databaseName+"_")
	if !ok {
		return false
	}
	stamp, ok = strings.CutSuffix(stamp, ".tar.gz")
	if !ok || stamp == "" {
		return false
	}
	_, err := strconv.ParseUint(stamp, 10, 64)
	return err == nil
}
