// Package lock serialises operations that share a scratch directory on one host.
package lock

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/juju/clock"
	"github.com/juju/mutex/v2"
)

// ErrBusy is returned when another process holds the lock for the same path.
var ErrBusy = errors.New("scratch directory is in use by another operation")

const retryDelay = 250 * time.Millisecond

type Locker struct {
	clock   clock.Clock
	timeout time.Duration
}

// New returns a Locker that waits up to timeout for a busy path. A zero
// timeout still allows a single retry delay before giving up.
func New(timeout time.Duration) *Locker {
	if timeout <= 0 {
		timeout = retryDelay
	}
	return &Locker{clock: clock.WallClock, timeout: timeout}
}

// Acquire takes the machine-wide lock for path. The returned func releases it.
func (l *Locker) Acquire(path string) (func(), error) {
	releaser, err := mutex.Acquire(mutex.Spec{
		Name:    Name(path),
		Clock:   l.clock,
		Delay:   retryDelay,
		Timeout: l.timeout,
	})
	if err != nil {
		if errors.Is(err, mutex.ErrTimeout) {
			return nil, fmt.Errorf("%w: %s", ErrBusy, path)
		}
		return nil, fmt.Errorf("acquire lock for %s: %w", path, err)
	}
	return releaser.Release, nil
}

// Name derives a valid mutex name from a filesystem path.
func Name(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = filepath.Clean(path)
	}
	sum := sha1.Sum([]byte(abs))
	return "influx-s3-" + hex.EncodeToString(sum[:])[:20]
}
