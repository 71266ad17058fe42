package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/afero"
)

// DefaultLockTimeout bounds how long SaveToFile waits for another writer
const DefaultLockTimeout = 5 * time.Second

// ErrConfigLocked is returned when the config lock could not be taken in time
var ErrConfigLocked = errors.New("config file is locked by another process")

// FileLock is an exclusive advisory lock held next to a config file
type FileLock interface {
	Unlock() error
}

// acquireLock takes the lock file for path, retrying until timeout.
// Locks only exist on the OS filesystem; other filesystems get a no-op lock.
func (cm *ConfigManager) acquireLock(path string) (FileLock, error) {
	if _, ok := cm.fs.(*afero.OsFs); !ok {
		return nopLock{}, nil
	}

	lockPath := path + ".lock"
	slog.Debug("acquiring config lock", "lock_path", lockPath)

	timeout := cm.lockTimeout
	if timeout <= 0 {
		timeout = DefaultLockTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	fl := flock.New(lockPath)
	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil && !errors.Is(err, context.DeadlineExceeded) {
		slog.Error("failed to acquire config lock", "lock_path", lockPath, "error", err)
		return nil, fmt.Errorf("failed to lock %s: %w", lockPath, err)
	}
	if !locked {
		slog.Warn("timed out waiting for config lock", "lock_path", lockPath, "timeout", timeout)
		return nil, fmt.Errorf("%w: %s (waited %v)", ErrConfigLocked, lockPath, timeout)
	}

	return fl, nil
}

type nopLock struct{}

func (nopLock) Unlock() error { return nil }

// SetLockTimeout changes how long SaveToFile waits for a competing writer
func (cm *ConfigManager) SetLockTimeout(d time.Duration) {
	cm.lockTimeout = d
}

// writeAtomic writes data beside path and renames it into place so readers
// and the config watcher never observe a half-written file.
func (cm *ConfigManager) writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := afero.WriteFile(cm.fs, tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp config file: %w", err)
	}
	if err := cm.fs.Rename(tmp, path); err != nil {
		_ = cm.fs.Remove(tmp)
		return fmt.Errorf("failed to rename temp config file: %w", err)
	}
	return nil
}
