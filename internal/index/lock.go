package index

import (
	"fmt"
	"time"

	"github.com/gofrs/flock"
)

// FileLock guards a project's index directory against concurrent builds
// with an advisory lock on the index directory's lock file.
type FileLock struct {
	flock *flock.Flock
}

// NewFileLock returns a lock bound to path. The lock file itself is created
// on first TryLock/LockWithTimeout call.
func NewFileLock(path string) *FileLock {
	return &FileLock{flock: flock.New(path)}
}

// TryLock attempts to acquire the lock without blocking, returning false if
// another process (or build) currently holds it.
func (l *FileLock) TryLock() (bool, error) {
	return l.flock.TryLock()
}

// LockWithTimeout blocks, polling at pollInterval, until the lock is
// acquired or timeout elapses; it returns false if the timeout elapsed first.
func (l *FileLock) LockWithTimeout(timeout, pollInterval time.Duration) (bool, error) {
	deadline := time.Now().Add(timeout)
	for {
		ok, err := l.flock.TryLock()
		if err != nil {
			return false, fmt.Errorf("acquire lock: %w", err)
		}
		if ok {
			return true, nil
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		time.Sleep(pollInterval)
	}
}

// Unlock releases the lock. Safe to call even if the lock was never
// acquired.
func (l *FileLock) Unlock() error {
	return l.flock.Unlock()
}
