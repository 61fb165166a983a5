// SPDX-License-Identifier: MPL-2.0

package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// ErrLockHeld indicates another launcher instance is mid-install. The caller
// skips its own install attempt and launches the current version instead of
// waiting.
var ErrLockHeld = errors.New("install lock held by another instance")

// lockFileName lives inside the versions directory so the lock and the tree
// it guards share a filesystem.
const lockFileName = ".install.lock"

// DefaultLockStaleAfter is how old a lock may be before it is presumed
// abandoned by a crashed instance and broken. An install attempt never runs
// this long.
const DefaultLockStaleAfter = time.Hour

//nolint:gochecknoglobals // Test seam for time.Now().
var lockNow = time.Now

// InstallLock is a held cross-process mutual-exclusion marker. Release it
// when the install attempt finishes, successfully or not.
type InstallLock struct {
	path string
	id   string
}

// lockRecord is the TOML wire format of the lock file, kept human-readable
// for operator diagnosis of a stuck launcher.
type lockRecord struct {
	InstanceID string    `toml:"instance_id"`
	PID        int       `toml:"pid"`
	AcquiredAt time.Time `toml:"acquired_at"`
}

// AcquireInstallLock takes the single cross-process install lock for the
// versions tree. It returns ErrLockHeld when a live lock exists. A lock older
// than staleAfter is treated as abandoned, removed, and re-acquired once.
func AcquireInstallLock(paths Paths, staleAfter time.Duration) (*InstallLock, error) {
	if staleAfter <= 0 {
		staleAfter = DefaultLockStaleAfter
	}
	if err := os.MkdirAll(paths.Versions, 0o755); err != nil {
		return nil, fmt.Errorf("creating versions directory: %w", err)
	}

	path := filepath.Join(paths.Versions, lockFileName)

	lock, err := tryAcquire(path)
	if err == nil {
		return lock, nil
	}
	if !errors.Is(err, os.ErrExist) {
		return nil, err
	}

	// A lock file already exists. Break it only when it is demonstrably
	// stale; an unreadable lock is treated as held to stay on the safe side.
	rec, readErr := readLockRecord(path)
	if readErr != nil || lockNow().Sub(rec.AcquiredAt) <= staleAfter {
		return nil, ErrLockHeld
	}

	if removeErr := os.Remove(path); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
		return nil, ErrLockHeld
	}

	lock, err = tryAcquire(path)
	if err != nil {
		// Lost the re-acquire race to another instance.
		return nil, ErrLockHeld
	}
	return lock, nil
}

// Release removes the lock file. Releasing an already-released lock is a
// no-op.
func (l *InstallLock) Release() error {
	if l == nil || l.path == "" {
		return nil
	}
	err := os.Remove(l.path)
	l.path = ""
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("releasing install lock: %w", err)
	}
	return nil
}

// tryAcquire creates the lock file exclusively and stamps it with this
// instance's identity.
func tryAcquire(path string) (*InstallLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("install lock: %w", os.ErrExist)
		}
		return nil, fmt.Errorf("creating install lock: %w", err)
	}

	id := uuid.NewString()
	rec := lockRecord{
		InstanceID: id,
		PID:        os.Getpid(),
		AcquiredAt: lockNow().UTC(),
	}

	data, err := toml.Marshal(rec)
	if err == nil {
		_, err = f.Write(data)
	}
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("writing install lock: %w", err)
	}

	return &InstallLock{path: path, id: id}, nil
}

func readLockRecord(path string) (lockRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockRecord{}, err
	}
	var rec lockRecord
	if err := toml.Unmarshal(data, &rec); err != nil {
		return lockRecord{}, err
	}
	return rec, nil
}
