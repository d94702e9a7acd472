package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/gofrs/flock"
)

// FileName is the settings blob file name.
const FileName = "session.json"

// LockTimeout is the maximum time to wait for acquiring the file lock.
// If exceeded, operations proceed without locking (fail-open) to avoid
// CLI hangs when another process crashed while holding the lock.
const LockTimeout = 250 * time.Millisecond

// Store handles reading and writing the settings blob with file locking.
// Update serializes read-modify-write cycles across processes.
type Store struct {
	dir string
}

// NewStore creates a settings store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Dir returns the store directory path.
func (s *Store) Dir() string {
	return s.dir
}

// Path returns the full path to the settings file.
func (s *Store) Path() string {
	return filepath.Join(s.dir, FileName)
}

func (s *Store) lockPath() string {
	return filepath.Join(s.dir, ".lock")
}

type fileLock struct {
	flock *flock.Flock
}

// acquireLock obtains an exclusive lock on the store directory. Returns nil
// with no error when the lock cannot be acquired within LockTimeout; the
// caller then proceeds unlocked rather than hanging.
func (s *Store) acquireLock() (*fileLock, error) {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return nil, err
	}

	fl := flock.New(s.lockPath())

	ctx, cancel := context.WithTimeout(context.Background(), LockTimeout)
	defer cancel()

	locked, err := fl.TryLockContext(ctx, 10*time.Millisecond)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, nil
		}
		return nil, err
	}
	if !locked {
		return nil, nil
	}

	return &fileLock{flock: fl}, nil
}

func (fl *fileLock) release() error {
	if fl == nil || fl.flock == nil {
		return nil
	}
	return fl.flock.Unlock()
}

// Load reads the settings from disk, merged over defaults.
// A missing or corrupted file loads as defaults.
func (s *Store) Load() (*Settings, error) {
	lock, err := s.acquireLock()
	if err != nil {
		return nil, err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	return s.loadUnsafe()
}

func (s *Store) loadUnsafe() (*Settings, error) {
	settings := Defaults()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return settings, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, settings); err != nil {
		// Corrupted blob: start over from defaults rather than erroring.
		return Defaults(), nil
	}

	return settings, nil
}

// Save writes the settings to disk atomically.
func (s *Store) Save(settings *Settings) error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	return s.saveUnsafe(settings)
}

func (s *Store) saveUnsafe(settings *Settings) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}

	// Atomic write via temp file with a unique name, so an unlocked
	// (fail-open) writer never clobbers a half-written blob.
	tmpPath := fmt.Sprintf("%s.%d.%d.tmp", s.Path(), os.Getpid(), time.Now().UnixNano())
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}

	// Windows: rename fails when the destination exists.
	if runtime.GOOS == "windows" {
		_ = os.Remove(s.Path())
	}

	if err := os.Rename(tmpPath, s.Path()); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	return nil
}

// Update atomically loads, modifies, and saves the settings. The updateFn
// receives the current settings and modifies them in place. This is the
// only sanctioned way to mutate session state: the lock is held for the
// whole read-modify-write cycle, so concurrent invocations of the host
// process cannot lose each other's writes.
func (s *Store) Update(updateFn func(*Settings) error) error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	settings, err := s.loadUnsafe()
	if err != nil {
		return err
	}

	if err := updateFn(settings); err != nil {
		return err
	}

	return s.saveUnsafe(settings)
}

// Clear removes the settings file.
func (s *Store) Clear() error {
	lock, err := s.acquireLock()
	if err != nil {
		return err
	}
	if lock != nil {
		defer func() { _ = lock.release() }()
	}

	err = os.Remove(s.Path())
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Exists returns true if a settings file exists.
func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path())
	return err == nil
}
