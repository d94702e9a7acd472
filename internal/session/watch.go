package session

import (
	"context"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watch blocks until the stored settings satisfy pred, the context ends,
// or an error occurs. It observes the settings file for writes made by
// independent invocations of the host process — the login callback lands
// in a separate process, so a command waiting for sign-in completion
// cannot rely on its in-memory snapshot.
//
// The predicate is evaluated once up front, then on every filesystem event
// and on a coarse poll tick as a fallback for editors and renames the
// watcher misses.
func (s *Store) Watch(ctx context.Context, pred func(*Settings) bool) (bool, error) {
	check := func() (bool, error) {
		settings, err := s.Load()
		if err != nil {
			return false, err
		}
		return pred(settings), nil
	}

	if ok, err := check(); err != nil || ok {
		return ok, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return false, err
	}
	defer watcher.Close()

	// Watch the directory, not the file: atomic saves replace the file
	// by rename, which drops a watch registered on the file itself.
	if err := watcher.Add(s.dir); err != nil {
		return false, err
	}

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return false, nil
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if ok, err := check(); err != nil || ok {
				return ok, err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return false, nil
			}
			return false, err
		case <-ticker.C:
			if ok, err := check(); err != nil || ok {
				return ok, err
			}
		}
	}
}
