package modelset

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watch invalidates the cached set whenever the manifest is written, created,
// removed or renamed, until ctx is done. The parent directory is watched so
// atomic replace-by-rename is observed. While Watch runs, Load serves from
// cache; once it returns, Load reads the file on every call again.
//
// ready, if not nil, is closed once the watch is established.
func (s *Store) Watch(ctx context.Context, ready chan<- struct{}) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("new watcher: %w", err)
	}
	defer w.Close()

	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	s.mu.Lock()
	s.watching = true
	s.cached = false
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.watching = false
		s.cached = false
		s.mu.Unlock()
	}()
	if ready != nil {
		close(ready)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			s.Invalidate()
			s.log.Debug().Str("path", ev.Name).Str("op", ev.Op.String()).Msg("manifest changed")
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			// Missed events make the cache untrustworthy.
			s.Invalidate()
			s.log.Warn().Err(err).Msg("manifest watcher error")
		}
	}
}
