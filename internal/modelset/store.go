package modelset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog"

	"cubedeploy/internal/common/fsutil"
)

// Store persists a Set as a ConfigMap manifest file. Every mutation rewrites
// the whole file; there is no partial update.
type Store struct {
	path string
	meta Meta
	log  zerolog.Logger

	mu       sync.Mutex
	cache    Set
	cached   bool
	watching bool
	// header is the metadata last read from or written to the file.
	header DocumentMetadata
}

// NewStore returns a Store for the manifest at path. The file need not exist
// yet; a missing manifest reads as an empty set.
func NewStore(path string, meta Meta, log zerolog.Logger) *Store {
	return &Store{path: path, meta: meta, log: log}
}

// Path is the manifest location handed to the external apply command.
func (s *Store) Path() string { return s.path }

// Meta returns the manifest identity header.
func (s *Store) Meta() Meta { return s.meta }

// Reload discards any cached copy and parses the manifest from disk.
func (s *Store) Reload() (Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cached = false
	set, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return set.Clone(), nil
}

// Load returns the current set. While a watcher is running the parsed set is
// cached until the file changes; without one every call reads the file.
func (s *Store) Load() (Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	return set.Clone(), nil
}

// Get returns the text of one model.
func (s *Store) Get(name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.loadLocked()
	if err != nil {
		return "", false, err
	}
	text, ok := set[name]
	return text, ok, nil
}

// Put inserts or overwrites name and rewrites the manifest.
func (s *Store) Put(name, text string) (Set, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	next := set.Clone()
	next[name] = text
	if err := s.writeLocked(next); err != nil {
		return nil, err
	}
	return next.Clone(), nil
}

// Remove deletes name and rewrites the manifest. Removing an absent name is
// not an error; the manifest is still rewritten so it converges with the set.
func (s *Store) Remove(name string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.loadLocked()
	if err != nil {
		return false, err
	}
	_, existed := set[name]
	next := set.Clone()
	delete(next, name)
	if err := s.writeLocked(next); err != nil {
		return false, err
	}
	return existed, nil
}

// Merge adds every entry of add that is not already present and rewrites the
// manifest when anything was added. It returns the names that were added.
func (s *Store) Merge(add Set) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	set, err := s.loadLocked()
	if err != nil {
		return nil, err
	}
	next := set.Clone()
	var added []string
	for _, name := range add.Names() {
		if _, ok := next[name]; ok {
			continue
		}
		next[name] = add[name]
		added = append(added, name)
	}
	if len(added) == 0 {
		return nil, nil
	}
	if err := s.writeLocked(next); err != nil {
		return nil, err
	}
	return added, nil
}

// Invalidate drops the cached set.
func (s *Store) Invalidate() {
	s.mu.Lock()
	s.cached = false
	s.mu.Unlock()
}

// Readable reports whether the manifest can be read and parsed.
func (s *Store) Readable() bool {
	_, err := s.Load()
	return err == nil
}

func (s *Store) loadLocked() (Set, error) {
	if s.cached && s.watching {
		return s.cache, nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.header = DocumentMetadata{}
			s.setCacheLocked(Set{})
			return s.cache, nil
		}
		return nil, fmt.Errorf("read manifest %s: %w", s.path, err)
	}
	set, doc, err := Decode(b, s.meta.Ext)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	s.header = doc.Metadata
	s.setCacheLocked(set)
	return s.cache, nil
}

func (s *Store) writeLocked(set Set) error {
	doc := NewDocument(set, s.meta)
	doc.carry(s.header)
	b, err := EncodeDocument(doc)
	if err != nil {
		return err
	}
	if err := fsutil.WriteFileAtomic(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write manifest %s: %w", s.path, err)
	}
	s.header = doc.Metadata
	s.setCacheLocked(set)
	s.log.Debug().Str("path", s.path).Int("models", len(set)).Msg("manifest written")
	return nil
}

func (s *Store) setCacheLocked(set Set) {
	s.cache = set
	s.cached = true
}
