package desc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FileStore keeps every record in memory and rewrites the whole JSON document
// on Flush. The document is a single object mapping name -> Record, indented
// and with non-ASCII text left unescaped so diffs stay readable.
type FileStore struct {
	mu      sync.Mutex
	path    string
	entries map[string]Record
	dirty   bool
}

// OpenFileStore loads path if it exists, otherwise starts empty. An existing
// file that is not a JSON object (empty, blank, null, malformed) is reported
// as ErrCorruptCache.
func OpenFileStore(path string) (*FileStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("desc: cache path is required")
	}
	s := &FileStore{path: path, entries: map[string]Record{}}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Path returns the backing file location.
func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Get(_ context.Context, name string) (Record, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.entries[name]
	return rec, ok, nil
}

func (s *FileStore) Put(_ context.Context, name string, rec Record) error {
	if name == "" {
		return fmt.Errorf("desc: name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[name] = rec
	s.dirty = true
	return nil
}

func (s *FileStore) Len(context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries), nil
}

// Flush persists the full mapping when it changed since the last flush.
func (s *FileStore) Flush(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}
	if err := s.persistLocked(); err != nil {
		return err
	}
	s.dirty = false
	return nil
}

func (s *FileStore) Close() error { return s.Flush(context.Background()) }

func (s *FileStore) load() error {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("desc: read %s: %w", s.path, err)
	}
	var entries map[string]Record
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptCache, s.path, err)
	}
	// The document must be an object; a bare null decodes to a nil map.
	if entries == nil {
		return fmt.Errorf("%w: %s: top-level value is not an object", ErrCorruptCache, s.path)
	}
	s.entries = entries
	return nil
}

func (s *FileStore) persistLocked() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s.entries); err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
