package refs

import (
	"bytes"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"codemanual/internal/safeio"
	"codemanual/internal/scan"
)

const defaultCacheEntries = 256

// Options tunes how references are detected.
type Options struct {
	// MatchStem also searches for the bare name without its final extension,
	// so "util.go" is considered referenced by text mentioning "util".
	// Off by default: a reference is a mention of the full bare name.
	MatchStem bool
	// CacheEntries bounds how many file bodies are kept in memory between
	// lookups. Zero selects a default.
	CacheEntries int
}

type content struct {
	data []byte
	err  error
}

// Scanner finds, for a target file, the other eligible files whose raw text
// mentions the target's name. Results are recomputed on every call; only file
// bodies are cached.
type Scanner struct {
	fs      *safeio.SafeFS
	entries []scan.FileEntry
	opts    Options
	bodies  *lru.Cache[string, content]
	log     *zap.Logger
}

// NewScanner binds a scanner to the project filesystem and its eligible files.
func NewScanner(fs *safeio.SafeFS, entries []scan.FileEntry, opts Options, logger *zap.Logger) (*Scanner, error) {
	if fs == nil {
		return nil, fmt.Errorf("refs: filesystem is required")
	}
	size := opts.CacheEntries
	if size <= 0 {
		size = defaultCacheEntries
	}
	cache, err := lru.New[string, content](size)
	if err != nil {
		return nil, fmt.Errorf("refs: init content cache: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scanner{
		fs:      fs,
		entries: entries,
		opts:    opts,
		bodies:  cache,
		log:     logger,
	}, nil
}

// Needles returns the literal strings searched for when looking up name.
func Needles(name string, matchStem bool) []string {
	out := []string{name}
	if !matchStem {
		return out
	}
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	if stem != "" && stem != name {
		out = append(out, stem)
	}
	return out
}

// References returns the sorted, de-duplicated relative paths of every other
// eligible file containing target's name. Unreadable files never contribute.
func (s *Scanner) References(target scan.FileEntry) []string {
	needles := Needles(target.Name(), s.opts.MatchStem)
	raw := make([][]byte, len(needles))
	for i, n := range needles {
		raw[i] = []byte(n)
	}

	seen := make(map[string]struct{})
	var out []string
	for _, e := range s.entries {
		if e.RelPath == target.RelPath {
			continue
		}
		if _, dup := seen[e.RelPath]; dup {
			continue
		}
		body, ok := s.read(e)
		if !ok {
			continue
		}
		for _, n := range raw {
			if bytes.Contains(body, n) {
				seen[e.RelPath] = struct{}{}
				out = append(out, e.RelPath)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

func (s *Scanner) read(e scan.FileEntry) ([]byte, bool) {
	if c, ok := s.bodies.Get(e.RelPath); ok {
		return c.data, c.err == nil
	}
	data, err := s.fs.ReadFile(e.RelPath)
	if err != nil {
		s.log.Debug("skipping unreadable reference source", zap.String("path", e.RelPath), zap.Error(err))
	}
	s.bodies.Add(e.RelPath, content{data: data, err: err})
	return data, err == nil
}
