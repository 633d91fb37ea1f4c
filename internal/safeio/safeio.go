package safeio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrOutsideRoot = errors.New("safeio: path escapes root")
	ErrIsDirectory = errors.New("safeio: path is a directory")
)

// SafeFS reads files below a fixed root. Relative paths, absolute paths and
// symlinks are all resolved first and rejected if they land outside the root.
type SafeFS struct {
	root string // absolute, symlinks resolved
}

// NewSafeFS binds reads to root, which must be an existing directory.
func NewSafeFS(root string) (*SafeFS, error) {
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("safeio: empty root")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if abs, err = filepath.EvalSymlinks(abs); err != nil {
		return nil, err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return nil, err
	}
	if !fi.IsDir() {
		return nil, fmt.Errorf("safeio: root %s is not a directory", root)
	}
	return &SafeFS{root: abs}, nil
}

func (s *SafeFS) Root() string {
	if s == nil {
		return ""
	}
	return s.root
}

// ReadFile returns the whole content of a file under the root.
func (s *SafeFS) ReadFile(name string) ([]byte, error) {
	p, err := s.resolve(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrIsDirectory, name)
	}
	return io.ReadAll(f)
}

// ReadPrefix returns at most limit runes from the start of a file, with
// invalid UTF-8 replaced by U+FFFD. limit <= 0 returns everything.
func (s *SafeFS) ReadPrefix(name string, limit int) (string, error) {
	raw, err := s.ReadFile(name)
	if err != nil {
		return "", err
	}
	txt := strings.ToValidUTF8(string(raw), "�")
	if limit <= 0 {
		return txt, nil
	}
	n := 0
	for i := range txt {
		if n == limit {
			return txt[:i], nil
		}
		n++
	}
	return txt, nil
}

func (s *SafeFS) resolve(name string) (string, error) {
	if s == nil {
		return "", errors.New("safeio: filesystem not configured")
	}
	if name == "" {
		return "", errors.New("safeio: empty path")
	}
	p := filepath.FromSlash(name)
	if !filepath.IsAbs(p) {
		p = filepath.Join(s.root, p)
		// Reject lexical escapes before touching the filesystem.
		if !within(s.root, p) {
			return "", fmt.Errorf("%w: %s", ErrOutsideRoot, name)
		}
	}
	resolved, err := filepath.EvalSymlinks(p)
	if err != nil {
		return "", err
	}
	if !within(s.root, resolved) {
		return "", fmt.Errorf("%w: %s -> %s", ErrOutsideRoot, name, resolved)
	}
	return resolved, nil
}

func within(root, p string) bool {
	rel, err := filepath.Rel(root, p)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
