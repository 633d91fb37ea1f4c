package scan

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// FileEntry is a single eligible file found under the project root.
// Entries are immutable once enumerated.
type FileEntry struct {
	// Absolute filesystem path.
	AbsPath string
	// Root-relative path using forward slashes (e.g., "src/app.go").
	RelPath string
	// Lowercased extension (e.g., ".go"); empty for no-ext files.
	Ext string
}

// Name returns the bare file name (last path segment, extension included).
func (e FileEntry) Name() string { return path.Base(e.RelPath) }

// Segments splits the relative path into its ordered components.
func (e FileEntry) Segments() []string { return strings.Split(e.RelPath, "/") }

// Options controls which files are eligible.
type Options struct {
	// Extensions to drop, compared case-insensitively. A leading dot is optional.
	ExcludeExts []string
	// Path components to drop; a file is excluded if any component of its
	// relative path matches one of these exactly.
	ExcludeDirs []string
}

// DefaultExcludeExts is the image denylist applied when no override is configured.
func DefaultExcludeExts() []string {
	return []string{".png", ".jpg", ".jpeg", ".gif", ".ico"}
}

// DefaultExcludeDirs keeps VCS metadata out of the manual.
func DefaultExcludeDirs() []string {
	return []string{".git"}
}

// PathNotFoundError reports a project root that does not exist.
type PathNotFoundError struct {
	Path string
}

func (e *PathNotFoundError) Error() string {
	return fmt.Sprintf("scan: path %q not found", e.Path)
}

// NotADirectoryError reports a project root that is not a directory.
type NotADirectoryError struct {
	Path string
}

func (e *NotADirectoryError) Error() string {
	return fmt.Sprintf("scan: path %q is not a directory", e.Path)
}

// CheckRoot validates the project root and returns its absolute form.
func CheckRoot(root string) (string, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", &PathNotFoundError{Path: root}
		}
		return "", fmt.Errorf("scan: stat %s: %w", root, err)
	}
	if !fi.IsDir() {
		return "", &NotADirectoryError{Path: root}
	}
	return abs, nil
}

// Enumerate walks root recursively and returns every eligible file, sorted by
// relative path. Unreadable subdirectories are skipped.
func Enumerate(root string, opts Options) ([]FileEntry, error) {
	absRoot, err := CheckRoot(root)
	if err != nil {
		return nil, err
	}
	exts := normalizeExts(opts.ExcludeExts)
	dirs := make(map[string]struct{}, len(opts.ExcludeDirs))
	for _, d := range opts.ExcludeDirs {
		d = strings.TrimSpace(d)
		if d != "" {
			dirs[d] = struct{}{}
		}
	}

	var out []FileEntry
	err = filepath.WalkDir(absRoot, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == absRoot {
				return err
			}
			return nil
		}
		if p == absRoot {
			return nil
		}
		if d.IsDir() {
			if _, skip := dirs[d.Name()]; skip {
				return filepath.SkipDir
			}
			return nil
		}
		if !isRegular(p, d) {
			return nil
		}

		rel, err := filepath.Rel(absRoot, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		ext := strings.ToLower(filepath.Ext(rel))
		if _, skip := exts[ext]; skip {
			return nil
		}
		for _, seg := range strings.Split(rel, "/") {
			if _, skip := dirs[seg]; skip {
				return nil
			}
		}
		out = append(out, FileEntry{AbsPath: p, RelPath: rel, Ext: ext})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan: walk %s: %w", root, err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RelPath < out[j].RelPath })
	return out, nil
}

// isRegular follows a symlink one hop so that linked files are listed while
// linked directories are never descended.
func isRegular(p string, d fs.DirEntry) bool {
	if d.Type().IsRegular() {
		return true
	}
	if d.Type()&fs.ModeSymlink == 0 {
		return false
	}
	fi, err := os.Stat(p)
	return err == nil && fi.Mode().IsRegular()
}

func normalizeExts(exts []string) map[string]struct{} {
	out := make(map[string]struct{}, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out[ext] = struct{}{}
	}
	return out
}
