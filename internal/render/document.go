package render

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Placeholder is replaced verbatim with the rendered fragment.
const Placeholder = "{{CONTENT}}"

var (
	ErrTemplateMissing    = errors.New("render: template document not found")
	ErrPlaceholderMissing = errors.New("render: template has no " + Placeholder + " placeholder")
)

// LoadTemplate reads the static template document.
func LoadTemplate(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrTemplateMissing, path)
		}
		return "", fmt.Errorf("render: read template %s: %w", path, err)
	}
	return string(raw), nil
}

// Compose substitutes fragment into every placeholder of tmpl.
func Compose(tmpl, fragment string) (string, error) {
	if !strings.Contains(tmpl, Placeholder) {
		return "", ErrPlaceholderMissing
	}
	return strings.ReplaceAll(tmpl, Placeholder, fragment), nil
}

// WriteDocument writes doc to path, creating parent directories and
// replacing any previous output.
func WriteDocument(path, doc string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("render: create output dir: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return fmt.Errorf("render: write %s: %w", path, err)
	}
	return nil
}
