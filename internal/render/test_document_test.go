package render

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCompose(t *testing.T) {
	doc, err := Compose("<body>"+Placeholder+"</body>", "<ul></ul>")
	require.NoError(t, err)
	require.Equal(t, "<body><ul></ul></body>", doc)

	_, err = Compose("<body></body>", "<ul></ul>")
	require.ErrorIs(t, err, ErrPlaceholderMissing)
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	_, err := LoadTemplate(filepath.Join(dir, "missing.html"))
	require.ErrorIs(t, err, ErrTemplateMissing)

	p := filepath.Join(dir, "template.html")
	require.NoError(t, os.WriteFile(p, []byte("<html>"+Placeholder+"</html>"), 0o644))
	got, err := LoadTemplate(p)
	require.NoError(t, err)
	require.Equal(t, "<html>"+Placeholder+"</html>", got)
}

func TestWriteDocument_OverwritesAndCreatesDirs(t *testing.T) {
	p := filepath.Join(t.TempDir(), "output", "manual.html")
	require.NoError(t, WriteDocument(p, "first"))
	require.NoError(t, WriteDocument(p, "second"))
	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	require.Equal(t, "second", string(raw))
}
