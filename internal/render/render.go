package render

import (
	"context"
	"fmt"
	"html/template"
	"strings"

	"go.uber.org/zap"

	"codemanual/internal/progress"
	"codemanual/internal/scan"
	"codemanual/internal/tree"
)

// NoReferences is rendered for files nobody mentions.
const NoReferences = "No references found."

// Describer supplies the description shown for a file.
type Describer interface {
	GetOrGenerate(ctx context.Context, entry scan.FileEntry) (string, error)
}

// Referencer lists the files mentioning a file.
type Referencer interface {
	References(target scan.FileEntry) []string
}

var (
	folderTmpl = template.Must(template.New("folder").Parse(`
<li>
  <div class="toggle-text">📁 {{.Name}}</div>
  <div class="details" style="display:none;">
    <div class="nested">{{.Children}}</div>
  </div>
</li>`))

	fileTmpl = template.Must(template.New("file").Parse(`
<li>
  <div class="toggle-text">📄 {{.Name}}</div>
  <div class="details" style="display:none; margin-left: 1em;">
    <p><strong>Path:</strong> {{.Path}}</p>
    <p><strong>Description:</strong> {{.Description}}</p>
    {{- if .References}}
    <p><strong>Referenced in:</strong></p>
    <ul>{{range .References}}<li>{{.}}</li>{{end}}</ul>
    {{- else}}
    <p><em>{{.NoReferences}}</em></p>
    {{- end}}
  </div>
</li>`))
)

type folderView struct {
	Name     string
	Children template.HTML
}

type fileView struct {
	Name         string
	Path         string
	Description  string
	References   []string
	NoReferences string
}

// Renderer turns a project tree into nested collapsible markup.
type Renderer struct {
	desc Describer
	refs Referencer
	sink progress.Sink
	log  *zap.Logger
}

func New(desc Describer, refs Referencer, sink progress.Sink, logger *zap.Logger) *Renderer {
	if sink == nil {
		sink = progress.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{desc: desc, refs: refs, sink: sink, log: logger}
}

// Render returns the markup for root's children as one top-level list.
// The progress sink advances once per file, never for folders.
func (r *Renderer) Render(ctx context.Context, root *tree.Node) (string, error) {
	r.sink.Start(len(root.Leaves()))
	defer r.sink.Finish()

	var sb strings.Builder
	if err := r.list(ctx, &sb, root); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (r *Renderer) list(ctx context.Context, sb *strings.Builder, folder *tree.Node) error {
	sb.WriteString("<ul>")
	for _, child := range folder.SortedChildren() {
		if err := r.node(ctx, sb, child); err != nil {
			return err
		}
	}
	sb.WriteString("</ul>")
	return nil
}

func (r *Renderer) node(ctx context.Context, sb *strings.Builder, n *tree.Node) error {
	switch n.Kind {
	case tree.KindFolder:
		var inner strings.Builder
		if err := r.list(ctx, &inner, n); err != nil {
			return err
		}
		return folderTmpl.Execute(sb, folderView{Name: n.Name, Children: template.HTML(inner.String())})
	case tree.KindFile:
		defer r.sink.Advance()
		description, err := r.desc.GetOrGenerate(ctx, n.File)
		if err != nil {
			return fmt.Errorf("render: describe %s: %w", n.File.RelPath, err)
		}
		refs := r.refs.References(n.File)
		r.log.Debug("rendered file", zap.String("path", n.File.RelPath), zap.Int("references", len(refs)))
		return fileTmpl.Execute(sb, fileView{
			Name:         n.Name,
			Path:         n.File.RelPath,
			Description:  description,
			References:   refs,
			NoReferences: NoReferences,
		})
	default:
		return fmt.Errorf("render: unknown node kind %v for %q", n.Kind, n.Name)
	}
}
