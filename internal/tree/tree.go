package tree

import (
	"path/filepath"
	"sort"

	"codemanual/internal/scan"
)

// Kind tags which variant a Node holds.
type Kind int

const (
	KindFolder Kind = iota
	KindFile
)

func (k Kind) String() string {
	switch k {
	case KindFolder:
		return "folder"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Node is either a folder (Children set) or a file (File set), selected by Kind.
// Trees are built once per run and must not be mutated afterwards.
type Node struct {
	Kind     Kind
	Name     string
	Children map[string]*Node
	File     scan.FileEntry
}

// NewFolder returns an empty folder node.
func NewFolder(name string) *Node {
	return &Node{Kind: KindFolder, Name: name, Children: make(map[string]*Node)}
}

// NewFile returns a leaf wrapping entry.
func NewFile(entry scan.FileEntry) *Node {
	return &Node{Kind: KindFile, Name: entry.Name(), File: entry}
}

// SortedChildren returns folder children ordered lexicographically by name.
// Files have no children.
func (n *Node) SortedChildren() []*Node {
	if n == nil || n.Kind != KindFolder || len(n.Children) == 0 {
		return nil
	}
	keys := make([]string, 0, len(n.Children))
	for k := range n.Children {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*Node, 0, len(keys))
	for _, k := range keys {
		out = append(out, n.Children[k])
	}
	return out
}

// Leaves returns every file entry below n in render order.
func (n *Node) Leaves() []scan.FileEntry {
	var out []scan.FileEntry
	var walk func(*Node)
	walk = func(cur *Node) {
		switch cur.Kind {
		case KindFile:
			out = append(out, cur.File)
		case KindFolder:
			for _, c := range cur.SortedChildren() {
				walk(c)
			}
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// Build converts a flat entry list into a folder hierarchy rooted at root.
// When a file and a folder claim the same segment, the entry processed last
// replaces the earlier node.
func Build(root string, entries []scan.FileEntry) *Node {
	top := NewFolder(filepath.Base(filepath.Clean(root)))
	for _, e := range entries {
		parts := e.Segments()
		cur := top
		for _, part := range parts[:len(parts)-1] {
			next, ok := cur.Children[part]
			if !ok || next.Kind != KindFolder {
				next = NewFolder(part)
				cur.Children[part] = next
			}
			cur = next
		}
		cur.Children[parts[len(parts)-1]] = NewFile(e)
	}
	return top
}
