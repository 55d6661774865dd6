// File: internal/bundle/builder.go
// Brief: Builds function-code bundles from local source trees.

package bundle

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Source is one local tree to include. Files land in the archive under
// Prefix joined with their path relative to Root.
type Source struct {
	Root   string
	Prefix string
}

// Builder assembles a function's code and shared source trees into a Bundle.
// EntryPoint, when set, is relocated to HandlerPath so the runtime finds the
// handler at its fixed expected location.
type Builder struct {
	Sources     []Source
	EntryPoint  string // archive path of the file to relocate, after prefixing
	HandlerPath string // fixed archive path the runtime expects
}

// Build walks every source root and produces the bundle. A missing root is
// an IOError; an empty result is a PackagingError.
func (bb *Builder) Build(name string) (*Bundle, error) {
	b := New(name)
	for _, src := range bb.Sources {
		info, err := os.Stat(src.Root)
		if err != nil {
			return nil, &IOError{Path: src.Root, Err: err}
		}
		if !info.IsDir() {
			if err := addFile(b, src.Root, filepath.Join(src.Prefix, filepath.Base(src.Root)), info); err != nil {
				return nil, err
			}
			continue
		}
		walkErr := filepath.WalkDir(src.Root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return &IOError{Path: path, Err: err}
			}
			if d.IsDir() {
				if skipDir(d.Name()) && path != src.Root {
					return filepath.SkipDir
				}
				return nil
			}
			rel, err := filepath.Rel(src.Root, path)
			if err != nil {
				return &IOError{Path: path, Err: err}
			}
			fi, err := d.Info()
			if err != nil {
				return &IOError{Path: path, Err: err}
			}
			return addFile(b, path, filepath.Join(src.Prefix, rel), fi)
		})
		if walkErr != nil {
			return nil, walkErr
		}
	}
	if bb.EntryPoint != "" {
		if err := relocate(b, bb.EntryPoint, bb.HandlerPath); err != nil {
			return nil, err
		}
	}
	if b.Len() == 0 {
		return nil, &PackagingError{Reason: fmt.Sprintf("bundle %s is empty", name)}
	}
	return b, nil
}

func addFile(b *Bundle, path, arcPath string, info fs.FileInfo) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &IOError{Path: path, Err: err}
	}
	return b.Add(filepath.ToSlash(arcPath), int64(info.Mode().Perm()), data)
}

func relocate(b *Bundle, from, to string) error {
	from = filepath.ToSlash(from)
	to = filepath.ToSlash(to)
	entry, ok := b.Lookup(from)
	if !ok {
		return &IOError{Path: from, Err: fmt.Errorf("entry point not found in bundle")}
	}
	if from == to {
		return nil
	}
	delete(b.byPath, from)
	for i := range b.entries {
		if b.entries[i].Path == from {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			break
		}
	}
	rebuildIndex(b)
	return b.Add(to, entry.Mode, entry.Data)
}

func rebuildIndex(b *Bundle) {
	b.byPath = make(map[string]int, len(b.entries))
	for i, e := range b.entries {
		b.byPath[e.Path] = i
	}
}

// skipDir filters tree noise that must never ship in a deployable.
func skipDir(name string) bool {
	switch name {
	case ".git", "__pycache__", ".pytest_cache", "node_modules":
		return true
	}
	return strings.HasSuffix(name, ".egg-info")
}

func fileMode(mode int64) fs.FileMode {
	if mode == 0 {
		return 0o644
	}
	return fs.FileMode(mode)
}
