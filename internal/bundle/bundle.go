// File: internal/bundle/bundle.go
// Brief: In-memory deployable bundle with uncompressed and zipped sizes.

package bundle

import (
	"archive/zip"
	"bytes"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Entry is one file inside a bundle, addressed by its archive-relative path.
type Entry struct {
	Path string
	Mode int64
	Data []byte
}

// Bundle is one deployable code unit: an ordered set of entries plus the
// sizes that matter for publication. The platform's layer limit applies to
// the uncompressed tree, so both sizes are tracked independently.
type Bundle struct {
	Name    string
	entries []Entry
	byPath  map[string]int
}

// New returns an empty bundle with the given artifact name.
func New(name string) *Bundle {
	return &Bundle{Name: name, byPath: map[string]int{}}
}

// Add inserts or replaces an entry. Paths are normalized to forward slashes
// with no leading separator; an empty path is rejected.
func (b *Bundle) Add(path string, mode int64, data []byte) error {
	clean := strings.TrimLeft(strings.ReplaceAll(strings.TrimSpace(path), "\\", "/"), "/")
	if clean == "" {
		return fmt.Errorf("empty bundle entry path")
	}
	if strings.Contains(clean, "..") {
		return fmt.Errorf("bundle entry path %q cannot contain '..'", path)
	}
	if mode == 0 {
		mode = 0o644
	}
	if idx, ok := b.byPath[clean]; ok {
		b.entries[idx] = Entry{Path: clean, Mode: mode, Data: data}
		return nil
	}
	b.byPath[clean] = len(b.entries)
	b.entries = append(b.entries, Entry{Path: clean, Mode: mode, Data: data})
	return nil
}

// Entries returns the entries sorted by path. The slice is a copy; mutating
// it does not affect the bundle.
func (b *Bundle) Entries() []Entry {
	out := append([]Entry(nil), b.entries...)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// Len reports the number of entries.
func (b *Bundle) Len() int { return len(b.entries) }

// UncompressedSize is the total on-disk size of the extracted tree. The
// platform's layer limit is checked against this value, not the zip size.
func (b *Bundle) UncompressedSize() int64 {
	var total int64
	for _, e := range b.entries {
		total += int64(len(e.Data))
	}
	return total
}

// Lookup returns the entry at path, if present.
func (b *Bundle) Lookup(path string) (Entry, bool) {
	idx, ok := b.byPath[path]
	if !ok {
		return Entry{}, false
	}
	return b.entries[idx], true
}

// Zip renders the bundle as a deterministic zip archive: entries sorted by
// path, fixed timestamps, no uid/gid. Deterministic output keeps artifact
// checksums stable across re-runs of an unchanged deployment.
func (b *Bundle) Zip() ([]byte, error) {
	if b.Len() == 0 {
		return nil, &PackagingError{Reason: fmt.Sprintf("bundle %s is empty", b.Name)}
	}
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range b.Entries() {
		hdr := &zip.FileHeader{
			Name:     e.Path,
			Method:   zip.Deflate,
			Modified: time.Unix(0, 0).UTC(),
		}
		hdr.SetMode(fileMode(e.Mode))
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("zip entry %s: %w", e.Path, err)
		}
		if _, err := w.Write(e.Data); err != nil {
			return nil, fmt.Errorf("zip entry %s: %w", e.Path, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize zip for %s: %w", b.Name, err)
	}
	return buf.Bytes(), nil
}

// ZippedSize returns the transport size of the rendered archive.
func (b *Bundle) ZippedSize() (int64, error) {
	data, err := b.Zip()
	if err != nil {
		return 0, err
	}
	return int64(len(data)), nil
}
