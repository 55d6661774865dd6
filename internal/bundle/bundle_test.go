package bundle

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("mkdir %s: %v", path, err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
}

func TestBuildPreservesRelativeStructure(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"scraper/spider.py":      "spider",
		"scraper/utils.py":       "utils",
		"models/match_data.py":   "model",
		"storage/dynamodb.py":    "dynamo",
		"lambda_functions/up.py": "handler",
	})
	bb := &Builder{
		Sources: []Source{
			{Root: filepath.Join(root, "scraper"), Prefix: "scraper"},
			{Root: filepath.Join(root, "models"), Prefix: "models"},
			{Root: filepath.Join(root, "storage"), Prefix: "storage"},
			{Root: filepath.Join(root, "lambda_functions"), Prefix: ""},
		},
		EntryPoint:  "up.py",
		HandlerPath: "lambda_function.py",
	}
	b, err := bb.Build("schedule-updater")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	for _, want := range []string{"scraper/spider.py", "scraper/utils.py", "models/match_data.py", "storage/dynamodb.py", "lambda_function.py"} {
		if _, ok := b.Lookup(want); !ok {
			t.Fatalf("missing entry %s; have %v", want, paths(b))
		}
	}
	if _, ok := b.Lookup("up.py"); ok {
		t.Fatalf("entry point should have been relocated, still present as up.py")
	}
}

func TestBuildMissingRootIsIOError(t *testing.T) {
	bb := &Builder{Sources: []Source{{Root: filepath.Join(t.TempDir(), "nope")}}}
	_, err := bb.Build("x")
	var ioErr *IOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("want IOError, got %v", err)
	}
}

func TestBuildEmptyIsPackagingError(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "empty"), 0o755); err != nil {
		t.Fatal(err)
	}
	bb := &Builder{Sources: []Source{{Root: filepath.Join(root, "empty")}}}
	_, err := bb.Build("x")
	var pkgErr *PackagingError
	if !errors.As(err, &pkgErr) {
		t.Fatalf("want PackagingError, got %v", err)
	}
}

func TestBuildSkipsCacheDirs(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"pkg/mod.py":                  "ok",
		"pkg/__pycache__/mod.pyc":     "junk",
		"pkg/thing.egg-info/PKG-INFO": "junk",
	})
	bb := &Builder{Sources: []Source{{Root: root}}}
	b, err := bb.Build("x")
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if b.Len() != 1 {
		t.Fatalf("want 1 entry, got %d: %v", b.Len(), paths(b))
	}
}

func TestZipIsDeterministicAndReadable(t *testing.T) {
	b := New("layer")
	if err := b.Add("python/lib/a.py", 0, []byte("aaa")); err != nil {
		t.Fatal(err)
	}
	if err := b.Add("python/lib/b.py", 0, []byte("bbbb")); err != nil {
		t.Fatal(err)
	}
	first, err := b.Zip()
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	second, err := b.Zip()
	if err != nil {
		t.Fatalf("zip: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Fatalf("zip output is not deterministic")
	}
	zr, err := zip.NewReader(bytes.NewReader(first), int64(len(first)))
	if err != nil {
		t.Fatalf("read zip: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("want 2 zip entries, got %d", len(zr.File))
	}
	if b.UncompressedSize() != 7 {
		t.Fatalf("uncompressed size = %d, want 7", b.UncompressedSize())
	}
}

func TestZipEmptyBundle(t *testing.T) {
	_, err := New("empty").Zip()
	var pkgErr *PackagingError
	if !errors.As(err, &pkgErr) {
		t.Fatalf("want PackagingError, got %v", err)
	}
}

func TestAddRejectsTraversal(t *testing.T) {
	b := New("x")
	if err := b.Add("../../etc/passwd", 0, nil); err == nil {
		t.Fatalf("expected traversal rejection")
	}
}

func paths(b *Bundle) []string {
	var out []string
	for _, e := range b.Entries() {
		out = append(out, e.Path)
	}
	return out
}
