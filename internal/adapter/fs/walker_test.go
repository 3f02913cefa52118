package fs

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}
}

func relPaths(files []FileInfo) []string {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.RelPath
	}
	return paths
}

func TestWalkIncludesAndExcludes(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "readme.md")
	writeFile(t, root, "notes.txt")
	writeFile(t, root, "image.png")
	writeFile(t, root, "docs/guide.md")
	writeFile(t, root, "node_modules/dep/readme.md")

	w := NewWalker(
		[]string{"**/*.md", "**/*.txt"},
		[]string{"**/node_modules/**"},
	)

	files, err := w.Walk(root)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}

	got := relPaths(files)
	want := map[string]bool{
		"readme.md":     true,
		"notes.txt":     true,
		"docs/guide.md": true,
	}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v files", got, len(want))
	}
	for _, p := range got {
		if !want[p] {
			t.Errorf("unexpected file %q", p)
		}
	}
}

func TestWalkSkipsExcludedDirectories(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "keep.md")
	writeFile(t, root, ".git/objects/ab/cdef.md")

	w := NewWalker([]string{"**/*.md"}, []string{".git/**"})

	files, err := w.Walk(root)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(files) != 1 || files[0].RelPath != "keep.md" {
		t.Errorf("got %v, want only keep.md", relPaths(files))
	}
}

func TestWalkDefaultsToEverything(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.bin")
	writeFile(t, root, "sub/b.dat")

	w := NewWalker(nil, nil)

	files, err := w.Walk(root)
	if err != nil {
		t.Fatalf("Walk failed: %v", err)
	}
	if len(files) != 2 {
		t.Errorf("got %v, want both files", relPaths(files))
	}
}
