package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

func TestListDirSkipsGitAndSortsEntries(t *testing.T) {
	dir := t.TempDir()
	for _, p := range []string{"b.txt", "a.txt", "libs/foo.go"} {
		full := filepath.Join(dir, p)
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			t.Fatalf("MkdirAll: %v", err)
		}
		if err := os.WriteFile(full, []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile: %v", err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, ".git"), 0o755); err != nil {
		t.Fatalf("MkdirAll(.git): %v", err)
	}

	tree, err := ListDir(dir)
	if err != nil {
		t.Fatalf("ListDir: %v", err)
	}
	if len(tree) != 3 {
		t.Fatalf("expected 3 top-level entries (a.txt, b.txt, libs), got %v", tree)
	}
	if tree[0].Name != "a.txt" || tree[1].Name != "b.txt" || tree[2].Name != "libs" {
		t.Fatalf("expected alphabetical order, got %v", tree)
	}
	if tree[2].Children == nil || tree[2].Children[0].Name != "foo.go" {
		t.Fatalf("expected libs/foo.go nested under libs, got %v", tree[2].Children)
	}
}

func TestTreeHasPath(t *testing.T) {
	tree := Tree{
		{Name: "README.md"},
		{Name: "libs", Children: Tree{{Name: "foo", Children: Tree{{Name: "lib.go"}}}}},
	}
	if !tree.HasPath("README.md") {
		t.Fatalf("expected HasPath to find a top-level file")
	}
	if !tree.HasPath("libs/foo/lib.go") {
		t.Fatalf("expected HasPath to find a nested file")
	}
	if tree.HasPath("libs/bar") {
		t.Fatalf("expected HasPath to report false for an absent path")
	}
}
