// Package testutil provides small helpers shared by the engine's
// integration tests; it is test-only support, never imported by
// production code.
package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Tree is the recursive listing of a directory's tracked contents: a
// file name, or a directory name paired with its own Tree. Entries
// starting with ".git" are skipped.
type Tree []Entry

// Entry is one file or directory within a Tree.
type Entry struct {
	Name     string
	Children Tree // nil for a file, non-nil (possibly empty) for a directory
}

// ListDir recursively describes dir's contents as a Tree, in
// alphabetical order at each level so two trees can be compared with
// reflect.DeepEqual regardless of directory-iteration order.
func ListDir(dir string) (Tree, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var tree Tree
	for _, e := range entries {
		name := e.Name()
		if len(name) >= 4 && name[:4] == ".git" {
			continue
		}
		if e.IsDir() {
			children, err := ListDir(filepath.Join(dir, name))
			if err != nil {
				return nil, err
			}
			tree = append(tree, Entry{Name: name, Children: children})
		} else {
			tree = append(tree, Entry{Name: name})
		}
	}
	return tree, nil
}

// HasPath reports whether tree contains a file or directory at the
// given slash-separated relative path.
func (t Tree) HasPath(path string) bool {
	return t.find(strings.Split(filepath.ToSlash(path), "/")) != nil
}

func (t Tree) find(segments []string) *Entry {
	if len(segments) == 0 {
		return nil
	}
	for i := range t {
		if t[i].Name != segments[0] {
			continue
		}
		if len(segments) == 1 {
			return &t[i]
		}
		return t[i].Children.find(segments[1:])
	}
	return nil
}
