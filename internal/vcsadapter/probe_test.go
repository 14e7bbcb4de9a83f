package vcsadapter

import "testing"

func TestProbeHeadBranchAndCommit(t *testing.T) {
	dir := t.TempDir()
	a := initRepo(t, dir, map[string]string{"README.md": "hello\n"})
	p := NewProbe(a, testLogger())

	branch, ok, err := p.HeadBranch(dir)
	if err != nil {
		t.Fatalf("HeadBranch: %v", err)
	}
	if !ok || branch != "main" {
		t.Fatalf("HeadBranch = (%q, %v), want (main, true)", branch, ok)
	}

	commit, err := p.HeadCommit(dir)
	if err != nil {
		t.Fatalf("HeadCommit: %v", err)
	}
	if len(commit) != 40 {
		t.Fatalf("expected a 40-character commit hash, got %q", commit)
	}
}

func TestProbeListBranches(t *testing.T) {
	dir := t.TempDir()
	a := initRepo(t, dir, map[string]string{"README.md": "hello\n"})
	mustRun(t, a, dir, "branch", "develop")
	mustRun(t, a, dir, "branch", "release")

	p := NewProbe(a, testLogger())
	branches, err := p.ListBranches(dir)
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}

	want := map[string]bool{"main": true, "develop": true, "release": true}
	if len(branches) != len(want) {
		t.Fatalf("ListBranches = %v, want 3 entries matching %v", branches, want)
	}
	for _, b := range branches {
		if !want[b] {
			t.Fatalf("unexpected branch %q in %v", b, branches)
		}
	}
}

func TestProbeListSubmodulesNoGitmodules(t *testing.T) {
	dir := t.TempDir()
	a := initRepo(t, dir, map[string]string{"README.md": "hello\n"})
	p := NewProbe(a, testLogger())

	subs, err := p.ListSubmodules(dir)
	if err != nil {
		t.Fatalf("ListSubmodules: %v", err)
	}
	if len(subs) != 0 {
		t.Fatalf("expected no submodules, got %v", subs)
	}
}

func TestProbeListSubmodulesParsesGitmodulesAndHashes(t *testing.T) {
	// subDir is the "submodule" repository the .gitmodules entry points
	// at; it only needs to exist on disk for `git submodule status` to
	// report a hash against the gitlink recorded in the index.
	subDir := t.TempDir()
	subAdapter := initRepo(t, subDir, map[string]string{"lib.go": "package lib\n"})
	subProbe := NewProbe(subAdapter, testLogger())
	subCommit, err := subProbe.HeadCommit(subDir)
	if err != nil {
		t.Fatalf("HeadCommit(sub): %v", err)
	}

	dir := t.TempDir()
	a := initRepo(t, dir, map[string]string{"README.md": "hello\n"})
	mustRun(t, a, dir, "-c", "protocol.file.allow=always", "submodule", "add", subDir, "libs/foo")
	mustRun(t, a, dir, "commit", "-m", "add submodule")

	p := NewProbe(a, testLogger())
	subs, err := p.ListSubmodules(dir)
	if err != nil {
		t.Fatalf("ListSubmodules: %v", err)
	}
	if len(subs) != 1 {
		t.Fatalf("expected exactly 1 submodule, got %v", subs)
	}
	got := subs[0]
	if got.Path != "libs/foo" {
		t.Fatalf("Path = %q, want %q", got.Path, "libs/foo")
	}
	if got.URL != subDir {
		t.Fatalf("URL = %q, want %q", got.URL, subDir)
	}
	if got.CommitHash != subCommit {
		t.Fatalf("CommitHash = %q, want %q", got.CommitHash, subCommit)
	}
}
