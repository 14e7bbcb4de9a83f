package model

import "testing"

func TestSubmoduleReferenceKeyExcludesCommitHash(t *testing.T) {
	a := SubmoduleReference{Path: "libs/foo", URL: "https://example.com/foo.git", CommitHash: "aaa"}
	b := SubmoduleReference{Path: "libs/foo", URL: "https://example.com/foo.git", CommitHash: "bbb"}

	if a.Key() != b.Key() {
		t.Fatalf("expected identical keys for differing commit hashes, got %+v and %+v", a.Key(), b.Key())
	}

	c := SubmoduleReference{Path: "libs/foo", URL: "https://example.com/other.git", CommitHash: "aaa"}
	if a.Key() == c.Key() {
		t.Fatalf("expected different keys for differing URLs")
	}
}

func TestSubmoduleReferenceJoinPath(t *testing.T) {
	n := SubmoduleReference{Path: "vendor/bar"}
	got := n.JoinPath("libs/foo")
	want := "libs/foo/vendor/bar"
	if got != want {
		t.Fatalf("JoinPath = %q, want %q", got, want)
	}
}

func TestMigrationImportInfoSubmoduleInfoIsMemoized(t *testing.T) {
	info := NewMigrationImportInfo("main", "meta", "mono")

	first := info.SubmoduleInfo("libs/foo", "develop")
	second := info.SubmoduleInfo("libs/foo", "ignored-on-second-call")

	if first != second {
		t.Fatalf("expected the same *SubmoduleImportInfo instance on repeated calls")
	}
	if first.DefaultBranch != "develop" {
		t.Fatalf("DefaultBranch = %q, want %q (should only be set on first creation)", first.DefaultBranch, "develop")
	}
}

func TestSubmoduleImportInfoAddEntry(t *testing.T) {
	info := &SubmoduleImportInfo{RelativePath: "libs/foo"}
	info.AddEntry(SubmoduleImportEntry{MonoBranch: "main", SubBranch: "main"})
	info.AddEntry(SubmoduleImportEntry{MonoBranch: "release", SubBranch: "release"})

	if len(info.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(info.Entries))
	}
}
