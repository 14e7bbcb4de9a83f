package filterrepo

import "testing"

func TestCheckAvailableMissingBinary(t *testing.T) {
	tool := New("monomerge-definitely-not-a-real-binary", nil)
	if err := tool.CheckAvailable(); err == nil {
		t.Fatalf("expected an error for a binary that does not exist on PATH")
	}
}

func TestCheckAvailableFoundBinary(t *testing.T) {
	// "git" is always on PATH in this test environment; CheckAvailable
	// only does a PATH lookup, so it's a fine stand-in for a resolvable
	// history-rewriting tool without depending on git-filter-repo being
	// installed.
	tool := New("git", nil)
	if err := tool.CheckAvailable(); err != nil {
		t.Fatalf("CheckAvailable: %v", err)
	}
}

func TestNewDefaultsBin(t *testing.T) {
	tool := New("", nil)
	if tool.Bin != "git-filter-repo" {
		t.Fatalf("Bin = %q, want %q", tool.Bin, "git-filter-repo")
	}
}
