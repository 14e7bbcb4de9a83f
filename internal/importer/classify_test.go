package importer

import "testing"

func TestClassify(t *testing.T) {
	cases := []struct {
		name                                              string
		inMono, inTrackedBy, inSubBranches, defaultTracks bool
		want                                              BranchOutcome
	}{
		{"mono branch meta no longer tracks", true, false, true, true, OutcomeSkip},
		{"new branch, default doesn't track", false, false, false, false, OutcomeSkip},
		{"same name on both sides", true, true, true, true, OutcomeSameName},
		{"tracked but submodule lacks the branch", true, true, false, true, OutcomeSubstituteDefault},
		{"new mono branch, default tracks, sub has branch", false, false, true, true, OutcomeCreateMono},
		{"default tracks but sub lacks branch, not yet in mono", false, false, false, true, OutcomeSkip},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := Classify(c.name, c.inMono, c.inTrackedBy, c.inSubBranches, c.defaultTracks)
			if got != c.want {
				t.Fatalf("Classify(%v,%v,%v,%v) = %v, want %v", c.inMono, c.inTrackedBy, c.inSubBranches, c.defaultTracks, got, c.want)
			}
		})
	}
}

func TestBranchClosureDedupesAndOrdersMonoFirst(t *testing.T) {
	mono := []string{"main", "release"}
	sub := []string{"release", "feature-x", "main"}

	got := BranchClosure(mono, sub)
	want := []string{"main", "release", "feature-x"}

	if len(got) != len(want) {
		t.Fatalf("BranchClosure = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("BranchClosure = %v, want %v", got, want)
		}
	}
}

func TestBranchOutcomeString(t *testing.T) {
	if OutcomeSameName.String() != "same-name" {
		t.Fatalf("unexpected String() for OutcomeSameName: %q", OutcomeSameName.String())
	}
	if BranchOutcome(99).String() != "unknown" {
		t.Fatalf("expected unknown outcome to stringify as %q", "unknown")
	}
}
