package importer

// BranchOutcome is the tagged-variant result of classifying one branch
// of a submodule's branch closure against "exists in meta" x "exists
// in sub" x "meta tracks sub". The per-branch import loop should be an
// exhaustive match over these four outcomes, never a chain of booleans.
type BranchOutcome int

const (
	// OutcomeSkip: the meta branch never wanted this submodule at this
	// branch, or the branch doesn't exist in meta and the meta default
	// doesn't track the submodule either — importing here would
	// contaminate a branch with content it shouldn't have.
	OutcomeSkip BranchOutcome = iota
	// OutcomeSameName: import the submodule's same-named branch.
	OutcomeSameName
	// OutcomeSubstituteDefault: the mono/meta branch tracks the
	// submodule but the submodule has no same-named branch; substitute
	// the submodule's default branch.
	OutcomeSubstituteDefault
	// OutcomeCreateMono: the branch doesn't exist in the mono yet, but
	// the meta default tracks this submodule and the submodule has a
	// same-named branch; pre-create the mono branch from meta default
	// before importing.
	OutcomeCreateMono
)

func (o BranchOutcome) String() string {
	switch o {
	case OutcomeSkip:
		return "skip"
	case OutcomeSameName:
		return "same-name"
	case OutcomeSubstituteDefault:
		return "substitute-default"
	case OutcomeCreateMono:
		return "create-mono"
	default:
		return "unknown"
	}
}

// Classify implements the four-way branch classification for one
// branch b in the closure BC = monoBranches ∪ subBranches.
func Classify(b string, inMono, inTrackedBy, inSubBranches, defaultTracks bool) BranchOutcome {
	switch {
	case inMono && !inTrackedBy:
		return OutcomeSkip
	case !inMono && !defaultTracks:
		return OutcomeSkip
	case inMono && inTrackedBy && inSubBranches:
		return OutcomeSameName
	case inMono && inTrackedBy && !inSubBranches:
		return OutcomeSubstituteDefault
	case !inMono && defaultTracks && inSubBranches:
		return OutcomeCreateMono
	default:
		// !inMono && defaultTracks && !inSubBranches: the meta default
		// tracks the submodule, but b is neither a mono branch nor a
		// submodule branch, so it cannot come from the closure —
		// nothing to import under this name.
		return OutcomeSkip
	}
}

// BranchClosure returns the union of monoBranches and subBranches,
// each deduplicated, in deterministic order: mono branches first (in
// their given order), then any submodule branches not already present
// (in their given order).
func BranchClosure(monoBranches, subBranches []string) []string {
	seen := make(map[string]bool, len(monoBranches)+len(subBranches))
	var out []string
	for _, b := range monoBranches {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	for _, b := range subBranches {
		if !seen[b] {
			seen[b] = true
			out = append(out, b)
		}
	}
	return out
}

func contains(list []string, target string) bool {
	for _, v := range list {
		if v == target {
			return true
		}
	}
	return false
}

func toSet(list []string) map[string]bool {
	s := make(map[string]bool, len(list))
	for _, v := range list {
		s[v] = true
	}
	return s
}
