// Package report folds the per-submodule import bookkeeping collected
// during a migration run (model.MigrationImportInfo) into the
// per-mono-branch view migration_report.json/.txt are rendered from
// (model.MigrationReport).
package report

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/monomerge/monomerge/internal/model"
)

// Build runs the two-pass fold:
//
// Pass 1 registers every entry whose meta branch is the meta default
// and whose submodule branch is either the meta default or the
// submodule's own default branch — these seed one report entry per
// mono-branch.
//
// Pass 2 folds every remaining entry: an entry for a mono-branch that
// was created from the meta default (meta branch == meta default,
// substituted sub-branch) clones the already-built default-branch entry
// the first time its mono-branch is seen, then merges on top;
// everything else folds directly into its mono-branch entry, creating
// it if this is the first submodule to touch it.
func Build(info *model.MigrationImportInfo) *model.MigrationReport {
	out := &model.MigrationReport{
		MetaName:     info.MetaName,
		MonoName:     info.MonoName,
		MonoBranches: make(map[string]*model.MigrationReportEntry),
	}

	// Pass 1: seed from the meta default branch.
	for _, path := range SortedPaths(info) {
		subInfo := info.Submodules[path]
		for _, e := range subInfo.Entries {
			if !isDefaultFold(e, info, subInfo) {
				continue
			}
			entry, ok := out.MonoBranches[e.MonoBranch]
			if !ok {
				entry = newEntry(e.MetaBranch, e.MetaCommit)
				out.MonoBranches[e.MonoBranch] = entry
			}
			mergeEntry(entry, path, e)
		}
	}

	// Pass 2: everything else.
	for _, path := range SortedPaths(info) {
		subInfo := info.Submodules[path]
		for _, e := range subInfo.Entries {
			if isDefaultFold(e, info, subInfo) {
				continue // already registered in pass 1
			}
			isMetaDefault := e.MetaBranch == info.MetaDefaultBranch
			if isMetaDefault {
				// A mono-branch created from the meta default inherits
				// its submodule bindings: clone the default branch's
				// entry the first time this mono-branch appears, then
				// merge on top.
				if _, exists := out.MonoBranches[e.MonoBranch]; !exists {
					base, ok := out.MonoBranches[info.MetaDefaultBranch]
					if !ok {
						base = newEntry(info.MetaDefaultBranch, e.MetaCommit)
					}
					out.MonoBranches[e.MonoBranch] = cloneEntry(base)
				}
				mergeEntry(out.MonoBranches[e.MonoBranch], path, e)
				continue
			}
			entry, ok := out.MonoBranches[e.MonoBranch]
			if !ok {
				entry = newEntry(e.MetaBranch, e.MetaCommit)
				out.MonoBranches[e.MonoBranch] = entry
			}
			mergeEntry(entry, path, e)
		}
	}

	return out
}

func isDefaultFold(e model.SubmoduleImportEntry, info *model.MigrationImportInfo, subInfo *model.SubmoduleImportInfo) bool {
	isMetaDefault := e.MetaBranch == info.MetaDefaultBranch
	isSubDefaultOrSame := e.SubBranch == info.MetaDefaultBranch || e.SubBranch == subInfo.DefaultBranch
	return isMetaDefault && isSubDefaultOrSame
}

func newEntry(metaBranch, metaCommit string) *model.MigrationReportEntry {
	return &model.MigrationReportEntry{
		MetaBranch:              metaBranch,
		MetaCommit:              metaCommit,
		ImportedSubmodules:      make(map[string]model.ImportedSubmoduleInfo),
		TrackedNestedSubmodules: make(map[string]model.SubmoduleTrackingInfo),
	}
}

func cloneEntry(e *model.MigrationReportEntry) *model.MigrationReportEntry {
	c := newEntry(e.MetaBranch, e.MetaCommit)
	for k, v := range e.ImportedSubmodules {
		c.ImportedSubmodules[k] = v
	}
	for k, v := range e.TrackedNestedSubmodules {
		c.TrackedNestedSubmodules[k] = v
	}
	return c
}

func mergeEntry(entry *model.MigrationReportEntry, relativePath string, e model.SubmoduleImportEntry) {
	entry.ImportedSubmodules[relativePath] = model.ImportedSubmoduleInfo{
		Branch:     e.SubBranch,
		CommitHash: e.SubCommit,
	}
	for _, n := range e.Nested {
		entry.TrackedNestedSubmodules[n.JoinPath(relativePath)] = model.SubmoduleTrackingInfo{
			URL:        n.URL,
			CommitHash: n.CommitHash,
		}
	}
}

// SortedPaths returns the submodule relative paths of info in
// ascending order.
func SortedPaths(info *model.MigrationImportInfo) []string {
	paths := make([]string, 0, len(info.Submodules))
	for p := range info.Submodules {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// JSON renders the report as indented JSON, the machine-readable
// migration_report.json artifact.
func JSON(r *model.MigrationReport) ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

// Text renders the report as the human-readable migration_report.txt
// artifact.
func Text(r *model.MigrationReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Migration Report:\n")
	branches := make([]string, 0, len(r.MonoBranches))
	for name := range r.MonoBranches {
		branches = append(branches, name)
	}
	sort.Strings(branches)
	for _, name := range branches {
		entry := r.MonoBranches[name]
		fmt.Fprintf(&b, "\n%s branch: %s\n", r.MonoName, name)
		fmt.Fprintf(&b, "  Imported branches:\n")
		fmt.Fprintf(&b, "  - %s: branch=%s, commit=%s\n", r.MetaName, entry.MetaBranch, entry.MetaCommit)
		subPaths := make([]string, 0, len(entry.ImportedSubmodules))
		for p := range entry.ImportedSubmodules {
			subPaths = append(subPaths, p)
		}
		sort.Strings(subPaths)
		for _, p := range subPaths {
			info := entry.ImportedSubmodules[p]
			fmt.Fprintf(&b, "  - %s: branch=%s, commit=%s\n", p, info.Branch, info.CommitHash)
		}
		if len(entry.TrackedNestedSubmodules) > 0 {
			fmt.Fprintf(&b, "  Tracked git submodules:\n")
			nestedPaths := make([]string, 0, len(entry.TrackedNestedSubmodules))
			for p := range entry.TrackedNestedSubmodules {
				nestedPaths = append(nestedPaths, p)
			}
			sort.Strings(nestedPaths)
			for _, p := range nestedPaths {
				info := entry.TrackedNestedSubmodules[p]
				fmt.Fprintf(&b, "  - %s: url=%s, commit=%s\n", p, info.URL, info.CommitHash)
			}
		}
	}
	return b.String()
}
