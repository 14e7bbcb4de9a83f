// Package model holds the data types shared across the migration engine:
// submodule references, per-branch bookkeeping, and the import/report
// accumulators that the importer and report aggregator pass between
// each other.
package model

import "path"

// BookkeepingMarker prefixes every commit message the engine authors,
// so the squash pass (internal/squash) can recognize and collapse them.
const BookkeepingMarker = "[monomerge]"

// SubmoduleReference is the (path, url, commitHash) tuple describing a
// submodule entry. Identity is (Path, URL) only: CommitHash is data,
// not identity, so the same submodule tracked at two different pinned
// commits on two branches is still "the same submodule" for caching
// and closure-planning purposes.
type SubmoduleReference struct {
	Path       string
	URL        string
	CommitHash string
}

// Key returns the identity tuple used for equality, hashing, and map
// keys. CommitHash is deliberately excluded.
func (s SubmoduleReference) Key() SubmoduleKey {
	return SubmoduleKey{Path: s.Path, URL: s.URL}
}

// SubmoduleKey is the hashable identity of a SubmoduleReference.
type SubmoduleKey struct {
	Path string
	URL  string
}

// JoinPath returns the nested submodule's path as seen from the mono
// root, given the path of its parent submodule.
func (s SubmoduleReference) JoinPath(parent string) string {
	return path.Join(parent, s.Path)
}

// MetaBranchCommits maps a meta-branch name to the commit hash it
// pointed at immediately before the meta importer appended its
// bookkeeping anchor commit. Populated once by the meta importer,
// read-only afterward.
type MetaBranchCommits map[string]string

// SubmoduleImportEntry records one successful (submodule, mono-branch)
// import.
type SubmoduleImportEntry struct {
	MonoBranch string
	MetaBranch string
	MetaCommit string
	SubBranch  string
	SubCommit  string
	Nested     []SubmoduleReference
}

// SubmoduleImportInfo accumulates every SubmoduleImportEntry produced
// while importing one submodule.
type SubmoduleImportInfo struct {
	RelativePath  string
	DefaultBranch string
	Entries       []SubmoduleImportEntry
}

// AddEntry appends a new import entry for this submodule.
func (s *SubmoduleImportInfo) AddEntry(e SubmoduleImportEntry) {
	s.Entries = append(s.Entries, e)
}

// MigrationImportInfo is the complete, submodule-indexed record of a
// migration run, the input to the report aggregator (C6).
type MigrationImportInfo struct {
	MetaDefaultBranch string
	MetaName          string
	MonoName          string
	Submodules        map[string]*SubmoduleImportInfo
}

// NewMigrationImportInfo returns an empty, ready-to-populate info
// record for a run against the given meta default branch.
func NewMigrationImportInfo(metaDefaultBranch, metaName, monoName string) *MigrationImportInfo {
	return &MigrationImportInfo{
		MetaDefaultBranch: metaDefaultBranch,
		MetaName:          metaName,
		MonoName:          monoName,
		Submodules:        make(map[string]*SubmoduleImportInfo),
	}
}

// SubmoduleInfo returns the accumulator for relativePath, creating one
// if this is the first time the path is seen.
func (m *MigrationImportInfo) SubmoduleInfo(relativePath, defaultBranch string) *SubmoduleImportInfo {
	info, ok := m.Submodules[relativePath]
	if !ok {
		info = &SubmoduleImportInfo{RelativePath: relativePath, DefaultBranch: defaultBranch}
		m.Submodules[relativePath] = info
	}
	return info
}

// ImportedSubmoduleInfo is the user-facing view of one imported
// submodule on one mono-branch.
type ImportedSubmoduleInfo struct {
	Branch     string `json:"branch"`
	CommitHash string `json:"commit_hash"`
}

// SubmoduleTrackingInfo is the user-facing view of one nested
// submodule registered as a first-class mono submodule.
type SubmoduleTrackingInfo struct {
	URL        string `json:"url"`
	CommitHash string `json:"commit_hash"`
}

// MigrationReportEntry is the per-mono-branch section of the report.
type MigrationReportEntry struct {
	MetaBranch              string                            `json:"meta_branch"`
	MetaCommit              string                            `json:"meta_commit"`
	ImportedSubmodules      map[string]ImportedSubmoduleInfo  `json:"imported_submodules"`
	TrackedNestedSubmodules map[string]SubmoduleTrackingInfo  `json:"tracked_nested_submodules"`
}

// MigrationReport is the final, user-facing per-mono-branch view
// produced by the report aggregator (C6).
type MigrationReport struct {
	MetaName     string                           `json:"meta_name"`
	MonoName     string                           `json:"mono_name"`
	MonoBranches map[string]*MigrationReportEntry `json:"mono_branches"`
}

// CommitRange is a contiguous, first-parent-ancestry commit range at
// the tip of a branch: head is the newest commit, tail the oldest,
// both inclusive.
type CommitRange struct {
	Head string
	Tail string
}
