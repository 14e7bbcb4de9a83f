package importer

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/monomerge/monomerge/internal/cache"
	"github.com/monomerge/monomerge/internal/filterrepo"
	"github.com/monomerge/monomerge/internal/mmerrors"
	"github.com/monomerge/monomerge/internal/model"
	"github.com/monomerge/monomerge/internal/vcsadapter"
)

const subTransientRemote = "monomerge-sub-transient"

// SubmoduleImporter runs the per-submodule state machine: branch-closure
// planning, pre-creation of missing mono branches, per-branch import,
// and nested-submodule re-registration.
type SubmoduleImporter struct {
	Adapter    *vcsadapter.Adapter
	Probe      *vcsadapter.Probe
	FilterRepo *filterrepo.Tool
	Cache      *cache.Cache
	Log        *logrus.Entry

	// SandboxDir is the per-run scratch root under which this
	// importer creates the full scratch clone and every isolated
	// single-branch clone. The orchestrator owns its lifecycle.
	SandboxDir string
}

// New returns a SubmoduleImporter.
func New(adapter *vcsadapter.Adapter, probe *vcsadapter.Probe, ft *filterrepo.Tool, c *cache.Cache, sandboxDir string, log *logrus.Entry) *SubmoduleImporter {
	if log == nil {
		log = adapter.Log
	}
	return &SubmoduleImporter{Adapter: adapter, Probe: probe, FilterRepo: ft, Cache: c, SandboxDir: sandboxDir, Log: log}
}

// Import migrates submodule sub into the mono across its whole branch
// closure, recording every successful (submodule, mono-branch) import
// into info.
func (si *SubmoduleImporter) Import(monoDir string, sub model.SubmoduleReference, metaDefaultBranch string, metaBranchCommits model.MetaBranchCommits, monoWhitelist []string, info *model.SubmoduleImportInfo) error {
	log := si.Log.WithField("submodule", sub.Path)
	log.Info("importing submodule")

	// Preparation: one full clone, capture default branch and
	// branch set, materialize every remote branch locally so later
	// single-branch clones can use the scratch path as source.
	scratchDir := filepath.Join(si.SandboxDir, "scratch", sanitize(sub.Path)+"-"+uuid.NewString())
	if err := os.MkdirAll(filepath.Dir(scratchDir), 0o755); err != nil {
		return err
	}
	if _, err := si.Adapter.Run(filepath.Dir(scratchDir), false, "clone", sub.URL, scratchDir); err != nil {
		return err
	}
	defer os.RemoveAll(scratchDir)

	subDefaultBranch, hasDefault, err := si.Probe.HeadBranch(scratchDir)
	if err != nil {
		return err
	}
	if !hasDefault {
		return mmerrors.NewPlanningError("submodule %s: could not determine default branch of clone", sub.Path)
	}
	info.DefaultBranch = subDefaultBranch

	subBranches, err := si.Probe.ListBranches(scratchDir)
	if err != nil {
		return err
	}
	if err := materializeLocalBranches(si.Adapter, scratchDir, subBranches); err != nil {
		return err
	}

	trackedBy, err := si.Cache.GetBranchesTrackingSubmodule(sub.Path)
	if err != nil {
		return err
	}
	defaultTracks := contains(trackedBy, metaDefaultBranch)
	trackedBySet := toSet(trackedBy)

	monoBranches, err := si.Cache.GetBranches(false)
	if err != nil {
		return err
	}
	monoBranches = applyWhitelist(monoBranches, monoWhitelist, metaDefaultBranch)
	subBranchesFiltered := applyWhitelist(subBranches, monoWhitelist, subDefaultBranch)
	monoSet := toSet(monoBranches)
	subSet := toSet(subBranchesFiltered)

	closure := BranchClosure(monoBranches, subBranchesFiltered)

	// Classification, then pre-creation: every create-mono branch must
	// exist, created from the meta default tip, before any per-branch
	// import begins.
	type plannedBranch struct {
		branch   string
		outcome  BranchOutcome
		subUsing string // the submodule branch actually imported
	}
	var planned []plannedBranch
	skip := make(map[string]bool)

	for _, b := range closure {
		outcome := Classify(b, monoSet[b], trackedBySet[b], subSet[b], defaultTracks)
		switch outcome {
		case OutcomeSkip:
			skip[b] = true
		case OutcomeSameName:
			planned = append(planned, plannedBranch{branch: b, outcome: outcome, subUsing: b})
		case OutcomeSubstituteDefault:
			planned = append(planned, plannedBranch{branch: b, outcome: outcome, subUsing: subDefaultBranch})
		case OutcomeCreateMono:
			planned = append(planned, plannedBranch{branch: b, outcome: outcome, subUsing: b})
		}
	}

	for _, p := range planned {
		if p.outcome != OutcomeCreateMono {
			continue
		}
		if err := si.Cache.Checkout(metaDefaultBranch); err != nil {
			return err
		}
		// Create the branch at the meta default tip without switching to
		// it: only the cache changes the mono's HEAD in this phase.
		if _, err := si.Adapter.Run(monoDir, false, "branch", "-f", p.branch); err != nil {
			return err
		}
		si.Cache.AddBranch(p.branch)
		log.WithField("branch", p.branch).Info("pre-created mono branch from meta default")
	}

	// Import phase, one surviving branch at a time.
	gitmodulesRemoved := make(map[string]bool)
	for _, p := range planned {
		if err := si.importOneBranch(monoDir, scratchDir, sub, p.branch, p.subUsing, metaDefaultBranch, metaBranchCommits, info, gitmodulesRemoved); err != nil {
			return fmt.Errorf("submodule %s, branch %q: %w", sub.Path, p.branch, err)
		}
	}

	_ = skip // recorded for clarity of intent; no further action needed
	return nil
}

func (si *SubmoduleImporter) importOneBranch(
	monoDir, scratchDir string,
	sub model.SubmoduleReference,
	monoBranch, subBranch, metaDefaultBranch string,
	metaBranchCommits model.MetaBranchCommits,
	info *model.SubmoduleImportInfo,
	gitmodulesRemoved map[string]bool,
) error {
	log := si.Log.WithField("submodule", sub.Path).WithField("mono_branch", monoBranch)

	// Step 1: clean untracked/ignored cruft. A dirty tracked-file
	// working tree is tolerated here only insofar as the subsequent
	// checkout will fail loudly (fatal) if it can't proceed.
	if _, err := si.Adapter.Run(monoDir, true, "clean", "-fdx"); err != nil {
		log.WithError(err).Warn("git clean -fdx reported an error; proceeding")
	}

	// Step 2: the cache is the only component allowed to change the
	// mono's HEAD during this phase.
	if err := si.Cache.Checkout(monoBranch); err != nil {
		return err
	}

	// Step 3: single-branch clone of the chosen submodule branch into
	// an isolated workspace.
	isolatedDir := filepath.Join(si.SandboxDir, "isolated", sanitize(sub.Path)+"-"+sanitize(monoBranch)+"-"+uuid.NewString())
	if err := os.MkdirAll(filepath.Dir(isolatedDir), 0o755); err != nil {
		return err
	}
	if _, err := si.Adapter.Run(filepath.Dir(isolatedDir), false, "clone", "--single-branch", "-b", subBranch, scratchDir, isolatedDir); err != nil {
		return err
	}
	defer os.RemoveAll(isolatedDir)

	subCommit, err := si.Probe.HeadCommit(isolatedDir)
	if err != nil {
		return err
	}
	nested, err := si.Probe.ListSubmodules(isolatedDir)
	if err != nil {
		return err
	}

	// Step 4: resolve which meta branch/commit this entry reports.
	metaBranchUsed := monoBranch
	if _, ok := metaBranchCommits[monoBranch]; !ok {
		metaBranchUsed = metaDefaultBranch
	}
	metaCommit := metaBranchCommits[metaBranchUsed]

	// Step 5: record the entry.
	entry := model.SubmoduleImportEntry{
		MonoBranch: monoBranch,
		MetaBranch: metaBranchUsed,
		MetaCommit: metaCommit,
		SubBranch:  subBranch,
		SubCommit:  subCommit,
		Nested:     nested,
	}
	info.AddEntry(entry)

	// Step 6: rewrite the isolated clone's history into the submodule
	// subdirectory.
	if err := si.FilterRepo.ToSubdirectory(isolatedDir, sub.Path); err != nil {
		return err
	}

	// Step 7: if the mono already has files at sub.Path on this
	// branch, remove and commit before merging the rewritten history
	// in, so the merge is a clean addition.
	if pathExists(filepath.Join(monoDir, sub.Path)) {
		if _, err := si.Adapter.Run(monoDir, false, "rm", "-rf", sub.Path); err != nil {
			return err
		}
		msg := fmt.Sprintf("%s remove stale %s before re-import", model.BookkeepingMarker, sub.Path)
		if _, err := si.Adapter.Run(monoDir, false, "commit", "-m", msg); err != nil {
			return err
		}
	}

	// Step 8: merge the rewritten history in via a transient remote.
	if _, err := si.Adapter.Run(monoDir, true, "remote", "remove", subTransientRemote); err != nil {
		log.WithError(err).Debug("remote remove before add (expected to fail if absent)")
	}
	if _, err := si.Adapter.Run(monoDir, false, "remote", "add", subTransientRemote, isolatedDir); err != nil {
		return err
	}
	if _, err := si.Adapter.Run(monoDir, false, "fetch", subTransientRemote, subBranch); err != nil {
		return err
	}
	mergeMsg := fmt.Sprintf("%s import %s@%s (%s) into %s", model.BookkeepingMarker, sub.Path, subBranch, subCommit, monoBranch)
	if _, err := si.Adapter.Run(monoDir, false, "merge", "--allow-unrelated-histories", "-m", mergeMsg, subTransientRemote+"/"+subBranch); err != nil {
		return err
	}
	if _, err := si.Adapter.Run(monoDir, false, "remote", "remove", subTransientRemote); err != nil {
		return err
	}

	// Step 9: re-register nested submodules one level up.
	visitKey := sub.Path + "@" + monoBranch
	for _, n := range nested {
		if err := si.registerNested(monoDir, sub, monoBranch, n, visitKey, gitmodulesRemoved); err != nil {
			return err
		}
	}

	return nil
}

func (si *SubmoduleImporter) registerNested(monoDir string, sub model.SubmoduleReference, monoBranch string, n model.SubmoduleReference, visitKey string, gitmodulesRemoved map[string]bool) error {
	log := si.Log.WithField("submodule", sub.Path).WithField("nested", n.Path).WithField("mono_branch", monoBranch)

	gitmodulesPath := filepath.Join(monoDir, sub.Path, ".gitmodules")
	if !gitmodulesRemoved[visitKey] && pathExists(gitmodulesPath) {
		if _, err := si.Adapter.Run(monoDir, false, "rm", "-f", filepath.Join(sub.Path, ".gitmodules")); err != nil {
			return err
		}
		msg := fmt.Sprintf("%s drop inherited .gitmodules under %s", model.BookkeepingMarker, sub.Path)
		if _, err := si.Adapter.Run(monoDir, false, "commit", "-m", msg); err != nil {
			return err
		}
		gitmodulesRemoved[visitKey] = true
	}

	nestedRelPath := n.JoinPath(sub.Path)
	nestedAbsPath := filepath.Join(monoDir, nestedRelPath)
	if pathExists(nestedAbsPath) {
		if _, err := si.Adapter.Run(monoDir, false, "rm", "-rf", nestedRelPath); err != nil {
			return err
		}
		msg := fmt.Sprintf("%s remove inherited files at %s before registering submodule", model.BookkeepingMarker, nestedRelPath)
		if _, err := si.Adapter.Run(monoDir, false, "commit", "-m", msg); err != nil {
			return err
		}
	}

	// protocol.file.allow: nested URLs may be local paths, which git
	// refuses to clone as submodules by default since 2.38.1.
	if _, err := si.Adapter.Run(monoDir, false, "-c", "protocol.file.allow=always", "submodule", "add", "--force", n.URL, nestedRelPath); err != nil {
		return err
	}

	observedHash := n.CommitHash
	if res, err := si.Adapter.Run(nestedAbsPath, true, "checkout", n.CommitHash); err != nil || res.ExitCode != 0 {
		// Tolerated condition: fall back to whatever the clone now
		// points at and record the observed hash.
		head, herr := si.Probe.HeadCommit(nestedAbsPath)
		if herr != nil {
			return herr
		}
		log.WithField("wanted", n.CommitHash).WithField("observed", head).Warn("could not pin nested submodule to recorded commit; recording observed HEAD instead")
		observedHash = head
	}

	if _, err := si.Adapter.Run(monoDir, false, "add", nestedRelPath); err != nil {
		return err
	}
	msg := fmt.Sprintf("%s register nested submodule %s at %s", model.BookkeepingMarker, nestedRelPath, observedHash)
	if _, err := si.Adapter.Run(monoDir, false, "commit", "-m", msg); err != nil {
		return err
	}

	res, err := si.Adapter.Run(monoDir, false, "ls-tree", monoBranch, "--", nestedRelPath)
	if err != nil {
		return err
	}
	if !treeEntryMatchesCommit(res.Stdout, observedHash) {
		return mmerrors.NewIntegrityError("nested submodule %s: tree entry does not reference expected commit %s", nestedRelPath, observedHash)
	}

	return nil
}

func materializeLocalBranches(adapter *vcsadapter.Adapter, scratchDir string, branches []string) error {
	for _, b := range branches {
		res, err := adapter.Run(scratchDir, true, "show-ref", "--verify", "--quiet", "refs/heads/"+b)
		if err == nil && res.ExitCode == 0 {
			continue // already a local branch (the default branch after clone)
		}
		if _, err := adapter.Run(scratchDir, false, "branch", b, "origin/"+b); err != nil {
			return err
		}
	}
	return nil
}

func applyWhitelist(branches []string, whitelist []string, defaultBranch string) []string {
	if len(whitelist) == 0 {
		return branches
	}
	keep := toSet(whitelist)
	keep[defaultBranch] = true
	var out []string
	for _, b := range branches {
		if keep[b] {
			out = append(out, b)
		}
	}
	return out
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

func sanitize(p string) string {
	out := make([]rune, 0, len(p))
	for _, r := range p {
		if r == '/' || r == '\\' || r == ' ' {
			out = append(out, '-')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}

// treeEntryMatchesCommit reports whether `git ls-tree` output for a
// single gitlink entry references hash. ls-tree output for a
// submodule is "<mode> commit <hash>\t<path>".
func treeEntryMatchesCommit(lsTreeOut, hash string) bool {
	return hash != "" && strings.Contains(lsTreeOut, hash)
}
