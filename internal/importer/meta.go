// Package importer implements the meta importer and the submodule
// importer — the core state machine driving a migration run.
package importer

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/monomerge/monomerge/internal/model"
	"github.com/monomerge/monomerge/internal/vcsadapter"
)

const transientRemoteName = "monomerge-meta-transient"

// MetaImporter creates one mono-branch per surviving meta-branch,
// reset to that branch's tip, and appends the bookkeeping anchor
// commit the squash pass will later collapse.
type MetaImporter struct {
	Adapter *vcsadapter.Adapter
	Probe   *vcsadapter.Probe
	Log     *logrus.Entry
}

// NewMetaImporter returns a MetaImporter.
func NewMetaImporter(adapter *vcsadapter.Adapter, probe *vcsadapter.Probe, log *logrus.Entry) *MetaImporter {
	if log == nil {
		log = adapter.Log
	}
	return &MetaImporter{Adapter: adapter, Probe: probe, Log: log}
}

// Import runs the meta-import phase: for every branch in
// survivingBranches (the meta default branch is always included even
// if whitelisted out), it resets or creates the same-named mono branch
// at the meta tip, appends one bookkeeping anchor commit, and records
// the pre-anchor commit hash.
//
// Returns the populated model.MetaBranchCommits and the list of mono
// branches it touched, in the order processed.
func (m *MetaImporter) Import(monoDir, metaDir, metaDefaultBranch string, survivingBranches []string) (model.MetaBranchCommits, []string, error) {
	commits := make(model.MetaBranchCommits, len(survivingBranches))
	var touched []string

	for _, branch := range survivingBranches {
		preAnchor, err := m.importBranch(monoDir, metaDir, branch)
		if err != nil {
			return nil, nil, fmt.Errorf("meta import of branch %q: %w", branch, err)
		}
		commits[branch] = preAnchor
		touched = append(touched, branch)
	}

	return commits, touched, nil
}

func (m *MetaImporter) importBranch(monoDir, metaDir, branch string) (string, error) {
	log := m.Log.WithField("branch", branch)
	log.Info("importing meta branch")

	if _, err := m.Adapter.Run(monoDir, true, "remote", "remove", transientRemoteName); err != nil {
		return "", err
	}
	if _, err := m.Adapter.Run(monoDir, false, "remote", "add", transientRemoteName, metaDir); err != nil {
		return "", err
	}
	defer func() {
		if _, err := m.Adapter.Run(monoDir, true, "remote", "remove", transientRemoteName); err != nil {
			log.WithError(err).Warn("failed to remove transient meta remote")
		}
	}()

	if _, err := m.Adapter.Run(monoDir, false, "fetch", transientRemoteName, branch); err != nil {
		return "", err
	}

	if _, err := m.Adapter.Run(monoDir, false, "checkout", "-B", branch, transientRemoteName+"/"+branch); err != nil {
		return "", err
	}

	preAnchor, err := m.Probe.HeadCommit(monoDir)
	if err != nil {
		return "", err
	}

	msg := fmt.Sprintf("%s meta import anchor: branch %q at %s", model.BookkeepingMarker, branch, preAnchor)
	if _, err := m.Adapter.Run(monoDir, false, "commit", "--allow-empty", "-m", msg); err != nil {
		return "", err
	}

	return preAnchor, nil
}

// SurvivingBranches computes which meta branches survive whitelist
// filtering: every branch in whitelist, plus metaDefaultBranch
// unconditionally. A nil or empty whitelist keeps every branch.
func SurvivingBranches(allBranches []string, metaDefaultBranch string, whitelist []string) []string {
	if len(whitelist) == 0 {
		return allBranches
	}
	keep := make(map[string]bool, len(whitelist)+1)
	for _, b := range whitelist {
		keep[b] = true
	}
	keep[metaDefaultBranch] = true

	var out []string
	for _, b := range allBranches {
		if keep[b] {
			out = append(out, b)
		}
	}
	return out
}
