// Package cache implements the monorepo cache: memoized branch set and
// per-branch submodule tracking for the mono repository, so the
// submodule importer never re-queries a branch it has already scanned
// in the same run.
//
// The cache is the only component permitted to perform a
// branch-changing checkout in the mono during the submodule-import
// phase; every other component that needs the mono on a particular
// branch goes through Cache.Checkout or Cache.WithBranch.
package cache

import (
	"github.com/sirupsen/logrus"

	"github.com/monomerge/monomerge/internal/model"
	"github.com/monomerge/monomerge/internal/vcsadapter"
)

// Cache memoizes the mono's branch set and, per branch, its tracked
// submodules. Created at the start of the submodule-import phase and
// discarded at the end.
type Cache struct {
	adapter *vcsadapter.Adapter
	probe   *vcsadapter.Probe
	monoDir string
	log     *logrus.Entry

	branchesLoaded bool
	branchOrder    []string
	branchSet      map[string]bool

	submodulesByBranch map[string][]model.SubmoduleReference
	scannedBranches    map[string]bool
}

// New returns a Cache over the mono repository at monoDir.
func New(monoDir string, adapter *vcsadapter.Adapter, probe *vcsadapter.Probe, log *logrus.Entry) *Cache {
	if log == nil {
		log = adapter.Log
	}
	return &Cache{
		adapter:            adapter,
		probe:              probe,
		monoDir:            monoDir,
		log:                log,
		submodulesByBranch: make(map[string][]model.SubmoduleReference),
		scannedBranches:    make(map[string]bool),
	}
}

// GetBranches returns the memoized branch set, recomputing it only
// when forceRefresh is set or it has never been loaded.
func (c *Cache) GetBranches(forceRefresh bool) ([]string, error) {
	if forceRefresh || !c.branchesLoaded {
		names, err := c.probe.ListBranches(c.monoDir)
		if err != nil {
			return nil, err
		}
		c.branchOrder = names
		c.branchSet = make(map[string]bool, len(names))
		for _, n := range names {
			c.branchSet[n] = true
		}
		c.branchesLoaded = true
	}
	out := make([]string, len(c.branchOrder))
	copy(out, c.branchOrder)
	return out, nil
}

// AddBranch registers a branch created during this session so the
// cache observes it immediately, without a force-refresh round trip
// to the VCS.
func (c *Cache) AddBranch(name string) {
	if c.branchSet == nil {
		c.branchSet = make(map[string]bool)
	}
	if !c.branchSet[name] {
		c.branchSet[name] = true
		c.branchOrder = append(c.branchOrder, name)
	}
	c.branchesLoaded = true
}

// HasBranch reports whether name is a known mono branch, using the
// memoized set (refreshing it first if it has never been loaded).
func (c *Cache) HasBranch(name string) (bool, error) {
	if _, err := c.GetBranches(false); err != nil {
		return false, err
	}
	return c.branchSet[name], nil
}

// GetSubmodulesInBranch returns the submodules tracked by branch b,
// scanning it (a full checkout + recursive submodule update) only if b
// has not already been scanned or forceRefresh is set.
func (c *Cache) GetSubmodulesInBranch(b string, forceRefresh bool) ([]model.SubmoduleReference, error) {
	if forceRefresh {
		c.InvalidateBranch(b)
	}
	if c.scannedBranches[b] {
		return c.submodulesByBranch[b], nil
	}
	err := c.WithBranch(b, func() error {
		subs, err := c.probe.ListSubmodules(c.monoDir)
		if err != nil {
			return err
		}
		c.submodulesByBranch[b] = subs
		c.scannedBranches[b] = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c.submodulesByBranch[b], nil
}

// GetBranchesTrackingSubmodule ensures every known branch has been
// scanned, restores the branch the mono was on before the call, and
// returns the branches whose tracked submodules include path.
func (c *Cache) GetBranchesTrackingSubmodule(path string) ([]string, error) {
	orig, hadBranch, err := c.probe.HeadBranch(c.monoDir)
	if err != nil {
		return nil, err
	}

	branches, err := c.GetBranches(false)
	if err != nil {
		return nil, err
	}
	for _, b := range branches {
		if !c.scannedBranches[b] {
			if _, err := c.GetSubmodulesInBranch(b, false); err != nil {
				return nil, err
			}
		}
	}

	if hadBranch {
		if err := c.Checkout(orig); err != nil {
			return nil, err
		}
	}

	var out []string
	for _, b := range branches {
		for _, s := range c.submodulesByBranch[b] {
			if s.Path == path {
				out = append(out, b)
				break
			}
		}
	}
	return out, nil
}

// InvalidateBranch drops b from the scanned set, forcing the next
// GetSubmodulesInBranch(b, ...) call to rescan it.
func (c *Cache) InvalidateBranch(b string) {
	delete(c.scannedBranches, b)
	delete(c.submodulesByBranch, b)
}

// Checkout switches the mono to branch and forces a recursive
// submodule update, leaving the working tree on branch. This is the
// only sanctioned way to change the mono's HEAD during the
// submodule-import phase.
//
// Submodule URLs are frequently local paths here (a local meta, scratch
// clones); git >= 2.38.1 blocks the file transport for submodule clones
// unless protocol.file.allow is set.
func (c *Cache) Checkout(branch string) error {
	if _, err := c.adapter.Run(c.monoDir, false, "checkout", branch); err != nil {
		return err
	}
	if _, err := c.adapter.Run(c.monoDir, false, "-c", "protocol.file.allow=always", "submodule", "update", "--init", "--recursive"); err != nil {
		return err
	}
	return nil
}

// WithBranch checks out branch, runs fn, then restores whatever
// branch the mono was previously on — even if fn returns an error —
// via a forced submodule update. The cache's own scans
// (GetSubmodulesInBranch) use this helper, and it is exported so the
// importer can use the same discipline for its own read-only
// excursions onto a branch.
func (c *Cache) WithBranch(branch string, fn func() error) error {
	orig, hadBranch, err := c.probe.HeadBranch(c.monoDir)
	if err != nil {
		return err
	}

	if err := c.Checkout(branch); err != nil {
		return err
	}

	fnErr := fn()

	if hadBranch && orig != branch {
		if _, err := c.adapter.Run(c.monoDir, false, "checkout", orig); err != nil {
			if fnErr != nil {
				return fnErr
			}
			return err
		}
		if _, err := c.adapter.Run(c.monoDir, false, "-c", "protocol.file.allow=always", "submodule", "update", "--force", "--recursive"); err != nil {
			if fnErr != nil {
				return fnErr
			}
			return err
		}
	}

	return fnErr
}
