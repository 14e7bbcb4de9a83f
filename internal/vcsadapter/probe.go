package vcsadapter

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/sirupsen/logrus"

	"github.com/monomerge/monomerge/internal/model"
)

// Probe answers read-only questions about a checked-out repository:
// its branches, its HEAD, and the submodules it tracks at the current
// tip.
type Probe struct {
	Adapter *Adapter
	Log     *logrus.Entry
}

// NewProbe returns a Probe backed by adapter.
func NewProbe(adapter *Adapter, log *logrus.Entry) *Probe {
	if log == nil {
		log = adapter.Log
	}
	return &Probe{Adapter: adapter, Log: log}
}

// ListBranches returns the unique local+remote-tracking branch names
// of repo, with the `*` current-branch marker stripped, detached-HEAD
// and HEAD-alias entries skipped, and `remotes/origin/<x>` rewritten
// to `<x>`.
func (p *Probe) ListBranches(repo string) ([]string, error) {
	res, err := p.Adapter.Run(repo, false, "branch", "-a")
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		line = strings.TrimPrefix(line, "* ")
		line = strings.TrimSpace(line)
		if strings.Contains(line, "HEAD detached") {
			continue
		}
		if strings.Contains(line, " -> ") {
			continue // remotes/origin/HEAD -> origin/main
		}
		name := strings.TrimPrefix(line, "remotes/origin/")
		if name == "HEAD" {
			continue
		}
		if !seen[name] {
			seen[name] = true
			out = append(out, name)
		}
	}
	return out, nil
}

// HeadBranch returns the current branch name of repo, or ("", false)
// if HEAD is detached or the branch name can't be determined.
func (p *Probe) HeadBranch(repo string) (string, bool, error) {
	// symbolic-ref also names an unborn branch (a fresh init with no
	// commits); with -q it exits 1 when HEAD is detached.
	res, err := p.Adapter.Run(repo, true, "symbolic-ref", "--short", "-q", "HEAD")
	if err != nil {
		return "", false, err
	}
	if res.ExitCode == 1 {
		return "", false, nil
	}
	if res.ExitCode != 0 {
		return "", false, &VcsError{Cmd: []string{"git", "symbolic-ref", "--short", "-q", "HEAD"}, Dir: repo, ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
	}
	name := strings.TrimSpace(res.Stdout)
	if name == "" {
		return "", false, nil
	}
	return name, true, nil
}

// HeadCommit returns the commit hash HEAD points at in repo.
func (p *Probe) HeadCommit(repo string) (string, error) {
	res, err := p.Adapter.Run(repo, false, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(res.Stdout), nil
}

// ListSubmodules parses the .gitmodules file at repo's root and
// enriches each entry with the commit hash reported by
// `git submodule status`. A section without both path and url is
// skipped. A missing .gitmodules yields an empty list. A failing
// `submodule status` is a tolerated condition: it is logged as a
// warning and every submodule is then treated as having an unknown
// commit, which means it is omitted from the result, because a
// SubmoduleReference without a commit hash carries no importable
// information.
func (p *Probe) ListSubmodules(repo string) ([]model.SubmoduleReference, error) {
	data, err := os.ReadFile(filepath.Join(repo, ".gitmodules"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	modules := gitconfig.NewModules()
	if err := modules.Unmarshal(data); err != nil {
		return nil, err
	}

	hashes, err := p.submoduleHashes(repo)
	if err != nil {
		p.Log.WithError(err).Warn("git submodule status failed; proceeding without commit hashes")
		hashes = map[string]string{}
	}

	var out []model.SubmoduleReference
	for _, sub := range modules.Submodules {
		if sub.Path == "" || sub.URL == "" {
			continue
		}
		hash, ok := hashes[sub.Path]
		if !ok {
			// Unknown commit hash: not importable, so omitted.
			continue
		}
		out = append(out, model.SubmoduleReference{Path: sub.Path, URL: sub.URL, CommitHash: hash})
	}
	// modules.Submodules is a map; callers (the cache, the import plan)
	// need a stable order.
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

// submoduleHashes runs `git submodule status` and returns a
// path -> commit-hash map. Each status line is
// "[+-]?<hash> <path>[ (<describe>)]"; a leading '+' (checked-out
// commit differs from the index) or '-' (not initialized) is
// stripped from the hash.
func (p *Probe) submoduleHashes(repo string) (map[string]string, error) {
	res, err := p.Adapter.Run(repo, true, "submodule", "status")
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &VcsError{Cmd: []string{"git", "submodule", "status"}, Dir: repo, ExitCode: res.ExitCode, Stdout: res.Stdout, Stderr: res.Stderr}
	}
	out := make(map[string]string)
	for _, line := range strings.Split(res.Stdout, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		hash := strings.TrimLeft(fields[0], "+-")
		out[fields[1]] = hash
	}
	return out, nil
}
