// Package orchestrator implements the top-level migration sequence:
// workspace preparation, strategy template load/dump, whitelist
// filtering, and invoking the meta importer, submodule importer,
// report aggregator, and squash pass in order.
package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/monomerge/monomerge/internal/cache"
	"github.com/monomerge/monomerge/internal/filterrepo"
	"github.com/monomerge/monomerge/internal/importer"
	"github.com/monomerge/monomerge/internal/mmerrors"
	"github.com/monomerge/monomerge/internal/model"
	"github.com/monomerge/monomerge/internal/report"
	"github.com/monomerge/monomerge/internal/squash"
	"github.com/monomerge/monomerge/internal/vcsadapter"
)

// Config is the orchestrator's complete set of inputs.
type Config struct {
	MetaLocation      string // URL or local path, mandatory
	MonoLocation      string // optional existing mono; "" initializes an empty one on branch "main"
	StrategyFile      string // optional path to a strategy JSON file to load
	DumpTemplate      bool   // if true, write a strategy template and stop
	WhitelistFile     string // optional branches-whitelist JSON path
	DumpLog           bool   // if true, print the branch report and stop
	CheckSquashable   bool   // if true, run the squash check and stop
	Squash            bool   // if true, run the squash pass after migrating
	SquashTitle       string
	SquashDescription string
	FilterRepoBin     string // history-rewriting tool binary; default git-filter-repo
	WorkDir           string // base directory for the sandbox; default os.TempDir()

	Log *logrus.Entry
}

// Orchestrator runs one migration.
type Orchestrator struct {
	cfg        Config
	log        *logrus.Entry
	adapter    *vcsadapter.Adapter
	probe      *vcsadapter.Probe
	filterRepo *filterrepo.Tool
}

// New validates cfg and returns an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.MetaLocation == "" {
		return nil, mmerrors.NewConfigError("meta repository location is required")
	}
	log := cfg.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = os.TempDir()
	}

	adapter := vcsadapter.New(log)
	probe := vcsadapter.NewProbe(adapter, log)
	ft := filterrepo.New(cfg.FilterRepoBin, log)
	if err := ft.CheckAvailable(); err != nil {
		return nil, mmerrors.NewConfigError("%v", err)
	}

	return &Orchestrator{cfg: cfg, log: log, adapter: adapter, probe: probe, filterRepo: ft}, nil
}

// Result bundles everything a caller needs after a successful run.
type Result struct {
	MonoDir string
	Report  *model.MigrationReport
}

// Run executes the full migration sequence.
func (o *Orchestrator) Run() (*Result, error) {
	sb, err := newSandbox(o.cfg.WorkDir, o.log)
	if err != nil {
		return nil, err
	}
	// No unconditional deferred cleanup: a run that produces a mono
	// must leave it on disk for the caller, and a run that fails leaves
	// the whole sandbox for inspection. Each success exit below cleans
	// up exactly what it no longer needs; the --check-squashable exit
	// removes the sandbox whatever the outcome of the check.

	metaDir := sb.path("meta")
	if _, err := o.adapter.Run(sb.root, false, "clone", o.cfg.MetaLocation, metaDir); err != nil {
		return nil, err
	}

	metaDefault, ok, err := o.probe.HeadBranch(metaDir)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, mmerrors.NewConfigError("could not determine meta repository's default branch")
	}

	allMetaBranches, err := o.probe.ListBranches(metaDir)
	if err != nil {
		return nil, err
	}
	if err := materializeLocalBranches(o.adapter, metaDir, allMetaBranches); err != nil {
		return nil, err
	}

	var whitelist []string
	if o.cfg.WhitelistFile != "" {
		whitelist, err = LoadWhitelist(o.cfg.WhitelistFile)
		if err != nil {
			return nil, err
		}
	}
	survivingMetaBranches := importer.SurvivingBranches(allMetaBranches, metaDefault, whitelist)

	if o.cfg.DumpLog {
		subs, err := discoverSubmodules(o.adapter, o.probe, metaDir, survivingMetaBranches)
		if err != nil {
			return nil, err
		}
		if err := o.dumpBranchReport(sb.root, metaDefault, allMetaBranches, survivingMetaBranches, dedupeByKey(subs)); err != nil {
			return nil, err
		}
		sb.cleanup()
		return nil, nil
	}

	if o.cfg.DumpTemplate {
		subs, err := discoverSubmodules(o.adapter, o.probe, metaDir, survivingMetaBranches)
		if err != nil {
			return nil, err
		}
		tmpl := DumpTemplate(dedupeByKey(subs))
		path := o.cfg.StrategyFile
		if path == "" {
			path = "strategy-template.json"
		}
		if err := WriteStrategy(path, tmpl); err != nil {
			return nil, err
		}
		o.log.WithField("path", path).Info("wrote strategy template")
		sb.cleanup()
		return nil, nil
	}

	if o.cfg.CheckSquashable {
		// A migrated mono has content at every submodule path, so the
		// adopt-time emptiness validation in prepareMono does not apply:
		// clone it directly and only inspect its history.
		if o.cfg.MonoLocation == "" {
			return nil, mmerrors.NewConfigError("--check-squashable requires an existing mono repository (--mono)")
		}
		monoDir := sb.path("mono")
		if _, err := o.adapter.Run(sb.root, false, "clone", o.cfg.MonoLocation, monoDir); err != nil {
			return nil, err
		}
		monoBranches, err := o.probe.ListBranches(monoDir)
		if err != nil {
			return nil, err
		}
		if err := materializeLocalBranches(o.adapter, monoDir, monoBranches); err != nil {
			return nil, err
		}
		result, err := o.runCheckSquashable(monoDir)
		sb.cleanup()
		return result, err
	}

	var strategy Strategy
	if o.cfg.StrategyFile != "" {
		strategy, err = LoadStrategy(o.cfg.StrategyFile)
		if err != nil {
			return nil, err
		}
	}

	monoDir, err := o.prepareMono(sb)
	if err != nil {
		return nil, err
	}

	metaImporter := importer.NewMetaImporter(o.adapter, o.probe, o.log)
	metaBranchCommits, touchedBranches, err := metaImporter.Import(monoDir, metaDir, metaDefault, survivingMetaBranches)
	if err != nil {
		return nil, err
	}

	subs, err := discoverSubmodules(o.adapter, o.probe, metaDir, survivingMetaBranches)
	if err != nil {
		return nil, err
	}
	subs = dedupeByKey(subs)
	sort.Slice(subs, func(i, j int) bool {
		if subs[i].Path != subs[j].Path {
			return subs[i].Path < subs[j].Path
		}
		return subs[i].URL < subs[j].URL
	})

	c := cache.New(monoDir, o.adapter, o.probe, o.log)
	if _, err := c.GetBranches(true); err != nil {
		return nil, err
	}
	for _, b := range touchedBranches {
		c.AddBranch(b)
	}

	info := model.NewMigrationImportInfo(metaDefault, "metarepo", "monorepo")
	subImporter := importer.New(o.adapter, o.probe, o.filterRepo, c, sb.path("submodules"), o.log)

	for _, sub := range subs {
		if strategy != nil && !strategy.Permits(sub) {
			o.log.WithField("submodule", sub.Path).Info("strategy does not permit this submodule; skipping")
			continue
		}
		subInfo := info.SubmoduleInfo(sub.Path, "")
		if err := subImporter.Import(monoDir, sub, metaDefault, metaBranchCommits, whitelist, subInfo); err != nil {
			return nil, err
		}
	}

	rep := report.Build(info)

	if o.cfg.Squash {
		if err := o.runSquash(monoDir); err != nil {
			return nil, err
		}
	}

	if err := o.writeReports(monoDir, rep); err != nil {
		return nil, err
	}

	sb.cleanupScratch()
	return &Result{MonoDir: monoDir, Report: rep}, nil
}

func (o *Orchestrator) prepareMono(sb *sandbox) (string, error) {
	monoDir := sb.path("mono")
	if o.cfg.MonoLocation != "" {
		if _, err := o.adapter.Run(sb.root, false, "clone", o.cfg.MonoLocation, monoDir); err != nil {
			return "", err
		}
		if err := validateExistingMono(monoDir); err != nil {
			return "", err
		}
		return monoDir, nil
	}

	if err := os.MkdirAll(monoDir, 0o755); err != nil {
		return "", err
	}
	if _, err := o.adapter.Run(monoDir, false, "init", "-b", "main"); err != nil {
		return "", err
	}
	return monoDir, nil
}

// dumpBranchReport prints the meta branch-closure plan without running
// any import: every meta branch, whether it is the default, and whether
// it survives whitelist filtering, followed by every branch
// discoverable at each submodule's remote — the raw material for
// writing a strategy file by hand.
func (o *Orchestrator) dumpBranchReport(workDir, metaDefault string, all, surviving []string, subs []model.SubmoduleReference) error {
	survivingSet := toSet(surviving)
	for _, b := range all {
		status := "dropped by whitelist"
		if survivingSet[b] {
			status = "surviving"
		}
		marker := ""
		if b == metaDefault {
			marker = " (default)"
		}
		fmt.Printf("%s%s: %s\n", b, marker, status)
	}
	for _, sub := range subs {
		res, err := o.adapter.Run(workDir, false, "ls-remote", "--heads", sub.URL)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s (%s):\n", sub.Path, sub.URL)
		for _, line := range strings.Split(res.Stdout, "\n") {
			fields := strings.Fields(line)
			if len(fields) != 2 {
				continue
			}
			fmt.Printf("  %s\n", strings.TrimPrefix(fields[1], "refs/heads/"))
		}
	}
	return nil
}

func toSet(list []string) map[string]bool {
	set := make(map[string]bool, len(list))
	for _, s := range list {
		set[s] = true
	}
	return set
}

func (o *Orchestrator) runCheckSquashable(monoDir string) (*Result, error) {
	c := cache.New(monoDir, o.adapter, o.probe, o.log)
	branches, err := c.GetBranches(true)
	if err != nil {
		return nil, err
	}
	pass := squash.New(o.adapter, o.log)
	results, err := pass.CheckSquashable(monoDir, branches)
	if err != nil {
		return nil, err
	}
	failed := 0
	for _, b := range branches {
		res := results[b]
		if res.Squashable {
			o.log.WithField("branch", b).WithField("head", res.Range.Head).WithField("tail", res.Range.Tail).Info("squashable")
		} else {
			failed++
			o.log.WithField("branch", b).WithField("reason", res.Reason).Warn("not squashable")
		}
	}
	if failed > 0 {
		return nil, fmt.Errorf("%d branch(es) are not squashable", failed)
	}
	return nil, nil
}

func (o *Orchestrator) runSquash(monoDir string) error {
	c := cache.New(monoDir, o.adapter, o.probe, o.log)
	branches, err := c.GetBranches(true)
	if err != nil {
		return err
	}
	pass := squash.New(o.adapter, o.log)
	results, err := pass.CheckSquashable(monoDir, branches)
	if err != nil {
		return err
	}
	origBranch, hadBranch, err := o.probe.HeadBranch(monoDir)
	if err != nil {
		return err
	}
	for _, b := range branches {
		res := results[b]
		if !res.Squashable {
			o.log.WithField("branch", b).WithField("reason", res.Reason).Warn("skipping squash; branch is not squashable")
			continue
		}
		if _, err := o.adapter.Run(monoDir, false, "checkout", b); err != nil {
			return err
		}
		title := o.cfg.SquashTitle
		if title == "" {
			title = model.BookkeepingMarker + " squashed import"
		}
		if err := pass.SquashCommits(monoDir, res.Range, title, o.cfg.SquashDescription); err != nil {
			return err
		}
	}
	if hadBranch {
		if _, err := o.adapter.Run(monoDir, false, "checkout", origBranch); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) writeReports(monoDir string, rep *model.MigrationReport) error {
	jsonPath := filepath.Join(monoDir, "..", "migration_report.json")
	txtPath := filepath.Join(monoDir, "..", "migration_report.txt")

	data, err := report.JSON(rep)
	if err != nil {
		return err
	}
	if err := os.WriteFile(jsonPath, data, 0o644); err != nil {
		return err
	}
	if err := os.WriteFile(txtPath, []byte(report.Text(rep)), 0o644); err != nil {
		return err
	}
	o.log.WithField("json", jsonPath).WithField("text", txtPath).Info("wrote migration reports")
	return nil
}

// discoverSubmodules returns the union of submodules referenced by any
// of branches in metaDir, by checking each one out in turn.
func discoverSubmodules(adapter *vcsadapter.Adapter, probe *vcsadapter.Probe, metaDir string, branches []string) ([]model.SubmoduleReference, error) {
	var all []model.SubmoduleReference
	for _, b := range branches {
		if _, err := adapter.Run(metaDir, false, "checkout", b); err != nil {
			return nil, err
		}
		subs, err := probe.ListSubmodules(metaDir)
		if err != nil {
			return nil, err
		}
		all = append(all, subs...)
	}
	return all, nil
}

func dedupeByKey(subs []model.SubmoduleReference) []model.SubmoduleReference {
	seen := make(map[model.SubmoduleKey]bool, len(subs))
	var out []model.SubmoduleReference
	for _, s := range subs {
		if !seen[s.Key()] {
			seen[s.Key()] = true
			out = append(out, s)
		}
	}
	return out
}

func materializeLocalBranches(adapter *vcsadapter.Adapter, dir string, branches []string) error {
	for _, b := range branches {
		res, err := adapter.Run(dir, true, "show-ref", "--verify", "--quiet", "refs/heads/"+b)
		if err == nil && res.ExitCode == 0 {
			continue
		}
		if _, err := adapter.Run(dir, false, "branch", b, "origin/"+b); err != nil {
			return err
		}
	}
	return nil
}
