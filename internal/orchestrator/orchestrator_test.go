package orchestrator

import (
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/monomerge/monomerge/internal/model"
	"github.com/monomerge/monomerge/internal/testutil"
	"github.com/monomerge/monomerge/internal/vcsadapter"
)

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return logrus.NewEntry(log)
}

func mustRun(t *testing.T, a *vcsadapter.Adapter, dir string, args ...string) {
	t.Helper()
	_, err := a.Run(dir, false, args...)
	require.NoErrorf(t, err, "git %v in %s", args, dir)
}

func initRepo(t *testing.T, a *vcsadapter.Adapter, dir string, files map[string]string) {
	t.Helper()
	mustRun(t, a, dir, "init", "-b", "main")
	mustRun(t, a, dir, "config", "user.email", "t@example.com")
	mustRun(t, a, dir, "config", "user.name", "t")
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	mustRun(t, a, dir, "add", "-A")
	mustRun(t, a, dir, "commit", "-m", "initial commit")
}

func TestToSet(t *testing.T) {
	set := toSet([]string{"a", "b", "a"})
	require.Len(t, set, 2)
	require.True(t, set["a"])
	require.True(t, set["b"])
}

func TestDedupeByKeyPrefersFirstSeen(t *testing.T) {
	subs := []model.SubmoduleReference{
		{Path: "libs/foo", URL: "https://example.com/foo", CommitHash: "aaa"},
		{Path: "libs/foo", URL: "https://example.com/foo", CommitHash: "bbb"},
		{Path: "libs/bar", URL: "https://example.com/bar", CommitHash: "ccc"},
	}
	got := dedupeByKey(subs)
	require.Len(t, got, 2)
	require.Equalf(t, "aaa", got[0].CommitHash, "expected the first-seen entry's commit hash to be kept")
}

func TestMaterializeLocalBranchesCreatesMissingOnly(t *testing.T) {
	a := vcsadapter.New(testLogger())
	origin := t.TempDir()
	initRepo(t, a, origin, map[string]string{"README.md": "hi\n"})
	mustRun(t, a, origin, "checkout", "-b", "dev")
	mustRun(t, a, origin, "checkout", "main")

	clone := t.TempDir()
	mustRun(t, a, filepath.Dir(clone), "clone", origin, clone)

	require.NoError(t, materializeLocalBranches(a, clone, []string{"main", "dev"}))

	p := vcsadapter.NewProbe(a, testLogger())
	branches, err := p.ListBranches(clone)
	require.NoError(t, err)
	require.ElementsMatch(t, []string{"main", "dev"}, branches)
}

func TestDiscoverSubmodulesUnionsAcrossBranches(t *testing.T) {
	a := vcsadapter.New(testLogger())
	p := vcsadapter.NewProbe(a, testLogger())

	fooDir := t.TempDir()
	initRepo(t, a, fooDir, map[string]string{"foo.go": "package foo\n"})
	barDir := t.TempDir()
	initRepo(t, a, barDir, map[string]string{"bar.go": "package bar\n"})

	metaDir := t.TempDir()
	initRepo(t, a, metaDir, map[string]string{"README.md": "meta\n"})
	mustRun(t, a, metaDir, "-c", "protocol.file.allow=always", "submodule", "add", fooDir, "libs/foo")
	mustRun(t, a, metaDir, "commit", "-m", "add foo")

	mustRun(t, a, metaDir, "checkout", "-b", "feature")
	mustRun(t, a, metaDir, "-c", "protocol.file.allow=always", "submodule", "add", barDir, "libs/bar")
	mustRun(t, a, metaDir, "commit", "-m", "add bar")
	mustRun(t, a, metaDir, "checkout", "main")

	subs, err := discoverSubmodules(a, p, metaDir, []string{"main", "feature"})
	require.NoError(t, err)
	deduped := dedupeByKey(subs)
	require.Len(t, deduped, 2)
}

func TestPrepareMonoInitializesFreshWhenNoLocationGiven(t *testing.T) {
	o := &Orchestrator{
		cfg:     Config{},
		log:     testLogger(),
		adapter: vcsadapter.New(testLogger()),
		probe:   vcsadapter.NewProbe(vcsadapter.New(testLogger()), testLogger()),
	}
	sb, err := newSandbox(t.TempDir(), testLogger())
	require.NoError(t, err)

	monoDir, err := o.prepareMono(sb)
	require.NoError(t, err)
	require.Truef(t, pathExists(filepath.Join(monoDir, ".git")), "expected a freshly initialized git repo at %s", monoDir)

	branch, ok, err := o.probe.HeadBranch(monoDir)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "main", branch)
}

func pathExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}

// requireFilterRepo skips the test if git-filter-repo is not installed.
func requireFilterRepo(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git-filter-repo"); err != nil {
		t.Skip("git-filter-repo not found on PATH; skipping end-to-end orchestrator test")
	}
}

// setTestGitIdentity points GIT_CONFIG_GLOBAL at a throwaway config so
// commits made inside engine-created repositories (which have no
// per-repo identity configured) work regardless of the host's git
// setup, and local-path submodule URLs stay clonable.
func setTestGitIdentity(t *testing.T) {
	t.Helper()
	cfg := filepath.Join(t.TempDir(), "gitconfig")
	content := "[user]\n\temail = t@example.com\n\tname = t\n[protocol \"file\"]\n\tallow = always\n"
	require.NoError(t, os.WriteFile(cfg, []byte(content), 0o644))
	t.Setenv("GIT_CONFIG_GLOBAL", cfg)
}

// TestOrchestratorRunMetaOnlyBranch exercises a full Run() against a
// meta repository with no submodules at all: the migration should
// produce a mono with one branch carrying only the meta's own content.
func TestOrchestratorRunMetaOnlyBranch(t *testing.T) {
	requireFilterRepo(t)
	setTestGitIdentity(t)

	a := vcsadapter.New(testLogger())
	metaDir := t.TempDir()
	initRepo(t, a, metaDir, map[string]string{"README.md": "meta only\n"})

	cfg := Config{
		MetaLocation: metaDir,
		WorkDir:      t.TempDir(),
		Log:          testLogger(),
	}
	o, err := New(cfg)
	require.NoError(t, err)

	result, err := o.Run()
	require.NoError(t, err)
	require.NotNil(t, result.Report)

	// No submodules were ever tracked, so the report aggregator (which
	// folds per-submodule bookkeeping) has nothing to seed; the meta's
	// own content still lands in the mono working tree.
	require.Emptyf(t, result.Report.MonoBranches, "expected an empty report with no submodules imported")

	tree, err := testutil.ListDir(result.MonoDir)
	require.NoError(t, err)
	require.Truef(t, tree.HasPath("README.md"), "expected README.md to be present in the migrated mono, got %v", tree)

	reportPath := filepath.Join(result.MonoDir, "..", "migration_report.json")
	data, err := os.ReadFile(reportPath)
	require.NoError(t, err)

	var rep model.MigrationReport
	require.NoError(t, json.Unmarshal(data, &rep))
	require.Equal(t, "monorepo", rep.MonoName)
}
