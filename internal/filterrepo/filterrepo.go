// Package filterrepo wraps the external history-rewriting tool as the
// opaque subprocess collaborator it is meant to be: a single
// invocation that moves every path in a repository's history beneath a
// prefix, preserving all commits. The engine never inspects or
// reimplements its internals.
package filterrepo

import (
	"fmt"
	"os/exec"

	"github.com/sirupsen/logrus"
)

// Tool invokes the configured history-rewriting binary.
type Tool struct {
	// Bin is the executable to run. Defaults to "git-filter-repo" but
	// is overridable (see --filter-repo-bin in cmd/monomerge) since
	// some installs ship it as a git subcommand or a wrapper script.
	Bin string
	Log *logrus.Entry
}

// New returns a Tool that shells out to bin (or "git-filter-repo" if
// bin is empty).
func New(bin string, log *logrus.Entry) *Tool {
	if bin == "" {
		bin = "git-filter-repo"
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Tool{Bin: bin, Log: log}
}

// CheckAvailable returns an error if the tool cannot be found on PATH,
// so the orchestrator can preflight it before any write happens (it
// reports that error as a Configuration error).
func (t *Tool) CheckAvailable() error {
	if _, err := exec.LookPath(t.Bin); err != nil {
		return fmt.Errorf("history-rewriting tool %q not found on PATH: %w", t.Bin, err)
	}
	return nil
}

// ToSubdirectory rewrites every commit in the repository at dir so its
// tree lives under subdirectory, invoking the tool with
// `--force --to-subdirectory-filter <path>`.
func (t *Tool) ToSubdirectory(dir, subdirectory string) error {
	t.Log.WithField("dir", dir).WithField("subdirectory", subdirectory).Info("rewriting history into subdirectory")
	cmd := exec.Command(t.Bin, "--force", "--to-subdirectory-filter", subdirectory)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("history-rewriting tool failed (dir=%s, subdirectory=%s): %w\noutput: %s", dir, subdirectory, err, string(out))
	}
	return nil
}
