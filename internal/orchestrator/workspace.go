package orchestrator

import (
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/monomerge/monomerge/internal/mmerrors"
)

// allowedExistingMonoEntries are the only top-level entries tolerated
// in a caller-supplied, non-empty mono directory.
var allowedExistingMonoEntries = map[string]bool{
	".git":           true,
	"README":         true,
	"README.md":      true,
	".gitignore":     true,
	".gitattributes": true,
}

// sandbox is the per-run scratch workspace: a root directory under
// which the meta clone, the mono (newly created or cloned from
// --mono), and every submodule's scratch/isolated clones live.
type sandbox struct {
	root string
	log  *logrus.Entry
}

func newSandbox(baseDir string, log *logrus.Entry) (*sandbox, error) {
	root := filepath.Join(baseDir, "monomerge-run-"+uuid.NewString())
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &sandbox{root: root, log: log}, nil
}

func (s *sandbox) path(parts ...string) string {
	return filepath.Join(append([]string{s.root}, parts...)...)
}

// cleanup recursively removes the whole sandbox, mono included. Only
// safe to call on a path that produced no durable mono (a --dump-log
// or --dump-template exit, or a --check-squashable run against a
// disposable clone) — a run that actually built a mono uses
// cleanupScratch instead.
func (s *sandbox) cleanup() {
	if err := os.RemoveAll(s.root); err != nil {
		s.log.WithError(err).Warn("failed to remove sandbox workspace")
	}
}

// cleanupScratch removes everything but the mono: the meta clone and
// every submodule scratch/isolated clone. Called once a migration
// succeeds, so the mono survives for the caller while the rest of the
// sandbox (which can be large — a full clone of the meta plus one
// scratch clone per submodule) doesn't linger on disk. On error, the
// orchestrator leaves the whole sandbox untouched for inspection.
func (s *sandbox) cleanupScratch() {
	for _, name := range []string{"meta", "submodules"} {
		if err := os.RemoveAll(s.path(name)); err != nil {
			s.log.WithError(err).WithField("dir", name).Warn("failed to remove scratch workspace")
		}
	}
}

// validateExistingMono rejects a pre-supplied mono directory unless
// every top-level entry is in allowedExistingMonoEntries.
func validateExistingMono(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var unexpected []string
	for _, e := range entries {
		if !allowedExistingMonoEntries[e.Name()] {
			unexpected = append(unexpected, e.Name())
		}
	}
	if len(unexpected) > 0 {
		return mmerrors.NewConfigError("mono directory %s is not empty; unexpected entries: %v", dir, unexpected)
	}
	return nil
}
