package orchestrator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestValidateExistingMonoAllowsKnownEntries(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{".git", "README.md", ".gitignore"} {
		if err := os.Mkdir(filepath.Join(dir, name), 0o755); err != nil {
			t.Fatalf("Mkdir(%s): %v", name, err)
		}
	}
	if err := validateExistingMono(dir); err != nil {
		t.Fatalf("validateExistingMono: %v", err)
	}
}

func TestValidateExistingMonoRejectsUnexpectedEntries(t *testing.T) {
	dir := t.TempDir()
	if err := os.Mkdir(filepath.Join(dir, "src"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	if err := validateExistingMono(dir); err == nil {
		t.Fatalf("expected an error for an unexpected top-level entry")
	}
}

func TestNewSandboxCreatesUniqueDirectories(t *testing.T) {
	base := t.TempDir()
	log := logrus.NewEntry(logrus.StandardLogger())

	a, err := newSandbox(base, log)
	if err != nil {
		t.Fatalf("newSandbox: %v", err)
	}
	b, err := newSandbox(base, log)
	if err != nil {
		t.Fatalf("newSandbox: %v", err)
	}
	defer a.cleanup()
	defer b.cleanup()

	if a.root == b.root {
		t.Fatalf("expected distinct sandbox roots, got %q twice", a.root)
	}
	if _, err := os.Stat(a.root); err != nil {
		t.Fatalf("expected sandbox root to exist: %v", err)
	}

	nested := a.path("meta", "sub")
	want := filepath.Join(a.root, "meta", "sub")
	if nested != want {
		t.Fatalf("path() = %q, want %q", nested, want)
	}
}

func TestSandboxCleanupScratchKeepsMono(t *testing.T) {
	log := logrus.NewEntry(logrus.StandardLogger())
	sb, err := newSandbox(t.TempDir(), log)
	if err != nil {
		t.Fatalf("newSandbox: %v", err)
	}

	for _, dir := range []string{"meta", "submodules", "mono"} {
		if err := os.MkdirAll(sb.path(dir), 0o755); err != nil {
			t.Fatalf("MkdirAll(%s): %v", dir, err)
		}
	}
	if err := os.WriteFile(sb.path("migration_report.json"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	sb.cleanupScratch()

	if _, err := os.Stat(sb.path("meta")); !os.IsNotExist(err) {
		t.Fatalf("expected meta scratch dir to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(sb.path("submodules")); !os.IsNotExist(err) {
		t.Fatalf("expected submodules scratch dir to be removed, stat err = %v", err)
	}
	if _, err := os.Stat(sb.path("mono")); err != nil {
		t.Fatalf("expected mono to survive cleanupScratch: %v", err)
	}
	if _, err := os.Stat(sb.path("migration_report.json")); err != nil {
		t.Fatalf("expected the report file to survive cleanupScratch: %v", err)
	}
}
