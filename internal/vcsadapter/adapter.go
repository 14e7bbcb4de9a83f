// Package vcsadapter is the narrow command interface over the local
// git executable plus the read-only repository probe built on top of
// it.
//
// Every git invocation in the rest of the engine goes through
// Adapter.Run, in the same shape as kubernetes-sigs-prow's git
// interactor: one call site per logical git operation, stdout/stderr
// captured and logged, errors wrapped with the failing command.
package vcsadapter

import (
	"bytes"
	"fmt"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"
)

// Result is the captured outcome of one command invocation.
type Result struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// VcsError is returned by Run when a command exits non-zero and the
// caller did not set allowFailure.
type VcsError struct {
	Cmd      []string
	Dir      string
	ExitCode int
	Stdout   string
	Stderr   string
}

func (e *VcsError) Error() string {
	return fmt.Sprintf("vcs: command failed (dir=%s, exit=%d): %s\nstdout: %s\nstderr: %s",
		e.Dir, e.ExitCode, strings.Join(e.Cmd, " "), e.Stdout, e.Stderr)
}

// Adapter runs git commands in a given working directory. It holds no
// per-repository state; callers pass the working directory on every
// call, which lets one Adapter serve the mono, the meta clone, every
// submodule scratch clone, and every isolated single-branch clone.
type Adapter struct {
	// Bin is the git executable to invoke. Defaults to "git".
	Bin string
	Log *logrus.Entry
}

// New returns an Adapter that shells out to the "git" binary on PATH.
func New(log *logrus.Entry) *Adapter {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Adapter{Bin: "git", Log: log}
}

// Run executes `git <args...>` in dir. On a non-zero exit with
// allowFailure false, it fails with a *VcsError carrying the command
// and captured streams; with allowFailure true, the non-zero exit is
// returned in Result.ExitCode and err is nil.
func (a *Adapter) Run(dir string, allowFailure bool, args ...string) (Result, error) {
	bin := a.Bin
	if bin == "" {
		bin = "git"
	}
	entry := a.Log.WithField("dir", dir).WithField("args", args)
	entry.Debug("running git command")

	cmd := exec.Command(bin, args...)
	cmd.Dir = dir
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	exitCode := 0
	if runErr != nil {
		if exitErr, ok := runErr.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return Result{}, fmt.Errorf("vcs: failed to start %s %s in %s: %w", bin, strings.Join(args, " "), dir, runErr)
		}
	}

	result := Result{ExitCode: exitCode, Stdout: stdout.String(), Stderr: stderr.String()}
	if exitCode != 0 {
		entry.WithField("exit", exitCode).WithField("stderr", result.Stderr).Debug("git command exited non-zero")
		if !allowFailure {
			return result, &VcsError{
				Cmd:      append([]string{bin}, args...),
				Dir:      dir,
				ExitCode: exitCode,
				Stdout:   result.Stdout,
				Stderr:   result.Stderr,
			}
		}
	}
	return result, nil
}
