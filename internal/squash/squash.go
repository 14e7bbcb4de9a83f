// Package squash implements the post-migration bookkeeping-commit
// squash pass: collapsing the contiguous run of engine-authored
// commits at each branch's tip into one commit, so a branch reads as
// "one real import" instead of a pile of mechanical bookkeeping steps.
package squash

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/monomerge/monomerge/internal/model"
	"github.com/monomerge/monomerge/internal/vcsadapter"
)

const recordSep = "\x1f"

// logEntry is one line of first-parent log history.
type logEntry struct {
	hash    string
	subject string
	body    string
}

// squashState is the state machine driving classifyRun, walked HEAD-first.
type squashState int

const (
	stateNotFound squashState = iota
	stateFoundMarker
	stateFoundNonMarker
)

// BranchSquashability is the per-branch outcome of CheckSquashable.
type BranchSquashability struct {
	Squashable bool
	Range      model.CommitRange
	Reason     string // populated when Squashable is false
}

// Pass runs the squash state machine against a repository.
type Pass struct {
	Adapter *vcsadapter.Adapter
	Log     *logrus.Entry
}

// New returns a Pass backed by adapter.
func New(adapter *vcsadapter.Adapter, log *logrus.Entry) *Pass {
	if log == nil {
		log = adapter.Log
	}
	return &Pass{Adapter: adapter, Log: log}
}

// CheckSquashable computes, for every branch in branches, whether all
// bookkeeping-marker commits at its tip are contiguous.
// The state machine transitions NOT_FOUND -> FOUND_MARKER ->
// FOUND_NON_MARKER; a transition from FOUND_NON_MARKER back to a
// marker commit, or the absence of a marker at HEAD, marks the branch
// not squashable.
func (p *Pass) CheckSquashable(repo string, branches []string) (map[string]BranchSquashability, error) {
	out := make(map[string]BranchSquashability, len(branches))
	for _, b := range branches {
		entries, err := p.firstParentLog(repo, b)
		if err != nil {
			return nil, fmt.Errorf("branch %q: %w", b, err)
		}
		out[b] = classifyRun(entries)
	}
	return out, nil
}

func classifyRun(entries []logEntry) BranchSquashability {
	if len(entries) == 0 {
		return BranchSquashability{Reason: "branch has no commits"}
	}

	state := stateNotFound
	var head, tail string

	for _, e := range entries {
		isMarker := strings.HasPrefix(e.subject, model.BookkeepingMarker)
		switch state {
		case stateNotFound:
			if !isMarker {
				return BranchSquashability{Reason: "no bookkeeping marker at HEAD"}
			}
			state = stateFoundMarker
			head = e.hash
			tail = e.hash
		case stateFoundMarker:
			if isMarker {
				tail = e.hash
				continue
			}
			state = stateFoundNonMarker
		case stateFoundNonMarker:
			if isMarker {
				return BranchSquashability{Reason: "bookkeeping markers are not contiguous at the tip"}
			}
		}
	}

	if state == stateNotFound {
		return BranchSquashability{Reason: "no bookkeeping marker at HEAD"}
	}
	return BranchSquashability{Squashable: true, Range: model.CommitRange{Head: head, Tail: tail}}
}

// SquashCommits collapses the commit range [tail, head] (inclusive,
// first-parent-contiguous) into a single commit, titled title with
// body description followed by a "---" separator and the original
// commits' subjects/bodies in oldest-to-newest order, and resets the
// branch so its tip becomes that one commit.
func (p *Pass) SquashCommits(repo string, r model.CommitRange, title, description string) error {
	// Re-verify contiguity immediately before mutating anything.
	entries, err := p.rangeLog(repo, r.Tail+"^", r.Head)
	if err != nil {
		return fmt.Errorf("verifying squash range contiguity: %w", err)
	}
	if len(entries) == 0 {
		return fmt.Errorf("squash range %s..%s is empty", r.Tail, r.Head)
	}
	if entries[len(entries)-1].hash != r.Head {
		return fmt.Errorf("squash range %s..%s does not end at expected head", r.Tail, r.Head)
	}

	msg := buildSquashMessage(title, description, entries)

	msgFile, err := os.CreateTemp("", "monomerge-squash-*.txt")
	if err != nil {
		return err
	}
	defer os.Remove(msgFile.Name())
	if _, err := msgFile.WriteString(msg); err != nil {
		msgFile.Close()
		return err
	}
	if err := msgFile.Close(); err != nil {
		return err
	}

	if _, err := p.Adapter.Run(repo, false, "reset", "--soft", r.Tail+"^"); err != nil {
		return err
	}
	if _, err := p.Adapter.Run(repo, false, "commit", "--file", msgFile.Name()); err != nil {
		return err
	}
	return nil
}

// buildSquashMessage lays out title, description, a "---" separator,
// and every collapsed commit's subject (+ body, if any) in
// oldest-to-newest order — the order in which the commits were
// originally authored, so the squashed message reads as a narrative of
// the import rather than a rewind of it.
func buildSquashMessage(title, description string, entries []logEntry) string {
	var b strings.Builder
	b.WriteString(title)
	b.WriteString("\n\n")
	if description != "" {
		b.WriteString(description)
		b.WriteString("\n\n")
	}
	b.WriteString("---\n")
	for _, e := range entries {
		b.WriteString(e.subject)
		b.WriteString("\n")
		if e.body != "" {
			b.WriteString(e.body)
			b.WriteString("\n")
		}
	}
	return strings.TrimRight(b.String(), "\n") + "\n"
}

// firstParentLog returns branch's first-parent history, HEAD-first
// (newest to oldest).
func (p *Pass) firstParentLog(repo, branch string) ([]logEntry, error) {
	return p.log(repo, []string{"log", "--first-parent", "--format=%H" + recordSep + "%s" + recordSep + "%b" + recordSep + recordSep, branch})
}

// rangeLog returns the first-parent history strictly after from up to
// and including to, oldest-to-newest (so entries[len-1] is `to`).
func (p *Pass) rangeLog(repo, from, to string) ([]logEntry, error) {
	entries, err := p.log(repo, []string{"log", "--first-parent", "--reverse", "--format=%H" + recordSep + "%s" + recordSep + "%b" + recordSep + recordSep, from + ".." + to})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (p *Pass) log(repo string, args []string) ([]logEntry, error) {
	res, err := p.Adapter.Run(repo, false, args...)
	if err != nil {
		return nil, err
	}
	// Each record is "<hash>␟<subject>␟<body>␟␟" plus a newline. An empty
	// body puts three separators in a row, so records are read as groups
	// of four separator-delimited fields rather than split on the
	// doubled terminator.
	fields := strings.Split(res.Stdout, recordSep)
	var out []logEntry
	for i := 0; i+3 < len(fields); i += 4 {
		out = append(out, logEntry{
			hash:    strings.TrimSpace(fields[i]),
			subject: fields[i+1],
			body:    strings.TrimSpace(fields[i+2]),
		})
	}
	return out, nil
}
