package orchestrator

import (
	"encoding/json"
	"os"
	"sort"

	"github.com/monomerge/monomerge/internal/mmerrors"
	"github.com/monomerge/monomerge/internal/model"
)

// StrategyEntry is one submodule's migration policy: which URL is
// expected, and whether its branches should be consumed at all.
type StrategyEntry struct {
	URL             string `json:"url"`
	ConsumeBranches bool   `json:"consumeBranches"`
}

// Strategy maps a submodule's repo-relative path to its policy.
type Strategy map[string]StrategyEntry

// LoadStrategy reads and parses a strategy JSON file. A malformed file
// is a Configuration error.
func LoadStrategy(path string) (Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mmerrors.NewConfigError("reading strategy file %s: %v", path, err)
	}
	var s Strategy
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, mmerrors.NewConfigError("parsing strategy file %s: %v", path, err)
	}
	return s, nil
}

// DumpTemplate builds a strategy template mapping every discovered
// submodule to {url, consumeBranches: true}, the shape `--dump-template`
// writes out.
func DumpTemplate(subs []model.SubmoduleReference) Strategy {
	s := make(Strategy, len(subs))
	for _, sub := range subs {
		s[sub.Path] = StrategyEntry{URL: sub.URL, ConsumeBranches: true}
	}
	return s
}

// WriteStrategy writes s as indented JSON to path.
func WriteStrategy(path string, s Strategy) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Permits reports whether strategy allows importing sub: absent entries
// permit import; a present entry permits import only when
// ConsumeBranches is true and its URL matches the discovered URL. A
// URL mismatch skips the submodule; it is not a fatal error.
func (s Strategy) Permits(sub model.SubmoduleReference) bool {
	entry, ok := s[sub.Path]
	if !ok {
		return true
	}
	return entry.ConsumeBranches && entry.URL == sub.URL
}

// LoadWhitelist reads a branches-whitelist JSON file (a list of branch
// name strings). A malformed file is a Configuration error.
func LoadWhitelist(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, mmerrors.NewConfigError("reading whitelist file %s: %v", path, err)
	}
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return nil, mmerrors.NewConfigError("parsing whitelist file %s: %v", path, err)
	}
	sort.Strings(names)
	return names, nil
}
