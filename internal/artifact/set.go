// Package artifact tracks the temporary files one invocation of the
// retrieval tool produces, and guarantees their removal on every exit
// path of a retrieval call.
package artifact

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/multierr"

	"github.com/lhdtools/lhdretrieve/internal/types"
)

// Known output suffixes: sample block, parameter block, time axis, and
// time-axis parameter block.
var suffixes = []string{".dat", ".prm", ".time", ".tprm"}

// Set is the TemporaryArtifactSet for one invocation: the four expected
// file paths, derived deterministically from the request via the tool's
// naming convention (<prefix>.<ext> in the working directory).
type Set struct {
	Dir    string
	Prefix string
}

// NewSet derives the artifact set for a request in the given working
// directory. No files are touched; the set exists before the tool runs
// so that cleanup can cover partial output from a failed invocation.
func NewSet(dir string, req types.RetrievalRequest) Set {
	return Set{Dir: dir, Prefix: req.FilePrefix()}
}

// Dat returns the expected sample-block path.
func (s Set) Dat() string { return filepath.Join(s.Dir, s.Prefix+".dat") }

// Prm returns the expected parameter-block path.
func (s Set) Prm() string { return filepath.Join(s.Dir, s.Prefix+".prm") }

// Time returns the expected time-axis path.
func (s Set) Time() string { return filepath.Join(s.Dir, s.Prefix+".time") }

// Tprm returns the expected time-parameter path.
func (s Set) Tprm() string { return filepath.Join(s.Dir, s.Prefix+".tprm") }

// Paths returns the four expected paths in a fixed order.
func (s Set) Paths() []string {
	return []string{s.Dat(), s.Prm(), s.Time(), s.Tprm()}
}

// Resolve finds the actual file for one of the expected paths. The tool
// sometimes decorates the name between prefix and extension (for example
// appending frame indices), so if the exact path is absent the prefix is
// globbed and the first match in sorted order wins.
func (s Set) Resolve(exact string) (string, bool) {
	if _, err := os.Stat(exact); err == nil {
		return exact, true
	}
	ext := filepath.Ext(exact)
	matches, err := filepath.Glob(filepath.Join(s.Dir, s.Prefix+"*"+ext))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

// CleanupError reports artifact paths that could not be deleted. It never
// masks the error that preceded it; the orchestrator aggregates both.
type CleanupError struct {
	Remaining []string
	err       error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("failed to remove %d artifact file(s) (%s): %v",
		len(e.Remaining), strings.Join(e.Remaining, ", "), e.err)
}

func (e *CleanupError) Unwrap() error { return e.err }

// Cleanup removes every file the invocation may have produced: the four
// expected paths plus any prefix-matched spillover (decorated names,
// *.tmp scratch files). Missing files are fine; a file that exists but
// cannot be removed makes the whole call fail with a *CleanupError.
func (s Set) Cleanup() error {
	if s.Prefix == "" {
		return nil
	}

	seen := make(map[string]bool)
	var targets []string
	for _, p := range s.Paths() {
		seen[p] = true
		targets = append(targets, p)
	}
	// Glob is best-effort; the fixed paths above are always attempted.
	if matches, err := filepath.Glob(filepath.Join(s.Dir, s.Prefix+"*")); err == nil {
		for _, m := range matches {
			if !seen[m] {
				seen[m] = true
				targets = append(targets, m)
			}
		}
	}

	var errs error
	var remaining []string
	for _, p := range targets {
		err := os.Remove(p)
		if err == nil || os.IsNotExist(err) {
			continue
		}
		errs = multierr.Append(errs, err)
		remaining = append(remaining, p)
	}

	if errs != nil {
		return &CleanupError{Remaining: remaining, err: errs}
	}

	// Deletion must be confirmed, not assumed: a path that still exists
	// after Remove reported success is a failure.
	for _, p := range s.Paths() {
		if _, err := os.Stat(p); err == nil {
			return &CleanupError{
				Remaining: []string{p},
				err:       fmt.Errorf("artifact still present after removal: %s", p),
			}
		}
	}
	return nil
}
