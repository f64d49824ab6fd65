package retrieve

import (
	"errors"

	"github.com/lhdtools/lhdretrieve/internal/artifact"
	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/invoke"
	"github.com/lhdtools/lhdretrieve/internal/parse"
)

// The retrieval sequence fails in exactly four ways. These predicates
// let the call boundary handle each kind exhaustively; note a single
// returned error can match two of them when a cleanup failure was
// recorded alongside an earlier execution or parse failure.

// IsNotFound reports whether err carries a missing-executable failure.
func IsNotFound(err error) bool {
	var nf *env.NotFoundError
	return errors.As(err, &nf)
}

// IsExecution reports whether err carries a tool invocation failure.
func IsExecution(err error) bool {
	var ee *invoke.ExecutionError
	return errors.As(err, &ee)
}

// IsParse reports whether err carries an output-file parse failure.
func IsParse(err error) bool {
	var pe *parse.ParseError
	return errors.As(err, &pe)
}

// IsCleanup reports whether err carries an artifact deletion failure.
func IsCleanup(err error) bool {
	var ce *artifact.CleanupError
	return errors.As(err, &ce)
}

// isExecutionError is the retry predicate: a pure execution failure with
// no cleanup failure riding along.
func isExecutionError(err error) bool {
	return IsExecution(err) && !IsCleanup(err)
}
