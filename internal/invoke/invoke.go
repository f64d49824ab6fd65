// Package invoke runs the external retrieval tool as a subprocess and
// maps its outcome onto a typed error.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/lhdtools/lhdretrieve/internal/artifact"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

// DefaultTimeout bounds one tool invocation. Large shots stream for a
// while; five minutes matches the facility tooling's own limit.
const DefaultTimeout = 5 * time.Minute

// maxStderrCapture bounds how much tool stderr is kept for the error
// message.
const maxStderrCapture = 8 * 1024

// ExecutionError reports a tool invocation that failed to start, exited
// non-zero, or was killed by the context deadline.
type ExecutionError struct {
	Cmd      string
	ExitCode int // -1 when the process never ran or was killed
	Stderr   string
	Err      error
}

func (e *ExecutionError) Error() string {
	msg := fmt.Sprintf("retrieve command failed (exit %d): %s", e.ExitCode, e.Cmd)
	if e.Stderr != "" {
		msg += "\nstderr: " + e.Stderr
	}
	if e.Err != nil {
		msg += fmt.Sprintf("\ncause: %v", e.Err)
	}
	return msg
}

func (e *ExecutionError) Unwrap() error { return e.Err }

// Invoker executes the retrieval tool. No retries happen at this layer;
// retry policy belongs to the caller.
type Invoker struct {
	// ExePath is the resolved retrieval executable.
	ExePath string
	// WorkDir is where the tool writes its output files.
	WorkDir string
	// Timeout bounds one invocation; zero means DefaultTimeout.
	Timeout time.Duration
	// Logger receives debug output; nil means slog.Default().
	Logger *slog.Logger
}

// Args builds the tool's command line for a request:
//
//	Retrieve DiagName ShotNo SubShotNo ChNo FilePrefix [-T] [-f N]
func Args(req types.RetrievalRequest, prefix string) []string {
	args := []string{
		req.DiagName,
		strconv.Itoa(req.Shot),
		strconv.Itoa(req.Subshot),
		strconv.Itoa(req.Channel),
		prefix,
	}
	if req.TimeAxis {
		args = append(args, "-T")
	}
	if req.FrameNumber != nil {
		args = append(args, "-f", strconv.Itoa(*req.FrameNumber))
	}
	return args
}

// Run executes the tool for a request and waits for completion. The
// artifact set tells the tool which file prefix to write; Run does not
// read or delete any of the produced files.
func (iv *Invoker) Run(ctx context.Context, req types.RetrievalRequest, set artifact.Set) error {
	logger := iv.Logger
	if logger == nil {
		logger = slog.Default()
	}

	timeout := iv.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	args := Args(req, set.Prefix)
	cmd := exec.CommandContext(ctx, iv.ExePath, args...)
	cmd.Dir = iv.WorkDir
	// A child holding the stderr pipe open must not stall Wait past the
	// deadline.
	cmd.WaitDelay = 3 * time.Second

	var stderr boundedBuffer
	stderr.max = maxStderrCapture
	cmd.Stderr = &stderr

	cmdline := iv.ExePath + " " + strings.Join(args, " ")
	logger.Debug("running retrieve tool", "cmd", cmdline, "dir", iv.WorkDir)

	start := time.Now()
	err := cmd.Run()
	logger.Debug("retrieve tool finished", "duration", time.Since(start), "err", err)

	if err == nil {
		return nil
	}

	execErr := &ExecutionError{
		Cmd:      cmdline,
		ExitCode: -1,
		Stderr:   strings.TrimSpace(stderr.String()),
		Err:      err,
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		execErr.ExitCode = exitErr.ExitCode()
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		// Deadline or cancellation killed the process; report that as the
		// cause rather than the opaque "signal: killed".
		execErr.Err = ctxErr
	}
	return execErr
}

// boundedBuffer keeps at most max bytes and silently drops the rest, so a
// chatty tool cannot balloon an error message.
type boundedBuffer struct {
	max int
	buf []byte
}

func (b *boundedBuffer) Write(p []byte) (int, error) {
	remaining := b.max - len(b.buf)
	if remaining > 0 {
		if len(p) < remaining {
			b.buf = append(b.buf, p...)
		} else {
			b.buf = append(b.buf, p[:remaining]...)
		}
	}
	return len(p), nil
}

func (b *boundedBuffer) String() string { return string(b.buf) }
