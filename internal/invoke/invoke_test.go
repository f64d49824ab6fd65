package invoke

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhdtools/lhdretrieve/internal/artifact"
	"github.com/lhdtools/lhdretrieve/internal/types"
)

func testRequest() types.RetrievalRequest {
	return types.RetrievalRequest{DiagName: "Magnetics", Shot: 48000, Subshot: 1, Channel: 1}
}

// writeFakeTool writes a shell script standing in for the retrieval
// executable. The script body sees the usual positional parameters
// ($1=diag ... $5=prefix).
func writeFakeTool(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tool scripts require a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "retrieve-fake")
	script := "#!/bin/sh\n" + body + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func TestArgs(t *testing.T) {
	frame := 4
	req := testRequest()
	req.TimeAxis = true
	req.FrameNumber = &frame

	got := Args(req, "retrieve_Magnetics_48000_1_1")
	want := []string{"Magnetics", "48000", "1", "1", "retrieve_Magnetics_48000_1_1", "-T", "-f", "4"}
	assert.Equal(t, want, got)
}

func TestInvoker_Run_Success(t *testing.T) {
	workDir := t.TempDir()
	tool := writeFakeTool(t, `touch "$5.dat" "$5.prm"`)

	req := testRequest()
	set := artifact.NewSet(workDir, req)
	iv := &Invoker{ExePath: tool, WorkDir: workDir}

	require.NoError(t, iv.Run(context.Background(), req, set))

	// The tool ran in the working directory, so the artifacts are there.
	_, err := os.Stat(set.Dat())
	assert.NoError(t, err)
}

func TestInvoker_Run_NonZeroExit(t *testing.T) {
	workDir := t.TempDir()
	tool := writeFakeTool(t, `echo "shot not found on server" >&2; exit 3`)

	req := testRequest()
	iv := &Invoker{ExePath: tool, WorkDir: workDir}

	err := iv.Run(context.Background(), req, artifact.NewSet(workDir, req))
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr), "want *ExecutionError, got %T", err)
	assert.Equal(t, 3, execErr.ExitCode)
	assert.Contains(t, execErr.Stderr, "shot not found")
	assert.Contains(t, execErr.Cmd, "Magnetics 48000 1 1")
}

func TestInvoker_Run_StartFailure(t *testing.T) {
	workDir := t.TempDir()
	req := testRequest()
	iv := &Invoker{ExePath: filepath.Join(workDir, "no-such-tool"), WorkDir: workDir}

	err := iv.Run(context.Background(), req, artifact.NewSet(workDir, req))
	require.Error(t, err)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr), "want *ExecutionError, got %T", err)
	assert.Equal(t, -1, execErr.ExitCode)
}

func TestInvoker_Run_Timeout(t *testing.T) {
	workDir := t.TempDir()
	tool := writeFakeTool(t, `sleep 30`)

	req := testRequest()
	iv := &Invoker{ExePath: tool, WorkDir: workDir, Timeout: 100 * time.Millisecond}

	start := time.Now()
	err := iv.Run(context.Background(), req, artifact.NewSet(workDir, req))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 10*time.Second)

	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr), "want *ExecutionError, got %T", err)
	assert.ErrorIs(t, execErr.Err, context.DeadlineExceeded)
}

func TestBoundedBuffer_Truncates(t *testing.T) {
	b := boundedBuffer{max: 10}
	n, err := b.Write([]byte(strings.Repeat("x", 100)))
	require.NoError(t, err)
	assert.Equal(t, 100, n)
	assert.Len(t, b.String(), 10)
}
