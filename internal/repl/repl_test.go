package repl

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lhdtools/lhdretrieve/internal/env"
	"github.com/lhdtools/lhdretrieve/internal/retrieve"
)

func newTestREPL(t *testing.T) (*REPL, *bytes.Buffer) {
	t.Helper()

	info := env.Detect()
	locator := env.NewLocator(info, env.WithExtraCandidates([]string{"/nonexistent/Retrieve.exe"}))
	rt, err := retrieve.New(retrieve.Options{Locator: locator})
	require.NoError(t, err)

	r, err := New(Config{Retriever: rt, EnvInfo: info, Locator: locator})
	require.NoError(t, err)

	var out bytes.Buffer
	r.out = &out
	r.ctx = context.Background()
	return r, &out
}

func TestProcessInput_Show(t *testing.T) {
	r, out := newTestREPL(t)

	require.NoError(t, r.processInput("show Magnetics 48000 1 32"))
	assert.Contains(t, out.String(), "Retrieve Magnetics 48000 1 32 -T")
}

func TestProcessInput_Help(t *testing.T) {
	r, out := newTestREPL(t)

	require.NoError(t, r.processInput("help"))
	assert.Contains(t, out.String(), "get <diag>")
}

func TestProcessInput_Env(t *testing.T) {
	r, out := newTestREPL(t)

	require.NoError(t, r.processInput("env"))
	assert.Contains(t, out.String(), "host:")
}

func TestProcessInput_Unknown(t *testing.T) {
	r, _ := newTestREPL(t)

	err := r.processInput("frobnicate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
}

func TestProcessInput_GetBadArgs(t *testing.T) {
	r, _ := newTestREPL(t)

	err := r.processInput("get Magnetics notanumber 1 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shot must be an integer")
}

func TestParseRequest(t *testing.T) {
	req, err := parseRequest([]string{"Magnetics", "48000", "1", "32"})
	require.NoError(t, err)
	assert.Equal(t, "Magnetics", req.DiagName)
	assert.Equal(t, 48000, req.Shot)
	assert.True(t, req.TimeAxis)

	_, err = parseRequest([]string{"Magnetics", "48000"})
	require.Error(t, err)
}
