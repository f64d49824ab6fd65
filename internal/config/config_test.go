package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
retrieve_path: /mnt/c/LABCOM/Retrieve/bin/Retrieve.exe
working_dir: /tmp/lhd-work
timeout_seconds: 60
extra_candidate_paths:
  - /opt/retrieve/Retrieve.exe
history_db: /tmp/history.db
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/mnt/c/LABCOM/Retrieve/bin/Retrieve.exe", cfg.RetrievePath)
	assert.Equal(t, "/tmp/lhd-work", cfg.WorkingDir)
	assert.Equal(t, 60*time.Second, cfg.Timeout())
	assert.Equal(t, []string{"/opt/retrieve/Retrieve.exe"}, cfg.ExtraCandidatePaths)
	assert.Equal(t, "/tmp/history.db", cfg.HistoryDB)
}

func TestLoad_ExplicitFileMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("working_dir: /data\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/data", cfg.WorkingDir)
	assert.Equal(t, 300*time.Second, cfg.Timeout())
}

func TestLoad_MalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("working_dir: [unclosed\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoad_NegativeTimeout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("timeout_seconds: -1\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 300, cfg.TimeoutSeconds)
}
