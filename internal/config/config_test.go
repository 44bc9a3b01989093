package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "parlift.toml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)

	assert.Equal(t, "generated", cfg.Paths.Destination)
	assert.Equal(t, "parallelme", cfg.Runtime.Preferred)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.False(t, cfg.DB.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
version = 1

[paths]
destination = "out"

[runtime]
preferred = "renderscript"

[db]
enabled = true
path = "runs.db"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.Paths.Destination)
	assert.Equal(t, "renderscript", cfg.Runtime.Preferred)
	assert.True(t, cfg.DB.Enabled)
	assert.Equal(t, "runs.db", cfg.DB.Path)
}

func TestLoadRejectsUnknownRuntime(t *testing.T) {
	path := writeConfig(t, `
[runtime]
preferred = "cuda"
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "runtime.preferred")
}

func TestLoadRejectsUnknownVersion(t *testing.T) {
	path := writeConfig(t, "version = 9\n")
	_, err := Load(path)
	require.Error(t, err)
}
