package main

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigInitShow(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.home, "conf", "vaultx.yaml")

	out := h.mustRun("", "--config", path, "--backend", "sqlite", "--sealed", "config", "init")
	assert.Contains(t, out, "Wrote "+path)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	_, _, err := h.run("", "--config", path, "config", "init")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	// the harness passes --vault-dir, so the file records it
	out = h.mustRun("", "--config", path, "config", "show")
	assert.Contains(t, out, "backend: sqlite")
	assert.Contains(t, out, "sealed: true")
	assert.Contains(t, out, "vault_dir: "+h.dir)
	assert.Contains(t, out, "length: 16")

	h.mustRun("", "--config", path, "--backend", "file", "config", "init", "--force")
	out = h.mustRun("", "--config", path, "config", "show")
	assert.Contains(t, out, "backend: file")
}

func TestConfig_MissingExplicitFile(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.run("", "--config", filepath.Join(h.home, "nope.yaml"), "list")
	require.Error(t, err)
}

func TestConfig_Environment(t *testing.T) {
	h := newHarness(t)
	t.Setenv("VAULTX_GENERATOR_LENGTH", "30")

	out := h.mustRun("", "config", "show")
	assert.Contains(t, out, "length: 30")
}
