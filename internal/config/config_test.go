package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate points every config search path at an empty temp dir.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, ".config"))
	for _, key := range []string{"VAULTX_VAULT_DIR", "VAULTX_BACKEND", "VAULTX_SEALED", "VAULTX_AUTO_LOCK", "VAULTX_LOG_LEVEL", "VAULTX_GENERATOR_LENGTH"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	return dir
}

func writeFile(t *testing.T, dir, body string) string {
	t.Helper()
	path := filepath.Join(dir, "vaultx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("backend", BackendFile, "")
	cmd.Flags().Int("length", 16, "")
	cmd.Flags().Bool("symbols", true, "")
	return cmd
}

func TestLoad_Defaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load(nil, "")
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".vaultx"), cfg.VaultDir)
	assert.Equal(t, BackendFile, cfg.Backend)
	assert.False(t, cfg.Sealed)
	assert.Equal(t, DefaultAutoLock, cfg.AutoLock)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, Generator{Length: 16, Upper: true, Lower: true, Digits: true, Symbols: true}, cfg.Generator)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, `
vault_dir: /tmp/vx
backend: sqlite
sealed: true
auto_lock: 2m
generator:
  length: 24
  symbols: false
`)

	cfg, err := Load(nil, path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/vx", cfg.VaultDir)
	assert.Equal(t, BackendSQLite, cfg.Backend)
	assert.True(t, cfg.Sealed)
	assert.Equal(t, 2*time.Minute, cfg.AutoLock)
	assert.Equal(t, 24, cfg.Generator.Length)
	assert.False(t, cfg.Generator.Symbols)
	assert.True(t, cfg.Generator.Upper, "unset keys keep defaults")
}

func TestLoad_UserConfigDir(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME is only honoured on linux")
	}
	dir := isolate(t)
	cfgDir := filepath.Join(dir, ".config", FileName)
	require.NoError(t, os.MkdirAll(cfgDir, 0o700))
	writeFile(t, cfgDir, "backend: sqlite\n")

	cfg, err := Load(nil, "")
	require.NoError(t, err)
	assert.Equal(t, BackendSQLite, cfg.Backend)
}

func TestLoad_Precedence(t *testing.T) {
	dir := isolate(t)
	path := writeFile(t, dir, "backend: sqlite\ngenerator:\n  length: 20\n")

	t.Run("env overrides file", func(t *testing.T) {
		t.Setenv("VAULTX_GENERATOR_LENGTH", "30")

		cfg, err := Load(nil, path)
		require.NoError(t, err)
		assert.Equal(t, 30, cfg.Generator.Length)
		assert.Equal(t, BackendSQLite, cfg.Backend)
	})

	t.Run("changed flag overrides env", func(t *testing.T) {
		t.Setenv("VAULTX_GENERATOR_LENGTH", "30")
		cmd := newCmd()
		require.NoError(t, cmd.Flags().Set("length", "40"))

		cfg, err := Load(cmd, path)
		require.NoError(t, err)
		assert.Equal(t, 40, cfg.Generator.Length)
	})

	t.Run("unchanged flag keeps file value", func(t *testing.T) {
		cfg, err := Load(newCmd(), path)
		require.NoError(t, err)
		assert.Equal(t, BackendSQLite, cfg.Backend)
		assert.Equal(t, 20, cfg.Generator.Length)
	})
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	t.Run("missing explicit file", func(t *testing.T) {
		_, err := Load(nil, filepath.Join(dir, "absent.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid backend", func(t *testing.T) {
		path := writeFile(t, dir, "backend: postgres\n")
		_, err := Load(nil, path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})

	t.Run("negative auto lock", func(t *testing.T) {
		path := writeFile(t, dir, "auto_lock: -1m\n")
		_, err := Load(nil, path)
		assert.ErrorIs(t, err, ErrInvalidConfig)
	})
}

func TestWrite(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "nested", "vaultx.yaml")

	want := &Config{
		VaultDir:  filepath.Join(dir, "data"),
		Backend:   BackendSQLite,
		Sealed:    true,
		AutoLock:  90 * time.Second,
		LogLevel:  "debug",
		Generator: Generator{Length: 32, Lower: true, Digits: true},
	}

	written, err := Write(want, path)
	require.NoError(t, err)
	assert.Equal(t, path, written)

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	}

	got, err := Load(nil, path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestExpandHome(t *testing.T) {
	home := isolate(t)

	assert.Equal(t, filepath.Join(home, "vault"), expandHome("~/vault"))
	assert.Equal(t, home, expandHome("~"))
	assert.Equal(t, "/abs", expandHome("/abs"))
	assert.Equal(t, "~user/x", expandHome("~user/x"))
}
