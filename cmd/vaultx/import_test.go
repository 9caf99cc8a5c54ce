package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/vaultx/pkg/codec"
	"github.com/forest6511/vaultx/pkg/importer"
)

func TestExportImport_RoundTrip(t *testing.T) {
	for _, format := range []string{"json", "csv", "xlsx"} {
		t.Run(format, func(t *testing.T) {
			src := newHarness(t)
			src.add("github.com", "alice", "pass, with \"quotes\"")
			src.add("example.com", "bob", "hunter2hunter2", "--notes", "line one, line two")

			path := filepath.Join(src.home, "backup."+format)
			out := src.mustRun("", "export", "-f", format, "-o", path)
			assert.Contains(t, out, "Exported 2 entries")

			if runtime.GOOS != "windows" {
				info, err := os.Stat(path)
				require.NoError(t, err)
				assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			}

			dst := newHarness(t)
			out = dst.mustRun("", "import", path)
			assert.Contains(t, out, "Imported 2 entries")

			out = dst.mustRun("", "list")
			assert.Contains(t, out, "github.com")
			assert.Contains(t, out, "example.com")

			// a second import only finds duplicates
			out = dst.mustRun("", "import", path, "--yes")
			assert.Contains(t, out, "Imported 0 entries")
			assert.Contains(t, out, "Skipped 2 duplicates")

			out = dst.mustRun("", "export", "-f", "json", "-o", "-")
			assert.Contains(t, out, `pass, with \"quotes\"`)
			assert.Contains(t, out, "line one, line two")
		})
	}
}

func TestImport_ConfirmNonEmpty(t *testing.T) {
	src := newHarness(t)
	src.add("github.com", "alice", "password-1")
	path := filepath.Join(src.home, "backup.csv")
	src.mustRun("", "export", "-o", path)

	dst := newHarness(t)
	dst.add("other.com", "carol", "password-2")

	out := dst.mustRun("n\n", "import", path)
	assert.Contains(t, out, "Aborted")
	out = dst.mustRun("", "list")
	assert.NotContains(t, out, "github.com")

	out = dst.mustRun("y\n", "import", path)
	assert.Contains(t, out, "Imported 1 entry")
}

func TestImport_SkippedRows(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.home, "logins.csv")
	body := "URL,Login,Pwd\na.com,alice,pw-a\nb.com,,pw-b\nc.com,carol,pw-c\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	out := h.mustRun("", "import", path)
	assert.Contains(t, out, "Imported 2 entries from CSV")
	assert.Contains(t, out, "Rows not read (1)")
}

func TestImport_Errors(t *testing.T) {
	h := newHarness(t)

	txt := filepath.Join(h.home, "notes.txt")
	require.NoError(t, os.WriteFile(txt, []byte("site,user,pass\n"), 0o600))
	_, _, err := h.run("", "import", txt)
	assert.True(t, errors.Is(err, codec.ErrFormat))

	empty := filepath.Join(h.home, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"version":"2.0.0","entries":[]}`), 0o600))
	_, _, err = h.run("", "import", empty)
	assert.True(t, errors.Is(err, importer.ErrNoEntries))

	_, _, err = h.run("", "import", empty, "--from", "keepass")
	assert.True(t, errors.Is(err, importer.ErrUnsupportedSource))

	_, _, err = h.run("", "import", filepath.Join(h.home, "missing.csv"))
	require.Error(t, err)

	// nothing was written by the failed imports
	assert.NoFileExists(t, filepath.Join(h.dir, "vault.dat"))
}

func TestImport_Bitwarden(t *testing.T) {
	h := newHarness(t)
	path := filepath.Join(h.home, "bitwarden.json")
	export := map[string]any{
		"items": []map[string]any{
			{
				"type": 1,
				"name": "GitHub",
				"login": map[string]any{
					"username": "alice",
					"password": "gh-password",
					"uris":     []map[string]any{{"uri": "https://github.com/login"}},
				},
			},
		},
	}
	data, err := json.Marshal(export)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o600))

	out := h.mustRun("", "import", path, "--from", "bitwarden")
	assert.Contains(t, out, "Imported 1 entry from Bitwarden")
}

func TestExport_Errors(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("", "export")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entries to export")

	_, _, err = h.run("", "export", "-f", "pdf")
	assert.True(t, errors.Is(err, codec.ErrFormat))

	h.add("github.com", "alice", "password-1")
	path := filepath.Join(h.home, "out.csv")
	h.mustRun("", "export", "-o", path)

	_, _, err = h.run("", "export", "-o", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	h.mustRun("", "export", "-o", path, "--force")

	_, _, err = h.run("", "export", "--site", "*.nomatch.org", "-o", "-")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no entries to export")
}

func TestExport_StdoutCSV(t *testing.T) {
	h := newHarness(t)
	h.add("github.com", "alice", "password-1")

	out := h.mustRun("", "export", "-o", "-")
	assert.True(t, strings.HasPrefix(out, "\ufeffSite/App,Username/Email,Password,Notes,Created,Updated"))
	assert.Contains(t, out, "github.com,alice,password-1")
}

func TestExport_DefaultFilename(t *testing.T) {
	h := newHarness(t)
	h.add("github.com", "alice", "password-1")

	wd := t.TempDir()
	t.Chdir(wd)

	out := h.mustRun("", "export", "-f", "json")
	assert.Contains(t, out, "vaultx-backup-")

	matches, err := filepath.Glob(filepath.Join(wd, "vaultx-backup-*.json"))
	require.NoError(t, err)
	assert.Len(t, matches, 1)
}
