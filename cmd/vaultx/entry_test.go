package main

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forest6511/vaultx/pkg/vault"
)

func TestEntryLifecycle(t *testing.T) {
	h := newHarness(t)

	id := h.add("github.com", "alice", "s3cret-Passw0rd!")

	out := h.mustRun("", "list")
	assert.Contains(t, out, "github.com")
	assert.Contains(t, out, "alice")
	assert.Contains(t, out, id[:shortIDLength])
	assert.Contains(t, out, "1 entry")
	assert.NotContains(t, out, "s3cret-Passw0rd!")

	out = h.mustRun("", "show", id[:shortIDLength])
	assert.Contains(t, out, "Site:     github.com")
	assert.Contains(t, out, "Password: ********")
	assert.NotContains(t, out, "s3cret-Passw0rd!")

	out = h.mustRun("", "show", id, "--reveal")
	assert.Contains(t, out, "Password: s3cret-Passw0rd!")

	h.mustRun("", "show", id, "--copy")
	assert.Equal(t, []string{"s3cret-Passw0rd!"}, h.copied)

	out = h.mustRun("", "rm", id, "--force")
	assert.Contains(t, out, "Deleted github.com")

	out = h.mustRun("", "list")
	assert.Contains(t, out, "No entries found")
}

func TestAdd_Generate(t *testing.T) {
	h := newHarness(t)

	h.add("example.com", "bob", "", "--generate")
	require.Len(t, h.copied, 1)
	assert.Len(t, h.copied[0], 16)

	out := h.mustRun("", "show", "--reveal", firstID(t, h))
	assert.Contains(t, out, h.copied[0])
}

func TestAdd_MissingFields(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("pw\n", "add", "--username", "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, vault.ErrValidation))

	var verr *vault.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, []string{vault.FieldSite}, verr.Missing)

	// empty password from the prompt
	_, _, err = h.run("   \n", "add", "--site", "a.com", "--username", "alice")
	require.Error(t, err)
	assert.True(t, errors.Is(err, vault.ErrValidation))

	out := h.mustRun("", "list")
	assert.Contains(t, out, "No entries found")
}

func TestEdit(t *testing.T) {
	h := newHarness(t)
	id := h.add("github.com", "alice", "first-password-1")

	out := h.mustRun("", "edit", id, "--username", "alice@example.com", "--notes", "work account")
	assert.Contains(t, out, "Updated github.com")

	out = h.mustRun("", "show", id, "--reveal")
	assert.Contains(t, out, "Username: alice@example.com")
	assert.Contains(t, out, "Notes:    work account")
	assert.Contains(t, out, "Password: first-password-1")

	h.mustRun("second-password-2\n", "edit", id, "--password")
	out = h.mustRun("", "show", id, "--reveal")
	assert.Contains(t, out, "Password: second-password-2")

	_, _, err := h.run("", "edit", id)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nothing to change")

	_, _, err = h.run("", "edit", id, "--site", " ")
	assert.True(t, errors.Is(err, vault.ErrValidation))
}

func TestResolveRef(t *testing.T) {
	h := newHarness(t)
	h.add("a.com", "alice", "password-a")

	_, _, err := h.run("", "show", "ffffffff")
	assert.True(t, errors.Is(err, vault.ErrNotFound))

	// prefixes shorter than cli.MinRefLength never match
	_, _, err = h.run("", "show", "019")
	assert.True(t, errors.Is(err, vault.ErrNotFound))
}

func TestRemove_Declined(t *testing.T) {
	h := newHarness(t)
	id := h.add("github.com", "alice", "s3cret-Passw0rd!")

	out := h.mustRun("n\n", "rm", id)
	assert.Contains(t, out, "Aborted")

	out = h.mustRun("", "list")
	assert.Contains(t, out, "github.com")
}

func TestList_Filters(t *testing.T) {
	h := newHarness(t)
	h.add("mail.example.com", "alice", "password-1")
	h.add("shop.example.com", "bob", "password-2")
	h.add("github.com", "alice", "password-3")

	out := h.mustRun("", "list", "--site", "*.example.com")
	assert.Contains(t, out, "mail.example.com")
	assert.Contains(t, out, "shop.example.com")
	assert.NotContains(t, out, "github.com")
	assert.Contains(t, out, "2 entries")

	out = h.mustRun("", "list", "--search", "ALICE")
	assert.Contains(t, out, "mail.example.com")
	assert.Contains(t, out, "github.com")
	assert.NotContains(t, out, "shop.example.com")

	// most recent first
	out = h.mustRun("", "list")
	assert.Less(t, strings.Index(out, "github.com"), strings.Index(out, "mail.example.com"))

	_, _, err := h.run("", "list", "--site", "[")
	require.Error(t, err)
}

func TestClear(t *testing.T) {
	h := newHarness(t)
	h.add("a.com", "alice", "password-a")
	h.add("b.com", "bob", "password-b")

	out := h.mustRun("no\n", "clear")
	assert.Contains(t, out, "Aborted")

	out = h.mustRun("y\n", "clear")
	assert.Contains(t, out, "Deleted 2 entries")

	out = h.mustRun("", "clear")
	assert.Contains(t, out, "already empty")
}

func TestPlainVault_SQLite(t *testing.T) {
	h := newHarness(t)
	h.add("a.com", "alice", "password-a", "--backend", "sqlite")

	out := h.mustRun("", "--backend", "sqlite", "list")
	assert.Contains(t, out, "a.com")

	// the file backend is a separate slot
	out = h.mustRun("", "list")
	assert.Contains(t, out, "No entries found")
}

// firstID returns the short id of the most recent entry.
func firstID(t *testing.T, h *harness, args ...string) string {
	t.Helper()
	out := h.mustRun("", append(args, "list")...)
	lines := strings.Split(out, "\n")
	require.GreaterOrEqual(t, len(lines), 2)
	fields := strings.Fields(lines[1])
	require.NotEmpty(t, fields)
	return fields[0]
}
