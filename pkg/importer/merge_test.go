package importer

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/forest6511/vaultx/pkg/vault"
)

func newStore() *vault.Store {
	n := 0
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	return vault.NewStore(
		vault.WithIDGenerator(func() string {
			n++
			return fmt.Sprintf("id-%d", n)
		}),
		vault.WithClock(func() time.Time { return t0 }),
	)
}

func sites(records []vault.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Site
	}
	return out
}

func TestMerge_InsertsInCandidateOrder(t *testing.T) {
	store := newStore()
	_, err := store.Add(vault.Fields{Site: "existing", Username: "u", Password: "p"})
	require.NoError(t, err)

	report, err := Merge([]vault.Fields{
		{Site: "a", Username: "u", Password: "p"},
		{Site: "b", Username: "u", Password: "p"},
		{Site: "c", Username: "u", Password: "p"},
	}, store)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Imported: 3}, report)
	assert.Equal(t, []string{"a", "b", "c", "existing"}, sites(store.Records()))

	for _, r := range store.Records()[:3] {
		assert.NotEmpty(t, r.ID)
		assert.Equal(t, r.CreatedAt, r.UpdatedAt)
	}
}

func TestMerge_Idempotent(t *testing.T) {
	store := newStore()
	candidates := []vault.Fields{
		{Site: "a.com", Username: "alice", Password: "p1"},
		{Site: "b.com", Username: "bob", Password: "p2"},
		{Site: "", Username: "nobody", Password: "p3"},
	}

	first, err := Merge(candidates, store)
	require.NoError(t, err)
	assert.Equal(t, MergeReport{Imported: 2, Excluded: 1}, first)

	second, err := Merge(candidates, store)
	require.NoError(t, err)
	assert.Equal(t, MergeReport{Skipped: 2, Excluded: 1}, second)
	assert.Equal(t, 2, store.Len())
}

func TestMerge_DuplicateRuleIgnoresCase(t *testing.T) {
	store := newStore()
	orig, err := store.Add(vault.Fields{Site: "example.com", Username: "bob", Password: "old", Notes: "keep"})
	require.NoError(t, err)

	report, err := Merge([]vault.Fields{
		{Site: "Example.com", Username: "Bob", Password: "different", Notes: "other"},
		{Site: "EXAMPLE.COM", Username: "BOB", Password: "old"},
		{Site: "example.com", Username: "bobby", Password: "x"},
	}, store)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Imported: 1, Skipped: 2}, report)

	got, err := store.Get(orig.ID)
	require.NoError(t, err)
	assert.Equal(t, orig, got, "existing record must not be updated")
}

func TestMerge_DuplicatesWithinBatch(t *testing.T) {
	store := newStore()

	report, err := Merge([]vault.Fields{
		{Site: "a.com", Username: "alice", Password: "first"},
		{Site: "A.com ", Username: " ALICE", Password: "second"},
	}, store)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Imported: 1, Skipped: 1}, report)
	records := store.Records()
	require.Len(t, records, 1)
	assert.Equal(t, "first", records[0].Password)
}

func TestMerge_Exclusion(t *testing.T) {
	store := newStore()
	candidates := []vault.Fields{
		{Site: "s", Username: "u"},
		{Site: "s", Password: "p"},
		{Username: "u", Password: "p"},
		{Site: "  ", Username: "u", Password: "p"},
		{Site: "ok", Username: "u", Password: "p"},
	}
	before := append([]vault.Fields(nil), candidates...)

	report, err := Merge(candidates, store)
	require.NoError(t, err)

	assert.Equal(t, MergeReport{Imported: 1, Excluded: 4}, report)
	assert.Equal(t, 5, report.Total())
	assert.Equal(t, before, candidates, "candidates must not be modified")
}

func TestMerge_AllOrNothing(t *testing.T) {
	store := vault.NewStore(vault.WithIDGenerator(func() string { return "fixed" }))
	_, err := store.Add(vault.Fields{Site: "existing", Username: "u", Password: "p"})
	require.NoError(t, err)

	_, err = Merge([]vault.Fields{
		{Site: "a", Username: "u", Password: "p"},
	}, store)
	assert.ErrorIs(t, err, vault.ErrDuplicateID)
	assert.Equal(t, []string{"existing"}, sites(store.Records()))
}

func TestMerge_LogsSummary(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	_, err := Merge([]vault.Fields{{Site: "a", Username: "u", Password: "p"}}, newStore(), WithLogger(zap.New(core)))
	require.NoError(t, err)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "merged import batch", entry.Message)
	assert.EqualValues(t, 1, entry.ContextMap()["imported"])
}
