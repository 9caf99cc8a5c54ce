package vault

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/forest6511/vaultx/pkg/crypto"
)

var fastParams = crypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1}

func openSlots(t *testing.T) map[string]Slot {
	t.Helper()
	ctx := context.Background()

	fs, err := OpenFileSlot(filepath.Join(t.TempDir(), "file"))
	require.NoError(t, err)

	ss, err := OpenSQLiteSlot(ctx, filepath.Join(t.TempDir(), "sqlite", DBFileName))
	require.NoError(t, err)

	inner, err := OpenFileSlot(filepath.Join(t.TempDir(), "sealed"))
	require.NoError(t, err)
	sealed := NewSealedSlotWithParams(inner, "master-password", fastParams)

	slots := map[string]Slot{"file": fs, "sqlite": ss, "sealed": sealed}
	t.Cleanup(func() {
		for _, s := range slots {
			s.Close()
		}
	})
	return slots
}

func TestSlots_LoadSaveClear(t *testing.T) {
	ctx := context.Background()

	for name, slot := range openSlots(t) {
		t.Run(name, func(t *testing.T) {
			_, err := slot.Load(ctx)
			assert.ErrorIs(t, err, ErrSlotEmpty)

			require.NoError(t, slot.Save(ctx, "first"))
			require.NoError(t, slot.Save(ctx, "second"))

			got, err := slot.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, "second", got)

			require.NoError(t, slot.Clear(ctx))
			require.NoError(t, slot.Clear(ctx))
			_, err = slot.Load(ctx)
			assert.ErrorIs(t, err, ErrSlotEmpty)
		})
	}
}

func TestLoadSaveStore(t *testing.T) {
	ctx := context.Background()

	for name, slot := range openSlots(t) {
		t.Run(name, func(t *testing.T) {
			s, err := LoadStore(ctx, slot)
			require.NoError(t, err)
			assert.Equal(t, 0, s.Len())

			s.Add(Fields{Site: "a.com", Username: "alice", Password: "pw"})
			s.Add(Fields{Site: "b.com", Username: "bob", Password: "pw"})
			require.NoError(t, SaveStore(ctx, slot, s))

			loaded, err := LoadStore(ctx, slot)
			require.NoError(t, err)
			assert.Equal(t, s.Records(), loaded.Records())
		})
	}
}

func TestFileSlot_Permissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("file modes are not enforced on windows")
	}
	dir := filepath.Join(t.TempDir(), "vault")
	slot, err := OpenFileSlot(dir)
	require.NoError(t, err)
	defer slot.Close()

	require.NoError(t, slot.Save(context.Background(), "data"))

	info, err := os.Stat(slot.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FileMode), info.Mode().Perm())

	info, err = os.Stat(dir)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(DirMode), info.Mode().Perm())
}

func TestFileSlot_Lock(t *testing.T) {
	dir := t.TempDir()
	first, err := OpenFileSlot(dir)
	require.NoError(t, err)

	_, err = OpenFileSlot(dir)
	assert.ErrorIs(t, err, ErrVaultLocked)

	require.NoError(t, first.Close())

	again, err := OpenFileSlot(dir)
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestLoadStore_DegradesOnCorruptData(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	slot, err := OpenFileSlot(dir)
	require.NoError(t, err)
	defer slot.Close()

	require.NoError(t, os.WriteFile(slot.Path(), []byte("%%garbage%%"), FileMode))

	core, logs := observer.New(zapcore.WarnLevel)
	s, err := LoadStore(ctx, slot, WithLogger(zap.New(core)))
	require.NoError(t, err)
	assert.Equal(t, 0, s.Len())
	assert.Equal(t, 1, logs.Len())
}

func TestSealedSlot_WrongPassword(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	inner, err := OpenFileSlot(dir)
	require.NoError(t, err)
	sealed := NewSealedSlotWithParams(inner, "right-password", fastParams)

	s := NewStore()
	s.Add(Fields{Site: "a.com", Username: "alice", Password: "pw"})
	require.NoError(t, SaveStore(ctx, sealed, s))

	raw, err := os.ReadFile(inner.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "alice")
	require.NoError(t, sealed.Close())

	inner, err = OpenFileSlot(dir)
	require.NoError(t, err)
	wrong := NewSealedSlotWithParams(inner, "wrong-password", fastParams)
	defer wrong.Close()

	_, err = LoadStore(ctx, wrong)
	assert.ErrorIs(t, err, ErrInvalidPassword)

	after, err := os.ReadFile(inner.Path())
	require.NoError(t, err)
	assert.Equal(t, raw, after, "sealed data must not be touched")
}

func TestSealedSlot_Rekey(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	inner, err := OpenFileSlot(dir)
	require.NoError(t, err)
	sealed := NewSealedSlotWithParams(inner, "old-password", fastParams)
	require.NoError(t, sealed.Save(ctx, "payload"))

	sealed.Rekey("new-password")
	require.NoError(t, sealed.Save(ctx, "payload"))
	require.NoError(t, sealed.Close())

	inner, err = OpenFileSlot(dir)
	require.NoError(t, err)
	reopened := NewSealedSlotWithParams(inner, "new-password", fastParams)
	defer reopened.Close()

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "payload", got)
}

func TestSealedSlot_PlainDataIsStorageError(t *testing.T) {
	ctx := context.Background()
	inner, err := OpenFileSlot(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, inner.Save(ctx, "W10="))

	sealed := NewSealedSlotWithParams(inner, "pw", fastParams)
	defer sealed.Close()

	_, err = sealed.Load(ctx)
	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, ErrPlainVault)
	assert.True(t, errors.Is(err, crypto.ErrNotSealed))
}

func TestLoadStore_RefusesOtherStorageMode(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	_, err := s.Add(Fields{Site: "a.com", Username: "alice", Password: "pw"})
	require.NoError(t, err)

	t.Run("sealed slot over plain data", func(t *testing.T) {
		inner, err := OpenFileSlot(t.TempDir())
		require.NoError(t, err)
		require.NoError(t, SaveStore(ctx, inner, s))
		raw, err := os.ReadFile(inner.Path())
		require.NoError(t, err)

		sealed := NewSealedSlotWithParams(inner, "any-password", fastParams)
		defer sealed.Close()
		_, err = LoadStore(ctx, sealed)
		assert.ErrorIs(t, err, ErrPlainVault)

		after, err := os.ReadFile(inner.Path())
		require.NoError(t, err)
		assert.Equal(t, raw, after)
	})

	t.Run("plain slot over sealed data", func(t *testing.T) {
		dir := t.TempDir()
		inner, err := OpenFileSlot(dir)
		require.NoError(t, err)
		sealed := NewSealedSlotWithParams(inner, "master-password", fastParams)
		require.NoError(t, SaveStore(ctx, sealed, s))
		require.NoError(t, sealed.Close())

		plain, err := OpenFileSlot(dir)
		require.NoError(t, err)
		defer plain.Close()
		_, err = LoadStore(ctx, plain)
		assert.ErrorIs(t, err, ErrSealedVault)
	})
}

func TestValidateMasterPassword(t *testing.T) {
	tests := []struct {
		password string
		want     error
	}{
		{"short", ErrPasswordTooShort},
		{"1234567", ErrPasswordTooShort},
		{"12345678", nil},
		{string(make([]rune, 128)), nil},
		{string(make([]rune, 129)), ErrPasswordTooLong},
	}

	for _, tt := range tests {
		if got := ValidateMasterPassword(tt.password); !errors.Is(got, tt.want) {
			t.Errorf("ValidateMasterPassword(len=%d) = %v, want %v", len(tt.password), got, tt.want)
		}
	}
}
