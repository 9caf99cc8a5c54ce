// Package session owns the open vault: its slot, the in-memory store and the
// lock state of an interactive run.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/forest6511/vaultx/pkg/crypto"
	"github.com/forest6511/vaultx/pkg/vault"
)

// Storage backends.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

var (
	// ErrLocked is returned by store access while the session is locked.
	ErrLocked = errors.New("session: vault is locked")
	// ErrNotSealed is returned when a master password operation targets a plain vault.
	ErrNotSealed = errors.New("session: vault is not sealed with a master password")
	// ErrUnknownBackend is returned for a backend other than file or sqlite.
	ErrUnknownBackend = errors.New("session: unknown storage backend")
)

// Options configure Open.
type Options struct {
	Dir     string
	Backend string
	Sealed  bool
	// KDF overrides the Argon2id parameters used for new seals.
	KDF    *crypto.Params
	Logger *zap.Logger
	Clock  func() time.Time
}

// Session holds one open vault. A new session starts locked; Unlock loads the store.
type Session struct {
	mu     sync.Mutex
	opts   Options
	logger *zap.Logger

	inner  vault.Slot
	sealed *vault.SealedSlot
	store  *vault.Store
}

// OpenSlot opens the unsealed slot for backend under dir.
func OpenSlot(ctx context.Context, dir, backend string) (vault.Slot, error) {
	switch backend {
	case "", BackendFile:
		return vault.OpenFileSlot(dir)
	case BackendSQLite:
		return vault.OpenSQLiteSlot(ctx, filepath.Join(dir, vault.DBFileName))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Open opens the slot described by opts without reading it.
func Open(ctx context.Context, opts Options) (*Session, error) {
	inner, err := OpenSlot(ctx, opts.Dir, opts.Backend)
	if err != nil {
		return nil, err
	}

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{opts: opts, logger: logger, inner: inner}, nil
}

// Sealed reports whether the vault is protected by a master password.
func (s *Session) Sealed() bool {
	return s.opts.Sealed
}

// Exists reports whether the slot holds a saved vault.
func (s *Session) Exists(ctx context.Context) (bool, error) {
	_, err := s.inner.Load(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, vault.ErrSlotEmpty):
		return false, nil
	default:
		return false, err
	}
}

// Unlock loads the store. password is ignored for plain vaults; for a sealed vault
// that does not exist yet it must satisfy vault.ValidateMasterPassword.
// On failure the session stays locked.
func (s *Session) Unlock(ctx context.Context, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot := s.inner
	if s.opts.Sealed {
		if password == "" {
			return crypto.ErrEmptyPassword
		}
		exists, err := s.Exists(ctx)
		if err != nil {
			return err
		}
		if !exists {
			if err := vault.ValidateMasterPassword(password); err != nil {
				return err
			}
		}
		s.wipe()
		s.sealed = vault.NewSealedSlotWithParams(s.inner, password, s.kdf())
		slot = s.sealed
	}

	store, err := vault.LoadStore(ctx, slot, s.storeOptions()...)
	if err != nil {
		s.wipe()
		return err
	}
	s.store = store
	s.logger.Debug("vault unlocked", zap.Int("records", store.Len()))
	return nil
}

// Lock drops the in-memory store and wipes the master password.
func (s *Session) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return
	}
	s.store = nil
	s.wipe()
	s.logger.Info("vault locked")
}

// Locked reports whether Unlock is needed before the store can be used.
func (s *Session) Locked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store == nil
}

// Store returns the unlocked store.
func (s *Session) Store() (*vault.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return nil, ErrLocked
	}
	return s.store, nil
}

// Save writes the whole store to the slot.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.store == nil {
		return ErrLocked
	}
	if err := vault.SaveStore(ctx, s.slot(), s.store); err != nil {
		s.logger.Error("failed to save vault", zap.Error(err))
		return err
	}
	return nil
}

// ChangePassword re-seals the vault under newPassword. The old password stays in
// effect if the write fails.
func (s *Session) ChangePassword(ctx context.Context, newPassword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.opts.Sealed {
		return ErrNotSealed
	}
	if s.store == nil {
		return ErrLocked
	}
	if err := vault.ValidateMasterPassword(newPassword); err != nil {
		return err
	}

	next := vault.NewSealedSlotWithParams(s.inner, newPassword, s.kdf())
	if err := vault.SaveStore(ctx, next, s.store); err != nil {
		next.Rekey("")
		return fmt.Errorf("failed to re-seal vault: %w", err)
	}
	s.wipe()
	s.sealed = next
	s.logger.Info("master password changed")
	return nil
}

// Close locks the session and releases the slot.
func (s *Session) Close() error {
	s.Lock()
	return s.inner.Close()
}

func (s *Session) slot() vault.Slot {
	if s.sealed != nil {
		return s.sealed
	}
	return s.inner
}

// wipe clears the password held by the sealing wrapper without closing the inner slot.
func (s *Session) wipe() {
	if s.sealed != nil {
		s.sealed.Rekey("")
		s.sealed = nil
	}
}

func (s *Session) kdf() crypto.Params {
	if s.opts.KDF != nil {
		return *s.opts.KDF
	}
	return crypto.DefaultParams()
}

func (s *Session) storeOptions() []vault.Option {
	opts := []vault.Option{vault.WithLogger(s.logger)}
	if s.opts.Clock != nil {
		opts = append(opts, vault.WithClock(s.opts.Clock))
	}
	return opts
}
