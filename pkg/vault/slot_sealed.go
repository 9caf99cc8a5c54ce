package vault

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/forest6511/vaultx/pkg/crypto"
)

// SealedSlot encrypts slot content with a master password before it reaches
// the underlying slot. Stored text is base64 of a crypto envelope.
type SealedSlot struct {
	inner    Slot
	password []byte
	params   crypto.Params
}

// NewSealedSlot wraps inner. The password is copied and wiped on Close.
func NewSealedSlot(inner Slot, password string) *SealedSlot {
	return NewSealedSlotWithParams(inner, password, crypto.DefaultParams())
}

// NewSealedSlotWithParams wraps inner using explicit KDF parameters for new seals.
func NewSealedSlotWithParams(inner Slot, password string, p crypto.Params) *SealedSlot {
	return &SealedSlot{inner: inner, password: []byte(password), params: p}
}

func (s *SealedSlot) Load(ctx context.Context) (string, error) {
	text, err := s.inner.Load(ctx)
	if err != nil {
		return "", err
	}

	sealed, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil || !crypto.IsSealed(sealed) {
		return "", &StorageError{Op: "load", Err: fmt.Errorf("%w: %w", ErrPlainVault, crypto.ErrNotSealed)}
	}

	plain, err := crypto.Open(s.password, sealed)
	if errors.Is(err, crypto.ErrDecryptionFailed) {
		return "", ErrInvalidPassword
	}
	if err != nil {
		return "", &StorageError{Op: "load", Err: err}
	}
	return string(plain), nil
}

// isSealedText reports whether slot text is a sealed envelope.
func isSealedText(text string) bool {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	return err == nil && crypto.IsSealed(data)
}

func (s *SealedSlot) Save(ctx context.Context, text string) error {
	sealed, err := crypto.SealWithParams(s.password, []byte(text), s.params)
	if err != nil {
		return &StorageError{Op: "seal", Err: err}
	}
	return s.inner.Save(ctx, base64.StdEncoding.EncodeToString(sealed))
}

func (s *SealedSlot) Clear(ctx context.Context) error {
	return s.inner.Clear(ctx)
}

// Rekey replaces the master password used for subsequent saves.
func (s *SealedSlot) Rekey(password string) {
	crypto.SecureWipe(s.password)
	s.password = []byte(password)
}

// Close wipes the password and closes the underlying slot.
func (s *SealedSlot) Close() error {
	crypto.SecureWipe(s.password)
	return s.inner.Close()
}
