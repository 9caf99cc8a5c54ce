package vault

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// File and directory permissions for vault data.
const (
	FileMode = 0600
	DirMode  = 0700
)

// Slot is the single persisted location of the serialized store.
type Slot interface {
	// Load returns the stored text, or ErrSlotEmpty when nothing was saved yet.
	Load(ctx context.Context) (string, error)
	// Save replaces the stored text.
	Save(ctx context.Context, text string) error
	// Clear removes the stored text.
	Clear(ctx context.Context) error
	Close() error
}

// LoadStore restores a store from slot.
//
// Read failures are logged and yield an empty store. A wrong password and a slot
// written in the other storage mode are returned instead: an empty store saved
// over them would destroy the vault.
func LoadStore(ctx context.Context, slot Slot, opts ...Option) (*Store, error) {
	s := NewStore(opts...)

	text, err := slot.Load(ctx)
	switch {
	case err == nil:
		if isSealedText(text) {
			return nil, ErrSealedVault
		}
		n := s.Restore(text)
		s.logger.Debug("vault restored", zap.Int("records", n))
	case errors.Is(err, ErrSlotEmpty):
		s.logger.Debug("vault slot is empty")
	case errors.Is(err, ErrInvalidPassword), errors.Is(err, ErrPlainVault):
		return nil, err
	case ctx.Err() != nil:
		return nil, ctx.Err()
	default:
		s.logger.Warn("failed to read vault slot, starting empty", zap.Error(err))
	}
	return s, nil
}

// SaveStore serializes s and writes it to slot.
func SaveStore(ctx context.Context, slot Slot, s *Store) error {
	text, err := s.Serialize()
	if err != nil {
		return &StorageError{Op: "serialize", Err: err}
	}
	if err := slot.Save(ctx, text); err != nil {
		var se *StorageError
		if errors.As(err, &se) {
			return err
		}
		return &StorageError{Op: "save", Err: err}
	}
	return nil
}
