package vault

import (
	"errors"
	"fmt"
	"strings"
)

// Errors
var (
	ErrValidation       = errors.New("vault: validation failed")
	ErrNotFound         = errors.New("vault: record not found")
	ErrStorage          = errors.New("vault: storage failure")
	ErrDuplicateID      = errors.New("vault: duplicate record id")
	ErrSlotEmpty        = errors.New("vault: slot is empty")
	ErrInvalidPassword  = errors.New("vault: invalid master password")
	ErrSealedVault      = errors.New("vault: slot holds a sealed vault")
	ErrPlainVault       = errors.New("vault: slot holds a vault that is not sealed")
	ErrVaultLocked      = errors.New("vault: vault is locked by another process")
	ErrPasswordTooShort = errors.New("vault: password must be at least 8 characters")
	ErrPasswordTooLong  = errors.New("vault: password must be at most 128 characters")
)

// ValidationError lists the required fields that were empty after trimming.
type ValidationError struct {
	Missing []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("vault: missing required fields: %s", strings.Join(e.Missing, ", "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NotFoundError reports an id that is not in the store.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("vault: record %q not found", e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// StorageError wraps a failure of the persisted slot.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("vault: %s failed: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// Is matches ErrStorage in addition to the wrapped error.
func (e *StorageError) Is(target error) bool { return target == ErrStorage }
