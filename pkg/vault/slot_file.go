package vault

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// File names inside the vault directory.
const (
	DataFileName = "vault.dat"
	LockFileName = "vault.lock"
	DBFileName   = "vault.db"
)

// FileSlot stores the serialized vault in <dir>/vault.dat.
// The directory is guarded by an advisory lock for the lifetime of the slot.
type FileSlot struct {
	dir  string
	lock *os.File
}

// OpenFileSlot creates dir if needed and takes the vault lock.
// It returns ErrVaultLocked when another process holds the lock.
func OpenFileSlot(dir string) (*FileSlot, error) {
	if err := os.MkdirAll(dir, DirMode); err != nil {
		return nil, &StorageError{Op: "open", Err: err}
	}

	lf, err := os.OpenFile(filepath.Join(dir, LockFileName), os.O_CREATE|os.O_RDWR, FileMode)
	if err != nil {
		return nil, &StorageError{Op: "open", Err: fmt.Errorf("failed to open lock file: %w", err)}
	}
	if err := lockFile(lf); err != nil {
		lf.Close()
		return nil, err
	}

	return &FileSlot{dir: dir, lock: lf}, nil
}

// Path returns the data file path.
func (f *FileSlot) Path() string {
	return filepath.Join(f.dir, DataFileName)
}

func (f *FileSlot) Load(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := os.ReadFile(f.Path())
	if errors.Is(err, os.ErrNotExist) {
		return "", ErrSlotEmpty
	}
	if err != nil {
		return "", &StorageError{Op: "load", Err: err}
	}
	return string(data), nil
}

// Save writes text to a temporary file and renames it into place.
func (f *FileSlot) Save(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, DataFileName+".*.tmp")
	if err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := tmp.Chmod(FileMode); err != nil {
		tmp.Close()
		return &StorageError{Op: "save", Err: err}
	}
	if _, err := tmp.WriteString(text); err != nil {
		tmp.Close()
		return &StorageError{Op: "save", Err: err}
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return &StorageError{Op: "save", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	if err := os.Rename(tmpPath, f.Path()); err != nil {
		return &StorageError{Op: "save", Err: err}
	}
	return nil
}

func (f *FileSlot) Clear(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.Remove(f.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return &StorageError{Op: "clear", Err: err}
	}
	return nil
}

// Close releases the vault lock.
func (f *FileSlot) Close() error {
	if f.lock == nil {
		return nil
	}
	err := unlockFile(f.lock)
	if cerr := f.lock.Close(); err == nil {
		err = cerr
	}
	f.lock = nil
	return err
}
