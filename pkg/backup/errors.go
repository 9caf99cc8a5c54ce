// Package backup writes and reads encrypted archives of a vault store.
package backup

import "errors"

var (
	// ErrInvalidMagic indicates the data is not a backup archive.
	ErrInvalidMagic = errors.New("invalid backup file: magic number mismatch")

	// ErrUnsupportedVersion indicates an archive written by a newer release.
	ErrUnsupportedVersion = errors.New("unsupported backup format version")

	// ErrIntegrityFailed indicates the HMAC did not match: wrong password or key, or a modified file.
	ErrIntegrityFailed = errors.New("backup integrity check failed: wrong password or key, or corrupted file")

	// ErrDecryptionFailed indicates the payload could not be decrypted.
	ErrDecryptionFailed = errors.New("backup decryption failed")

	// ErrInvalidKeyFile indicates the key file is not exactly KeyLength bytes.
	ErrInvalidKeyFile = errors.New("invalid key file: must be exactly 32 bytes")

	// ErrEmptyPassword indicates neither a password nor a key file was given.
	ErrEmptyPassword = errors.New("backup password cannot be empty")

	// ErrModeMismatch indicates a password was given for a key file archive or the reverse.
	ErrModeMismatch = errors.New("backup was encrypted with a different method")
)
