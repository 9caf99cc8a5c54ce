package backup

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// MagicNumber starts every archive.
var MagicNumber = [8]byte{'V', 'X', 'B', 'A', 'C', 'K', 'U', 'P'}

// FormatVersion is the archive layout written by this release.
const FormatVersion = 1

// maxHeaderLength bounds the header read from untrusted input.
const maxHeaderLength = 64 * 1024

// EncryptionMode names how the archive keys were obtained.
type EncryptionMode string

const (
	// EncryptionModePassword derives the keys from a password with Argon2id.
	EncryptionModePassword EncryptionMode = "password"
	// EncryptionModeKey derives the keys from a 32-byte key file.
	EncryptionModeKey EncryptionMode = "key"
)

// KDFParams records the Argon2id cost and salt of a password archive.
type KDFParams struct {
	Salt        []byte `json:"salt"`
	Memory      uint32 `json:"memory"`
	Iterations  uint32 `json:"iterations"`
	Parallelism uint8  `json:"parallelism"`
}

// Header is the unencrypted archive metadata. It is covered by the HMAC.
type Header struct {
	Version        int            `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	EncryptionMode EncryptionMode `json:"encryption_mode"`
	KDFParams      *KDFParams     `json:"kdf_params,omitempty"`
	EntryCount     int            `json:"entry_count"`
	ChecksumAlgo   string         `json:"checksum_algorithm"`
}

// Payload is the encrypted archive body.
type Payload struct {
	// Vault is the store in its serialized slot form.
	Vault string `json:"vault"`
}

// WriteHeader writes the magic number, the header length and the header.
func WriteHeader(w io.Writer, header *Header) error {
	if _, err := w.Write(MagicNumber[:]); err != nil {
		return fmt.Errorf("failed to write magic number: %w", err)
	}

	data, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if err := binary.Write(w, binary.BigEndian, uint32(len(data))); err != nil {
		return fmt.Errorf("failed to write header length: %w", err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	return nil
}

// ReadHeader reads and checks what WriteHeader wrote.
func ReadHeader(r io.Reader) (*Header, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return nil, ErrInvalidMagic
	}
	if magic != MagicNumber {
		return nil, ErrInvalidMagic
	}

	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, fmt.Errorf("failed to read header length: %w", err)
	}
	if n > maxHeaderLength {
		return nil, fmt.Errorf("header too large: %d bytes", n)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var header Header
	if err := json.Unmarshal(data, &header); err != nil {
		return nil, fmt.Errorf("failed to unmarshal header: %w", err)
	}
	if header.Version > FormatVersion {
		return nil, fmt.Errorf("%w: got %d, max supported %d",
			ErrUnsupportedVersion, header.Version, FormatVersion)
	}
	return &header, nil
}
