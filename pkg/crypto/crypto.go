// Package crypto seals vault slot content with a master password.
//
// Sealing uses AES-256-GCM with a key derived by Argon2id. The sealed
// envelope is self-describing so that the KDF cost can change without
// breaking existing vaults:
//
//	magic "VXS1" | time (u32) | memory KiB (u32) | threads (u8) | salt (16) | nonce (12) | ciphertext+tag
//
// The header bytes are authenticated as GCM additional data.
package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"runtime"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters following OWASP recommendations.
const (
	Argon2Memory  = 64 * 1024 // KiB
	Argon2Time    = 3
	Argon2Threads = 4

	KeyLength   = 32
	NonceLength = 12
	SaltLength  = 16
)

var magic = [4]byte{'V', 'X', 'S', '1'}

// headerLength is magic + time + memory + threads + salt + nonce.
const headerLength = len(magic) + 4 + 4 + 1 + SaltLength + NonceLength

// Sentinel errors returned by crypto functions.
var (
	ErrInvalidKeyLength = errors.New("crypto: invalid key length, must be 32 bytes")
	ErrDecryptionFailed = errors.New("crypto: decryption failed, authentication tag verification failed")
	ErrNotSealed        = errors.New("crypto: data is not a sealed envelope")
	ErrEmptyPassword    = errors.New("crypto: password cannot be empty")
)

// Params are the Argon2id cost parameters recorded in each envelope.
type Params struct {
	Time    uint32
	Memory  uint32
	Threads uint8
}

// DefaultParams returns the OWASP-recommended parameters.
func DefaultParams() Params {
	return Params{Time: Argon2Time, Memory: Argon2Memory, Threads: Argon2Threads}
}

// DeriveKey derives a 256-bit key from a password and salt using Argon2id.
func DeriveKey(password, salt []byte, p Params) []byte {
	return argon2.IDKey(password, salt, p.Time, p.Memory, p.Threads, KeyLength)
}

// Seal encrypts plaintext under password with the default parameters.
func Seal(password, plaintext []byte) ([]byte, error) {
	return SealWithParams(password, plaintext, DefaultParams())
}

// SealWithParams encrypts plaintext under password with explicit KDF parameters.
// A fresh salt and nonce are drawn for every call.
func SealWithParams(password, plaintext []byte, p Params) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}

	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate salt: %w", err)
	}
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}

	var header bytes.Buffer
	header.Grow(headerLength)
	header.Write(magic[:])
	_ = binary.Write(&header, binary.BigEndian, p.Time)
	_ = binary.Write(&header, binary.BigEndian, p.Memory)
	header.WriteByte(p.Threads)
	header.Write(salt)
	header.Write(nonce)

	key := DeriveKey(password, salt, p)
	defer SecureWipe(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	aad := bytes.Clone(header.Bytes())
	return gcm.Seal(header.Bytes(), nonce, plaintext, aad), nil
}

// Open authenticates and decrypts an envelope produced by Seal.
func Open(password, sealed []byte) ([]byte, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	if len(sealed) < headerLength || !bytes.Equal(sealed[:len(magic)], magic[:]) {
		return nil, ErrNotSealed
	}

	off := len(magic)
	p := Params{
		Time:    binary.BigEndian.Uint32(sealed[off:]),
		Memory:  binary.BigEndian.Uint32(sealed[off+4:]),
		Threads: sealed[off+8],
	}
	off += 9
	salt := sealed[off : off+SaltLength]
	off += SaltLength
	nonce := sealed[off : off+NonceLength]
	header := sealed[:headerLength]
	ciphertext := sealed[headerLength:]

	if p.Time == 0 || p.Threads == 0 {
		return nil, ErrNotSealed
	}

	key := DeriveKey(password, salt, p)
	defer SecureWipe(key)

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.Overhead() {
		return nil, ErrDecryptionFailed
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, header)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// Encrypt encrypts plaintext under a raw 256-bit key with AES-256-GCM.
// The result is the nonce followed by the ciphertext and tag.
func Encrypt(key, plaintext []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, NonceLength)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("crypto: failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt reverses Encrypt.
func Decrypt(key, data []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(data) < NonceLength+gcm.Overhead() {
		return nil, ErrDecryptionFailed
	}
	plaintext, err := gcm.Open(nil, data[:NonceLength], data[NonceLength:], nil)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}

// IsSealed reports whether data starts with the envelope magic.
func IsSealed(data []byte) bool {
	return len(data) >= headerLength && bytes.Equal(data[:len(magic)], magic[:])
}

func newGCM(key []byte) (cipher.AEAD, error) {
	if len(key) != KeyLength {
		return nil, ErrInvalidKeyLength
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("crypto: failed to create GCM: %w", err)
	}
	return gcm, nil
}

// SecureWipe overwrites a byte slice with zeros.
func SecureWipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
	// keep the writes from being optimized away
	runtime.KeepAlive(b)
}
