package backup

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/hkdf"

	"github.com/forest6511/vaultx/pkg/crypto"
)

const (
	// SaltLength is the length of the per-archive salt.
	SaltLength = 32
	// HMACLength is the length of the trailing HMAC-SHA256.
	HMACLength = 32
	// KeyLength is the length of key files and derived keys.
	KeyLength = 32
)

const (
	hkdfInfoEncryption = "vaultx-backup-encryption"
	hkdfInfoMAC        = "vaultx-backup-mac"
)

// keys holds the encryption and MAC keys of one archive.
type keys struct {
	enc, mac []byte
}

func (k *keys) wipe() {
	crypto.SecureWipe(k.enc)
	crypto.SecureWipe(k.mac)
}

// GenerateSalt returns a fresh random salt.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// passwordKeys derives both archive keys from a password.
func passwordKeys(password []byte, kdf *KDFParams) (*keys, error) {
	if len(password) == 0 {
		return nil, ErrEmptyPassword
	}
	master := crypto.DeriveKey(password, kdf.Salt, crypto.Params{
		Time:    kdf.Iterations,
		Memory:  kdf.Memory,
		Threads: kdf.Parallelism,
	})
	defer crypto.SecureWipe(master)
	return expandKeys(master)
}

// expandKeys splits one secret into independent encryption and MAC keys.
func expandKeys(secret []byte) (*keys, error) {
	enc, err := deriveHKDF(secret, hkdfInfoEncryption)
	if err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}
	mac, err := deriveHKDF(secret, hkdfInfoMAC)
	if err != nil {
		crypto.SecureWipe(enc)
		return nil, fmt.Errorf("failed to derive MAC key: %w", err)
	}
	return &keys{enc: enc, mac: mac}, nil
}

func deriveHKDF(secret []byte, info string) ([]byte, error) {
	key := make([]byte, KeyLength)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(info)), key); err != nil {
		return nil, err
	}
	return key, nil
}

func computeHMAC(data, key []byte) []byte {
	h := hmac.New(sha256.New, key)
	h.Write(data)
	return h.Sum(nil)
}

// ReadKeyFile reads a KeyLength-byte key.
func ReadKeyFile(path string) ([]byte, error) {
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read key file: %w", err)
	}
	if len(key) != KeyLength {
		crypto.SecureWipe(key)
		return nil, ErrInvalidKeyFile
	}
	return key, nil
}

// GenerateKeyFile writes a new random key to path with mode 0600. It never
// overwrites an existing file.
func GenerateKeyFile(path string) error {
	key := make([]byte, KeyLength)
	if _, err := rand.Read(key); err != nil {
		return fmt.Errorf("failed to generate key: %w", err)
	}
	defer crypto.SecureWipe(key)

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("key file %s already exists", path)
		}
		return fmt.Errorf("failed to create key file: %w", err)
	}
	if _, err := f.Write(key); err != nil {
		f.Close()
		return fmt.Errorf("failed to write key file: %w", err)
	}
	return f.Close()
}
