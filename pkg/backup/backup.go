package backup

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/forest6511/vaultx/pkg/crypto"
	"github.com/forest6511/vaultx/pkg/importer"
	"github.com/forest6511/vaultx/pkg/vault"
)

// Layout:
//
//	magic (8) | header length (u32) | header JSON | ciphertext length (u32) | nonce+ciphertext | HMAC-SHA256 (32)
//
// The HMAC covers every byte before it and is checked before decryption.

// maxArchiveSize bounds the bytes read from untrusted input.
const maxArchiveSize = 256 << 20

// Options selects the archive keys. Exactly one of Password and KeyFile is used;
// KeyFile wins when both are set.
type Options struct {
	Password []byte
	KeyFile  string
	// KDF overrides the Argon2id cost of new password archives.
	KDF *crypto.Params
}

func (o Options) kdf() crypto.Params {
	if o.KDF != nil {
		return *o.KDF
	}
	return crypto.DefaultParams()
}

// Archive is a verified, decrypted backup.
type Archive struct {
	Header *Header
	// Records holds the archived entries in store order.
	Records []vault.Record

	vault string
}

// RestoreMode selects how an archive is applied to a store.
type RestoreMode int

const (
	// RestoreMerge adds archived entries that are not in the store.
	RestoreMerge RestoreMode = iota
	// RestoreReplace replaces the store content with the archive.
	RestoreReplace
)

// ParseRestoreMode maps "merge" and "replace" to a mode.
func ParseRestoreMode(s string) (RestoreMode, error) {
	switch s {
	case "", "merge":
		return RestoreMerge, nil
	case "replace":
		return RestoreReplace, nil
	default:
		return RestoreMerge, fmt.Errorf("invalid restore mode %q (valid: merge, replace)", s)
	}
}

// RestoreResult counts the outcome of a restore.
type RestoreResult struct {
	Restored int
	// Skipped entries matched an existing entry by site and username.
	Skipped int
	// Removed entries were dropped from the store by a replace.
	Removed int
	DryRun  bool
}

// Write encrypts a snapshot of store to w and returns the header it wrote.
func Write(w io.Writer, store *vault.Store, opts Options) (*Header, error) {
	header := &Header{
		Version:      FormatVersion,
		CreatedAt:    store.Now().UTC(),
		EntryCount:   store.Len(),
		ChecksumAlgo: "sha256",
	}

	var k *keys
	var err error
	if opts.KeyFile != "" {
		k, err = keyFileKeys(opts.KeyFile)
		header.EncryptionMode = EncryptionModeKey
	} else {
		salt, serr := GenerateSalt()
		if serr != nil {
			return nil, serr
		}
		p := opts.kdf()
		header.KDFParams = &KDFParams{
			Salt:        salt,
			Memory:      p.Memory,
			Iterations:  p.Time,
			Parallelism: p.Threads,
		}
		header.EncryptionMode = EncryptionModePassword
		k, err = passwordKeys(opts.Password, header.KDFParams)
	}
	if err != nil {
		return nil, err
	}
	defer k.wipe()

	text, err := store.Serialize()
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(Payload{Vault: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payload: %w", err)
	}
	defer crypto.SecureWipe(body)

	ciphertext, err := crypto.Encrypt(k.enc, body)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt payload: %w", err)
	}

	var buf bytes.Buffer
	if err := WriteHeader(&buf, header); err != nil {
		return nil, err
	}
	_ = binary.Write(&buf, binary.BigEndian, uint32(len(ciphertext)))
	buf.Write(ciphertext)
	buf.Write(computeHMAC(buf.Bytes(), k.mac))

	if _, err := w.Write(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to write backup: %w", err)
	}
	return header, nil
}

// Read verifies and decrypts an archive. Entries that fail validation are
// dropped the same way a damaged vault slot is read.
func Read(r io.Reader, opts Options) (*Archive, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxArchiveSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read backup: %w", err)
	}
	if len(data) > maxArchiveSize {
		return nil, fmt.Errorf("backup larger than %d bytes", maxArchiveSize)
	}
	if len(data) < len(MagicNumber)+4+HMACLength {
		return nil, ErrInvalidMagic
	}

	reader := bytes.NewReader(data[:len(data)-HMACLength])
	header, err := ReadHeader(reader)
	if err != nil {
		return nil, err
	}

	k, err := archiveKeys(header, opts)
	if err != nil {
		return nil, err
	}
	defer k.wipe()

	signed, mac := data[:len(data)-HMACLength], data[len(data)-HMACLength:]
	if !bytes.Equal(computeHMAC(signed, k.mac), mac) {
		return nil, ErrIntegrityFailed
	}

	var n uint32
	if err := binary.Read(reader, binary.BigEndian, &n); err != nil || int(n) != reader.Len() {
		return nil, ErrDecryptionFailed
	}
	ciphertext := make([]byte, n)
	_, _ = io.ReadFull(reader, ciphertext)

	body, err := crypto.Decrypt(k.enc, ciphertext)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	defer crypto.SecureWipe(body)

	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal payload: %w", err)
	}

	snapshot := vault.NewStore()
	snapshot.Restore(payload.Vault)
	return &Archive{Header: header, Records: snapshot.Records(), vault: payload.Vault}, nil
}

func archiveKeys(header *Header, opts Options) (*keys, error) {
	switch header.EncryptionMode {
	case EncryptionModeKey:
		if opts.KeyFile == "" {
			return nil, fmt.Errorf("%w: a key file is required", ErrModeMismatch)
		}
		return keyFileKeys(opts.KeyFile)
	case EncryptionModePassword:
		if opts.KeyFile != "" {
			return nil, fmt.Errorf("%w: a password is required", ErrModeMismatch)
		}
		if header.KDFParams == nil || header.KDFParams.Iterations == 0 || header.KDFParams.Parallelism == 0 {
			return nil, fmt.Errorf("%w: missing key derivation parameters", ErrDecryptionFailed)
		}
		return passwordKeys(opts.Password, header.KDFParams)
	default:
		return nil, fmt.Errorf("unknown encryption mode %q", header.EncryptionMode)
	}
}

func keyFileKeys(path string) (*keys, error) {
	key, err := ReadKeyFile(path)
	if err != nil {
		return nil, err
	}
	defer crypto.SecureWipe(key)
	return expandKeys(key)
}

// Restore applies the archive to store. A merge adds the archived entries
// whose site and username are not present yet, with fresh ids; a replace
// swaps the whole content and keeps the archived ids and timestamps. A dry
// run reports the same counts without changing store.
func (a *Archive) Restore(store *vault.Store, mode RestoreMode, dryRun bool, logger *zap.Logger) (RestoreResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	result := RestoreResult{DryRun: dryRun}

	switch mode {
	case RestoreReplace:
		result.Removed = store.Len()
		result.Restored = len(a.Records)
		if !dryRun {
			store.Restore(a.vault)
		}
	case RestoreMerge:
		target := store
		if dryRun {
			text, err := store.Serialize()
			if err != nil {
				return RestoreResult{}, err
			}
			target = vault.NewStore()
			target.Restore(text)
		}
		candidates := make([]vault.Fields, len(a.Records))
		for i, r := range a.Records {
			candidates[i] = r.Fields
		}
		report, err := importer.Merge(candidates, target, importer.WithLogger(logger))
		if err != nil {
			return RestoreResult{}, err
		}
		result.Restored = report.Imported
		result.Skipped = report.Skipped
	default:
		return RestoreResult{}, fmt.Errorf("unknown restore mode %d", mode)
	}

	logger.Info("restored backup",
		zap.Time("created_at", a.Header.CreatedAt),
		zap.Int("restored", result.Restored),
		zap.Int("skipped", result.Skipped),
		zap.Int("removed", result.Removed),
		zap.Bool("dry_run", dryRun))
	return result, nil
}

// DefaultFilename names an archive written at t.
func DefaultFilename(t time.Time) string {
	return fmt.Sprintf("vaultx-%s.vxbak", t.Format("20060102-150405"))
}
