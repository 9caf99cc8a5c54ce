// Package audit keeps an append-only activity log of vault changes with an
// HMAC chain for tamper detection. Events name record ids and counts only;
// sites, usernames and passwords are never written.
package audit

import (
	"bufio"
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/hkdf"
)

// DirName is the log directory inside the vault directory.
const DirName = "audit"

// MinDiskSpace is the free space required before an event is appended.
const MinDiskSpace = 1024 * 1024

const (
	keyFileName   = "audit.key"
	stateFileName = "audit.meta"
	genesis       = "genesis"
	schemaVersion = 1
)

// Operations
const (
	OpEntryAdd       = "entry.add"
	OpEntryUpdate    = "entry.update"
	OpEntryDelete    = "entry.delete"
	OpVaultClear     = "vault.clear"
	OpVaultImport    = "vault.import"
	OpVaultExport    = "vault.export"
	OpVaultBackup    = "vault.backup"
	OpVaultRestore   = "vault.restore"
	OpPasswordChange = "vault.password_change"
	OpToolCall       = "mcp.tool_call"
)

// Sources
const (
	SourceCLI   = "cli"
	SourceShell = "shell"
	SourceMCP   = "mcp"
)

// Results
const (
	ResultSuccess = "success"
	ResultDenied  = "denied"
)

// Errors
var (
	ErrInsufficientSpace = errors.New("audit: insufficient disk space")
	ErrInvalidKey        = errors.New("audit: invalid key file")
)

// Event is one line of the log.
type Event struct {
	Version   int            `json:"v"`
	ID        string         `json:"id"`
	Timestamp string         `json:"ts"`
	Operation string         `json:"op"`
	Source    string         `json:"source"`
	SessionID string         `json:"session_id"`
	Result    string         `json:"result"`
	RecordID  string         `json:"record_id,omitempty"`
	Context   map[string]any `json:"ctx,omitempty"`
	Chain     Chain          `json:"chain"`
}

// Time parses the event timestamp.
func (e Event) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, e.Timestamp)
}

// Chain links an event to its predecessor.
type Chain struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
	HMAC     string `json:"hmac"`
}

type chainState struct {
	Sequence int64  `json:"seq"`
	PrevHash string `json:"prev"`
}

// Logger appends events to monthly JSONL files under one directory.
// It is safe for concurrent use within a process.
type Logger struct {
	mu        sync.Mutex
	path      string
	hmacKey   []byte
	sequence  int64
	prevHash  string
	sessionID string
	now       func() time.Time
}

// Open opens the log in dir, creating the directory and its key on first use.
func Open(dir string) (*Logger, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("audit: failed to create directory: %w", err)
	}
	secret, err := loadOrCreateKey(filepath.Join(dir, keyFileName))
	if err != nil {
		return nil, err
	}

	l := &Logger{
		path:      dir,
		hmacKey:   make([]byte, 32),
		prevHash:  genesis,
		sessionID: uuid.NewString(),
		now:       time.Now,
	}
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte("vaultx-audit-v1")), l.hmacKey); err != nil {
		return nil, fmt.Errorf("audit: failed to derive HMAC key: %w", err)
	}

	if err := l.loadChainState(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("audit: failed to load chain state: %w", err)
	}
	return l, nil
}

// OpenForVault opens the log that belongs to the vault in vaultDir.
func OpenForVault(vaultDir string) (*Logger, error) {
	return Open(filepath.Join(vaultDir, DirName))
}

func loadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, err := hex.DecodeString(string(bytes.TrimSpace(data)))
		if err != nil || len(key) != 32 {
			return nil, ErrInvalidKey
		}
		return key, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("audit: failed to read key: %w", err)
	}

	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("audit: failed to generate key: %w", err)
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			// another process won the race
			return loadOrCreateKey(path)
		}
		return nil, fmt.Errorf("audit: failed to create key: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(hex.EncodeToString(key) + "\n"); err != nil {
		return nil, fmt.Errorf("audit: failed to write key: %w", err)
	}
	return key, nil
}

// Path returns the log directory.
func (l *Logger) Path() string {
	return l.path
}

// Log appends one event.
func (l *Logger) Log(op, source, result, recordID string, ctx map[string]any) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := checkDiskSpace(l.path); err != nil {
		return err
	}

	now := l.now().UTC()
	event := Event{
		Version:   schemaVersion,
		ID:        newEventID(),
		Timestamp: now.Format(time.RFC3339Nano),
		Operation: op,
		Source:    source,
		SessionID: l.sessionID,
		Result:    result,
		RecordID:  recordID,
		Context:   ctx,
		Chain: Chain{
			Sequence: l.sequence + 1,
			PrevHash: l.prevHash,
		},
	}
	event.Chain.HMAC = l.sign(&event)

	if err := l.writeEvent(&event, now); err != nil {
		return err
	}
	l.sequence = event.Chain.Sequence
	l.prevHash = event.Chain.HMAC
	return l.saveChainState()
}

// Success records a completed operation.
func (l *Logger) Success(op, source, recordID string) error {
	return l.Log(op, source, ResultSuccess, recordID, nil)
}

// Denied records a rejected operation.
func (l *Logger) Denied(op, source, reason string) error {
	return l.Log(op, source, ResultDenied, "", map[string]any{"reason": reason})
}

func newEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// sign computes the HMAC over every field except the HMAC itself.
func (l *Logger) sign(e *Event) string {
	mac := hmac.New(sha256.New, l.hmacKey)
	fmt.Fprintf(mac, "%d|%s|%s|%s|%s|%s|%s|%s|", e.Version, e.ID, e.Timestamp, e.Operation, e.Source, e.SessionID, e.Result, e.RecordID)

	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(mac, "%s=%v|", k, e.Context[k])
	}

	fmt.Fprintf(mac, "%d|%s", e.Chain.Sequence, e.Chain.PrevHash)
	return hex.EncodeToString(mac.Sum(nil))
}

func (l *Logger) writeEvent(e *Event, at time.Time) error {
	name := filepath.Join(l.path, at.Format("2006-01")+".jsonl")
	f, err := os.OpenFile(name, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("audit: failed to open log file: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("audit: failed to marshal event: %w", err)
	}
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("audit: failed to write event: %w", err)
	}
	return nil
}

func (l *Logger) loadChainState() error {
	data, err := os.ReadFile(filepath.Join(l.path, stateFileName))
	if err != nil {
		return err
	}
	var state chainState
	if err := json.Unmarshal(data, &state); err != nil {
		return err
	}
	l.sequence = state.Sequence
	l.prevHash = state.PrevHash
	return nil
}

func (l *Logger) saveChainState() error {
	data, err := json.Marshal(chainState{Sequence: l.sequence, PrevHash: l.prevHash})
	if err != nil {
		return fmt.Errorf("audit: failed to marshal chain state: %w", err)
	}
	if err := os.WriteFile(filepath.Join(l.path, stateFileName), data, 0o600); err != nil {
		return fmt.Errorf("audit: failed to save chain state: %w", err)
	}
	return nil
}

// VerifyResult reports the outcome of Verify.
type VerifyResult struct {
	Valid        bool     `json:"valid"`
	RecordsTotal int      `json:"records_total"`
	Errors       []string `json:"errors,omitempty"`
}

// Verify walks every log file in order and checks sequence numbers, links
// and HMACs.
func (l *Logger) Verify() (*VerifyResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	result := &VerifyResult{Valid: true}
	prev := genesis
	var seq int64 = 1
	for i := range events {
		e := &events[i]
		result.RecordsTotal++

		if e.Chain.Sequence != seq {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("sequence gap at event %s: expected %d, got %d", e.ID, seq, e.Chain.Sequence))
		}
		if e.Chain.PrevHash != prev {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("chain broken at event %s", e.ID))
		}
		if !hmac.Equal([]byte(e.Chain.HMAC), []byte(l.sign(e))) {
			result.Valid = false
			result.Errors = append(result.Errors, fmt.Sprintf("HMAC mismatch at event %s: possible tampering", e.ID))
		}

		prev = e.Chain.HMAC
		seq = e.Chain.Sequence + 1
	}
	return result, nil
}

// List returns events after since (zero means all), oldest first. A positive
// limit keeps only the most recent events.
func (l *Logger) List(limit int, since time.Time) ([]Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	events, err := l.readAll()
	if err != nil {
		return nil, err
	}

	if !since.IsZero() {
		filtered := events[:0]
		for _, e := range events {
			if t, err := e.Time(); err == nil && t.After(since) {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}
	if limit > 0 && len(events) > limit {
		events = events[len(events)-limit:]
	}
	return events, nil
}

func (l *Logger) readAll() ([]Event, error) {
	files, err := filepath.Glob(filepath.Join(l.path, "*.jsonl"))
	if err != nil {
		return nil, fmt.Errorf("audit: failed to list log files: %w", err)
	}
	// YYYY-MM names sort chronologically
	sort.Strings(files)

	var events []Event
	for _, file := range files {
		fileEvents, err := readLogFile(file)
		if err != nil {
			return nil, fmt.Errorf("audit: failed to read %s: %w", filepath.Base(file), err)
		}
		events = append(events, fileEvents...)
	}
	return events, nil
}

func readLogFile(path string) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var events []Event
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(bytes.TrimSpace(sc.Bytes())) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		events = append(events, e)
	}
	return events, sc.Err()
}
