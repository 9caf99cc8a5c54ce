// Package vault holds the in-memory credential record store and its persisted slot.
//
// The store keeps records most-recent-first and is the single source of truth
// for a session. Persistence is a whole-list write of the serialized store into
// one Slot.
package vault

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is an ordered, id-unique collection of records.
// It is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	records []Record
	index   map[string]int

	logger *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for degraded restores.
func WithLogger(l *zap.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides the time source for record timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator overrides the record id source.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// NewStore creates an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{
		index:  make(map[string]int),
		logger: zap.NewNop(),
		now:    func() time.Time { return time.Now().UTC().Round(0) },
		newID:  newRecordID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// newRecordID returns a time-ordered UUIDv7, falling back to a random UUID.
func newRecordID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Now returns the store clock's current time.
func (s *Store) Now() time.Time {
	return s.now()
}

// Add validates f and prepends a new record.
func (s *Store) Add(f Fields) (Record, error) {
	if err := f.Validate(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.newID()
	if _, exists := s.index[id]; exists {
		return Record{}, ErrDuplicateID
	}

	now := s.now()
	r := Record{
		ID:        id,
		Fields:    f.Trimmed(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.insertFront([]Record{r})
	return r, nil
}

// Update replaces the fields of an existing record, keeping its id, creation
// time and position.
func (s *Store) Update(id string, f Fields) (Record, error) {
	if err := f.Validate(); err != nil {
		return Record{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return Record{}, &NotFoundError{ID: id}
	}

	r := s.records[i]
	r.Fields = f.Trimmed()
	r.UpdatedAt = s.now()
	s.records[i] = r
	return r, nil
}

// Remove deletes the record with id. Removing an absent id is a no-op.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.reindex()
}

// Clear removes every record.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = nil
	s.index = make(map[string]int)
}

// Get returns the record with id.
func (s *Store) Get(id string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return Record{}, &NotFoundError{ID: id}
	}
	return s.records[i], nil
}

// Records returns a copy of all records in store order.
func (s *Store) Records() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Search returns records whose site or username contains query, ignoring case.
// An empty query matches everything.
func (s *Store) Search(query string) []Record {
	if query == "" {
		return s.Records()
	}
	// whitespace in the query is significant
	q := foldText(query)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []Record
	for _, r := range s.records {
		if strings.Contains(foldText(r.Site), q) || strings.Contains(foldText(r.Username), q) {
			out = append(out, r)
		}
	}
	return out
}

// Prepend inserts records at the front of the store, preserving their order.
// The batch is validated as a whole: if any record has a missing field or an id
// that collides with the store or the batch, nothing is inserted.
func (s *Store) Prepend(records ...Record) error {
	if len(records) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{}, len(records))
	batch := make([]Record, len(records))
	for i, r := range records {
		if err := r.Fields.Validate(); err != nil {
			return err
		}
		if r.ID == "" {
			return &ValidationError{Missing: []string{"id"}}
		}
		if _, exists := s.index[r.ID]; exists {
			return ErrDuplicateID
		}
		if _, dup := seen[r.ID]; dup {
			return ErrDuplicateID
		}
		seen[r.ID] = struct{}{}
		r.Fields = r.Fields.Trimmed()
		batch[i] = r
	}

	s.insertFront(batch)
	return nil
}

// NewRecord builds a record with a fresh id and timestamps without storing it.
func (s *Store) NewRecord(f Fields) Record {
	now := s.now()
	return Record{
		ID:        s.newID(),
		Fields:    f.Trimmed(),
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// insertFront must be called with mu held.
func (s *Store) insertFront(batch []Record) {
	records := make([]Record, 0, len(batch)+len(s.records))
	records = append(records, batch...)
	records = append(records, s.records...)
	s.records = records
	s.reindex()
}

func (s *Store) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}
