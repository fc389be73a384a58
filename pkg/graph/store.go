package graph

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/OFFIS-RIT/dglink/pkg/common"
)

var ErrNotFound = errors.New("record not found")

// Outcome describes what a single upsert did to the store.
type Outcome struct {
	Key       string
	Created   bool
	Conflicts []Conflict
}

// Conflict is a scalar value that was rejected because the stored record
// already held a different non-empty value for the same attribute.
type Conflict struct {
	Attribute string
	Kept      string
	Rejected  string
}

// Quarantined is a record that could not be identified and was held back
// from the store.
type Quarantined struct {
	Key    string
	Record *common.Record
	Err    error
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithQuarantine makes the store refuse records with incomplete identity.
// They are kept aside and can be inspected with Store.Quarantine instead of
// collapsing onto a shared placeholder key.
func WithQuarantine() StoreOption {
	return func(s *Store) { s.quarantine = true }
}

// Store maps identity keys to records under one schema and merges repeated
// observations of the same key. It is safe for concurrent use.
type Store struct {
	schema     *common.Schema
	quarantine bool

	mu          sync.RWMutex
	records     map[string]*common.Record
	quarantined []Quarantined
}

// NewStore returns an empty store for schema.
func NewStore(schema *common.Schema, opts ...StoreOption) *Store {
	s := &Store{
		schema:  schema,
		records: make(map[string]*common.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schema returns the schema the store was built with.
func (s *Store) Schema() *common.Schema { return s.schema }

// Upsert merges r under the key computed from the schema's identity fields.
//
// When identity fields are missing the record is merged under the
// placeholder key and the returned error is nil. A store created with
// WithQuarantine instead parks the record and returns an error wrapping
// common.ErrIncompleteIdentity.
func (s *Store) Upsert(r *common.Record) (Outcome, error) {
	key, err := s.schema.Key(r)
	if err != nil {
		if !errors.Is(err, common.ErrIncompleteIdentity) || s.quarantine {
			s.mu.Lock()
			s.quarantined = append(s.quarantined, Quarantined{Key: key, Record: r.Clone(), Err: err})
			s.mu.Unlock()
			return Outcome{Key: key}, err
		}
	}
	return s.UpsertKeyed(key, r)
}

// UpsertKeyed merges r under an explicit key, bypassing identity
// computation.
func (s *Store) UpsertKeyed(key string, r *common.Record) (Outcome, error) {
	if key == "" {
		return Outcome{}, fmt.Errorf("%w: empty key", common.ErrIncompleteIdentity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[key]
	if !ok {
		stored = common.NewRecord()
		s.records[key] = stored
	}
	conflicts := mergeRecord(s.schema, stored, r, !ok)
	return Outcome{Key: key, Created: !ok, Conflicts: conflicts}, nil
}

// Get returns a copy of the record stored under key.
func (s *Store) Get(key string) (*common.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.records[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return r.Clone(), nil
}

// Contains reports whether key is present.
func (s *Store) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.records[key]
	return ok
}

// Len returns the number of distinct keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Keys returns every key in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.records))
}

// Each calls fn for every record in key order until fn returns false. The
// record passed to fn is a copy.
func (s *Store) Each(fn func(key string, r *common.Record) bool) {
	for _, key := range s.Keys() {
		s.mu.RLock()
		r, ok := s.records[key]
		if ok {
			r = r.Clone()
		}
		s.mu.RUnlock()
		if !ok {
			continue
		}
		if !fn(key, r) {
			return
		}
	}
}

// Absorb merges every record of other into s under the same keys and
// returns the scalar conflicts it ran into.
func (s *Store) Absorb(other *Store) []KeyedConflict {
	var out []KeyedConflict
	other.Each(func(key string, r *common.Record) bool {
		res, _ := s.UpsertKeyed(key, r)
		for _, c := range res.Conflicts {
			out = append(out, KeyedConflict{Key: key, Conflict: c})
		}
		return true
	})
	return out
}

// KeyedConflict is a Conflict together with the key it occurred under.
type KeyedConflict struct {
	Key string
	Conflict
}

// Quarantine returns the records held back because their identity was
// incomplete.
func (s *Store) Quarantine() []Quarantined {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Quarantined(nil), s.quarantined...)
}

// Equal reports whether both stores hold the same keys with equal records.
func (s *Store) Equal(o *Store) bool {
	if s.Len() != o.Len() {
		return false
	}
	equal := true
	s.Each(func(key string, r *common.Record) bool {
		other, err := o.Get(key)
		if err != nil || !r.Equal(other) {
			equal = false
		}
		return equal
	})
	return equal
}
