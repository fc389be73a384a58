package common

import (
	"maps"
	"slices"
)

// Record is one observation of a node or an edge. It is a bag of attribute
// values keyed by the attribute's column name (for example "curie:ID" or
// "source:string[]").
//
// A record keeps scalar values and multi-valued values apart:
//   - Scalars: single strings, merged with MergeIfEmpty
//   - Sets: unordered string sets, merged with MergeSetUnion
//
// Which of the two a given attribute uses is decided by the Schema the record
// is stored under, not by the record itself. A record built by an extractor
// may therefore carry a value in the "wrong" bucket; the store resolves that
// when the record is merged.
type Record struct {
	scalars map[string]string
	sets    map[string]map[string]struct{}
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{
		scalars: make(map[string]string),
		sets:    make(map[string]map[string]struct{}),
	}
}

// Set assigns a scalar value and returns the record for chaining.
func (r *Record) Set(name, value string) *Record {
	r.scalars[name] = value
	return r
}

// Add inserts values into the set attribute name and returns the record for
// chaining. Empty strings are kept here; filtering happens on merge.
func (r *Record) Add(name string, values ...string) *Record {
	set, ok := r.sets[name]
	if !ok {
		set = make(map[string]struct{}, len(values))
		r.sets[name] = set
	}
	for _, v := range values {
		set[v] = struct{}{}
	}
	return r
}

// Get returns the scalar value of name, or "" when unset.
func (r *Record) Get(name string) string {
	return r.scalars[name]
}

// Values returns the members of the set attribute name in sorted order.
func (r *Record) Values(name string) []string {
	set := r.sets[name]
	if len(set) == 0 {
		return nil
	}
	return slices.Sorted(maps.Keys(set))
}

// Has reports whether the set attribute name contains value.
func (r *Record) Has(name, value string) bool {
	_, ok := r.sets[name][value]
	return ok
}

// Len returns the number of members of the set attribute name.
func (r *Record) Len(name string) int {
	return len(r.sets[name])
}

// Scalars returns the names of all scalar attributes present on the record.
func (r *Record) Scalars() []string {
	return slices.Sorted(maps.Keys(r.scalars))
}

// SetNames returns the names of all set attributes present on the record.
func (r *Record) SetNames() []string {
	return slices.Sorted(maps.Keys(r.sets))
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	c := &Record{
		scalars: maps.Clone(r.scalars),
		sets:    make(map[string]map[string]struct{}, len(r.sets)),
	}
	for name, set := range r.sets {
		c.sets[name] = maps.Clone(set)
	}
	return c
}

// Equal reports whether both records hold the same scalars and sets. An
// empty set and an absent set compare equal.
func (r *Record) Equal(o *Record) bool {
	if r == nil || o == nil {
		return r == o
	}
	if !maps.Equal(r.scalars, o.scalars) {
		return false
	}
	for name, set := range r.sets {
		if !maps.Equal(set, o.sets[name]) && (len(set) != 0 || len(o.sets[name]) != 0) {
			return false
		}
	}
	for name, set := range o.sets {
		if _, ok := r.sets[name]; !ok && len(set) != 0 {
			return false
		}
	}
	return true
}
