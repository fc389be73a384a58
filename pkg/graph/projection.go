package graph

import (
	"fmt"
	"maps"
	"slices"

	"github.com/OFFIS-RIT/dglink/pkg/common"
)

// Mode selects which records a projection keeps.
type Mode int

const (
	// Strict keeps records whose source set is exactly {source}.
	Strict Mode = iota
	// Inclusive keeps records whose source set contains source.
	Inclusive
	// Mixed keeps records with more than one source, whatever they are.
	Mixed
)

func (m Mode) String() string {
	switch m {
	case Strict:
		return "strict"
	case Inclusive:
		return "inclusive"
	case Mixed:
		return "mixed"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Project materialises the records of s selected by mode into a new store
// with the same schema. s is not modified. For Mixed the source argument is
// ignored. A schema without a source attribute projects to an empty store.
func Project(s *Store, source string, mode Mode) *Store {
	out := NewStore(s.schema)
	attr := s.schema.SourceAttribute()
	if attr == "" {
		return out
	}

	s.Each(func(key string, r *common.Record) bool {
		if matches(r, attr, source, mode) {
			out.UpsertKeyed(key, r)
		}
		return true
	})
	return out
}

func matches(r *common.Record, attr, source string, mode Mode) bool {
	switch mode {
	case Strict:
		return r.Len(attr) == 1 && r.Has(attr, source)
	case Inclusive:
		return r.Has(attr, source)
	case Mixed:
		return r.Len(attr) > 1
	default:
		return false
	}
}

// Sources returns the distinct source tags present in s, sorted.
func Sources(s *Store) []string {
	attr := s.schema.SourceAttribute()
	if attr == "" {
		return nil
	}
	seen := make(map[string]struct{})
	s.Each(func(_ string, r *common.Record) bool {
		for _, v := range r.Values(attr) {
			seen[v] = struct{}{}
		}
		return true
	})
	return slices.Sorted(maps.Keys(seen))
}
