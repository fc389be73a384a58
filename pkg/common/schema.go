package common

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrIncompleteIdentity is returned when a record lacks one or more of
	// its schema's identity attributes. The accompanying key is still usable:
	// missing components are replaced by the schema's placeholders.
	ErrIncompleteIdentity = errors.New("record identity incomplete")
	// ErrAmbiguousIdentity is returned when a component of a composite key
	// contains KeySeparator, which would let two distinct records share a
	// key.
	ErrAmbiguousIdentity = errors.New("identity component contains key separator")
	ErrInvalidSchema     = errors.New("invalid schema")
)

// KeySeparator joins the components of a composite identity key.
const KeySeparator = "|"

// DefaultMaxSetSize caps multi-valued attributes on serialization.
const DefaultMaxSetSize = 20

// MergeRule decides how an attribute reacts when a record is upserted under
// a key that already exists.
type MergeRule int

const (
	// MergeIfEmpty stores the incoming scalar only when the stored one is
	// empty. The first non-empty writer wins.
	MergeIfEmpty MergeRule = iota
	// MergeSetUnion accumulates members by set union. The set is bounded
	// to the schema's MaxSetSize when serialized.
	MergeSetUnion
)

func (m MergeRule) String() string {
	switch m {
	case MergeIfEmpty:
		return "overwrite-if-empty"
	case MergeSetUnion:
		return "set-union-bounded"
	default:
		return fmt.Sprintf("MergeRule(%d)", int(m))
	}
}

// Attribute is one column of a schema.
type Attribute struct {
	Name string
	Rule MergeRule
}

// Scalar returns a single-valued attribute.
func Scalar(name string) Attribute { return Attribute{Name: name, Rule: MergeIfEmpty} }

// Multi returns a multi-valued attribute.
func Multi(name string) Attribute { return Attribute{Name: name, Rule: MergeSetUnion} }

// InferAttribute derives an attribute from a bulk-import column header. It is
// only used for columns that appear in a file but not in the schema the file
// is read with.
func InferAttribute(name string) Attribute {
	if strings.HasSuffix(name, "[]") {
		return Multi(name)
	}
	return Scalar(name)
}

// IdentityField names an attribute that takes part in a record's identity
// key, and the literal used in its place when the record lacks it.
type IdentityField struct {
	Attribute   string
	Placeholder string
}

// SchemaParams configures NewSchema.
type SchemaParams struct {
	Name            string
	Version         int
	Attributes      []Attribute
	Identity        []IdentityField
	SourceAttribute string
	MaxSetSize      int
}

// Schema is the closed attribute vocabulary of one record kind (nodes or
// edges) at one version. Schemas are immutable once built and are passed
// to the stores that use them.
type Schema struct {
	name       string
	version    int
	attrs      []Attribute
	index      map[string]int
	identity   []IdentityField
	source     string
	maxSetSize int
}

// NewSchema validates params and builds a schema.
func NewSchema(params SchemaParams) (*Schema, error) {
	if params.Name == "" {
		return nil, fmt.Errorf("%w: name is empty", ErrInvalidSchema)
	}
	if len(params.Identity) == 0 {
		return nil, fmt.Errorf("%w: %s has no identity fields", ErrInvalidSchema, params.Name)
	}

	s := &Schema{
		name:       params.Name,
		version:    params.Version,
		attrs:      make([]Attribute, 0, len(params.Attributes)),
		index:      make(map[string]int, len(params.Attributes)),
		identity:   append([]IdentityField(nil), params.Identity...),
		source:     params.SourceAttribute,
		maxSetSize: params.MaxSetSize,
	}
	if s.maxSetSize <= 0 {
		s.maxSetSize = DefaultMaxSetSize
	}

	for _, a := range params.Attributes {
		if a.Name == "" {
			return nil, fmt.Errorf("%w: %s has an unnamed attribute", ErrInvalidSchema, s.name)
		}
		if _, dup := s.index[a.Name]; dup {
			return nil, fmt.Errorf("%w: %s declares %q twice", ErrInvalidSchema, s.name, a.Name)
		}
		s.index[a.Name] = len(s.attrs)
		s.attrs = append(s.attrs, a)
	}

	for _, f := range s.identity {
		a, ok := s.Attribute(f.Attribute)
		if !ok {
			return nil, fmt.Errorf("%w: identity field %q not declared in %s", ErrInvalidSchema, f.Attribute, s.name)
		}
		if a.Rule != MergeIfEmpty {
			return nil, fmt.Errorf("%w: identity field %q must be scalar", ErrInvalidSchema, f.Attribute)
		}
		if f.Placeholder == "" {
			return nil, fmt.Errorf("%w: identity field %q has no placeholder", ErrInvalidSchema, f.Attribute)
		}
	}

	if s.source != "" {
		a, ok := s.Attribute(s.source)
		if !ok || a.Rule != MergeSetUnion {
			return nil, fmt.Errorf("%w: source attribute %q must be a declared set", ErrInvalidSchema, s.source)
		}
	}

	return s, nil
}

// MustSchema is NewSchema for statically known parameters.
func MustSchema(params SchemaParams) *Schema {
	s, err := NewSchema(params)
	if err != nil {
		panic(err)
	}
	return s
}

func (s *Schema) Name() string            { return s.name }
func (s *Schema) Version() int            { return s.version }
func (s *Schema) MaxSetSize() int         { return s.maxSetSize }
func (s *Schema) SourceAttribute() string { return s.source }

// Attributes returns the columns in declaration order.
func (s *Schema) Attributes() []Attribute {
	return append([]Attribute(nil), s.attrs...)
}

// Attribute looks up a column by name.
func (s *Schema) Attribute(name string) (Attribute, bool) {
	i, ok := s.index[name]
	if !ok {
		return Attribute{}, false
	}
	return s.attrs[i], true
}

// Identity returns the identity fields in key order.
func (s *Schema) Identity() []IdentityField {
	return append([]IdentityField(nil), s.identity...)
}

// Key computes the identity key of r. When an identity attribute is empty
// its placeholder takes its place and ErrIncompleteIdentity is returned
// alongside the key. Components of a composite key must not contain
// KeySeparator; such records get ErrAmbiguousIdentity.
func (s *Schema) Key(r *Record) (string, error) {
	parts := make([]string, len(s.identity))
	var missing []string
	for i, f := range s.identity {
		v := r.Get(f.Attribute)
		if v == "" {
			v = f.Placeholder
			missing = append(missing, f.Attribute)
		}
		parts[i] = v
	}

	key := strings.Join(parts, KeySeparator)
	if len(parts) > 1 {
		for i, p := range parts {
			if strings.Contains(p, KeySeparator) {
				return key, fmt.Errorf("%w: %s %s = %q", ErrAmbiguousIdentity, s.name, s.identity[i].Attribute, p)
			}
		}
	}
	if len(missing) > 0 {
		return key, fmt.Errorf("%w: %s missing %s", ErrIncompleteIdentity, s.name, strings.Join(missing, ", "))
	}
	return key, nil
}

// Extend returns a copy of the schema with extra attributes appended.
// Attributes already declared are skipped.
func (s *Schema) Extend(attrs ...Attribute) (*Schema, error) {
	all := s.Attributes()
	for _, a := range attrs {
		if _, ok := s.index[a.Name]; ok {
			continue
		}
		all = append(all, a)
	}
	return NewSchema(SchemaParams{
		Name:            s.name,
		Version:         s.version,
		Attributes:      all,
		Identity:        s.identity,
		SourceAttribute: s.source,
		MaxSetSize:      s.maxSetSize,
	})
}

// Headers returns the column names in declaration order.
func (s *Schema) Headers() []string {
	out := make([]string, len(s.attrs))
	for i, a := range s.attrs {
		out[i] = a.Name
	}
	return out
}
