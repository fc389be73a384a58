// Package loader describes the data repository projects are read from. The
// repository hands out project metadata, wiki pages and file contents;
// subpackages implement it for a local mirror and for an object store, and
// parse tabular file contents.
package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"
)

var (
	// ErrLocked is returned for content the caller may not read.
	ErrLocked   = errors.New("access to resource is locked")
	ErrNotFound = errors.New("resource not found")
)

// Repository is the read-only view of the data portal.
type Repository interface {
	FetchMetadata(ctx context.Context, projectID string) (Metadata, error)
	FetchWiki(ctx context.Context, projectID string) (Wiki, error)
	ListFiles(ctx context.Context, projectID string) ([]FileRef, error)
	FetchFile(ctx context.Context, file FileRef) ([]byte, error)
}

// ProjectLister is implemented by repositories that can enumerate their
// projects.
type ProjectLister interface {
	Projects(ctx context.Context) ([]string, error)
}

// Metadata holds the annotation fields of a project. Scalar values are kept
// as single element lists.
type Metadata struct {
	ID     string
	Name   string
	Fields map[string][]string
}

// Values returns the values of field, or nil.
func (m Metadata) Values(field string) []string {
	return m.Fields[field]
}

type Wiki struct {
	OwnerID  string `json:"ownerId"`
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
}

// Field returns a wiki field by its portal name.
func (w Wiki) Field(name string) (string, bool) {
	switch name {
	case "title":
		return w.Title, w.Title != ""
	case "markdown":
		return w.Markdown, w.Markdown != ""
	}
	return "", false
}

// FileRef points at one file of a project.
type FileRef struct {
	ID        string
	ProjectID string
	Path      string
	Size      int64
	// Annotations are the file's portal annotations, such as specimenID.
	Annotations map[string][]string
}

// Ext returns the lower-case extension of the file without the dot.
func (f FileRef) Ext() string {
	return strings.TrimPrefix(strings.ToLower(path.Ext(f.Path)), ".")
}

// Annotation returns the first value of the annotation name, or "".
func (f FileRef) Annotation(name string) string {
	if v := f.Annotations[name]; len(v) > 0 {
		return v[0]
	}
	return ""
}

// TabularExtensions are the file types parsed as tables.
var TabularExtensions = []string{"csv", "tsv", "txt", "xlsx"}

// IsTabular reports whether f is parsed as a table.
func (f FileRef) IsTabular() bool {
	return slices.Contains(TabularExtensions, f.Ext())
}

// metadataJSON is the on-disk form of Metadata in repository mirrors.
type metadataJSON struct {
	ID     string                     `json:"id"`
	Name   string                     `json:"name"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// ParseMetadata decodes a mirrored metadata document. Field values may be
// strings, numbers, booleans or lists of those.
func ParseMetadata(data []byte) (Metadata, error) {
	var raw metadataJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return Metadata{}, fmt.Errorf("failed to decode metadata: %w", err)
	}
	m := Metadata{ID: raw.ID, Name: raw.Name, Fields: make(map[string][]string, len(raw.Fields))}
	for name, value := range raw.Fields {
		values, err := flattenValue(value)
		if err != nil {
			return Metadata{}, fmt.Errorf("field %s: %w", name, err)
		}
		if len(values) > 0 {
			m.Fields[name] = values
		}
	}
	return m, nil
}

// ParseAnnotations decodes a file sidecar's annotation map.
func ParseAnnotations(raw map[string]json.RawMessage) (map[string][]string, error) {
	out := make(map[string][]string, len(raw))
	for name, value := range raw {
		values, err := flattenValue(value)
		if err != nil {
			return nil, fmt.Errorf("annotation %s: %w", name, err)
		}
		if len(values) > 0 {
			out[name] = values
		}
	}
	return out, nil
}

func flattenValue(raw json.RawMessage) ([]string, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	var out []string
	var walk func(v any)
	walk = func(v any) {
		switch x := v.(type) {
		case nil:
		case []any:
			for _, item := range x {
				walk(item)
			}
		case string:
			if x = strings.TrimSpace(x); x != "" {
				out = append(out, x)
			}
		case float64:
			out = append(out, formatNumber(x))
		case bool:
			out = append(out, fmt.Sprint(x))
		default:
			out = append(out, fmt.Sprint(x))
		}
	}
	walk(v)
	return out, nil
}

func formatNumber(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprint(f)
}
