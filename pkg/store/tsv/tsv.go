// Package tsv reads and writes entity stores in the tab separated layout
// used for bulk graph database imports.
//
// The first line holds the attribute names. Every following line is one
// record. Multi-valued attributes are written as a double quoted,
// semicolon joined list of at most the schema's MaxSetSize members.
// Newlines are stripped from every value. Literal tabs and semicolons inside
// a value are not escaped: such values do not survive a round trip.
package tsv

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

const (
	fieldSep = "\t"
	setSep   = ";"

	maxLineSize = 64 * 1024 * 1024
)

var (
	ErrMalformedHeader = errors.New("malformed header")

	newlineStripper = strings.NewReplacer("\r\n", "", "\n", "", "\r", "")
	quoteStripper   = strings.NewReplacer(`"`, "", `'`, "")
)

// WriteStats reports lossy encodings that happened while writing.
type WriteStats struct {
	Records int
	// Truncated counts set values that lost members to the size cap.
	Truncated int
	// Tabbed counts values containing a literal tab.
	Tabbed int
}

// Encode writes s to w.
func Encode(w io.Writer, s *graph.Store) (WriteStats, error) {
	var stats WriteStats
	schema := s.Schema()
	attrs := schema.Attributes()
	maxSet := schema.MaxSetSize()

	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString(strings.Join(schema.Headers(), fieldSep) + "\n"); err != nil {
		return stats, err
	}

	var writeErr error
	row := make([]string, len(attrs))
	s.Each(func(key string, r *common.Record) bool {
		for i, attr := range attrs {
			var v string
			if attr.Rule == common.MergeSetUnion {
				members := r.Values(attr.Name)
				if len(members) > maxSet {
					members = members[:maxSet]
					stats.Truncated++
				}
				for j, m := range members {
					members[j] = quoteStripper.Replace(newlineStripper.Replace(m))
				}
				v = `"` + strings.Join(members, setSep) + `"`
			} else {
				v = newlineStripper.Replace(r.Get(attr.Name))
			}
			if strings.Contains(v, fieldSep) {
				stats.Tabbed++
			}
			row[i] = v
		}
		if _, err := bw.WriteString(strings.Join(row, fieldSep) + "\n"); err != nil {
			writeErr = err
			return false
		}
		stats.Records++
		return true
	})
	if writeErr != nil {
		return stats, writeErr
	}
	if err := bw.Flush(); err != nil {
		return stats, err
	}

	if stats.Truncated > 0 {
		logger.Warn("[TSV] Set values truncated", "schema", schema.Name(), "values", stats.Truncated, "max", maxSet)
	}
	if stats.Tabbed > 0 {
		logger.Warn("[TSV] Values contain literal tabs, rows will not read back intact", "schema", schema.Name(), "values", stats.Tabbed)
	}
	return stats, nil
}

// Decode reads a store from r. The header decides column order; columns
// unknown to schema are added to the returned store's schema with a merge
// rule inferred from the column name. Rows sharing a key are merged.
func Decode(r io.Reader, schema *common.Schema) (*graph.Store, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return nil, err
		}
		return graph.NewStore(schema), nil
	}

	header := strings.Split(strings.TrimSuffix(sc.Text(), "\r"), fieldSep)
	var unknown []common.Attribute
	seen := make(map[string]struct{}, len(header))
	for _, name := range header {
		if name == "" {
			return nil, fmt.Errorf("%w: empty column name", ErrMalformedHeader)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate column %q", ErrMalformedHeader, name)
		}
		seen[name] = struct{}{}
		if _, ok := schema.Attribute(name); !ok {
			unknown = append(unknown, common.InferAttribute(name))
		}
	}
	if len(unknown) > 0 {
		logger.Debug("[TSV] Extending schema with file columns", "schema", schema.Name(), "columns", len(unknown))
		ext, err := schema.Extend(unknown...)
		if err != nil {
			return nil, err
		}
		schema = ext
	}

	rules := make([]common.MergeRule, len(header))
	for i, name := range header {
		a, _ := schema.Attribute(name)
		rules[i] = a.Rule
	}

	store := graph.NewStore(schema)
	line := 1
	for sc.Scan() {
		line++
		text := strings.TrimSuffix(sc.Text(), "\r")
		if text == "" {
			continue
		}
		cells := strings.Split(text, fieldSep)

		rec := common.NewRecord()
		for i, name := range header {
			var v string
			if i < len(cells) {
				v = cells[i]
			}
			if rules[i] == common.MergeSetUnion {
				rec.Add(name, splitSet(v)...)
			} else {
				rec.Set(name, v)
			}
		}
		if _, err := store.Upsert(rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return store, nil
}

func splitSet(v string) []string {
	v = quoteStripper.Replace(v)
	if v == "" {
		return nil
	}
	parts := strings.Split(v, setSep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
