package graph

import (
	"strings"

	"github.com/OFFIS-RIT/dglink/pkg/common"
)

// mergeRecord folds incoming into stored following each attribute's merge
// rule. Attributes outside the schema are dropped. On creation every scalar
// of the schema is materialised, empty when the incoming record lacks it.
func mergeRecord(schema *common.Schema, stored, incoming *common.Record, created bool) []Conflict {
	var conflicts []Conflict

	for _, attr := range schema.Attributes() {
		switch attr.Rule {
		case common.MergeSetUnion:
			values := incoming.Values(attr.Name)
			if v := incoming.Get(attr.Name); v != "" {
				values = append(values, v)
			}
			for _, v := range values {
				if stripQuotes(v) == "" {
					continue
				}
				stored.Add(attr.Name, v)
			}

		case common.MergeIfEmpty:
			v := incoming.Get(attr.Name)
			if v == "" {
				if vs := incoming.Values(attr.Name); len(vs) > 0 {
					v = vs[0]
				}
			}
			cur := stored.Get(attr.Name)
			switch {
			case created && cur == "":
				stored.Set(attr.Name, v)
			case cur == "" && v != "":
				stored.Set(attr.Name, v)
			case v != "" && v != cur:
				conflicts = append(conflicts, Conflict{Attribute: attr.Name, Kept: cur, Rejected: v})
			}
		}
	}

	return conflicts
}

var quoteStripper = strings.NewReplacer(`"`, "", `'`, "")

// stripQuotes removes every single and double quote character.
func stripQuotes(v string) string {
	return quoteStripper.Replace(v)
}
