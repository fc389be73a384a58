// Package ground maps free text onto ontology terms. Grounding itself is
// delegated to a remote service; this package normalises what comes back
// into graph identifiers and node types.
package ground

import (
	"context"
	"errors"
	"strings"
)

var ErrEmptyText = errors.New("nothing to ground")

// Term is one ontology match.
type Term struct {
	DB    string
	ID    string
	Name  string
	Score float64
}

// CURIE returns the normalised compact identifier of t.
func (t Term) CURIE() string { return NormalizeCURIE(t.DB, t.ID) }

// Annotation is a span of free text matched to a term.
type Annotation struct {
	Text  string
	Start int
	End   int
	Term  Term
}

// Grounder returns the best-scored terms for a short text, best first.
type Grounder interface {
	Ground(ctx context.Context, text string) ([]Term, error)
}

// Annotator finds every groundable span in a longer text.
type Annotator interface {
	Annotate(ctx context.Context, text string) ([]Annotation, error)
}

// Typer resolves the node label of an ontology term.
type Typer interface {
	TypeOf(db, id string) string
}

// UnknownType labels terms no namespace rule covers.
const UnknownType = "unknown"

// prefixes the registry writes in lower case even when services return
// them in upper case.
var lowerPrefixes = map[string]string{
	"HGNC":    "hgnc",
	"MESH":    "mesh",
	"CHEBI":   "CHEBI",
	"GO":      "GO",
	"DOID":    "DOID",
	"HP":      "HP",
	"EFO":     "efo",
	"UBERON":  "UBERON",
	"CL":      "CL",
	"FPLX":    "fplx",
	"NCIT":    "ncit",
	"MONDO":   "MONDO",
	"UP":      "uniprot",
	"UNIPROT": "uniprot",
	"PUBCHEM": "pubchem.compound",
}

// NormalizeCURIE builds a registry-style CURIE "prefix:id". Redundant
// prefixes inside id (e.g. "CHEBI:CHEBI:1234") are removed.
func NormalizeCURIE(db, id string) string {
	db = strings.TrimSpace(db)
	id = strings.TrimSpace(id)
	if db == "" {
		return id
	}
	prefix, ok := lowerPrefixes[strings.ToUpper(db)]
	if !ok {
		prefix = strings.ToLower(db)
	}
	if i := strings.Index(id, ":"); i >= 0 && strings.EqualFold(id[:i], db) {
		id = id[i+1:]
	}
	return prefix + ":" + id
}

var iriPatterns = map[string]string{
	"hgnc":             "https://identifiers.org/hgnc:%s",
	"mesh":             "https://meshb.nlm.nih.gov/record/ui?ui=%s",
	"CHEBI":            "http://purl.obolibrary.org/obo/CHEBI_%s",
	"GO":               "http://purl.obolibrary.org/obo/GO_%s",
	"DOID":             "http://purl.obolibrary.org/obo/DOID_%s",
	"HP":               "http://purl.obolibrary.org/obo/HP_%s",
	"UBERON":           "http://purl.obolibrary.org/obo/UBERON_%s",
	"CL":               "http://purl.obolibrary.org/obo/CL_%s",
	"MONDO":            "http://purl.obolibrary.org/obo/MONDO_%s",
	"efo":              "http://www.ebi.ac.uk/efo/EFO_%s",
	"ncit":             "http://purl.obolibrary.org/obo/NCIT_%s",
	"fplx":             "https://identifiers.org/fplx:%s",
	"uniprot":          "https://www.uniprot.org/uniprot/%s",
	"pubchem.compound": "https://pubchem.ncbi.nlm.nih.gov/compound/%s",
	"dbsnp":            "https://www.ncbi.nlm.nih.gov/snp/%s",
}

// IRI resolves a CURIE produced by NormalizeCURIE to a browsable IRI. Unknown
// prefixes fall back to identifiers.org.
func IRI(curie string) string {
	prefix, id, ok := strings.Cut(curie, ":")
	if !ok || id == "" {
		return ""
	}
	if pattern, ok := iriPatterns[prefix]; ok {
		return strings.Replace(pattern, "%s", id, 1)
	}
	return "https://identifiers.org/" + curie
}
