package ground

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// PrefixTyper labels terms by namespace. Individual identifiers can
// override the namespace default.
type PrefixTyper struct {
	Namespaces map[string]string `yaml:"namespaces"`
	Overrides  map[string]string `yaml:"overrides"`
}

// DefaultTyper covers the namespaces gilda grounds into.
func DefaultTyper() *PrefixTyper {
	return &PrefixTyper{
		Namespaces: map[string]string{
			"hgnc":    "human_gene_protein",
			"uniprot": "human_gene_protein",
			"up":      "human_gene_protein",
			"fplx":    "protein_family_complex",
			"chebi":   "small_molecule",
			"pubchem": "small_molecule",
			"mesh":    "disease",
			"doid":    "disease",
			"mondo":   "disease",
			"efo":     "experimental_factor",
			"hp":      "phenotype",
			"go":      "biological_process",
			"uberon":  "anatomy",
			"cl":      "cell_type",
			"ncit":    "biological_entity",
		},
	}
}

// LoadTyper reads a namespace table from a YAML file. Entries in the file
// are merged over DefaultTyper.
func LoadTyper(path string) (*PrefixTyper, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var file PrefixTyper
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	t := DefaultTyper()
	t.Overrides = make(map[string]string)
	for ns, typ := range file.Namespaces {
		t.Namespaces[strings.ToLower(ns)] = typ
	}
	for curie, typ := range file.Overrides {
		t.Overrides[curie] = typ
	}
	return t, nil
}

func (t *PrefixTyper) TypeOf(db, id string) string {
	if typ, ok := t.Overrides[NormalizeCURIE(db, id)]; ok && typ != "" {
		return typ
	}
	if typ, ok := t.Namespaces[strings.ToLower(db)]; ok && typ != "" {
		return typ
	}
	return UnknownType
}
