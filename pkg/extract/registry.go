package extract

import (
	"fmt"
	"strings"

	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/loader/csv"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

// Publication is one row of the portal's publication registry.
type Publication struct {
	PMID     string
	Title    string
	DOI      string
	StudyIDs []string
}

// Tool is one row of the portal's tool registry.
type Tool struct {
	RRID     string
	Name     string
	Type     string
	Synonyms []string
}

// ID is the tool's graph identifier: its RRID, else its name.
func (t Tool) ID() string {
	if t.RRID != "" {
		return t.RRID
	}
	return t.Name
}

// LoadPublications parses a registry export with the columns pmid, title,
// doi and studyId. studyId may list several ids.
func LoadPublications(content []byte) ([]Publication, error) {
	t, err := registryTable("publications", content, "pmid", "title", "doi", "studyId")
	if err != nil {
		return nil, err
	}
	pmid, title, doi, study := t.Index("pmid"), t.Index("title"), t.Index("doi"), t.Index("studyId")

	pubs := make([]Publication, 0, len(t.Rows))
	for _, row := range t.Rows {
		p := Publication{
			PMID:     row[pmid],
			Title:    row[title],
			DOI:      row[doi],
			StudyIDs: splitList(row[study]),
		}
		if p.PMID == "" && p.Title == "" {
			continue
		}
		pubs = append(pubs, p)
	}
	return pubs, nil
}

// LoadTools parses a registry export with the columns rrid, resourceName,
// resourceType and synonyms.
func LoadTools(content []byte) ([]Tool, error) {
	t, err := registryTable("tools", content, "rrid", "resourceName", "resourceType", "synonyms")
	if err != nil {
		return nil, err
	}
	rrid, name, typ, syn := t.Index("rrid"), t.Index("resourceName"), t.Index("resourceType"), t.Index("synonyms")

	tools := make([]Tool, 0, len(t.Rows))
	for _, row := range t.Rows {
		tool := Tool{
			RRID:     row[rrid],
			Name:     row[name],
			Type:     row[typ],
			Synonyms: splitList(row[syn]),
		}
		if tool.ID() == "" {
			continue
		}
		tools = append(tools, tool)
	}
	return tools, nil
}

func registryTable(name string, content []byte, columns ...string) (loader.Table, error) {
	t, err := csv.ParseTable(name, content, 0)
	if err != nil {
		return loader.Table{}, err
	}
	for _, c := range columns {
		if t.Index(c) < 0 {
			return loader.Table{}, fmt.Errorf("%s registry: missing column %q", name, c)
		}
	}
	return t, nil
}

// splitList reads list cells exported as "a;b", "a,b" or "[a, b]".
func splitList(cell string) []string {
	cell = strings.Trim(strings.TrimSpace(cell), "[]")
	parts := strings.FieldsFunc(cell, func(r rune) bool { return r == ';' || r == ',' })
	for i, p := range parts {
		parts[i] = clean(p)
	}
	return store.DedupeStrings(parts)
}
