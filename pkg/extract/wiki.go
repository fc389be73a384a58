package extract

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/ground"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
)

// DefaultWikiFields are the wiki fields annotated for entities.
var DefaultWikiFields = []string{"markdown", "title"}

const noNameFound = "no_name_found"

// Wiki adds a node for the project wiki and links every entity mentioned
// in it.
type Wiki struct {
	Repo      loader.Repository
	Annotator ground.Annotator
	Typer     ground.Typer
	BaseURL   string
	Fields    []string
}

func (w *Wiki) Source() string { return common.SourceWiki }

func (w *Wiki) Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error) {
	wiki, err := w.Repo.FetchWiki(ctx, projectID)
	if errors.Is(err, loader.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		st, err := fetchStatus(ctx, projectID, projectID, "wiki", err)
		if err != nil {
			return nil, err
		}
		return []common.FileStatus{st}, nil
	}

	owner := wiki.OwnerID
	if owner == "" {
		owner = projectID
	}
	wikiID := owner + common.WikiSuffix
	g.AddNode(common.NewNode(wikiID, common.LabelWiki, "", common.SourceWiki).
		Set(common.AttrStudyURL, StudyURL(w.BaseURL, owner)))
	g.AddEdge(common.NewEdge(owner, wikiID, common.RelHasWiki, common.SourceWiki))

	fields := w.Fields
	if len(fields) == 0 {
		fields = DefaultWikiFields
	}
	for _, field := range fields {
		text, ok := wiki.Field(field)
		if !ok {
			continue
		}
		anns, err := w.Annotator.Annotate(ctx, text)
		if err != nil {
			st, err := fetchStatus(ctx, projectID, projectID, "wiki:"+field, err)
			if err != nil {
				return nil, err
			}
			return []common.FileStatus{st}, nil
		}
		for _, a := range anns {
			curie := a.Term.CURIE()
			name := a.Term.Name
			if name == "" {
				name = noNameFound
			}
			g.AddNode(common.NewNode(curie, w.Typer.TypeOf(a.Term.DB, a.Term.ID), name, common.SourceWiki).
				Add(common.AttrRawTexts, a.Text).
				Add(common.AttrColumns, "wiki").
				Set(common.AttrIRI, ground.IRI(curie)))
			g.AddEdge(common.NewEdge(wikiID, curie, common.RelMentions, common.SourceWiki))
		}
	}
	return nil, nil
}
