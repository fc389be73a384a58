package extract

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/ground"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

var (
	// DefaultGroundFields are metadata fields whose values are grounded.
	DefaultGroundFields = []string{"manifestation", "diseaseFocus"}
	// DefaultUngroundedFields are kept as plain value nodes.
	DefaultUngroundedFields = []string{
		"fundingAgency",
		"studyStatus",
		"initiative",
		"relatedStudies",
		"parentId",
		"dataStatus",
		"institutions",
		"dataType",
		"grantDOI",
	}
)

// Metadata links a project to the values of its annotation fields. Every
// value becomes a node labelled with the field name; values of grounded
// fields additionally link to their ontology term.
type Metadata struct {
	Repo     loader.Repository
	Grounder ground.Grounder
	Typer    ground.Typer

	GroundFields     []string
	UngroundedFields []string
}

func (m *Metadata) Source() string { return common.SourceMetadata }

func (m *Metadata) Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error) {
	meta, err := m.Repo.FetchMetadata(ctx, projectID)
	if errors.Is(err, loader.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		st, err := fetchStatus(ctx, projectID, projectID, "metadata", err)
		if err != nil {
			return nil, err
		}
		return []common.FileStatus{st}, nil
	}
	owner := meta.ID
	if owner == "" {
		owner = projectID
	}

	groundFields := m.GroundFields
	if groundFields == nil {
		groundFields = DefaultGroundFields
	}
	plainFields := m.UngroundedFields
	if plainFields == nil {
		plainFields = DefaultUngroundedFields
	}

	for _, field := range groundFields {
		for _, value := range meta.Values(field) {
			m.addValue(owner, field, value, g)
			if err := m.addGrounding(ctx, owner, field, value, g); err != nil {
				return nil, err
			}
		}
	}
	for _, field := range plainFields {
		for _, value := range meta.Values(field) {
			m.addValue(owner, field, value, g)
		}
	}
	return nil, nil
}

func (m *Metadata) addValue(owner, field, value string, g *graph.Graph) {
	g.AddNode(common.NewNode(value, field, value, common.SourceMetadata).
		Add(common.AttrColumns, common.SourceMetadata).
		Add(common.AttrRawTexts, value))
	g.AddEdge(common.NewEdge(owner, value, common.HasRelation(field), common.SourceMetadata))
}

func (m *Metadata) addGrounding(ctx context.Context, owner, field, value string, g *graph.Graph) error {
	terms, err := m.Grounder.Ground(ctx, value)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Warn("[Extract] Grounding failed", "project", owner, "field", field, "value", value, "err", err)
		return nil
	}
	if len(terms) == 0 {
		return nil
	}
	t := terms[0]
	curie := t.CURIE()
	g.AddNode(common.NewNode(curie, m.Typer.TypeOf(t.DB, t.ID), t.Name, common.SourceMetadata).
		Set(common.AttrIRI, ground.IRI(curie)).
		Add(common.AttrRawTexts, value).
		Add(common.AttrColumns, common.SourceMetadata))
	g.AddEdge(common.NewEdge(owner, curie, common.HasRelation(field), common.SourceMetadata))
	return nil
}
