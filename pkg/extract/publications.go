package extract

import (
	"context"
	"slices"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
)

const noDOI = "No DOI"

// Publications links a project to the registry publications that cite it.
type Publications struct {
	Registry []Publication
}

func (p *Publications) Source() string { return common.SourcePublications }

func (p *Publications) Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error) {
	for _, pub := range p.Registry {
		if !slices.Contains(pub.StudyIDs, projectID) {
			continue
		}
		id := pub.PMID
		if id == "" {
			id = pub.Title
		}
		doi := pub.DOI
		if doi == "" {
			doi = noDOI
		}
		g.AddNode(common.NewNode(id, common.LabelPublication, pub.Title, common.SourcePublications).
			Set(common.AttrDOI, doi))
		g.AddEdge(common.NewEdge(projectID, id, common.RelPublished, common.SourcePublications))
	}
	return nil, nil
}
