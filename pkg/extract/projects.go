package extract

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
)

// Projects adds the project node itself.
type Projects struct {
	// Repo is optional; when set the project name is read from its metadata.
	Repo    loader.Repository
	BaseURL string
}

func (p *Projects) Source() string { return common.SourceProjects }

func (p *Projects) Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error) {
	name := ""
	var statuses []common.FileStatus
	if p.Repo != nil {
		m, err := p.Repo.FetchMetadata(ctx, projectID)
		switch {
		case err == nil:
			name = m.Name
		case errors.Is(err, loader.ErrNotFound):
		default:
			st, err := fetchStatus(ctx, projectID, projectID, "metadata", err)
			if err != nil {
				return nil, err
			}
			statuses = append(statuses, st)
		}
	}

	node := common.NewNode(projectID, common.LabelProject, name, common.SourceProjects).
		Set(common.AttrStudyURL, StudyURL(p.BaseURL, projectID))
	g.AddNode(node)
	return statuses, nil
}
