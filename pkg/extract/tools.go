package extract

import (
	"context"
	"errors"
	"slices"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
)

// ToolResourceTypes are the file resource types whose annotations are
// matched against tools. Files without a resourceType are matched too.
var ToolResourceTypes = []string{"analysis", "experimentalData", "results"}

// Tools links a project to the registry tools named in its file
// annotations (specimenID, individualID).
type Tools struct {
	Repo     loader.Repository
	Registry []Tool
}

func (t *Tools) Source() string { return common.SourceTools }

func (t *Tools) index() map[string]Tool {
	byName := make(map[string]Tool, len(t.Registry))
	for _, tool := range t.Registry {
		for _, name := range append([]string{tool.Name}, tool.Synonyms...) {
			if name == "" {
				continue
			}
			if _, ok := byName[name]; !ok {
				byName[name] = tool
			}
		}
	}
	return byName
}

func (t *Tools) Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error) {
	files, err := t.Repo.ListFiles(ctx, projectID)
	if errors.Is(err, loader.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		st, err := fetchStatus(ctx, projectID, projectID, "files", err)
		if err != nil {
			return nil, err
		}
		return []common.FileStatus{st}, nil
	}

	byName := t.index()
	for _, f := range files {
		if rt := f.Annotations["resourceType"]; len(rt) > 0 && !slices.ContainsFunc(rt, func(v string) bool {
			return slices.Contains(ToolResourceTypes, v)
		}) {
			continue
		}
		for _, key := range []string{"specimenID", "individualID"} {
			for _, v := range f.Annotations[key] {
				tool, ok := byName[v]
				if !ok {
					continue
				}
				g.AddNode(common.NewNode(tool.ID(), common.LabelTool, tool.Name, common.SourceTools).
					Set(common.AttrToolType, tool.Type).
					Add(common.AttrSynonyms, tool.Synonyms...))
				g.AddEdge(common.NewEdge(projectID, tool.ID(), common.RelUsesTool, common.SourceTools))
			}
		}
	}
	return nil, nil
}
