// Package pipeline wires extractors, artifact storage, the similarity
// scorer and graph sinks into the build, score and publish steps.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/extract"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
	"github.com/OFFIS-RIT/dglink/pkg/similarity"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

const defaultWorkers = 4

type Pipeline struct {
	Extractors []extract.Extractor
	// Workers bounds how many projects are extracted at once.
	Workers int
}

// BuildResult is the combined graph of a build plus everything worth
// reporting about it.
type BuildResult struct {
	Graph     *graph.Graph
	Statuses  []common.FileStatus
	Conflicts []graph.KeyedConflict
}

type projectResult struct {
	graph    *graph.Graph
	statuses []common.FileStatus
}

// Build runs every extractor for every project. Each project gets its own
// graph; the graphs are absorbed in the order of projectIDs, so the first
// non-empty scalar is the same however the workers were scheduled.
func (p *Pipeline) Build(ctx context.Context, projectIDs []string) (BuildResult, error) {
	start := time.Now()
	results := make([]projectResult, len(projectIDs))

	workers := p.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)

	for i, id := range projectIDs {
		eg.Go(func() error {
			g := graph.NewGraph()
			var statuses []common.FileStatus
			for _, ex := range p.Extractors {
				s, err := ex.Extract(gCtx, id, g)
				if err != nil {
					return fmt.Errorf("project %s, %s: %w", id, ex.Source(), err)
				}
				statuses = append(statuses, s...)
			}
			results[i] = projectResult{graph: g, statuses: statuses}
			logger.Debug("[Pipeline] Extracted project", "project", id, "nodes", g.Nodes.Len(), "edges", g.Edges.Len())
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return BuildResult{}, err
	}

	out := BuildResult{Graph: graph.NewGraph()}
	for _, r := range results {
		out.Conflicts = append(out.Conflicts, out.Graph.Absorb(r.graph)...)
		out.Statuses = append(out.Statuses, r.statuses...)
	}
	for _, c := range out.Conflicts {
		logger.Debug("[Pipeline] Scalar conflict", "key", c.Key, "attribute", c.Attribute, "kept", c.Kept, "rejected", c.Rejected)
	}

	logger.Info("[Pipeline] Build finished",
		"projects", len(projectIDs),
		"nodes", out.Graph.Nodes.Len(),
		"edges", out.Graph.Edges.Len(),
		"conflicts", len(out.Conflicts),
		"statuses", len(out.Statuses),
		"duration", time.Since(start))
	return out, nil
}

// Snapshot stores g as the combined snapshot, one strict artifact pair per
// source, the mixed audit pair and the file status report.
func Snapshot(ctx context.Context, st store.ArtifactStorage, g *graph.Graph, statuses []common.FileStatus) error {
	if err := store.WriteGraph(ctx, st, g); err != nil {
		return err
	}
	if err := store.WriteArtifacts(ctx, st, g); err != nil {
		return err
	}
	return store.WriteStatusReport(ctx, st, statuses)
}

// Score reads the combined snapshot, replaces earlier predictions with a
// fresh scoring run and writes the snapshot and the similarity artifacts
// back.
func Score(ctx context.Context, st store.ArtifactStorage, opts similarity.Options) ([]similarity.Prediction, error) {
	g, err := store.ReadGraph(ctx, st)
	if err != nil {
		return nil, err
	}
	g.Edges = withoutPredictions(g.Edges)

	preds, err := similarity.Score(ctx, g, opts)
	if err != nil {
		return nil, err
	}
	added := similarity.Apply(g, preds)

	if err := store.WriteGraph(ctx, st, g); err != nil {
		return nil, err
	}
	if err := store.WriteArtifacts(ctx, st, g, common.SourceSimilarity); err != nil {
		return nil, err
	}
	logger.Info("[Pipeline] Scoring finished", "predictions", len(preds), "edges_added", added)
	return preds, nil
}

func withoutPredictions(edges *graph.Store) *graph.Store {
	out := graph.NewStore(edges.Schema())
	edges.Each(func(key string, r *common.Record) bool {
		if r.Get(common.AttrType) != common.RelPredictedRelated {
			out.UpsertKeyed(key, r)
		}
		return true
	})
	return out
}

// Merge rebuilds the combined snapshot from the partial artifacts in st.
func Merge(ctx context.Context, st store.ArtifactStorage) (store.MergeReport, error) {
	g, report, err := store.MergeArtifacts(ctx, st)
	if err != nil {
		return report, err
	}
	if err := store.WriteGraph(ctx, st, g); err != nil {
		return report, err
	}
	return report, nil
}

// Publish hands the combined snapshot in st to sink under name.
func Publish(ctx context.Context, st store.ArtifactStorage, sink store.GraphSink, name string) error {
	g, err := store.ReadGraph(ctx, st)
	if err != nil {
		return err
	}
	if err := sink.SaveGraph(ctx, name, g); err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	logger.Info("[Pipeline] Published graph", "name", name, "nodes", g.Nodes.Len(), "edges", g.Edges.Len())
	return nil
}
