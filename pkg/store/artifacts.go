package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
	"github.com/OFFIS-RIT/dglink/pkg/store/tsv"
)

const (
	NodesFile  = "nodes.tsv"
	EdgesFile  = "edges.tsv"
	ReportFile = "reports/file_status.tsv"
	// ManifestFile lists the sources whose partial files belong to the
	// current snapshot.
	ManifestFile = "manifest.tsv"

	nodesPrefix = "nodes_"
	edgesPrefix = "edges_"
	extension   = ".tsv"
)

// NodesArtifact names the partial node file of source.
func NodesArtifact(source string) string { return nodesPrefix + source + extension }

// EdgesArtifact names the partial edge file of source.
func EdgesArtifact(source string) string { return edgesPrefix + source + extension }

// WriteStore serializes s and stores it under name.
func WriteStore(ctx context.Context, st ArtifactStorage, name string, s *graph.Store) (tsv.WriteStats, error) {
	var buf bytes.Buffer
	stats, err := tsv.Encode(&buf, s)
	if err != nil {
		return stats, fmt.Errorf("encode %s: %w", name, err)
	}
	if err := st.Put(ctx, name, buf.Bytes()); err != nil {
		return stats, fmt.Errorf("put %s: %w", name, err)
	}
	return stats, nil
}

// ReadStore loads the store saved under name. A missing artifact yields an
// empty store.
func ReadStore(ctx context.Context, st ArtifactStorage, name string, schema *common.Schema) (*graph.Store, error) {
	data, err := st.Get(ctx, name)
	if err != nil {
		if errors.Is(err, ErrArtifactNotFound) {
			return graph.NewStore(schema), nil
		}
		return nil, err
	}
	s, err := tsv.Decode(bytes.NewReader(data), schema)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	return s, nil
}

// WriteGraph stores the combined snapshot.
func WriteGraph(ctx context.Context, st ArtifactStorage, g *graph.Graph) error {
	if _, err := WriteStore(ctx, st, NodesFile, g.Nodes); err != nil {
		return err
	}
	_, err := WriteStore(ctx, st, EdgesFile, g.Edges)
	return err
}

// ReadGraph loads the combined snapshot.
func ReadGraph(ctx context.Context, st ArtifactStorage) (*graph.Graph, error) {
	nodes, err := ReadStore(ctx, st, NodesFile, common.NodeSchema())
	if err != nil {
		return nil, err
	}
	edges, err := ReadStore(ctx, st, EdgesFile, common.EdgeSchema())
	if err != nil {
		return nil, err
	}
	return &graph.Graph{Nodes: nodes, Edges: edges}, nil
}

// WriteArtifacts stores the strict projection of g for every source plus
// the mixed audit files, and records the written sources in the manifest.
//
// With no sources given, every source tag present in g is written and the
// manifest is replaced, so partial files of sources g no longer carries
// drop out of MergeArtifacts. With explicit sources the manifest is
// extended.
func WriteArtifacts(ctx context.Context, st ArtifactStorage, g *graph.Graph, sources ...string) error {
	full := len(sources) == 0
	if full {
		sources = g.Sources()
	}
	warnUnsourced(g)

	for _, src := range sources {
		if src == common.SourceMixed {
			continue
		}
		p := g.Project(src, graph.Strict)
		if _, err := WriteStore(ctx, st, NodesArtifact(src), p.Nodes); err != nil {
			return err
		}
		if _, err := WriteStore(ctx, st, EdgesArtifact(src), p.Edges); err != nil {
			return err
		}
		logger.Debug("[Store] Wrote source artifacts", "source", src, "nodes", p.Nodes.Len(), "edges", p.Edges.Len())
	}

	mixed := g.Project("", graph.Mixed)
	if _, err := WriteStore(ctx, st, NodesArtifact(common.SourceMixed), mixed.Nodes); err != nil {
		return err
	}
	if _, err := WriteStore(ctx, st, EdgesArtifact(common.SourceMixed), mixed.Edges); err != nil {
		return err
	}

	listed := sources
	if !full {
		prev, _, err := ReadManifest(ctx, st)
		if err != nil {
			return err
		}
		listed = append(prev, sources...)
	}
	if err := writeManifest(ctx, st, listed); err != nil {
		return err
	}

	logger.Info("[Store] Wrote artifacts", "sources", len(sources), "mixed_nodes", mixed.Nodes.Len(), "mixed_edges", mixed.Edges.Len())
	return nil
}

// warnUnsourced logs records without a source tag. They are part of the
// combined snapshot but of no partial file, so MergeArtifacts cannot
// rebuild them.
func warnUnsourced(g *graph.Graph) {
	for _, s := range []*graph.Store{g.Nodes, g.Edges} {
		attr := s.Schema().SourceAttribute()
		if attr == "" {
			continue
		}
		var keys []string
		s.Each(func(key string, r *common.Record) bool {
			if r.Len(attr) == 0 {
				keys = append(keys, key)
			}
			return true
		})
		if len(keys) > 0 {
			logger.Warn("[Store] Records without source are left out of the partial files",
				"schema", s.Schema().Name(), "count", len(keys), "first", keys[0])
		}
	}
}

const manifestHeader = "source"

// ReadManifest returns the sources listed in the manifest. ok is false when
// st holds no manifest.
func ReadManifest(ctx context.Context, st ArtifactStorage) (sources []string, ok bool, err error) {
	data, err := st.Get(ctx, ManifestFile)
	if errors.Is(err, ErrArtifactNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	for i, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || (i == 0 && line == manifestHeader) {
			continue
		}
		sources = append(sources, line)
	}
	return sources, true, nil
}

func writeManifest(ctx context.Context, st ArtifactStorage, sources []string) error {
	sources = slices.DeleteFunc(DedupeStrings(sources), func(s string) bool { return s == common.SourceMixed })
	slices.Sort(sources)

	var b strings.Builder
	b.WriteString(manifestHeader + "\n")
	for _, src := range sources {
		b.WriteString(src + "\n")
	}
	if err := st.Put(ctx, ManifestFile, []byte(b.String())); err != nil {
		return fmt.Errorf("put %s: %w", ManifestFile, err)
	}
	return nil
}

var reportHeader = []string{"project_id", "file_id", "file_path", "sheet", "can_read", "reason"}

// WriteStatusReport stores extractor file statuses as a TSV report.
func WriteStatusReport(ctx context.Context, st ArtifactStorage, statuses []common.FileStatus) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	w.Comma = '\t'

	if err := w.Write(reportHeader); err != nil {
		return err
	}
	for _, s := range statuses {
		row := []string{s.ProjectID, s.FileID, s.FilePath, s.Sheet, strconv.FormatBool(s.Processable), s.Reason}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}
	return st.Put(ctx, ReportFile, buf.Bytes())
}
