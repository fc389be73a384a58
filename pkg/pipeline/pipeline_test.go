package pipeline

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/extract"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/similarity"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

// fakeExtractor writes a project node, a shared node named after the
// project and an edge to a common neighbor.
type fakeExtractor struct {
	delays map[string]time.Duration
	fail   string
}

func (f *fakeExtractor) Source() string { return common.SourceProjects }

func (f *fakeExtractor) Extract(ctx context.Context, id string, g *graph.Graph) ([]common.FileStatus, error) {
	if id == f.fail {
		return nil, errors.New("boom")
	}
	if d := f.delays[id]; d > 0 {
		time.Sleep(d)
	}
	g.AddNode(common.NewNode(id, common.LabelProject, "name "+id, common.SourceProjects))
	g.AddNode(common.NewNode("shared", "Thing", id, common.SourceProjects))
	g.AddEdge(common.NewEdge(id, "shared", "has_thing", common.SourceProjects))
	return []common.FileStatus{{ProjectID: id, FileID: "f-" + id, FilePath: "a.csv", Sheet: "a", Processable: true, Reason: common.ReasonGood}}, nil
}

type fakeSink struct {
	name  string
	nodes int
	err   error
}

func (s *fakeSink) SaveGraph(ctx context.Context, name string, g *graph.Graph) error {
	if s.err != nil {
		return s.err
	}
	s.name, s.nodes = name, g.Nodes.Len()
	return nil
}

func build(t *testing.T, ids ...string) BuildResult {
	t.Helper()
	p := &Pipeline{Extractors: []extract.Extractor{&fakeExtractor{}}, Workers: 2}
	res, err := p.Build(context.Background(), ids)
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestBuildAbsorbsInInputOrder(t *testing.T) {
	ex := &fakeExtractor{delays: map[string]time.Duration{"p3": 30 * time.Millisecond}}
	p := &Pipeline{Extractors: []extract.Extractor{ex}, Workers: 3}

	res, err := p.Build(context.Background(), []string{"p3", "p1", "p2"})
	if err != nil {
		t.Fatal(err)
	}

	shared, err := res.Graph.Nodes.Get("shared")
	if err != nil {
		t.Fatal(err)
	}
	if got := shared.Get(common.AttrName); got != "p3" {
		t.Errorf("shared name = %q, want p3", got)
	}
	if len(res.Conflicts) != 2 {
		t.Errorf("got %d conflicts, want 2", len(res.Conflicts))
	}

	var order []string
	for _, s := range res.Statuses {
		order = append(order, s.ProjectID)
	}
	if !reflect.DeepEqual(order, []string{"p3", "p1", "p2"}) {
		t.Errorf("status order = %v", order)
	}
	if res.Graph.Nodes.Len() != 4 || res.Graph.Edges.Len() != 3 {
		t.Errorf("graph = %d nodes %d edges, want 4 and 3", res.Graph.Nodes.Len(), res.Graph.Edges.Len())
	}
}

func TestBuildStopsOnExtractorError(t *testing.T) {
	p := &Pipeline{Extractors: []extract.Extractor{&fakeExtractor{fail: "p2"}}}
	_, err := p.Build(context.Background(), []string{"p1", "p2"})
	if err == nil || !strings.Contains(err.Error(), "project p2") {
		t.Errorf("Build() error = %v, want project p2 failure", err)
	}
}

func TestSnapshotAndMerge(t *testing.T) {
	ctx := context.Background()
	res := build(t, "p1", "p2")
	st := store.NewMemoryStorage()

	if err := Snapshot(ctx, st, res.Graph, res.Statuses); err != nil {
		t.Fatal(err)
	}
	names, _ := st.List(ctx)
	want := []string{
		"edges.tsv", "edges_mixed.tsv", "edges_projects.tsv",
		"manifest.tsv",
		"nodes.tsv", "nodes_mixed.tsv", "nodes_projects.tsv",
		"reports/file_status.tsv",
	}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("artifacts = %v, want %v", names, want)
	}

	report, _ := st.Get(ctx, store.ReportFile)
	if !strings.Contains(string(report), "p2\tf-p2\ta.csv\ta\ttrue\tgood") {
		t.Errorf("report = %q", report)
	}

	if _, err := Merge(ctx, st); err != nil {
		t.Fatal(err)
	}
	merged, err := store.ReadGraph(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(merged.Nodes.Keys(), res.Graph.Nodes.Keys()) {
		t.Errorf("merged nodes = %v, want %v", merged.Nodes.Keys(), res.Graph.Nodes.Keys())
	}
	if !reflect.DeepEqual(merged.Edges.Keys(), res.Graph.Edges.Keys()) {
		t.Errorf("merged edges = %v, want %v", merged.Edges.Keys(), res.Graph.Edges.Keys())
	}
}

func TestScoreReplacesPredictions(t *testing.T) {
	ctx := context.Background()
	res := build(t, "p1", "p2")
	st := store.NewMemoryStorage()
	if err := Snapshot(ctx, st, res.Graph, res.Statuses); err != nil {
		t.Fatal(err)
	}

	opts := similarity.Options{Cutoff: 0.5, Weights: similarity.Weights{Default: 1}}
	first, err := Score(ctx, st, opts)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != 1 {
		t.Fatalf("got %d predictions, want 1", len(first))
	}

	// A stricter second run must not leave the first run's edges behind.
	second, err := Score(ctx, st, similarity.Options{Cutoff: 1.5, Weights: similarity.Weights{Default: 1}})
	if err != nil {
		t.Fatal(err)
	}
	if len(second) != 0 {
		t.Fatalf("got %d predictions, want 0", len(second))
	}
	g, err := store.ReadGraph(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if g.Edges.Contains(common.EdgeKey("p1", "p2", common.RelPredictedRelated)) {
		t.Error("stale prediction kept")
	}
	if _, err := st.Get(ctx, store.EdgesArtifact(common.SourceSimilarity)); err != nil {
		t.Errorf("similarity artifact missing: %v", err)
	}
}

func TestMergeAfterRebuildDropsPredictions(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStorage()
	res := build(t, "p1", "p2")
	if err := Snapshot(ctx, st, res.Graph, res.Statuses); err != nil {
		t.Fatal(err)
	}
	if _, err := Score(ctx, st, similarity.Options{Cutoff: 0.5, Weights: similarity.Weights{Default: 1}}); err != nil {
		t.Fatal(err)
	}

	rebuilt := build(t, "p1", "p2")
	if err := Snapshot(ctx, st, rebuilt.Graph, rebuilt.Statuses); err != nil {
		t.Fatal(err)
	}
	report, err := Merge(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	g, err := store.ReadGraph(ctx, st)
	if err != nil {
		t.Fatal(err)
	}
	if g.Edges.Contains(common.EdgeKey("p1", "p2", common.RelPredictedRelated)) {
		t.Errorf("predictions from before the rebuild came back; skipped %v", report.Skipped)
	}
	if g.Edges.Len() != rebuilt.Graph.Edges.Len() {
		t.Errorf("merged %d edges, want %d", g.Edges.Len(), rebuilt.Graph.Edges.Len())
	}
}

func TestPublish(t *testing.T) {
	ctx := context.Background()
	res := build(t, "p1")
	st := store.NewMemoryStorage()
	if err := store.WriteGraph(ctx, st, res.Graph); err != nil {
		t.Fatal(err)
	}

	sink := &fakeSink{}
	if err := Publish(ctx, st, sink, "main"); err != nil {
		t.Fatal(err)
	}
	if sink.name != "main" || sink.nodes != 2 {
		t.Errorf("sink got %q with %d nodes", sink.name, sink.nodes)
	}

	failing := &fakeSink{err: errors.New("down")}
	if err := Publish(ctx, st, failing, "main"); err == nil || !strings.Contains(err.Error(), "publish main") {
		t.Errorf("Publish() error = %v", err)
	}
}
