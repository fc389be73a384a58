package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
)

func sampleGraph() *graph.Graph {
	g := graph.NewGraph()
	g.AddNode(common.NewNode("syn1", common.LabelProject, "Alpha", common.SourceProjects).
		Add(common.HasRelation("diseaseFocus"), "NF1"))
	g.AddNode(common.NewNode("syn1:Wiki", common.LabelWiki, "", common.SourceWiki))
	g.AddEdge(common.NewEdge("syn1", "syn1:Wiki", common.RelHasWiki, common.SourceWiki))
	return g
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "db", "graph.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	want := sampleGraph()
	if err := s.SaveGraph(ctx, "main", want); err != nil {
		t.Fatal(err)
	}
	got, err := s.LoadGraph(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if !got.Nodes.Equal(want.Nodes) || !got.Edges.Equal(want.Edges) {
		t.Errorf("loaded graph differs: nodes %v edges %v", got.Nodes.Keys(), got.Edges.Keys())
	}
}

func TestSaveReplacesSnapshot(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if err := s.SaveGraph(ctx, "main", sampleGraph()); err != nil {
		t.Fatal(err)
	}
	small := graph.NewGraph()
	small.AddNode(common.NewNode("syn9", common.LabelProject, "Nine", common.SourceProjects))
	if err := s.SaveGraph(ctx, "main", small); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveGraph(ctx, "archive", sampleGraph()); err != nil {
		t.Fatal(err)
	}

	got, err := s.LoadGraph(ctx, "main")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(got.Nodes.Keys(), []string{"syn9"}) || got.Edges.Len() != 0 {
		t.Errorf("LoadGraph(main) = nodes %v edges %d", got.Nodes.Keys(), got.Edges.Len())
	}

	names, err := s.Snapshots(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(names, []string{"archive", "main"}) {
		t.Errorf("Snapshots() = %v", names)
	}
}

func TestLoadMissingSnapshot(t *testing.T) {
	ctx := context.Background()
	s, err := Open(ctx, filepath.Join(t.TempDir(), "graph.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if _, err := s.LoadGraph(ctx, "nope"); !errors.Is(err, ErrSnapshotNotFound) {
		t.Errorf("LoadGraph() error = %v, want ErrSnapshotNotFound", err)
	}
}
