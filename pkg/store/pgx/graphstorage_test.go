package pgx

import (
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

func TestNodeRows(t *testing.T) {
	g := graph.NewGraph()
	g.AddNode(common.NewNode("syn2", common.LabelProject, "Beta", common.SourceProjects))
	g.AddNode(common.NewNode("syn1", common.LabelProject, "Alpha", common.SourceProjects, common.SourceWiki))

	rows, err := nodeRows(g.Nodes)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("nodeRows() = %d rows, want 2", len(rows))
	}
	if len(rows[0]) != len(nodeColumns) {
		t.Fatalf("row width = %d, want %d", len(rows[0]), len(nodeColumns))
	}

	got := []any{rows[0][1], rows[0][2], rows[0][3], rows[0][4]}
	want := []any{"syn1", "syn1", common.LabelProject, "Alpha"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("first row = %v, want %v", got, want)
	}

	r, err := store.UnmarshalRecord(rows[0][5].([]byte))
	if err != nil {
		t.Fatal(err)
	}
	if srcs := r.Values(common.AttrSource); !reflect.DeepEqual(srcs, []string{common.SourceProjects, common.SourceWiki}) {
		t.Errorf("sources = %v", srcs)
	}
}

func TestEdgeRows(t *testing.T) {
	g := graph.NewGraph()
	g.AddEdge(common.NewEdge("syn1", "syn1:Wiki", common.RelHasWiki, common.SourceWiki))

	rows, err := edgeRows(g.Edges)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("edgeRows() = %d rows, want 1", len(rows))
	}
	got := rows[0][1:5]
	want := []any{common.EdgeKey("syn1", "syn1:Wiki", common.RelHasWiki), "syn1", "syn1:Wiki", common.RelHasWiki}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("row = %v, want %v", got, want)
	}
}

func TestWithChunkSize(t *testing.T) {
	s := NewGraphDBStorage(nil, WithChunkSize(10), WithChunkSize(0))
	if s.chunkSize != 10 {
		t.Errorf("chunkSize = %d, want 10", s.chunkSize)
	}
}
