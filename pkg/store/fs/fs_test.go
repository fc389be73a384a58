package fs

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

func TestDirStorage(t *testing.T) {
	ctx := context.Background()
	d, err := NewDirStorage(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, err := d.Get(ctx, "nodes.tsv"); !errors.Is(err, store.ErrArtifactNotFound) {
		t.Errorf("Get() on empty dir error = %v, want ErrArtifactNotFound", err)
	}

	for _, name := range []string{"nodes_wiki.tsv", "reports/file_status.tsv", "edges_wiki.tsv"} {
		if err := d.Put(ctx, name, []byte(name)); err != nil {
			t.Fatalf("Put(%q) error = %v", name, err)
		}
	}
	if err := d.Put(ctx, "nodes_wiki.tsv", []byte("replaced")); err != nil {
		t.Fatal(err)
	}

	names, err := d.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"edges_wiki.tsv", "nodes_wiki.tsv", "reports/file_status.tsv"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("List() = %#v, want %#v", names, want)
	}

	data, err := d.Get(ctx, "nodes_wiki.tsv")
	if err != nil || string(data) != "replaced" {
		t.Errorf("Get() = %q, %v", data, err)
	}
}

func TestDirStorageRejectsEscapes(t *testing.T) {
	d, _ := NewDirStorage(t.TempDir())
	for _, name := range []string{"../x.tsv", "/etc/passwd", "", "."} {
		if err := d.Put(context.Background(), name, nil); err == nil {
			t.Errorf("Put(%q) succeeded, want error", name)
		}
	}
}

func TestDirStorageMergeArtifacts(t *testing.T) {
	ctx := context.Background()
	d, _ := NewDirStorage(t.TempDir())

	g := graph.NewGraph()
	g.AddNode(common.NewNode("syn1", "Project", "A", "projects"))
	g.AddNode(common.NewNode("x", "Gene", "X", "wiki", "tabular_data"))
	g.AddEdge(common.NewEdge("syn1", "x", "mentions", "wiki"))

	if err := store.WriteArtifacts(ctx, d, g); err != nil {
		t.Fatal(err)
	}
	got, _, err := store.MergeArtifacts(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if !got.Nodes.Equal(g.Nodes) || !got.Edges.Equal(g.Edges) {
		t.Error("graph rebuilt from directory differs from the original")
	}
}
