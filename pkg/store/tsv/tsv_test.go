package tsv

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

func sampleGraph() *graph.Graph {
	g := graph.NewGraph()
	g.AddNode(common.NewNode("syn123", "Project", "NF Cohort", "projects", "metadata").
		Set(common.AttrStudyURL, "https://nf.synapse.org/Explore/Studies/DetailsPage?studyId=syn123"))
	g.AddNode(common.NewNode("hgnc:7765", "Gene", "NF1", "tabular_data", "experimental_data").
		Add(common.AttrRawTexts, "NF1", "nf-1").
		Add(common.AttrColumns, "gene").
		Add(common.AttrFileID, "syn9"))
	g.AddNode(common.NewNode("", "Gene", "nameless", "wiki"))
	g.AddEdge(common.NewEdge("syn123", "hgnc:7765", "has_Gene", "tabular_data"))
	g.AddEdge(common.NewEdge("syn123", "syn456", "predicted_related", "similarity").
		Set(common.AttrScore, "0.75").
		Set(common.AttrCutoff, "0.5").
		Add(common.AttrShared, "mentions:NF1"))
	return g
}

func roundTrip(t *testing.T, s *graph.Store) *graph.Store {
	t.Helper()
	var buf bytes.Buffer
	if _, err := Encode(&buf, s); err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	out, err := Decode(&buf, s.Schema())
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	return out
}

func TestRoundTrip(t *testing.T) {
	g := sampleGraph()
	for name, s := range map[string]*graph.Store{"nodes": g.Nodes, "edges": g.Edges} {
		t.Run(name, func(t *testing.T) {
			got := roundTrip(t, s)
			if !got.Equal(s) {
				t.Errorf("round trip changed the store: got keys %v, want %v", got.Keys(), s.Keys())
			}
		})
	}
}

func TestEncodeLayout(t *testing.T) {
	s := graph.NewStore(common.NodeSchema())
	s.Upsert(common.NewNode("x", "Gene", "multi\nline", "wiki", "metadata").Add(common.AttrRawTexts, `say "hi"`))

	var buf bytes.Buffer
	if _, err := Encode(&buf, s); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2: %q", len(lines), buf.String())
	}
	if lines[0] != strings.Join(common.NodeSchema().Headers(), "\t") {
		t.Errorf("header = %q", lines[0])
	}

	cells := strings.Split(lines[1], "\t")
	want := map[string]string{
		common.AttrID:       "x",
		common.AttrName:     "multiline",
		common.AttrRawTexts: `"say hi"`,
		common.AttrSource:   `"metadata;wiki"`,
		common.AttrSynonyms: `""`,
	}
	for i, h := range common.NodeSchema().Headers() {
		if w, ok := want[h]; ok && cells[i] != w {
			t.Errorf("%s = %q, want %q", h, cells[i], w)
		}
	}
}

func TestSetTruncatedToTwenty(t *testing.T) {
	logs := &logger.Recorder{}
	logger.Init(logs)
	t.Cleanup(func() { logger.Init() })

	s := graph.NewStore(common.NodeSchema())
	r := common.NewNode("x", "Gene", "x", "wiki")
	for i := range 25 {
		r.Add(common.AttrRawTexts, fmt.Sprintf("text%02d", i))
	}
	s.Upsert(r)

	var buf bytes.Buffer
	stats, err := Encode(&buf, s)
	if err != nil {
		t.Fatal(err)
	}
	if stats.Truncated != 1 {
		t.Errorf("Truncated = %d, want 1", stats.Truncated)
	}
	if len(logs.Entries("warn")) != 1 {
		t.Errorf("want one truncation warning, got %#v", logs.Entries("warn"))
	}

	got, err := Decode(&buf, s.Schema())
	if err != nil {
		t.Fatal(err)
	}
	rec, err := got.Get("x")
	if err != nil {
		t.Fatal(err)
	}
	if n := rec.Len(common.AttrRawTexts); n != 20 {
		t.Errorf("reloaded raw_texts has %d members, want 20", n)
	}
}

func TestDecodeMissingCellsAndUnknownColumns(t *testing.T) {
	in := "curie:ID\t:LABEL\tsource:string[]\tScannerSerial\taliases:string[]\n" +
		"a\tGene\n" +
		"b\tGene\t\"wiki;metadata\"\tP1\t\"x;'y'\"\n"

	s, err := Decode(strings.NewReader(in), common.NodeSchema())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.Schema().Attribute("ScannerSerial"); !ok {
		t.Error("unknown scalar column not added to schema")
	}

	a, _ := s.Get("a")
	if a.Get("ScannerSerial") != "" || a.Len(common.AttrSource) != 0 {
		t.Errorf("missing cells should be empty, got %q %v", a.Get("ScannerSerial"), a.Values(common.AttrSource))
	}
	b, _ := s.Get("b")
	if got := b.Values("aliases:string[]"); !reflect.DeepEqual(got, []string{"x", "y"}) {
		t.Errorf("aliases = %#v", got)
	}
	if got := b.Values(common.AttrSource); !reflect.DeepEqual(got, []string{"metadata", "wiki"}) {
		t.Errorf("source = %#v", got)
	}
}

func TestDecodeMergesDuplicateRows(t *testing.T) {
	in := "curie:ID\tname\tsource:string[]\n" +
		"a\tfirst\t\"wiki\"\n" +
		"a\tsecond\t\"tools\"\n"
	s, err := Decode(strings.NewReader(in), common.NodeSchema())
	if err != nil {
		t.Fatal(err)
	}
	r, _ := s.Get("a")
	if r.Get(common.AttrName) != "first" || r.Len(common.AttrSource) != 2 {
		t.Errorf("merged record = %q %v", r.Get(common.AttrName), r.Values(common.AttrSource))
	}
}

func TestDecodeRejectsDuplicateHeader(t *testing.T) {
	_, err := Decode(strings.NewReader("curie:ID\tname\tname\n"), common.NodeSchema())
	if !errors.Is(err, ErrMalformedHeader) {
		t.Errorf("Decode() error = %v, want ErrMalformedHeader", err)
	}
}

func TestReadFileMissing(t *testing.T) {
	s, err := ReadFile(filepath.Join(t.TempDir(), "nope.tsv"), common.EdgeSchema())
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
}

func TestWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "artifacts", "nodes.tsv")
	g := sampleGraph()

	if _, err := WriteFile(path, g.Nodes); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "nodes.tsv" {
		t.Errorf("directory holds %v, want only nodes.tsv", entries)
	}

	got, err := ReadFile(path, common.NodeSchema())
	if err != nil {
		t.Fatal(err)
	}
	if !got.Equal(g.Nodes) {
		t.Error("file round trip changed the store")
	}
}
