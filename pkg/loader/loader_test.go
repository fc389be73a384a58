package loader

import (
	"reflect"
	"testing"
)

func TestParseMetadata(t *testing.T) {
	data := []byte(`{
		"id": "syn1",
		"name": "Alpha",
		"fields": {
			"diseaseFocus": ["Neurofibromatosis type 1", " "],
			"fundingAgency": "NTAP",
			"studyYear": 2019,
			"open": true,
			"parentId": null
		}
	}`)
	m, err := ParseMetadata(data)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string][]string{
		"diseaseFocus":  {"Neurofibromatosis type 1"},
		"fundingAgency": {"NTAP"},
		"studyYear":     {"2019"},
		"open":          {"true"},
	}
	if !reflect.DeepEqual(m.Fields, want) {
		t.Errorf("Fields = %v, want %v", m.Fields, want)
	}
	if m.ID != "syn1" || m.Name != "Alpha" {
		t.Errorf("ID/Name = %q/%q", m.ID, m.Name)
	}
	if m.Values("missing") != nil {
		t.Error("Values(missing) should be nil")
	}
}

func TestParseMetadataInvalid(t *testing.T) {
	if _, err := ParseMetadata([]byte("{")); err == nil {
		t.Error("ParseMetadata() accepted broken JSON")
	}
}

func TestNewTable(t *testing.T) {
	records := [][]string{
		{"", ""},
		{"gene", "", "tissue"},
		{"NF1", "x", "skin"},
		{" ", "", ""},
		{"NF2"},
	}
	tbl := NewTable("Sheet1", records)

	if want := []string{"gene", "Unnamed: 1", "tissue"}; !reflect.DeepEqual(tbl.Header, want) {
		t.Errorf("Header = %v, want %v", tbl.Header, want)
	}
	if want := [][]string{{"NF1", "x", "skin"}, {"NF2", "", ""}}; !reflect.DeepEqual(tbl.Rows, want) {
		t.Errorf("Rows = %v, want %v", tbl.Rows, want)
	}
	if tbl.Unnamed() != 1 {
		t.Errorf("Unnamed() = %d, want 1", tbl.Unnamed())
	}
	if got := tbl.Column(0); !reflect.DeepEqual(got, []string{"NF1", "NF2"}) {
		t.Errorf("Column(0) = %v", got)
	}
	if tbl.Index("tissue") != 2 || tbl.Index("nope") != -1 {
		t.Error("Index() mismatch")
	}
}

func TestFileRefTabular(t *testing.T) {
	tests := map[string]bool{
		"files/a.CSV":  true,
		"files/b.xlsx": true,
		"files/c.tsv":  true,
		"files/d.bam":  false,
		"files/noext":  false,
		"files/e.dcm":  false,
	}
	for p, want := range tests {
		if got := (FileRef{Path: p}).IsTabular(); got != want {
			t.Errorf("IsTabular(%q) = %v, want %v", p, got, want)
		}
	}
}

func TestWikiField(t *testing.T) {
	w := Wiki{Title: "Alpha", Markdown: ""}
	if v, ok := w.Field("title"); !ok || v != "Alpha" {
		t.Errorf("Field(title) = %q, %v", v, ok)
	}
	if _, ok := w.Field("markdown"); ok {
		t.Error("empty markdown reported as present")
	}
	if _, ok := w.Field("owner"); ok {
		t.Error("unknown field reported as present")
	}
}
