package csv

import (
	"errors"
	"reflect"
	"testing"
)

func TestParseTable(t *testing.T) {
	tests := []struct {
		name    string
		content string
		comma   rune
		header  []string
		rows    [][]string
	}{
		{
			name:    "Comma",
			content: "gene,tissue\nNF1,skin\n\n\"NF2, merlin\",nerve\n",
			header:  []string{"gene", "tissue"},
			rows:    [][]string{{"NF1", "skin"}, {"NF2, merlin", "nerve"}},
		},
		{
			name:    "TabSniffed",
			content: "\xef\xbb\xbfgene\ttissue\nNF1\tskin\n",
			header:  []string{"gene", "tissue"},
			rows:    [][]string{{"NF1", "skin"}},
		},
		{
			name:    "Explicit",
			content: "a;b\n1;2\n",
			comma:   ';',
			header:  []string{"a", "b"},
			rows:    [][]string{{"1", "2"}},
		},
		{
			name:    "Ragged",
			content: "a,b,c\n1\n1,2,3,4\n",
			header:  []string{"a", "b", "c"},
			rows:    [][]string{{"1", "", ""}, {"1", "2", "3"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := ParseTable("f", []byte(tt.content), tt.comma)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(tbl.Header, tt.header) {
				t.Errorf("Header = %v, want %v", tbl.Header, tt.header)
			}
			if !reflect.DeepEqual(tbl.Rows, tt.rows) {
				t.Errorf("Rows = %v, want %v", tbl.Rows, tt.rows)
			}
		})
	}
}

func TestParseTableEmpty(t *testing.T) {
	if _, err := ParseTable("f", []byte("\n \n"), 0); !errors.Is(err, ErrEmpty) {
		t.Errorf("ParseTable() error = %v, want ErrEmpty", err)
	}
	if _, err := ParseTable("f", []byte{0xff, 0xfe, 0x00}, 0); err == nil {
		t.Error("ParseTable() accepted binary content")
	}
}

func TestSniff(t *testing.T) {
	tests := map[string]rune{
		"a,b,c\n":   ',',
		"a\tb\tc\n": '\t',
		"a;b;c,d\n": ';',
		"single\n":  ',',
	}
	for in, want := range tests {
		if got := Sniff([]byte(in)); got != want {
			t.Errorf("Sniff(%q) = %q, want %q", in, got, want)
		}
	}
}
