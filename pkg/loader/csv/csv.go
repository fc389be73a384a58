package csv

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/OFFIS-RIT/dglink/pkg/loader"
)

var ErrEmpty = errors.New("table is empty or contains no valid data")

// ParseTable parses delimited text into a table. The delimiter is guessed
// from the header line when comma is 0.
func ParseTable(name string, content []byte, comma rune) (loader.Table, error) {
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(content) {
		return loader.Table{}, fmt.Errorf("%s: content is not valid UTF-8", name)
	}
	if comma == 0 {
		comma = Sniff(content)
	}

	reader := csv.NewReader(bytes.NewReader(content))
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		records = append(records, record)
	}

	t := loader.NewTable(name, records)
	if len(t.Header) == 0 {
		return loader.Table{}, ErrEmpty
	}
	return t, nil
}

// Sniff picks tab, semicolon or comma, whichever occurs most often on the
// first line.
func Sniff(content []byte) rune {
	line := content
	if i := bytes.IndexByte(content, '\n'); i >= 0 {
		line = content[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte{','})
	for _, c := range []rune{'\t', ';'} {
		if n := bytes.Count(line, []byte(string(c))); n > bestCount {
			best, bestCount = c, n
		}
	}
	return best
}
