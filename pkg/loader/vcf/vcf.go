// Package vcf reads variant call files: the meta-information lines, the
// sample names and the coordinates of each record. Compressed files may
// be BGZF or plain gzip.
package vcf

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"

	"github.com/biogo/hts/bgzf"
)

var (
	ErrNoHeader  = errors.New("file has no #CHROM header line")
	ErrMalformed = errors.New("malformed record")
)

// Header is the meta-information of a file.
type Header struct {
	FileFormat string
	Reference  string
	// Commands are the ##source values and the IDs of GATK command lines.
	Commands []string
	Contigs  []string
	Samples  []string
}

// Variant is one data line.
type Variant struct {
	Chrom string
	Pos   int
	IDs   []string
	Ref   string
	Alt   []string
	// Carriers are the samples whose genotype holds a non-reference
	// allele. Without a GT field every sample is listed.
	Carriers []string
}

type File struct {
	Header   Header
	Variants []Variant
}

// Read parses content. Data lines are skipped when headerOnly is set.
func Read(content []byte, headerOnly bool) (File, error) {
	r, err := open(content)
	if err != nil {
		return File{}, err
	}

	var f File
	seenHeader := false
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16<<20)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimRight(sc.Text(), "\r")
		switch {
		case text == "":
		case strings.HasPrefix(text, "##"):
			f.Header.meta(text[2:])
		case strings.HasPrefix(text, "#"):
			cols := strings.Split(text[1:], "\t")
			if len(cols) > 9 {
				f.Header.Samples = cols[9:]
			}
			seenHeader = true
		default:
			if !seenHeader {
				return f, fmt.Errorf("line %d: %w", line, ErrNoHeader)
			}
			if headerOnly {
				return f, nil
			}
			v, err := parseVariant(text, f.Header.Samples)
			if err != nil {
				return f, fmt.Errorf("line %d: %w", line, err)
			}
			f.Variants = append(f.Variants, v)
		}
	}
	if err := sc.Err(); err != nil {
		return f, fmt.Errorf("failed to read vcf: %w", err)
	}
	if !seenHeader {
		return f, ErrNoHeader
	}
	return f, nil
}

func open(content []byte) (io.Reader, error) {
	if !bytes.HasPrefix(content, []byte{0x1f, 0x8b}) {
		return bytes.NewReader(content), nil
	}
	if r, err := bgzf.NewReader(bytes.NewReader(content), 0); err == nil {
		return r, nil
	}
	r, err := gzip.NewReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress vcf: %w", err)
	}
	return r, nil
}

func (h *Header) meta(line string) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return
	}
	switch {
	case key == "fileformat":
		h.FileFormat = value
	case key == "reference":
		h.Reference = value
	case key == "source":
		h.Commands = appendNew(h.Commands, value)
	case strings.HasPrefix(key, "GATKCommandLine"):
		if id := structuredID(value); id != "" {
			h.Commands = appendNew(h.Commands, id)
		}
	case key == "contig":
		if id := structuredID(value); id != "" {
			h.Contigs = appendNew(h.Contigs, id)
		}
	}
}

// structuredID returns the ID entry of a "<ID=x,...>" value.
func structuredID(value string) string {
	value = strings.TrimSuffix(strings.TrimPrefix(value, "<"), ">")
	for _, part := range strings.Split(value, ",") {
		if id, ok := strings.CutPrefix(part, "ID="); ok {
			return strings.Trim(id, `"`)
		}
	}
	return ""
}

func parseVariant(line string, samples []string) (Variant, error) {
	cols := strings.Split(line, "\t")
	if len(cols) < 5 {
		return Variant{}, fmt.Errorf("%w: %d columns", ErrMalformed, len(cols))
	}
	pos, err := strconv.Atoi(cols[1])
	if err != nil {
		return Variant{}, fmt.Errorf("%w: position %q", ErrMalformed, cols[1])
	}
	v := Variant{
		Chrom: cols[0],
		Pos:   pos,
		IDs:   missingList(cols[2], ";"),
		Ref:   cols[3],
		Alt:   missingList(cols[4], ","),
	}

	gt := -1
	if len(cols) > 8 {
		for i, key := range strings.Split(cols[8], ":") {
			if key == "GT" {
				gt = i
			}
		}
	}
	for i, sample := range samples {
		if gt < 0 {
			v.Carriers = append(v.Carriers, sample)
			continue
		}
		if 9+i >= len(cols) {
			break
		}
		fields := strings.Split(cols[9+i], ":")
		if gt < len(fields) && carries(fields[gt]) {
			v.Carriers = append(v.Carriers, sample)
		}
	}
	return v, nil
}

// carries reports whether a GT value such as "0/1" or "1|1" holds an
// alternate allele.
func carries(gt string) bool {
	for _, allele := range strings.FieldsFunc(gt, func(r rune) bool { return r == '/' || r == '|' }) {
		if allele != "0" && allele != "." {
			return true
		}
	}
	return false
}

func missingList(v, sep string) []string {
	if v == "" || v == "." {
		return nil
	}
	return strings.Split(v, sep)
}

func appendNew(list []string, v string) []string {
	if slices.Contains(list, v) {
		return list
	}
	return append(list, v)
}
