package extract

import (
	"context"
	"strconv"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/ground"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/loader/csv"
	"github.com/OFFIS-RIT/dglink/pkg/loader/excel"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

const (
	DefaultMinGroundedShare = 0.1
	DefaultMaxColumnTypes   = 5
	DefaultMaxUnnamed       = 2
	DefaultMaxFileSize      = 100 << 20
)

// Tabular grounds the cells of a project's csv, tsv and xlsx files. A
// column contributes only when enough of its rows ground and its terms
// are not spread over too many types.
type Tabular struct {
	Repo     loader.Repository
	Grounder ground.Grounder
	Typer    ground.Typer

	MinGroundedShare float64
	MaxColumnTypes   int
	MaxUnnamed       int
	MaxFileSize      int64
}

func (t *Tabular) Source() string { return common.SourceTabularData }

func (t *Tabular) withDefaults() Tabular {
	c := *t
	if c.MinGroundedShare <= 0 {
		c.MinGroundedShare = DefaultMinGroundedShare
	}
	if c.MaxColumnTypes <= 0 {
		c.MaxColumnTypes = DefaultMaxColumnTypes
	}
	if c.MaxUnnamed <= 0 {
		c.MaxUnnamed = DefaultMaxUnnamed
	}
	if c.MaxFileSize <= 0 {
		c.MaxFileSize = DefaultMaxFileSize
	}
	return c
}

var tabularSources = []string{common.SourceTabularData, common.SourceExperimentalData}

func (t *Tabular) Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error) {
	cfg := t.withDefaults()

	files, statuses, err := listFiles(ctx, cfg.Repo, projectID, loader.FileRef.IsTabular)
	if err != nil || statuses != nil {
		return statuses, err
	}

	for _, f := range files {
		st, err := cfg.processFile(ctx, projectID, f, g)
		if err != nil {
			return statuses, err
		}
		statuses = append(statuses, st...)
	}
	return statuses, nil
}

func (t *Tabular) processFile(ctx context.Context, projectID string, f loader.FileRef, g *graph.Graph) ([]common.FileStatus, error) {
	content, skipped, err := fetchContent(ctx, t.Repo, projectID, f, t.MaxFileSize)
	if err != nil {
		return nil, err
	}
	if skipped != nil {
		return []common.FileStatus{*skipped}, nil
	}

	tables, err := parseTables(f, content)
	if err != nil || len(tables) == 0 {
		logger.Warn("[Extract] Could not parse table", "project", projectID, "path", f.Path, "err", err)
		return []common.FileStatus{sheetStatus(projectID, f, "all", false, common.ReasonFailed)}, nil
	}

	statuses := make([]common.FileStatus, 0, len(tables))
	for _, tbl := range tables {
		if len(tbl.Header) == 0 || tbl.Unnamed() > t.MaxUnnamed {
			statuses = append(statuses, sheetStatus(projectID, f, tbl.Name, false, common.ReasonLookInto))
			continue
		}
		statuses = append(statuses, sheetStatus(projectID, f, tbl.Name, true, common.ReasonGood))
		if err := t.extractTable(ctx, projectID, f, tbl, g); err != nil {
			return statuses, err
		}
	}
	return statuses, nil
}

func parseTables(f loader.FileRef, content []byte) ([]loader.Table, error) {
	switch f.Ext() {
	case "xlsx":
		return excel.ReadSheets(content)
	case "tsv":
		tbl, err := csv.ParseTable(f.Path, content, '\t')
		return []loader.Table{tbl}, err
	case "csv":
		tbl, err := csv.ParseTable(f.Path, content, ',')
		return []loader.Table{tbl}, err
	default:
		tbl, err := csv.ParseTable(f.Path, content, 0)
		return []loader.Table{tbl}, err
	}
}

func sheetStatus(projectID string, f loader.FileRef, sheet string, ok bool, reason string) common.FileStatus {
	return common.FileStatus{
		ProjectID:   projectID,
		FileID:      f.ID,
		FilePath:    f.Path,
		Sheet:       sheet,
		Processable: ok,
		Reason:      reason,
	}
}

// grounding is the top term of one cell.
type grounding struct {
	curie string
	typ   string
	name  string
	raw   string
}

func (t *Tabular) extractTable(ctx context.Context, projectID string, f loader.FileRef, tbl loader.Table, g *graph.Graph) error {
	if len(tbl.Rows) == 0 {
		return nil
	}
	for col, header := range tbl.Header {
		cells := tbl.Column(col)
		if numericColumn(cells) {
			continue
		}

		byCell := make(map[string]*grounding)
		for _, cell := range cells {
			if cell == "" {
				continue
			}
			if _, ok := byCell[cell]; ok {
				continue
			}
			gr, err := t.ground(ctx, cell)
			if err != nil {
				return err
			}
			byCell[cell] = gr
		}

		grounded := 0
		types := make(map[string]struct{})
		for _, cell := range cells {
			if gr := byCell[cell]; gr != nil {
				grounded++
				types[gr.typ] = struct{}{}
			}
		}
		if float64(grounded)/float64(len(cells)) < t.MinGroundedShare || len(types) > t.MaxColumnTypes {
			continue
		}

		for _, cell := range cells {
			gr := byCell[cell]
			if gr == nil {
				continue
			}
			g.AddNode(common.NewNode(gr.curie, gr.typ, gr.name, tabularSources...).
				Add(common.AttrRawTexts, gr.raw).
				Add(common.AttrColumns, header).
				Set(common.AttrIRI, ground.IRI(gr.curie)).
				Add(common.AttrFileID, f.ID))
			g.AddEdge(common.NewEdge(projectID, gr.curie, common.HasRelation(gr.typ), tabularSources...))
		}
	}
	return nil
}

// ground returns nil for cells that do not ground or whose term has no
// known type.
func (t *Tabular) ground(ctx context.Context, cell string) (*grounding, error) {
	terms, err := t.Grounder.Ground(ctx, cell)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Debug("[Extract] Grounding failed", "cell", cell, "err", err)
		return nil, nil
	}
	if len(terms) == 0 {
		return nil, nil
	}
	term := terms[0]
	typ := clean(t.Typer.TypeOf(term.DB, term.ID))
	if typ == "" || typ == ground.UnknownType {
		return nil, nil
	}
	return &grounding{
		curie: clean(term.CURIE()),
		typ:   typ,
		name:  clean(term.Name),
		raw:   clean(cell),
	}, nil
}

func numericColumn(cells []string) bool {
	seen := false
	for _, c := range cells {
		if c == "" {
			continue
		}
		if _, err := strconv.ParseFloat(c, 64); err != nil {
			return false
		}
		seen = true
	}
	return seen
}
