package extract

import (
	"context"
	"errors"
	"strings"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/ground"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/loader/dicom"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

// seriesAnnotations together with the study identify a series, since file
// annotations carry no series UID.
var seriesAnnotations = []string{"assay", "specimenID", "individualID", "experimentalTimepoint"}

var dicomSources = []string{common.SourceDicomData, common.SourceExperimentalData}

// Dicom reads the headers of a project's DICOM files. One file per series
// is read; the series becomes a node carrying its imaging header, and the
// free text elements are annotated and linked to the study.
type Dicom struct {
	Repo      loader.Repository
	Annotator ground.Annotator
	Typer     ground.Typer

	// ProjectGranularity reads a single file per study.
	ProjectGranularity bool
	FreeTextFields     []string
	MaxFileSize        int64
}

func (d *Dicom) Source() string { return common.SourceDicomData }

func isDicom(f loader.FileRef) bool {
	ext := f.Ext()
	return ext == "dcm" || ext == "dicom"
}

func (d *Dicom) Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error) {
	files, statuses, err := listFiles(ctx, d.Repo, projectID, isDicom)
	if err != nil || statuses != nil {
		return statuses, err
	}

	seen := make(map[string]struct{})
	for _, f := range files {
		study := studyOf(f, projectID)
		id := d.seriesKey(study, f)
		if _, ok := seen[id]; ok {
			statuses = append(statuses, sheetStatus(projectID, f, "all", false, common.ReasonDuplicate))
			continue
		}
		seen[id] = struct{}{}

		st, err := d.processFile(ctx, projectID, study, f, g)
		if err != nil {
			return statuses, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (d *Dicom) seriesKey(study string, f loader.FileRef) string {
	if d.ProjectGranularity {
		return study
	}
	parts := []string{study}
	for _, name := range seriesAnnotations {
		v := f.Annotation(name)
		if v == "" {
			v = name + "_missing"
		}
		parts = append(parts, v)
	}
	return strings.Join(parts, "\x00")
}

func (d *Dicom) processFile(ctx context.Context, projectID, study string, f loader.FileRef, g *graph.Graph) (common.FileStatus, error) {
	maxSize := d.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	content, skipped, err := fetchContent(ctx, d.Repo, projectID, f, maxSize)
	if err != nil {
		return common.FileStatus{}, err
	}
	if skipped != nil {
		return *skipped, nil
	}

	h, err := dicom.ReadHeader(content)
	if errors.Is(err, dicom.ErrNoSeries) {
		logger.Warn("[Extract] DICOM header has no series", "project", projectID, "path", f.Path)
		return sheetStatus(projectID, f, "all", false, common.ReasonLookInto), nil
	}
	if err != nil {
		logger.Warn("[Extract] Could not read DICOM header", "project", projectID, "path", f.Path, "err", err)
		return sheetStatus(projectID, f, "all", false, common.ReasonFailed), nil
	}

	series := h.Series()
	node := common.NewNode(series, common.LabelDicomSeries, series, dicomSources...).
		Add(common.AttrFileID, f.ID)
	for _, field := range dicom.Fields {
		if v := h.Get(field); v != "" {
			node.Set(field, v)
		}
	}
	g.AddNode(node)
	g.AddEdge(common.NewEdge(study, series, common.RelHasDicom, dicomSources...))

	if err := d.annotate(ctx, study, f, h, g); err != nil {
		return common.FileStatus{}, err
	}
	return sheetStatus(projectID, f, "all", true, common.ReasonGood), nil
}

// annotate grounds the free text header elements. A failing annotation
// service only costs the terms of that element.
func (d *Dicom) annotate(ctx context.Context, study string, f loader.FileRef, h dicom.Header, g *graph.Graph) error {
	fields := d.FreeTextFields
	if len(fields) == 0 {
		fields = dicom.FreeTextFields
	}
	for _, field := range fields {
		text := h.Get(field)
		if text == "" {
			continue
		}
		anns, err := d.Annotator.Annotate(ctx, text)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Debug("[Extract] Annotation failed", "path", f.Path, "field", field, "err", err)
			continue
		}
		for _, a := range anns {
			curie := clean(a.Term.CURIE())
			typ := d.Typer.TypeOf(a.Term.DB, a.Term.ID)
			name := clean(a.Term.Name)
			if name == "" {
				name = noNameFound
			}
			g.AddNode(common.NewNode(curie, typ, name, dicomSources...).
				Add(common.AttrRawTexts, clean(a.Text)).
				Add(common.AttrColumns, field).
				Add(common.AttrFileID, f.ID).
				Set(common.AttrIRI, ground.IRI(curie)))
			g.AddEdge(common.NewEdge(study, curie, common.HasRelation(typ), dicomSources...))
		}
	}
	return nil
}

// studyOf returns the study a file is annotated with, falling back to the
// project it was listed under.
func studyOf(f loader.FileRef, projectID string) string {
	if s := f.Annotation("studyId"); s != "" {
		return s
	}
	return projectID
}
