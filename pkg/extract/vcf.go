package extract

import (
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/ground"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/loader/vcf"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

var vcfSources = []string{common.SourceVCFData, common.SourceExperimentalData}

// VCF reads a project's variant call files. Samples are linked to the
// study and to the file format, reference genome and commands named in
// the header. Variants with a dbSNP id become nodes linked to the samples
// that carry them.
type VCF struct {
	Repo loader.Repository

	// SkipVariants reads the header only.
	SkipVariants   bool
	SkipCompressed bool
	MaxFileSize    int64
}

func (v *VCF) Source() string { return common.SourceVCFData }

func (v *VCF) accepts(f loader.FileRef) bool {
	p := strings.ToLower(f.Path)
	if strings.HasSuffix(p, ".vcf.gz") {
		return !v.SkipCompressed
	}
	return path.Ext(p) == ".vcf"
}

func (v *VCF) Extract(ctx context.Context, projectID string, g *graph.Graph) ([]common.FileStatus, error) {
	files, statuses, err := listFiles(ctx, v.Repo, projectID, v.accepts)
	if err != nil || statuses != nil {
		return statuses, err
	}
	for _, f := range files {
		st, err := v.processFile(ctx, projectID, f, g)
		if err != nil {
			return statuses, err
		}
		statuses = append(statuses, st)
	}
	return statuses, nil
}

func (v *VCF) processFile(ctx context.Context, projectID string, f loader.FileRef, g *graph.Graph) (common.FileStatus, error) {
	maxSize := v.MaxFileSize
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}
	content, skipped, err := fetchContent(ctx, v.Repo, projectID, f, maxSize)
	if err != nil {
		return common.FileStatus{}, err
	}
	if skipped != nil {
		return *skipped, nil
	}

	file, err := vcf.Read(content, v.SkipVariants)
	if err != nil {
		logger.Warn("[Extract] Could not read VCF", "project", projectID, "path", f.Path, "err", err)
		return sheetStatus(projectID, f, "all", false, common.ReasonFailed), nil
	}

	study := studyOf(f, projectID)
	addHeader(study, f, file.Header, g)
	for _, variant := range file.Variants {
		addVariant(study, f, file.Header, variant, g)
	}
	return sheetStatus(projectID, f, "all", true, common.ReasonGood), nil
}

func addHeader(study string, f loader.FileRef, h vcf.Header, g *graph.Graph) {
	metaNode := func(id, label string) {
		g.AddNode(common.NewNode(id, label, id, vcfSources...).Add(common.AttrFileID, f.ID))
	}
	if h.FileFormat != "" {
		metaNode(h.FileFormat, common.LabelVCFFormat)
	}
	if h.Reference != "" {
		g.AddNode(common.NewNode(h.Reference, common.LabelVCFReference, h.Reference, vcfSources...).
			Add(common.AttrFileID, f.ID).
			Add(common.AttrContigs, h.Contigs...))
	}
	for _, cmd := range h.Commands {
		metaNode(cmd, common.LabelVCFCommand)
	}

	for _, sample := range h.Samples {
		metaNode(sample, common.LabelSample)
		g.AddEdge(common.NewEdge(study, sample, common.RelHasSample, vcfSources...))
		if h.FileFormat != "" {
			g.AddEdge(common.NewEdge(sample, h.FileFormat, common.RelHasVCFFormat, vcfSources...))
		}
		if h.Reference != "" {
			g.AddEdge(common.NewEdge(sample, h.Reference, common.RelHasVCFReference, vcfSources...))
		}
		for _, cmd := range h.Commands {
			g.AddEdge(common.NewEdge(sample, cmd, common.RelHasVCFCommand, vcfSources...))
		}
	}
}

// addVariant adds the dbSNP ids of a record. Files without samples link
// their variants to the study.
func addVariant(study string, f loader.FileRef, h vcf.Header, variant vcf.Variant, g *graph.Graph) {
	for _, id := range variant.IDs {
		if !strings.HasPrefix(id, "rs") {
			continue
		}
		curie := ground.NormalizeCURIE("dbsnp", id)
		g.AddNode(common.NewNode(curie, common.LabelVariant, id, vcfSources...).
			Set(common.AttrIRI, ground.IRI(curie)).
			Set(common.AttrChromosome, variant.Chrom).
			Set(common.AttrPosition, strconv.Itoa(variant.Pos)).
			Set(common.AttrRefAllele, variant.Ref).
			Add(common.AttrAltAlleles, variant.Alt...).
			Add(common.AttrFileID, f.ID))

		if len(h.Samples) == 0 {
			g.AddEdge(common.NewEdge(study, curie, common.RelHasVariant, vcfSources...))
			continue
		}
		for _, sample := range variant.Carriers {
			g.AddEdge(common.NewEdge(sample, curie, common.RelHasVariant, vcfSources...))
		}
	}
}
