package common

// Node attributes.
const (
	AttrID         = "curie:ID"
	AttrLabel      = ":LABEL"
	AttrName       = "name"
	AttrRawTexts   = "raw_texts:string[]"
	AttrColumns    = "columns:string[]"
	AttrIRI        = "iri"
	AttrFileID     = "file_id:string[]"
	AttrToolType   = "tool_type"
	AttrProjectURL = "project_url"
	AttrStudyURL   = "study_url"
	AttrDOI        = "DOI"
	AttrSynonyms   = "synonyms:string[]"
	AttrSource     = "source:string[]"
)

// Imaging header attributes of DICOM series nodes.
const (
	AttrPatientID         = "PatientID"
	AttrAccessionNumber   = "AccessionNumber"
	AttrModality          = "Modality"
	AttrPatientSex        = "PatientSex"
	AttrPatientAge        = "PatientAge"
	AttrSOPClassUID       = "SOPClassUID"
	AttrManufacturer      = "Manufacturer"
	AttrSeriesInstanceUID = "SeriesInstanceUID"
)

// Variant attributes.
const (
	AttrChromosome = "chromosome"
	AttrPosition   = "position:int"
	AttrRefAllele  = "ref_allele"
	AttrAltAlleles = "alt_alleles:string[]"
	AttrContigs    = "contigs:string[]"
)

// Edge attributes.
const (
	AttrStart        = ":START_ID"
	AttrEnd          = ":END_ID"
	AttrType         = ":TYPE"
	AttrScore        = "score:float"
	AttrCutoff       = "cutoff:float"
	AttrIntersection = "intersection:float"
	AttrUnion        = "union:float"
	AttrShared       = "shared:string[]"
	AttrStartOnly    = "start_only:string[]"
	AttrEndOnly      = "end_only:string[]"
)

// Identity placeholders.
const (
	PlaceholderID    = "no_id"
	PlaceholderStart = "no_start"
	PlaceholderEnd   = "no_end"
	PlaceholderType  = "no_type"
)

// Source tags.
const (
	SourceProjects         = "projects"
	SourceWiki             = "wiki"
	SourceMetadata         = "metadata"
	SourcePublications     = "publications"
	SourceTools            = "tools"
	SourceExperimentalData = "experimental_data"
	SourceTabularData      = "tabular_data"
	SourceDicomData        = "dicom_data"
	SourceVCFData          = "vcf_data"
	SourceSimilarity       = "similarity"

	// SourceMixed names the audit artifact of records with more than one
	// source. It is a file suffix, never a tag on a record.
	SourceMixed = "mixed"
)

// Node labels.
const (
	LabelProject     = "Project"
	LabelWiki        = "Wiki"
	LabelPublication = "Publication"
	LabelTool        = "Tool"

	LabelDicomSeries  = "DICOM_series"
	LabelVariant      = "genetic_variant"
	LabelSample       = "sample"
	LabelVCFFormat    = "VCF_file_format"
	LabelVCFReference = "VCF_reference"
	LabelVCFCommand   = "VCF_command"
)

// Relation types.
const (
	RelHasWiki          = "hasWiki"
	RelMentions         = "mentions"
	RelPublished        = "published"
	RelUsesTool         = "usesTool"
	RelPredictedRelated = "predicted_related"

	RelHasDicom        = "has_dicom"
	RelHasSample       = "has_sample"
	RelHasVariant      = "has_genetic_variant"
	RelHasVCFFormat    = "has_vcf_format"
	RelHasVCFReference = "has_vcf_reference"
	RelHasVCFCommand   = "has_vcf_command"
)

// WikiSuffix turns a project id into the id of its wiki node.
const WikiSuffix = ":Wiki"

// HasRelation returns the relation type linking a project to a value of the
// given field or entity type, e.g. "has_diseaseFocus".
func HasRelation(field string) string {
	return "has_" + field
}

// NodeSchema returns the version 1 node schema.
func NodeSchema() *Schema {
	return MustSchema(SchemaParams{
		Name:    "nodes",
		Version: 1,
		Attributes: []Attribute{
			Scalar(AttrID),
			Scalar(AttrLabel),
			Scalar(AttrName),
			Multi(AttrRawTexts),
			Multi(AttrColumns),
			Scalar(AttrIRI),
			Multi(AttrFileID),
			Scalar(AttrToolType),
			Scalar(AttrProjectURL),
			Scalar(AttrStudyURL),
			Scalar(AttrDOI),
			Multi(AttrSynonyms),
			Multi(AttrSource),
			Scalar(AttrPatientID),
			Scalar(AttrAccessionNumber),
			Scalar(AttrModality),
			Scalar(AttrPatientSex),
			Scalar(AttrPatientAge),
			Scalar(AttrSOPClassUID),
			Scalar(AttrManufacturer),
			Scalar(AttrSeriesInstanceUID),
			Scalar(AttrChromosome),
			Scalar(AttrPosition),
			Scalar(AttrRefAllele),
			Multi(AttrAltAlleles),
			Multi(AttrContigs),
		},
		Identity:        []IdentityField{{Attribute: AttrID, Placeholder: PlaceholderID}},
		SourceAttribute: AttrSource,
		MaxSetSize:      DefaultMaxSetSize,
	})
}

// EdgeSchema returns the version 1 edge schema. The identity key is the
// ordered (start, end, type) triple.
func EdgeSchema() *Schema {
	return MustSchema(SchemaParams{
		Name:    "edges",
		Version: 1,
		Attributes: []Attribute{
			Scalar(AttrStart),
			Scalar(AttrEnd),
			Scalar(AttrType),
			Multi(AttrSource),
			Scalar(AttrScore),
			Scalar(AttrCutoff),
			Scalar(AttrIntersection),
			Scalar(AttrUnion),
			Multi(AttrShared),
			Multi(AttrStartOnly),
			Multi(AttrEndOnly),
		},
		Identity: []IdentityField{
			{Attribute: AttrStart, Placeholder: PlaceholderStart},
			{Attribute: AttrEnd, Placeholder: PlaceholderEnd},
			{Attribute: AttrType, Placeholder: PlaceholderType},
		},
		SourceAttribute: AttrSource,
		MaxSetSize:      DefaultMaxSetSize,
	})
}

// EdgeKey builds the identity key of an edge without going through a record.
func EdgeKey(start, end, relation string) string {
	return start + KeySeparator + end + KeySeparator + relation
}

// NewNode starts a node record.
func NewNode(id, label, name string, sources ...string) *Record {
	return NewRecord().
		Set(AttrID, id).
		Set(AttrLabel, label).
		Set(AttrName, name).
		Add(AttrSource, sources...)
}

// NewEdge starts an edge record.
func NewEdge(start, end, relation string, sources ...string) *Record {
	return NewRecord().
		Set(AttrStart, start).
		Set(AttrEnd, end).
		Set(AttrType, relation).
		Add(AttrSource, sources...)
}
