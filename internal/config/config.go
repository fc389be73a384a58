// Package config collects the environment settings shared by the builder
// CLI and the worker.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator"

	"github.com/OFFIS-RIT/dglink/internal/util"
)

type S3 struct {
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string
}

type Config struct {
	Debug   bool
	LogJSON bool

	// ArtifactBackend is where graph files are written: a local directory
	// or a bucket.
	ArtifactBackend string `validate:"oneof=dir s3"`
	ArtifactDir     string
	ArtifactBucket  string
	ArtifactPrefix  string

	// RepoBackend is where project content is read from.
	RepoBackend string `validate:"oneof=dir s3"`
	RepoDir     string
	RepoBucket  string
	RepoPrefix  string
	CacheDir    string

	S3 S3

	GildaURL     string        `validate:"required,url"`
	GildaTimeout time.Duration `validate:"gt=0"`
	GildaRetries int           `validate:"gte=0"`
	Organisms    []string

	StudyBaseURL     string
	TypesFile        string
	WeightsFile      string
	PublicationsFile string
	ToolsFile        string

	// DicomPerStudy reads one DICOM file per study instead of one per
	// series.
	DicomPerStudy     bool
	VCFSkipVariants   bool
	VCFSkipCompressed bool

	Workers      int     `validate:"gte=1"`
	ScoreWorkers int     `validate:"gte=0"`
	Cutoff       float64 `validate:"gte=0,lte=1"`

	DatabaseURL  string
	SnapshotName string `validate:"required"`
	SQLitePath   string

	RabbitMQURL string
}

// Load reads the configuration from the environment. .env files are read
// first when present.
func Load(envFiles ...string) (Config, error) {
	util.LoadEnv(envFiles...)

	cfg := Config{
		Debug:   util.GetEnvBool("DEBUG", false),
		LogJSON: util.GetEnvBool("LOG_JSON", false),

		ArtifactBackend: util.GetEnvString("ARTIFACT_BACKEND", "dir"),
		ArtifactDir:     util.GetEnvString("ARTIFACT_DIR", "output"),
		ArtifactBucket:  util.GetEnvString("ARTIFACT_BUCKET", ""),
		ArtifactPrefix:  util.GetEnvString("ARTIFACT_PREFIX", "graph"),

		RepoBackend: util.GetEnvString("REPO_BACKEND", "dir"),
		RepoDir:     util.GetEnvString("REPO_DIR", "data"),
		RepoBucket:  util.GetEnvString("REPO_BUCKET", ""),
		RepoPrefix:  util.GetEnvString("REPO_PREFIX", ""),
		CacheDir:    util.GetEnvString("CACHE_DIR", ""),

		S3: S3{
			Region:    util.GetEnvString("S3_REGION", "us-east-1"),
			Endpoint:  util.GetEnvString("S3_ENDPOINT", ""),
			AccessKey: util.GetEnvString("S3_ACCESS_KEY", ""),
			SecretKey: util.GetEnvString("S3_SECRET_KEY", ""),
		},

		GildaURL:     util.GetEnvString("GILDA_URL", "http://localhost:8001"),
		GildaTimeout: util.GetEnvDuration("GILDA_TIMEOUT", 30*time.Second),
		GildaRetries: util.GetEnvInt("GILDA_RETRIES", 3),
		Organisms:    util.GetEnvList("GILDA_ORGANISMS"),

		StudyBaseURL:     util.GetEnvString("STUDY_BASE_URL", "https://nf.synapse.org/Explore/Studies/DetailsPage/StudyDetails?studyId"),
		TypesFile:        util.GetEnvString("TYPES_FILE", ""),
		WeightsFile:      util.GetEnvString("WEIGHTS_FILE", ""),
		PublicationsFile: util.GetEnvString("PUBLICATIONS_FILE", ""),
		ToolsFile:        util.GetEnvString("TOOLS_FILE", ""),

		DicomPerStudy:     util.GetEnvBool("DICOM_PER_STUDY", false),
		VCFSkipVariants:   util.GetEnvBool("VCF_SKIP_VARIANTS", false),
		VCFSkipCompressed: util.GetEnvBool("VCF_SKIP_COMPRESSED", false),

		Workers:      util.GetEnvInt("WORKERS", 4),
		ScoreWorkers: util.GetEnvInt("SCORE_WORKERS", 0),
		Cutoff:       util.GetEnvFloat("SIMILARITY_CUTOFF", 0.5),

		DatabaseURL:  util.GetEnvString("DATABASE_URL", ""),
		SnapshotName: util.GetEnvString("SNAPSHOT_NAME", "main"),
		SQLitePath:   util.GetEnvString("SQLITE_PATH", ""),

		RabbitMQURL: util.GetEnvString("RABBITMQ_URL", ""),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints and the settings each backend needs.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.ArtifactBackend == "s3" && c.ArtifactBucket == "" {
		return fmt.Errorf("invalid configuration: ARTIFACT_BUCKET is required for the s3 backend")
	}
	if c.RepoBackend == "s3" && c.RepoBucket == "" {
		return fmt.Errorf("invalid configuration: REPO_BUCKET is required for the s3 backend")
	}
	return nil
}
