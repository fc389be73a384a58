// Package app assembles storage, repositories, grounding and extractors
// from a config.Config for the builder CLI and the worker.
package app

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/OFFIS-RIT/dglink/internal/config"
	"github.com/OFFIS-RIT/dglink/internal/storage"
	"github.com/OFFIS-RIT/dglink/pkg/extract"
	"github.com/OFFIS-RIT/dglink/pkg/ground"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
	loaderio "github.com/OFFIS-RIT/dglink/pkg/loader/io"
	loaders3 "github.com/OFFIS-RIT/dglink/pkg/loader/s3"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
	"github.com/OFFIS-RIT/dglink/pkg/logger/console"
	"github.com/OFFIS-RIT/dglink/pkg/pipeline"
	"github.com/OFFIS-RIT/dglink/pkg/similarity"
	"github.com/OFFIS-RIT/dglink/pkg/store"
	"github.com/OFFIS-RIT/dglink/pkg/store/fs"
	pgstore "github.com/OFFIS-RIT/dglink/pkg/store/pgx"
	stores3 "github.com/OFFIS-RIT/dglink/pkg/store/s3"
	"github.com/OFFIS-RIT/dglink/pkg/store/sqlite"
)

// Repository is a data repository that can also list its projects.
type Repository interface {
	loader.Repository
	loader.ProjectLister
}

// InitLogger installs the console logger. name prefixes every line.
func InitLogger(cfg config.Config, name string) {
	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug:  cfg.Debug,
		JSON:   cfg.LogJSON,
		Prefix: name,
	}))
}

// App holds the clients built from a config. Clients are created on first
// use, so a command only connects to what it needs.
type App struct {
	Config config.Config

	s3Client *s3.Client
	closers  []func()
}

func New(cfg config.Config) *App {
	return &App{Config: cfg}
}

// Close releases every client opened so far.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *App) s3(ctx context.Context) (*s3.Client, error) {
	if a.s3Client != nil {
		return a.s3Client, nil
	}
	c, err := storage.NewS3Client(ctx, storage.S3Params{
		Region:    a.Config.S3.Region,
		Endpoint:  a.Config.S3.Endpoint,
		AccessKey: a.Config.S3.AccessKey,
		SecretKey: a.Config.S3.SecretKey,
	})
	if err != nil {
		return nil, err
	}
	a.s3Client = c
	return c, nil
}

// ArtifactStorage returns where graph files are written.
func (a *App) ArtifactStorage(ctx context.Context) (store.ArtifactStorage, error) {
	switch a.Config.ArtifactBackend {
	case "s3":
		c, err := a.s3(ctx)
		if err != nil {
			return nil, err
		}
		return stores3.NewStorage(c, a.Config.ArtifactBucket, a.Config.ArtifactPrefix), nil
	default:
		return fs.NewDirStorage(a.Config.ArtifactDir)
	}
}

// Repository returns the project source.
func (a *App) Repository(ctx context.Context) (Repository, error) {
	switch a.Config.RepoBackend {
	case "s3":
		c, err := a.s3(ctx)
		if err != nil {
			return nil, err
		}
		return loaders3.NewRepository(loaders3.NewRepositoryParams{
			Client:   c,
			Bucket:   a.Config.RepoBucket,
			Prefix:   a.Config.RepoPrefix,
			CacheDir: a.Config.CacheDir,
		}), nil
	default:
		return loaderio.NewDirRepository(a.Config.RepoDir)
	}
}

// Pipeline wires every extractor against repo.
func (a *App) Pipeline(repo loader.Repository) (*pipeline.Pipeline, error) {
	gilda, err := ground.NewGildaClient(ground.NewGildaClientParams{
		BaseURL:    a.Config.GildaURL,
		Timeout:    a.Config.GildaTimeout,
		MaxRetries: a.Config.GildaRetries,
		Organisms:  a.Config.Organisms,
	})
	if err != nil {
		return nil, err
	}
	grounder := ground.NewCache(gilda)

	typer := ground.DefaultTyper()
	if a.Config.TypesFile != "" {
		if typer, err = ground.LoadTyper(a.Config.TypesFile); err != nil {
			return nil, err
		}
	}

	var pubs []extract.Publication
	if a.Config.PublicationsFile != "" {
		data, err := os.ReadFile(a.Config.PublicationsFile)
		if err != nil {
			return nil, err
		}
		if pubs, err = extract.LoadPublications(data); err != nil {
			return nil, fmt.Errorf("publications: %w", err)
		}
	}

	var tools []extract.Tool
	if a.Config.ToolsFile != "" {
		data, err := os.ReadFile(a.Config.ToolsFile)
		if err != nil {
			return nil, err
		}
		if tools, err = extract.LoadTools(data); err != nil {
			return nil, fmt.Errorf("tools: %w", err)
		}
	}

	logger.Debug("[App] Extractors configured", "publications", len(pubs), "tools", len(tools), "gilda", a.Config.GildaURL)
	return &pipeline.Pipeline{
		Workers: a.Config.Workers,
		Extractors: []extract.Extractor{
			&extract.Projects{Repo: repo, BaseURL: a.Config.StudyBaseURL},
			&extract.Wiki{Repo: repo, Annotator: gilda, Typer: typer, BaseURL: a.Config.StudyBaseURL},
			&extract.Metadata{Repo: repo, Grounder: grounder, Typer: typer},
			&extract.Publications{Registry: pubs},
			&extract.Tools{Repo: repo, Registry: tools},
			&extract.Tabular{Repo: repo, Grounder: grounder, Typer: typer},
			&extract.Dicom{Repo: repo, Annotator: gilda, Typer: typer, ProjectGranularity: a.Config.DicomPerStudy},
			&extract.VCF{Repo: repo, SkipVariants: a.Config.VCFSkipVariants, SkipCompressed: a.Config.VCFSkipCompressed},
		},
	}, nil
}

// ScoreOptions returns the similarity settings, with relation weights from
// WeightsFile when set.
func (a *App) ScoreOptions() (similarity.Options, error) {
	opts := similarity.Options{Cutoff: a.Config.Cutoff, Workers: a.Config.ScoreWorkers}
	if a.Config.WeightsFile != "" {
		w, exclude, err := similarity.LoadWeights(a.Config.WeightsFile)
		if err != nil {
			return opts, err
		}
		opts.Weights, opts.Exclude = w, exclude
	}
	return opts, nil
}

// Sink returns the Postgres publisher when DATABASE_URL is set, otherwise
// the SQLite file when SQLITE_PATH is set, otherwise nil.
func (a *App) Sink(ctx context.Context) (store.GraphSink, error) {
	switch {
	case a.Config.DatabaseURL != "":
		if err := pgstore.Migrate(a.Config.DatabaseURL); err != nil {
			return nil, err
		}
		pool, err := pgxpool.New(ctx, a.Config.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("unable to connect to database: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		return pgstore.NewGraphDBStorage(pool), nil
	case a.Config.SQLitePath != "":
		db, err := sqlite.Open(ctx, a.Config.SQLitePath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		return db, nil
	}
	return nil, nil
}
