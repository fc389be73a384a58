package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/OFFIS-RIT/dglink/internal/config"
	"github.com/OFFIS-RIT/dglink/pkg/store/fs"
	"github.com/OFFIS-RIT/dglink/pkg/store/sqlite"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	repo := filepath.Join(dir, "repo")
	if err := os.MkdirAll(filepath.Join(repo, "syn1"), 0o755); err != nil {
		t.Fatal(err)
	}
	return config.Config{
		ArtifactBackend: "dir",
		ArtifactDir:     filepath.Join(dir, "out"),
		RepoBackend:     "dir",
		RepoDir:         repo,
		GildaURL:        "http://localhost:8001",
		GildaTimeout:    time.Second,
		Workers:         2,
		Cutoff:          0.4,
		SnapshotName:    "main",
		SQLitePath:      filepath.Join(dir, "graph.db"),
	}
}

func TestAppWiring(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	a := New(cfg)
	defer a.Close()

	st, err := a.ArtifactStorage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := st.(*fs.DirStorage); !ok {
		t.Errorf("ArtifactStorage() = %T, want *fs.DirStorage", st)
	}

	repo, err := a.Repository(ctx)
	if err != nil {
		t.Fatal(err)
	}
	ids, err := repo.Projects(ctx)
	if err != nil || len(ids) != 1 || ids[0] != "syn1" {
		t.Errorf("Projects() = %v, %v", ids, err)
	}

	p, err := a.Pipeline(repo)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Extractors) != 8 || p.Workers != 2 {
		t.Errorf("pipeline = %d extractors, %d workers", len(p.Extractors), p.Workers)
	}

	sink, err := a.Sink(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := sink.(*sqlite.GraphFileStorage); !ok {
		t.Errorf("Sink() = %T, want *sqlite.GraphFileStorage", sink)
	}
}

func TestScoreOptions(t *testing.T) {
	cfg := testConfig(t)
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("default: 2\nexclude:\n  - has_relatedStudies\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg.WeightsFile = path

	opts, err := New(cfg).ScoreOptions()
	if err != nil {
		t.Fatal(err)
	}
	if opts.Cutoff != 0.4 || opts.Weights.Default != 2 || len(opts.Exclude) != 1 {
		t.Errorf("ScoreOptions() = %+v", opts)
	}
}

func TestPipelineMissingRegistry(t *testing.T) {
	cfg := testConfig(t)
	cfg.ToolsFile = filepath.Join(t.TempDir(), "missing.csv")
	a := New(cfg)
	repo, err := a.Repository(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := a.Pipeline(repo); err == nil {
		t.Error("Pipeline() with missing tools file succeeded")
	}
}
