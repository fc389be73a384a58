package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GILDA_URL", "http://gilda:8001")
	t.Setenv("WORKERS", "")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ArtifactBackend != "dir" || cfg.RepoBackend != "dir" {
		t.Errorf("backends = %q %q, want dir", cfg.ArtifactBackend, cfg.RepoBackend)
	}
	if cfg.Workers != 4 || cfg.Cutoff != 0.5 || cfg.SnapshotName != "main" {
		t.Errorf("defaults = workers %d cutoff %v snapshot %q", cfg.Workers, cfg.Cutoff, cfg.SnapshotName)
	}
	if cfg.GildaTimeout != 30*time.Second {
		t.Errorf("GildaTimeout = %v", cfg.GildaTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ARTIFACT_BACKEND", "s3")
	t.Setenv("ARTIFACT_BUCKET", "graphs")
	t.Setenv("GILDA_ORGANISMS", "9606, 10090")
	t.Setenv("SIMILARITY_CUTOFF", "0.8")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ArtifactBucket != "graphs" || cfg.Cutoff != 0.8 || len(cfg.Organisms) != 2 {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		ArtifactBackend: "dir",
		RepoBackend:     "dir",
		GildaURL:        "http://localhost:8001",
		GildaTimeout:    time.Second,
		Workers:         1,
		Cutoff:          0.5,
		SnapshotName:    "main",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"UnknownBackend", func(c *Config) { c.ArtifactBackend = "ftp" }, "ArtifactBackend"},
		{"CutoffAboveOne", func(c *Config) { c.Cutoff = 1.5 }, "Cutoff"},
		{"NoWorkers", func(c *Config) { c.Workers = 0 }, "Workers"},
		{"BadGildaURL", func(c *Config) { c.GildaURL = "not a url" }, "GildaURL"},
		{"BucketMissing", func(c *Config) { c.RepoBackend = "s3" }, "REPO_BUCKET"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid
			tt.mutate(&c)
			err := c.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Validate() = %v, want error mentioning %s", err, tt.want)
			}
		})
	}
}
