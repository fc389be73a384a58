package io

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/OFFIS-RIT/dglink/pkg/loader"
)

func writeFile(t *testing.T, p, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func mirror(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "syn1", "_metadata.json"), `{"name":"Alpha","fields":{"fundingAgency":"NTAP"}}`)
	writeFile(t, filepath.Join(root, "syn1", "_wiki.json"), `{"title":"Alpha study","markdown":"NF1 in skin"}`)
	writeFile(t, filepath.Join(root, "syn1", "files", "data", "genes.csv"), "gene\nNF1\n")
	writeFile(t, filepath.Join(root, "syn1", "files", "data", "genes.csv.meta.json"),
		`{"id":"syn101","annotations":{"specimenID":["S1","S2"],"individualID":"P1"}}`)
	writeFile(t, filepath.Join(root, "syn1", "files", "secret.xlsx"), "x")
	writeFile(t, filepath.Join(root, "syn1", "files", "secret.xlsx.meta.json"), `{"id":"syn102","locked":true}`)
	if err := os.MkdirAll(filepath.Join(root, "syn2"), 0o755); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestDirRepository(t *testing.T) {
	ctx := context.Background()
	repo, err := NewDirRepository(mirror(t))
	if err != nil {
		t.Fatal(err)
	}

	projects, err := repo.Projects(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(projects, []string{"syn1", "syn2"}) {
		t.Errorf("Projects() = %v", projects)
	}

	m, err := repo.FetchMetadata(ctx, "syn1")
	if err != nil {
		t.Fatal(err)
	}
	if m.ID != "syn1" || m.Name != "Alpha" || !reflect.DeepEqual(m.Values("fundingAgency"), []string{"NTAP"}) {
		t.Errorf("FetchMetadata() = %+v", m)
	}

	w, err := repo.FetchWiki(ctx, "syn1")
	if err != nil {
		t.Fatal(err)
	}
	if w.OwnerID != "syn1" || w.Markdown != "NF1 in skin" {
		t.Errorf("FetchWiki() = %+v", w)
	}

	files, err := repo.ListFiles(ctx, "syn1")
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("ListFiles() = %d files, want 2", len(files))
	}
	genes := files[0]
	if genes.ID != "syn101" || genes.Path != "data/genes.csv" {
		t.Errorf("first file = %+v", genes)
	}
	if want := map[string][]string{"specimenID": {"S1", "S2"}, "individualID": {"P1"}}; !reflect.DeepEqual(genes.Annotations, want) {
		t.Errorf("annotations = %v", genes.Annotations)
	}

	data, err := repo.FetchFile(ctx, genes)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "gene\nNF1\n" {
		t.Errorf("FetchFile() = %q", data)
	}
	if _, err := repo.FetchFile(ctx, files[1]); !errors.Is(err, loader.ErrLocked) {
		t.Errorf("FetchFile(locked) error = %v, want ErrLocked", err)
	}
}

func TestDirRepositoryMissing(t *testing.T) {
	ctx := context.Background()
	repo, err := NewDirRepository(mirror(t))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := repo.FetchMetadata(ctx, "syn2"); !errors.Is(err, loader.ErrNotFound) {
		t.Errorf("FetchMetadata() error = %v, want ErrNotFound", err)
	}
	files, err := repo.ListFiles(ctx, "syn2")
	if err != nil || len(files) != 0 {
		t.Errorf("ListFiles() = %v, %v; want empty", files, err)
	}
	if _, err := repo.FetchWiki(ctx, "../x"); err == nil {
		t.Error("FetchWiki() accepted a path as project id")
	}
	if _, err := repo.FetchFile(ctx, loader.FileRef{ProjectID: "syn1", Path: "../_wiki.json"}); err == nil {
		t.Error("FetchFile() escaped the files directory")
	}
}
