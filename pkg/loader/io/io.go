// Package io reads projects from a local mirror of the data portal.
//
// Mirror layout:
//
//	<root>/<project>/_metadata.json
//	<root>/<project>/_wiki.json
//	<root>/<project>/files/<path>
//	<root>/<project>/files/<path>.meta.json   optional sidecar
package io

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/OFFIS-RIT/dglink/pkg/loader"
)

const (
	metadataFile = "_metadata.json"
	wikiFile     = "_wiki.json"
	filesDir     = "files"
	sidecarExt   = ".meta.json"
)

// sidecar carries a file's portal id and annotations. Locked marks files
// the mirror could list but not download.
type sidecar struct {
	ID          string                     `json:"id"`
	Locked      bool                       `json:"locked"`
	Annotations map[string]json.RawMessage `json:"annotations"`
}

type DirRepository struct {
	root string
}

func NewDirRepository(root string) (*DirRepository, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}
	return &DirRepository{root: root}, nil
}

// Projects lists the project directories of the mirror.
func (r *DirRepository) Projects(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

func (r *DirRepository) projectDir(projectID string) (string, error) {
	if projectID == "" || strings.ContainsAny(projectID, `/\`) || projectID == ".." {
		return "", fmt.Errorf("invalid project id %q", projectID)
	}
	return filepath.Join(r.root, projectID), nil
}

func (r *DirRepository) FetchMetadata(ctx context.Context, projectID string) (loader.Metadata, error) {
	dir, err := r.projectDir(projectID)
	if err != nil {
		return loader.Metadata{}, err
	}
	data, err := readFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return loader.Metadata{}, err
	}
	m, err := loader.ParseMetadata(data)
	if err != nil {
		return loader.Metadata{}, err
	}
	if m.ID == "" {
		m.ID = projectID
	}
	return m, nil
}

func (r *DirRepository) FetchWiki(ctx context.Context, projectID string) (loader.Wiki, error) {
	dir, err := r.projectDir(projectID)
	if err != nil {
		return loader.Wiki{}, err
	}
	data, err := readFile(filepath.Join(dir, wikiFile))
	if err != nil {
		return loader.Wiki{}, err
	}
	var w loader.Wiki
	if err := json.Unmarshal(data, &w); err != nil {
		return loader.Wiki{}, fmt.Errorf("failed to decode wiki: %w", err)
	}
	if w.OwnerID == "" {
		w.OwnerID = projectID
	}
	return w, nil
}

// ListFiles walks the project's files directory. A project without files
// has none; it is not an error.
func (r *DirRepository) ListFiles(ctx context.Context, projectID string) ([]loader.FileRef, error) {
	dir, err := r.projectDir(projectID)
	if err != nil {
		return nil, err
	}
	base := filepath.Join(dir, filesDir)

	var refs []loader.FileRef
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && p == base {
				return fs.SkipAll
			}
			return err
		}
		if d.IsDir() || strings.HasSuffix(p, sidecarExt) {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}

		ref := loader.FileRef{
			ID:        filepath.ToSlash(rel),
			ProjectID: projectID,
			Path:      filepath.ToSlash(rel),
			Size:      info.Size(),
		}
		meta, err := readSidecar(p + sidecarExt)
		if err != nil {
			return err
		}
		if meta.ID != "" {
			ref.ID = meta.ID
		}
		ref.Annotations, err = loader.ParseAnnotations(meta.Annotations)
		if err != nil {
			return fmt.Errorf("%s: %w", rel, err)
		}
		refs = append(refs, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].Path < refs[j].Path })
	return refs, nil
}

func (r *DirRepository) FetchFile(ctx context.Context, file loader.FileRef) ([]byte, error) {
	dir, err := r.projectDir(file.ProjectID)
	if err != nil {
		return nil, err
	}
	p := filepath.Join(dir, filesDir, filepath.FromSlash(file.Path))
	if !strings.HasPrefix(p, filepath.Join(dir, filesDir)+string(filepath.Separator)) {
		return nil, fmt.Errorf("file path %q escapes the project", file.Path)
	}
	meta, err := readSidecar(p + sidecarExt)
	if err != nil {
		return nil, err
	}
	if meta.Locked {
		return nil, fmt.Errorf("%w: %s", loader.ErrLocked, file.Path)
	}
	return readFile(p)
}

func readSidecar(p string) (sidecar, error) {
	var meta sidecar
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return meta, nil
	}
	if err != nil {
		return meta, mapError(err, p)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to decode %s: %w", p, err)
	}
	return meta, nil
}

func readFile(p string) ([]byte, error) {
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, mapError(err, p)
	}
	return data, nil
}

func mapError(err error, p string) error {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", loader.ErrNotFound, p)
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s", loader.ErrLocked, p)
	}
	return err
}
