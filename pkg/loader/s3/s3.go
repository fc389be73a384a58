// Package s3 reads projects from a bucket holding the same layout as a
// local mirror (see package io).
package s3

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/sync/singleflight"

	"github.com/OFFIS-RIT/dglink/internal/storage"
	"github.com/OFFIS-RIT/dglink/pkg/loader"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

const sidecarExt = ".meta.json"

type sidecar struct {
	ID          string                     `json:"id"`
	Annotations map[string]json.RawMessage `json:"annotations"`
}

// Repository implements loader.Repository over an S3 bucket. File contents
// are downloaded once into CacheDir when it is set; concurrent fetches of
// the same object share one download.
type Repository struct {
	client   storage.ObjectAPI
	bucket   string
	prefix   string
	cacheDir string

	group singleflight.Group
}

type NewRepositoryParams struct {
	Client   storage.ObjectAPI
	Bucket   string
	Prefix   string
	CacheDir string
}

func NewRepository(params NewRepositoryParams) *Repository {
	prefix := strings.Trim(params.Prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Repository{
		client:   params.Client,
		bucket:   params.Bucket,
		prefix:   prefix,
		cacheDir: params.CacheDir,
	}
}

// Projects lists the projects that have a metadata object.
func (r *Repository) Projects(ctx context.Context) ([]string, error) {
	keys, err := storage.ListFilesWithPrefix(ctx, r.client, r.bucket, r.prefix)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, k := range keys {
		id, rest, ok := strings.Cut(strings.TrimPrefix(k, r.prefix), "/")
		if ok && rest == "_metadata.json" {
			ids = append(ids, id)
		}
	}
	slices.Sort(ids)
	return ids, nil
}

func (r *Repository) key(parts ...string) string {
	return r.prefix + path.Join(parts...)
}

func (r *Repository) get(ctx context.Context, key string) ([]byte, error) {
	data, err := storage.GetFile(ctx, r.client, r.bucket, key)
	if err != nil {
		return nil, mapError(err, key)
	}
	return data, nil
}

func mapError(err error, key string) error {
	switch {
	case storage.IsNotFound(err):
		return fmt.Errorf("%w: %s", loader.ErrNotFound, key)
	case storage.IsAccessDenied(err):
		return fmt.Errorf("%w: %s", loader.ErrLocked, key)
	}
	return err
}

func (r *Repository) FetchMetadata(ctx context.Context, projectID string) (loader.Metadata, error) {
	data, err := r.get(ctx, r.key(projectID, "_metadata.json"))
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

func (r *Repository) FetchWiki(ctx context.Context, projectID string) (loader.Wiki, error) {
	data, err := r.get(ctx, r.key(projectID, "_wiki.json"))
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

func (r *Repository) ListFiles(ctx context.Context, projectID string) ([]loader.FileRef, error) {
	base := r.key(projectID, "files") + "/"
	keys, err := storage.ListFilesWithPrefix(ctx, r.client, r.bucket, base)
	if err != nil {
		return nil, err
	}
	slices.Sort(keys)

	var refs []loader.FileRef
	for _, k := range keys {
		rel := strings.TrimPrefix(k, base)
		if rel == "" || strings.HasSuffix(rel, "/") || strings.HasSuffix(rel, sidecarExt) {
			continue
		}
		ref := loader.FileRef{ID: rel, ProjectID: projectID, Path: rel}
		if slices.Contains(keys, k+sidecarExt) {
			if err := r.applySidecar(ctx, k+sidecarExt, &ref); err != nil {
				return nil, err
			}
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

func (r *Repository) applySidecar(ctx context.Context, key string, ref *loader.FileRef) error {
	data, err := r.get(ctx, key)
	if err != nil {
		if errors.Is(err, loader.ErrLocked) {
			logger.Debug("[S3 Repository] Sidecar locked", "key", key)
			return nil
		}
		return err
	}
	var meta sidecar
	if err := json.Unmarshal(data, &meta); err != nil {
		return fmt.Errorf("failed to decode %s: %w", key, err)
	}
	if meta.ID != "" {
		ref.ID = meta.ID
	}
	ref.Annotations, err = loader.ParseAnnotations(meta.Annotations)
	return err
}

// FetchFile returns the content of file, downloading it into the cache
// directory first when one is configured.
func (r *Repository) FetchFile(ctx context.Context, file loader.FileRef) ([]byte, error) {
	if strings.Contains(file.Path, "..") {
		return nil, fmt.Errorf("invalid file path %q", file.Path)
	}
	key := r.key(file.ProjectID, "files", file.Path)

	result, err, _ := r.group.Do(key, func() (any, error) {
		if r.cacheDir == "" {
			return r.get(ctx, key)
		}

		local := filepath.Join(r.cacheDir, filepath.FromSlash(path.Join(file.ProjectID, file.Path)))
		if data, err := os.ReadFile(local); err == nil {
			return data, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}

		if err := storage.DownloadFile(ctx, r.client, r.bucket, key, local); err != nil {
			return nil, mapError(err, key)
		}
		logger.Debug("[S3 Repository] Downloaded file", "key", key, "dest", local)
		return os.ReadFile(local)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
