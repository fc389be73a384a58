package s3

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/OFFIS-RIT/dglink/internal/storage"
	"github.com/OFFIS-RIT/dglink/pkg/store"
)

// Storage keeps artifacts as objects below a key prefix of one bucket.
type Storage struct {
	client storage.ObjectAPI
	bucket string
	prefix string
}

// NewStorage returns a bucket backed ArtifactStorage. prefix may be empty;
// otherwise it is treated as a folder.
func NewStorage(client storage.ObjectAPI, bucket, prefix string) *Storage {
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return &Storage{client: client, bucket: bucket, prefix: prefix}
}

func (s *Storage) List(ctx context.Context) ([]string, error) {
	keys, err := storage.ListFilesWithPrefix(ctx, s.client, s.bucket, s.prefix)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(keys))
	for _, k := range keys {
		if name := strings.TrimPrefix(k, s.prefix); name != "" && !strings.HasSuffix(name, "/") {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *Storage) Get(ctx context.Context, name string) ([]byte, error) {
	data, err := storage.GetFile(ctx, s.client, s.bucket, s.prefix+name)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, fmt.Errorf("%w: %s", store.ErrArtifactNotFound, name)
		}
		return nil, err
	}
	return data, nil
}

// Put relies on S3 PUT semantics: readers see the old or the new object,
// never a partial one.
func (s *Storage) Put(ctx context.Context, name string, data []byte) error {
	if name == "" {
		return fmt.Errorf("artifact name is empty")
	}
	return storage.PutFile(ctx, s.client, s.bucket, s.prefix+name, data)
}
