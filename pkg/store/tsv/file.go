package tsv

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
)

// WriteFile encodes s into path. The data goes to a temporary file in the
// same directory first and is renamed into place once complete, so readers
// never observe a half written file.
func WriteFile(path string, s *graph.Store) (WriteStats, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return WriteStats{}, err
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return WriteStats{}, err
	}
	defer os.Remove(tmp.Name())

	stats, err := Encode(tmp, s)
	if err != nil {
		tmp.Close()
		return stats, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return stats, err
	}
	if err := tmp.Close(); err != nil {
		return stats, err
	}
	return stats, os.Rename(tmp.Name(), path)
}

// ReadFile decodes the store at path. A missing file yields an empty store.
func ReadFile(path string, schema *common.Schema) (*graph.Store, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return graph.NewStore(schema), nil
		}
		return nil, err
	}
	defer f.Close()
	return Decode(f, schema)
}
