package store

import (
	"context"
	"errors"

	"github.com/OFFIS-RIT/dglink/pkg/graph"
)

var ErrArtifactNotFound = errors.New("artifact not found")

// ArtifactStorage persists serialized graph files by name. Names are flat
// or slash separated ("nodes_wiki.tsv", "reports/file_status.tsv").
//
// Implementations must make Put atomic per name: a concurrent or later Get
// sees either the previous content or the complete new one.
type ArtifactStorage interface {
	// List returns every stored name in lexicographic order.
	List(ctx context.Context) ([]string, error)
	// Get returns the content of name or ErrArtifactNotFound.
	Get(ctx context.Context, name string) ([]byte, error)
	// Put stores data under name, replacing any previous content.
	Put(ctx context.Context, name string, data []byte) error
}

// GraphSink receives a complete combined graph, for example to publish it
// into a database the query service reads from.
type GraphSink interface {
	SaveGraph(ctx context.Context, snapshot string, g *graph.Graph) error
}

// GraphSource loads a previously published graph back.
type GraphSource interface {
	LoadGraph(ctx context.Context, snapshot string) (*graph.Graph, error)
}
