package graph

import (
	"slices"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

// Graph pairs the node store with the edge store. Extractors write into a
// Graph; serializers, projections and the similarity scorer read from one.
type Graph struct {
	Nodes *Store
	Edges *Store
}

// NewGraph returns an empty graph using the version 1 node and edge schemas.
func NewGraph(opts ...StoreOption) *Graph {
	return &Graph{
		Nodes: NewStore(common.NodeSchema(), opts...),
		Edges: NewStore(common.EdgeSchema(), opts...),
	}
}

// NewGraphWithSchemas returns an empty graph over the given schemas.
func NewGraphWithSchemas(nodes, edges *common.Schema, opts ...StoreOption) *Graph {
	return &Graph{
		Nodes: NewStore(nodes, opts...),
		Edges: NewStore(edges, opts...),
	}
}

// Empty returns a graph with empty stores sharing g's schemas.
func (g *Graph) Empty() *Graph {
	return NewGraphWithSchemas(g.Nodes.schema, g.Edges.schema)
}

// AddNode upserts a node record. Identity errors are logged, not returned,
// so extractors can keep going on partially filled input.
func (g *Graph) AddNode(r *common.Record) {
	if _, err := g.Nodes.Upsert(r); err != nil {
		logger.Warn("[Graph] Node not stored", "err", err)
	}
}

// AddEdge upserts an edge record. See AddNode.
func (g *Graph) AddEdge(r *common.Record) {
	if _, err := g.Edges.Upsert(r); err != nil {
		logger.Warn("[Graph] Edge not stored", "err", err)
	}
}

// Absorb merges other into g. Per-worker graphs are folded into a shared
// one this way; for set attributes the order of absorption does not matter.
func (g *Graph) Absorb(other *Graph) []KeyedConflict {
	conflicts := g.Nodes.Absorb(other.Nodes)
	return append(conflicts, g.Edges.Absorb(other.Edges)...)
}

// Project applies Project to both stores.
func (g *Graph) Project(source string, mode Mode) *Graph {
	return &Graph{
		Nodes: Project(g.Nodes, source, mode),
		Edges: Project(g.Edges, source, mode),
	}
}

// Sources returns the source tags present on nodes or edges, sorted.
func (g *Graph) Sources() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, s := range append(Sources(g.Nodes), Sources(g.Edges)...) {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
