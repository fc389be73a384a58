package similarity

import (
	"maps"
	"regexp"
	"runtime"
	"slices"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
)

// Profile maps each neighbor of a top-level entity to the relation types
// observed between them, in either direction.
type Profile map[string]map[string]struct{}

func (p Profile) add(neighbor, relation string) {
	types, ok := p[neighbor]
	if !ok {
		types = make(map[string]struct{})
		p[neighbor] = types
	}
	types[relation] = struct{}{}
}

// Types returns the relation types towards neighbor, sorted.
func (p Profile) Types(neighbor string) []string {
	return slices.Sorted(maps.Keys(p[neighbor]))
}

// Options configures profile building and scoring.
type Options struct {
	// Cutoff is the minimum score a pair needs to be emitted.
	Cutoff float64
	// Weights defaults to DefaultWeights when Default is zero.
	Weights Weights
	// Workers bounds scoring parallelism. Defaults to GOMAXPROCS.
	Workers int

	// ProjectLabel marks top-level nodes. Defaults to "Project".
	ProjectLabel string
	// ProjectPattern additionally marks edge endpoints as top-level, for
	// graphs whose project nodes were never written.
	ProjectPattern *regexp.Regexp
	// ProxySuffix names a project's one-hop intermediary. Defaults to
	// ":Wiki".
	ProxySuffix string
	// Exclude lists relation types left out of profiles. Predicted edges are
	// always excluded.
	Exclude []string
}

func (o Options) withDefaults() Options {
	if o.Weights.Default == 0 && o.Weights.ByType == nil {
		o.Weights = DefaultWeights()
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.ProjectLabel == "" {
		o.ProjectLabel = common.LabelProject
	}
	if o.ProxySuffix == "" {
		o.ProxySuffix = common.WikiSuffix
	}
	if !slices.Contains(o.Exclude, common.RelPredictedRelated) {
		o.Exclude = append(slices.Clone(o.Exclude), common.RelPredictedRelated)
	}
	return o
}

// TopLevel returns the ids of all top-level entities of g, sorted.
func TopLevel(g *graph.Graph, opts Options) []string {
	opts = opts.withDefaults()
	seen := make(map[string]struct{})

	g.Nodes.Each(func(key string, r *common.Record) bool {
		if r.Get(common.AttrLabel) == opts.ProjectLabel {
			if id := r.Get(common.AttrID); id != "" {
				seen[id] = struct{}{}
			}
		}
		return true
	})

	if opts.ProjectPattern != nil {
		g.Edges.Each(func(_ string, r *common.Record) bool {
			for _, id := range []string{r.Get(common.AttrStart), r.Get(common.AttrEnd)} {
				if id != "" && opts.ProjectPattern.MatchString(id) {
					seen[id] = struct{}{}
				}
			}
			return true
		})
	}

	return slices.Sorted(maps.Keys(seen))
}

// BuildProfiles returns the adjacency profile of every top-level entity.
// Edges touching an entity's proxy count as edges of the entity itself;
// edges between an entity and its own proxy are ignored.
func BuildProfiles(g *graph.Graph, opts Options) map[string]Profile {
	opts = opts.withDefaults()

	profiles := make(map[string]Profile)
	owner := make(map[string]string)
	for _, id := range TopLevel(g, opts) {
		profiles[id] = make(Profile)
		owner[id] = id
		owner[id+opts.ProxySuffix] = id
	}

	excluded := make(map[string]struct{}, len(opts.Exclude))
	for _, rel := range opts.Exclude {
		excluded[rel] = struct{}{}
	}

	g.Edges.Each(func(_ string, r *common.Record) bool {
		rel := r.Get(common.AttrType)
		if _, skip := excluded[rel]; skip || rel == "" {
			return true
		}
		start, end := r.Get(common.AttrStart), r.Get(common.AttrEnd)
		so, startOwned := owner[start]
		eo, endOwned := owner[end]

		if startOwned && (!endOwned || eo != so) {
			profiles[so].add(end, rel)
		}
		if endOwned && (!startOwned || so != eo) {
			profiles[eo].add(start, rel)
		}
		return true
	})

	return profiles
}
