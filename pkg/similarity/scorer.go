package similarity

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"strconv"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"github.com/OFFIS-RIT/dglink/pkg/graph"
	"github.com/OFFIS-RIT/dglink/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Prediction is a scored pair of top-level entities together with the
// evidence behind the score. Evidence entries read "<relation>:<neighbor>".
type Prediction struct {
	Start        string
	End          string
	Score        float64
	Cutoff       float64
	Intersection float64
	Union        float64
	Shared       []string
	StartOnly    []string
	EndOnly      []string
}

// Record renders the prediction as a predicted_related edge.
func (p Prediction) Record() *common.Record {
	return common.NewEdge(p.Start, p.End, common.RelPredictedRelated, common.SourceSimilarity).
		Set(common.AttrScore, formatFloat(p.Score)).
		Set(common.AttrCutoff, formatFloat(p.Cutoff)).
		Set(common.AttrIntersection, formatFloat(p.Intersection)).
		Set(common.AttrUnion, formatFloat(p.Union)).
		Add(common.AttrShared, p.Shared...).
		Add(common.AttrStartOnly, p.StartOnly...).
		Add(common.AttrEndOnly, p.EndOnly...)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Comparison is the weighted overlap of two profiles.
type Comparison struct {
	Intersection float64
	Union        float64
	Shared       []string
	AOnly        []string
	BOnly        []string
}

// Score returns Intersection/Union, or 0 for an empty union.
func (c Comparison) Score() float64 {
	if c.Union == 0 {
		return 0
	}
	return c.Intersection / c.Union
}

// Compare computes the weighted Jaccard overlap of a and b. Neighbors and
// relation types are visited in sorted order so Compare(a, b) and
// Compare(b, a) produce bit-identical sums.
func Compare(a, b Profile, w Weights, label func(string) string) Comparison {
	var c Comparison

	neighbors := make(map[string]struct{}, len(a)+len(b))
	for n := range a {
		neighbors[n] = struct{}{}
	}
	for n := range b {
		neighbors[n] = struct{}{}
	}

	shared := make(map[string]struct{})
	aOnly := make(map[string]struct{})
	bOnly := make(map[string]struct{})

	for _, n := range slices.Sorted(maps.Keys(neighbors)) {
		ta, tb := a[n], b[n]
		types := make(map[string]struct{}, len(ta)+len(tb))
		for t := range ta {
			types[t] = struct{}{}
		}
		for t := range tb {
			types[t] = struct{}{}
		}

		name := label(n)
		for _, t := range slices.Sorted(maps.Keys(types)) {
			weight := w.Of(t)
			c.Union += weight

			_, inA := ta[t]
			_, inB := tb[t]
			evidence := t + ":" + name
			switch {
			case inA && inB:
				c.Intersection += weight
				shared[evidence] = struct{}{}
			case inA:
				aOnly[evidence] = struct{}{}
			default:
				bOnly[evidence] = struct{}{}
			}
		}
	}

	c.Shared = slices.Sorted(maps.Keys(shared))
	c.AOnly = slices.Sorted(maps.Keys(aOnly))
	c.BOnly = slices.Sorted(maps.Keys(bOnly))
	return c
}

func disjoint(a, b Profile) bool {
	if len(b) < len(a) {
		a, b = b, a
	}
	for n := range a {
		if _, ok := b[n]; ok {
			return false
		}
	}
	return true
}

// Score compares every unordered pair of top-level entities of g and
// returns the pairs scoring at least opts.Cutoff, best first. Rows of the
// pair matrix are spread over opts.Workers goroutines; each pair is scored
// exactly once with the lexicographically smaller id as Start.
func Score(ctx context.Context, g *graph.Graph, opts Options) ([]Prediction, error) {
	opts = opts.withDefaults()
	if err := opts.Weights.Validate(); err != nil {
		return nil, err
	}

	profiles := BuildProfiles(g, opts)
	ids := slices.Sorted(maps.Keys(profiles))
	label := neighborLabels(g)

	logger.Info("[Similarity] Scoring pairs", "entities", len(ids), "cutoff", opts.Cutoff, "workers", opts.Workers)

	rows := make([][]Prediction, len(ids))
	eg, ectx := errgroup.WithContext(ctx)
	eg.SetLimit(opts.Workers)

	for i := range ids {
		eg.Go(func() error {
			if err := ectx.Err(); err != nil {
				return err
			}
			a := profiles[ids[i]]
			for j := i + 1; j < len(ids); j++ {
				b := profiles[ids[j]]
				if opts.Cutoff > 0 && disjoint(a, b) {
					continue
				}
				c := Compare(a, b, opts.Weights, label)
				score := c.Score()
				if score < opts.Cutoff {
					continue
				}
				rows[i] = append(rows[i], Prediction{
					Start:        ids[i],
					End:          ids[j],
					Score:        score,
					Cutoff:       opts.Cutoff,
					Intersection: c.Intersection,
					Union:        c.Union,
					Shared:       c.Shared,
					StartOnly:    c.AOnly,
					EndOnly:      c.BOnly,
				})
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	var out []Prediction
	for _, row := range rows {
		out = append(out, row...)
	}
	slices.SortStableFunc(out, func(x, y Prediction) int {
		if c := cmp.Compare(y.Score, x.Score); c != 0 {
			return c
		}
		if c := cmp.Compare(x.Start, y.Start); c != 0 {
			return c
		}
		return cmp.Compare(x.End, y.End)
	})

	logger.Info("[Similarity] Scoring done", "predictions", len(out))
	return out, nil
}

// Apply upserts predictions into g as predicted_related edges and returns
// how many were new.
func Apply(g *graph.Graph, preds []Prediction) int {
	created := 0
	for _, p := range preds {
		res, err := g.Edges.Upsert(p.Record())
		if err != nil {
			logger.Warn("[Similarity] Prediction not stored", "start", p.Start, "end", p.End, "err", err)
			continue
		}
		if res.Created {
			created++
		}
	}
	return created
}

// neighborLabels resolves neighbor ids to node names, falling back to the
// id itself.
func neighborLabels(g *graph.Graph) func(string) string {
	names := make(map[string]string)
	g.Nodes.Each(func(_ string, r *common.Record) bool {
		if id, name := r.Get(common.AttrID), r.Get(common.AttrName); id != "" && name != "" {
			names[id] = name
		}
		return true
	})
	return func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		return id
	}
}
