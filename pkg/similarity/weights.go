package similarity

import (
	"errors"
	"fmt"
	"maps"
	"os"

	"github.com/OFFIS-RIT/dglink/pkg/common"
	"gopkg.in/yaml.v3"
)

var ErrInvalidWeight = errors.New("invalid relation weight")

// Weights maps relation types to positive weights. Types without an entry
// use Default.
type Weights struct {
	Default float64
	ByType  map[string]float64
}

// DefaultWeights discounts generic mentions and favours curated metadata
// and tool usage.
func DefaultWeights() Weights {
	return Weights{
		Default: 1,
		ByType: map[string]float64{
			common.RelMentions:                  0.5,
			common.HasRelation("fundingAgency"): 2,
			common.HasRelation("institutions"):  2,
			common.HasRelation("diseaseFocus"):  2,
			common.HasRelation("manifestation"): 2,
			common.HasRelation("initiative"):    3,
			common.RelUsesTool:                  3,
		},
	}
}

// Of returns the weight of relation.
func (w Weights) Of(relation string) float64 {
	if v, ok := w.ByType[relation]; ok {
		return v
	}
	return w.Default
}

// Validate rejects non-positive weights.
func (w Weights) Validate() error {
	if w.Default <= 0 {
		return fmt.Errorf("%w: default %v", ErrInvalidWeight, w.Default)
	}
	for rel, v := range w.ByType {
		if v <= 0 {
			return fmt.Errorf("%w: %s = %v", ErrInvalidWeight, rel, v)
		}
	}
	return nil
}

// weightsFile is the YAML layout read by LoadWeights:
//
//	default: 1.0
//	weights:
//	  mentions: 0.5
//	  usesTool: 3
//	exclude:
//	  - has_relatedStudies
type weightsFile struct {
	Default *float64           `yaml:"default"`
	Weights map[string]float64 `yaml:"weights"`
	Exclude []string           `yaml:"exclude"`
}

// LoadWeights reads a weight table from a YAML file. Entries override the
// built-in defaults. The returned exclude list names relation types to leave
// out of adjacency profiles.
func LoadWeights(path string) (Weights, []string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Weights{}, nil, fmt.Errorf("read weights: %w", err)
	}

	var f weightsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return Weights{}, nil, fmt.Errorf("parse weights %s: %w", path, err)
	}

	w := DefaultWeights()
	if f.Default != nil {
		w.Default = *f.Default
	}
	w.ByType = maps.Clone(w.ByType)
	maps.Copy(w.ByType, f.Weights)

	if err := w.Validate(); err != nil {
		return Weights{}, nil, err
	}
	return w, f.Exclude, nil
}
