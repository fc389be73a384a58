package store

import (
	"encoding/json"

	"github.com/OFFIS-RIT/dglink/pkg/common"
)

// recordJSON is the column layout database sinks use for a record's
// attributes.
type recordJSON struct {
	Scalars map[string]string   `json:"scalars,omitempty"`
	Sets    map[string][]string `json:"sets,omitempty"`
}

// MarshalRecord encodes every attribute of r as JSON. Empty scalars and
// empty sets are left out.
func MarshalRecord(r *common.Record) ([]byte, error) {
	var out recordJSON
	for _, name := range r.Scalars() {
		if v := r.Get(name); v != "" {
			if out.Scalars == nil {
				out.Scalars = make(map[string]string)
			}
			out.Scalars[name] = v
		}
	}
	for _, name := range r.SetNames() {
		if vs := r.Values(name); len(vs) > 0 {
			if out.Sets == nil {
				out.Sets = make(map[string][]string)
			}
			out.Sets[name] = vs
		}
	}
	return json.Marshal(out)
}

// UnmarshalRecord decodes attributes written by MarshalRecord.
func UnmarshalRecord(data []byte) (*common.Record, error) {
	var in recordJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	r := common.NewRecord()
	for name, v := range in.Scalars {
		r.Set(name, v)
	}
	for name, vs := range in.Sets {
		r.Add(name, vs...)
	}
	return r, nil
}
