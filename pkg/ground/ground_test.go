package ground

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
)

func TestNormalizeCURIE(t *testing.T) {
	tests := []struct {
		db, id string
		want   string
	}{
		{"HGNC", "7765", "hgnc:7765"},
		{"CHEBI", "CHEBI:15377", "CHEBI:15377"},
		{"MESH", "D009456", "mesh:D009456"},
		{"DOID", "DOID:8712", "DOID:8712"},
		{"Custom", "x1", "custom:x1"},
		{"", "syn123", "syn123"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := NormalizeCURIE(tt.db, tt.id); got != tt.want {
				t.Errorf("NormalizeCURIE(%q, %q) = %q, want %q", tt.db, tt.id, got, tt.want)
			}
		})
	}
}

func TestIRI(t *testing.T) {
	tests := map[string]string{
		"hgnc:7765":   "https://identifiers.org/hgnc:7765",
		"CHEBI:15377": "http://purl.obolibrary.org/obo/CHEBI_15377",
		"custom:x1":   "https://identifiers.org/custom:x1",
		"dbsnp:rs123": "https://www.ncbi.nlm.nih.gov/snp/rs123",
		"nocolon":     "",
	}
	for curie, want := range tests {
		if got := IRI(curie); got != want {
			t.Errorf("IRI(%q) = %q, want %q", curie, got, want)
		}
	}
}

func gildaServer(t *testing.T, failFirst int) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		if int(n) <= failFirst {
			http.Error(w, "busy", http.StatusServiceUnavailable)
			return
		}
		var req gildaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		switch r.URL.Path {
		case "/ground":
			json.NewEncoder(w).Encode([]gildaMatch{
				{Term: gildaTerm{DB: "HGNC", ID: "7765", EntryName: "NF1"}, Score: 0.9},
			})
		case "/annotate":
			json.NewEncoder(w).Encode([]gildaAnnotation{
				{Text: "NF1", Start: 0, End: 3, Matches: []gildaMatch{
					{Term: gildaTerm{DB: "HGNC", ID: "7765", EntryName: "NF1"}, Score: 0.9},
				}},
				{Text: "nothing", Start: 4, End: 11},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestGildaGround(t *testing.T) {
	srv, calls := gildaServer(t, 1)
	c, err := NewGildaClient(NewGildaClientParams{BaseURL: srv.URL + "/", MaxRetries: 3})
	if err != nil {
		t.Fatal(err)
	}

	terms, err := c.Ground(context.Background(), " NF1 ")
	if err != nil {
		t.Fatal(err)
	}
	want := []Term{{DB: "HGNC", ID: "7765", Name: "NF1", Score: 0.9}}
	if !reflect.DeepEqual(terms, want) {
		t.Errorf("Ground() = %v, want %v", terms, want)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
	if terms[0].CURIE() != "hgnc:7765" {
		t.Errorf("CURIE() = %q", terms[0].CURIE())
	}

	if _, err := c.Ground(context.Background(), "  "); !errors.Is(err, ErrEmptyText) {
		t.Errorf("Ground(blank) error = %v, want ErrEmptyText", err)
	}
}

func TestGildaAnnotate(t *testing.T) {
	srv, _ := gildaServer(t, 0)
	c, err := NewGildaClient(NewGildaClientParams{BaseURL: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	anns, err := c.Annotate(context.Background(), "NF1 nothing")
	if err != nil {
		t.Fatal(err)
	}
	if len(anns) != 1 || anns[0].Text != "NF1" || anns[0].Term.ID != "7765" {
		t.Errorf("Annotate() = %+v", anns)
	}
}

func TestGildaGivesUp(t *testing.T) {
	srv, calls := gildaServer(t, 100)
	c, _ := NewGildaClient(NewGildaClientParams{BaseURL: srv.URL, MaxRetries: 2})
	_, err := c.Ground(context.Background(), "NF1")
	var se *statusError
	if !errors.As(err, &se) || se.code != http.StatusServiceUnavailable {
		t.Errorf("Ground() error = %v, want 503 status error", err)
	}
	if calls.Load() != 2 {
		t.Errorf("server calls = %d, want 2", calls.Load())
	}
}

type countingGrounder struct {
	mu    sync.Mutex
	calls map[string]int
	fail  bool
}

func (g *countingGrounder) Ground(ctx context.Context, text string) ([]Term, error) {
	g.mu.Lock()
	g.calls[text]++
	g.mu.Unlock()
	if g.fail {
		return nil, errors.New("down")
	}
	return []Term{{DB: "HGNC", ID: text}}, nil
}

func TestCache(t *testing.T) {
	next := &countingGrounder{calls: map[string]int{}}
	c := NewCache(next)

	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Ground(context.Background(), "NF1"); err != nil {
				t.Error(err)
			}
		}()
	}
	wg.Wait()
	c.Ground(context.Background(), " NF1")

	if next.calls["NF1"] != 1 {
		t.Errorf("upstream calls = %d, want 1", next.calls["NF1"])
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	next := &countingGrounder{calls: map[string]int{}, fail: true}
	c := NewCache(next)
	c.Ground(context.Background(), "x")
	c.Ground(context.Background(), "x")
	if next.calls["x"] != 2 {
		t.Errorf("upstream calls = %d, want 2", next.calls["x"])
	}
}

func TestPrefixTyper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "types.yaml")
	content := "namespaces:\n  MESH: condition\n  custom: thing\noverrides:\n  \"hgnc:7765\": tumor_suppressor\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	typer, err := LoadTyper(path)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		db, id, want string
	}{
		{"HGNC", "7765", "tumor_suppressor"},
		{"HGNC", "1100", "human_gene_protein"},
		{"MESH", "D1", "condition"},
		{"custom", "1", "thing"},
		{"nowhere", "1", UnknownType},
	}
	for _, tt := range tests {
		if got := typer.TypeOf(tt.db, tt.id); got != tt.want {
			t.Errorf("TypeOf(%q, %q) = %q, want %q", tt.db, tt.id, got, tt.want)
		}
	}
}
