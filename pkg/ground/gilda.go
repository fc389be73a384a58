package ground

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OFFIS-RIT/dglink/internal/util"
	"github.com/OFFIS-RIT/dglink/pkg/logger"
)

// GildaClient talks to a gilda grounding service over its REST API.
type GildaClient struct {
	baseURL    string
	httpClient *http.Client
	maxRetries int
	organisms  []string
}

type NewGildaClientParams struct {
	BaseURL    string
	Timeout    time.Duration
	MaxRetries int
	// Organisms restricts species-specific groundings, e.g. "9606".
	Organisms []string
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

func NewGildaClient(params NewGildaClientParams) (*GildaClient, error) {
	if params.BaseURL == "" {
		return nil, fmt.Errorf("gilda base url is empty")
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	maxRetries := params.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	return &GildaClient{
		baseURL:    strings.TrimRight(params.BaseURL, "/"),
		httpClient: httpClient,
		maxRetries: maxRetries,
		organisms:  params.Organisms,
	}, nil
}

type gildaRequest struct {
	Text      string   `json:"text"`
	Organisms []string `json:"organisms,omitempty"`
}

type gildaTerm struct {
	DB        string `json:"db"`
	ID        string `json:"id"`
	EntryName string `json:"entry_name"`
}

type gildaMatch struct {
	Term  gildaTerm `json:"term"`
	Score float64   `json:"score"`
}

type gildaAnnotation struct {
	Text    string       `json:"text"`
	Start   int          `json:"start"`
	End     int          `json:"end"`
	Matches []gildaMatch `json:"matches"`
}

func (m gildaMatch) term() Term {
	return Term{DB: m.Term.DB, ID: m.Term.ID, Name: m.Term.EntryName, Score: m.Score}
}

// Ground implements Grounder.
func (c *GildaClient) Ground(ctx context.Context, text string) ([]Term, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, ErrEmptyText
	}
	var matches []gildaMatch
	if err := c.post(ctx, "/ground", gildaRequest{Text: text, Organisms: c.organisms}, &matches); err != nil {
		return nil, err
	}
	terms := make([]Term, 0, len(matches))
	for _, m := range matches {
		terms = append(terms, m.term())
	}
	return terms, nil
}

// Annotate implements Annotator. Only the top match of each span is kept.
func (c *GildaClient) Annotate(ctx context.Context, text string) ([]Annotation, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var raw []gildaAnnotation
	if err := c.post(ctx, "/annotate", gildaRequest{Text: text, Organisms: c.organisms}, &raw); err != nil {
		return nil, err
	}
	out := make([]Annotation, 0, len(raw))
	for _, a := range raw {
		if len(a.Matches) == 0 {
			continue
		}
		out = append(out, Annotation{Text: a.Text, Start: a.Start, End: a.End, Term: a.Matches[0].term()})
	}
	return out, nil
}

type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gilda returned %d: %s", e.code, e.body)
}

func (c *GildaClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return util.RetryErrWithContext(ctx, c.maxRetries, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")

		res, err := c.httpClient.Do(req)
		if err != nil {
			logger.Debug("[Gilda] Request failed", "path", path, "err", err)
			return err
		}
		defer res.Body.Close()

		if res.StatusCode != http.StatusOK {
			msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
			return &statusError{code: res.StatusCode, body: strings.TrimSpace(string(msg))}
		}
		return json.NewDecoder(res.Body).Decode(out)
	})
}
