// Package index reads job documents from the Elasticsearch projection.
package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/elastic/go-elasticsearch/v8/esutil"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/jobstore/internal/config"
	"github.com/kiranshivaraju/jobstore/pkg/esquery"
	"github.com/kiranshivaraju/jobstore/pkg/models"
)

// Sentinel errors for index failures. Only ErrNotFound describes the data; the
// rest mean the index could not answer.
var (
	ErrNotFound          = errors.New("document not found in index")
	ErrIndexUnavailable  = errors.New("search index unavailable")
	ErrIndexQuery        = errors.New("search index query error")
	ErrMalformedResponse = errors.New("malformed search index response")
)

// Client is the interface for reading from the search index.
type Client interface {
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	SearchJobs(ctx context.Context, params esquery.JobSearchParams) (*SearchResult, error)
	CandidatesByJobIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.Candidate, error)
	Ping(ctx context.Context) error
}

// SearchResult is one page of hits plus the total hit count.
type SearchResult struct {
	Total int
	Jobs  []*models.Job
}

// ESClient implements Client using the official Elasticsearch client.
type ESClient struct {
	es             *elasticsearch.Client
	jobIndex       string
	candidateIndex string
	maxWindow      int
	builder        esquery.QueryBuilder
}

// NewESClient creates a client for the configured cluster. Retries are disabled:
// a failed call is reported to the caller immediately.
func NewESClient(cfg config.ElasticsearchConfig) (*ESClient, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    cfg.Addresses,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DisableRetry: true,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
			ResponseHeaderTimeout: timeout,
			MaxIdleConnsPerHost:   10,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("creating elasticsearch client: %w", err)
	}

	return &ESClient{
		es:             es,
		jobIndex:       cfg.JobIndex,
		candidateIndex: cfg.CandidateIndex,
		maxWindow:      cfg.MaxResultWindow,
	}, nil
}

// MaxResultWindow is the largest page the index will serve.
func (c *ESClient) MaxResultWindow() int {
	return c.maxWindow
}

func (c *ESClient) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	res, err := c.es.Get(c.jobIndex, id.String(), c.es.Get.WithContext(ctx))
	if err != nil {
		return nil, classifyError(err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusNotFound {
		var missing getResponse
		if err := json.NewDecoder(res.Body).Decode(&missing); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}
		// A missing index also answers 404 but carries an error body.
		if missing.Error != nil {
			return nil, fmt.Errorf("%w: %s", ErrIndexQuery, missing.Error.Type)
		}
		return nil, ErrNotFound
	}
	if res.IsError() {
		return nil, responseError(res)
	}

	var doc getResponse
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if !doc.Found {
		return nil, ErrNotFound
	}

	return decodeJob(doc.ID, doc.Source)
}

func (c *ESClient) SearchJobs(ctx context.Context, params esquery.JobSearchParams) (*SearchResult, error) {
	body := c.builder.BuildJobSearch(params)

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.jobIndex),
		c.es.Search.WithBody(esutil.NewJSONReader(body)),
		c.es.Search.WithTrackTotalHits(c.maxWindow),
	)
	if err != nil {
		return nil, classifyError(err)
	}
	defer res.Body.Close()

	// A missing index answers 404; that is a query failure, not an empty result.
	if res.IsError() {
		return nil, responseError(res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if sr.Hits == nil {
		return nil, fmt.Errorf("%w: missing hits", ErrMalformedResponse)
	}

	jobs := make([]*models.Job, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		job, err := decodeJob(hit.ID, hit.Source)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	total := len(jobs)
	if sr.Hits.Total != nil {
		total = sr.Hits.Total.Value
	}
	return &SearchResult{Total: total, Jobs: jobs}, nil
}

// CandidatesByJobIDs returns candidates from the candidate index grouped by job.
// Jobs without candidates have no entry. A lookup that cannot return every
// matching candidate in one window fails with ErrIndexQuery.
func (c *ESClient) CandidatesByJobIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID][]models.Candidate, error) {
	out := make(map[uuid.UUID][]models.Candidate)
	if len(ids) == 0 {
		return out, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.candidateIndex),
		c.es.Search.WithBody(esutil.NewJSONReader(c.builder.BuildCandidateLookup(keys, c.maxWindow))),
	)
	if err != nil {
		return nil, classifyError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, responseError(res)
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if sr.Hits == nil {
		return nil, fmt.Errorf("%w: missing hits", ErrMalformedResponse)
	}
	if sr.Hits.Total != nil && sr.Hits.Total.Value > len(sr.Hits.Hits) {
		return nil, fmt.Errorf("%w: %d candidates exceed the result window of %d",
			ErrIndexQuery, sr.Hits.Total.Value, len(sr.Hits.Hits))
	}

	for _, hit := range sr.Hits.Hits {
		var cand models.Candidate
		if err := json.Unmarshal(hit.Source, &cand); err != nil {
			return nil, fmt.Errorf("%w: candidate %s: %v", ErrMalformedResponse, hit.ID, err)
		}
		if cand.ID == uuid.Nil {
			if id, err := uuid.Parse(hit.ID); err == nil {
				cand.ID = id
			}
		}
		out[cand.JobID] = append(out[cand.JobID], cand)
	}
	return out, nil
}

func (c *ESClient) Ping(ctx context.Context) error {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return classifyError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("%w: cluster not ready (status %d)", ErrIndexUnavailable, res.StatusCode)
	}
	return nil
}

// decodeJob parses a document source. The document id wins over any id in the source.
func decodeJob(docID string, source json.RawMessage) (*models.Job, error) {
	if len(source) == 0 {
		return nil, fmt.Errorf("%w: document %s has no source", ErrMalformedResponse, docID)
	}

	var job models.Job
	if err := json.Unmarshal(source, &job); err != nil {
		return nil, fmt.Errorf("%w: document %s: %v", ErrMalformedResponse, docID, err)
	}
	if id, err := uuid.Parse(docID); err == nil {
		job.ID = id
	}
	return &job, nil
}

// responseError maps a non-2xx response onto ErrIndexUnavailable or ErrIndexQuery.
func responseError(res *esapi.Response) error {
	var body errorResponse
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	_ = json.Unmarshal(raw, &body)

	reason := http.StatusText(res.StatusCode)
	if body.Error != nil {
		reason = body.Error.Type + ": " + body.Error.Reason
	}

	switch res.StatusCode {
	case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return fmt.Errorf("%w: status %d: %s", ErrIndexUnavailable, res.StatusCode, reason)
	}
	return fmt.Errorf("%w: status %d: %s", ErrIndexQuery, res.StatusCode, reason)
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: timeout: %v", ErrIndexUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: timeout: %v", ErrIndexUnavailable, err)
	}

	return fmt.Errorf("%w: %v", ErrIndexUnavailable, err)
}

// --- Elasticsearch response types ---

type esError struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type errorResponse struct {
	Error  *esError `json:"error"`
	Status int      `json:"status"`
}

type getResponse struct {
	Index  string          `json:"_index"`
	ID     string          `json:"_id"`
	Found  bool            `json:"found"`
	Source json.RawMessage `json:"_source"`
	Error  *esError        `json:"error"`
}

type searchResponse struct {
	Took int   `json:"took"`
	Hits *hits `json:"hits"`
}

type hits struct {
	Total *struct {
		Value    int    `json:"value"`
		Relation string `json:"relation"`
	} `json:"total"`
	Hits []struct {
		ID     string          `json:"_id"`
		Source json.RawMessage `json:"_source"`
	} `json:"hits"`
}

// Compile-time check that ESClient implements Client.
var _ Client = (*ESClient)(nil)
