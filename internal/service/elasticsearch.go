package service

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/toolloop/toolloop/internal/models"
)

// ElasticsearchOptions configures NewElasticsearchService.
type ElasticsearchOptions struct {
	Scheme          string
	Host            string
	Port            int
	User            string
	Password        string
	VerifyCerts     bool
	MaxRetries      int
	Timeout         time.Duration
	AllowedPatterns []string
}

// ElasticsearchService backs the list_indices, get_index_mapping and
// search_documents tools. Every call is restricted to the allowed index
// patterns.
type ElasticsearchService struct {
	client          *elasticsearch.Client
	allowedPatterns []string
}

func NewElasticsearchService(opts ElasticsearchOptions) (*ElasticsearchService, error) {
	cfg := elasticsearch.Config{
		Addresses:  []string{fmt.Sprintf("%s://%s:%d", opts.Scheme, opts.Host, opts.Port)},
		Username:   opts.User,
		Password:   opts.Password,
		MaxRetries: opts.MaxRetries,
	}

	transport := &http.Transport{ResponseHeaderTimeout: opts.Timeout}
	if !opts.VerifyCerts {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true, // #nosec G402 - user explicitly disabled cert verification
		}
	}
	cfg.Transport = transport

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch client: %w", err)
	}
	return &ElasticsearchService{client: client, allowedPatterns: opts.AllowedPatterns}, nil
}

// IsIndexAllowed reports whether index matches one of the allowed patterns.
// Patterns use shell glob syntax; with no patterns every index is allowed.
func (s *ElasticsearchService) IsIndexAllowed(index string) bool {
	if len(s.allowedPatterns) == 0 {
		return true
	}
	for _, pattern := range s.allowedPatterns {
		if ok, err := path.Match(pattern, index); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *ElasticsearchService) AllowedPatterns() []string {
	return s.allowedPatterns
}

func (s *ElasticsearchService) checkIndex(index string) error {
	if strings.TrimSpace(index) == "" {
		return fmt.Errorf("index is required")
	}
	if !s.IsIndexAllowed(index) {
		return fmt.Errorf("access to index %q is not permitted", index)
	}
	return nil
}

// TestConnection pings the cluster
func (s *ElasticsearchService) TestConnection(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping: %s", res.Status())
	}
	return nil
}

// ListIndices returns the indices the allowed patterns expose.
func (s *ElasticsearchService) ListIndices(ctx context.Context) ([]models.IndexInfo, error) {
	res, err := s.client.Cat.Indices(
		s.client.Cat.Indices.WithContext(ctx),
		s.client.Cat.Indices.WithFormat("json"),
		s.client.Cat.Indices.WithH("index,docs.count,store.size,health,status"),
	)
	var all []models.IndexInfo
	if err := decode(res, err, &all); err != nil {
		return nil, fmt.Errorf("list indices: %w", err)
	}

	out := make([]models.IndexInfo, 0, len(all))
	for _, idx := range all {
		if s.IsIndexAllowed(idx.Index) {
			out = append(out, idx)
		}
	}
	return out, nil
}

// GetMapping returns the raw mapping document of index.
func (s *ElasticsearchService) GetMapping(ctx context.Context, index string) (map[string]any, error) {
	if err := s.checkIndex(index); err != nil {
		return nil, err
	}
	res, err := s.client.Indices.GetMapping(
		s.client.Indices.GetMapping.WithContext(ctx),
		s.client.Indices.GetMapping.WithIndex(index),
	)
	var mapping map[string]any
	if err := decode(res, err, &mapping); err != nil {
		return nil, fmt.Errorf("get mapping: %w", err)
	}
	return mapping, nil
}

// searchResult is the subset of the search API response that is kept.
type searchResult struct {
	Took     int  `json:"took"`
	TimedOut bool `json:"timed_out"`
	Hits     struct {
		Total struct {
			Value int64 `json:"value"`
		} `json:"total"`
		MaxScore *float64         `json:"max_score"`
		Hits     []map[string]any `json:"hits"`
	} `json:"hits"`
	Aggregations map[string]any `json:"aggregations"`
}

// Search runs req against an allowed index.
func (s *ElasticsearchService) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResponse, error) {
	if err := s.checkIndex(req.Index); err != nil {
		return nil, err
	}

	body := map[string]any{"size": req.Size, "from": req.From}
	if req.Query != nil {
		body["query"] = req.Query
	}
	if len(req.Sort) > 0 {
		body["sort"] = req.Sort
	}
	if len(req.SourceFields) > 0 {
		body["_source"] = req.SourceFields
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(req.Index),
		s.client.Search.WithBody(bytes.NewReader(payload)),
	)
	var raw searchResult
	if err := decode(res, err, &raw); err != nil {
		return nil, fmt.Errorf("search %s: %w", req.Index, err)
	}

	hits := raw.Hits.Hits
	if hits == nil {
		hits = []map[string]any{}
	}
	return &models.SearchResponse{
		Status:       "success",
		Index:        req.Index,
		Took:         raw.Took,
		TimedOut:     raw.TimedOut,
		TotalHits:    raw.Hits.Total.Value,
		MaxScore:     raw.Hits.MaxScore,
		Hits:         hits,
		Aggregations: raw.Aggregations,
		Query:        req.Query,
	}, nil
}

// decode closes res and unmarshals its body into v. Error responses are
// reported with the cluster's error object when it sent one.
func decode(res *esapi.Response, callErr error, v any) error {
	if callErr != nil {
		return callErr
	}
	defer res.Body.Close()

	if res.IsError() {
		var e struct {
			Error any `json:"error"`
		}
		body, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
		if json.Unmarshal(body, &e) == nil && e.Error != nil {
			return fmt.Errorf("elasticsearch error [%s]: %v", res.Status(), e.Error)
		}
		return fmt.Errorf("elasticsearch error: %s", res.Status())
	}
	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
