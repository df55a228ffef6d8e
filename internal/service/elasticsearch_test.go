package service_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/toolloop/toolloop/internal/models"
	"github.com/toolloop/toolloop/internal/service"
)

// newCluster serves a minimal Elasticsearch API. The product header is
// required by the client.
func newCluster(t *testing.T, patterns []string) (*service.ElasticsearchService, func() string) {
	t.Helper()
	var (
		mu       sync.Mutex
		lastBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		lastBody = string(b)
		mu.Unlock()

		switch {
		case r.Method == http.MethodHead && r.URL.Path == "/":
			w.WriteHeader(http.StatusOK)
		case r.URL.Path == "/_cat/indices":
			w.Write([]byte(`[{"index":"logs-2024"},{"index":"users"},{"index":"logs-2025"}]`))
		case r.URL.Path == "/logs-2024/_search":
			w.Write([]byte(`{"took":3,"timed_out":false,"hits":{"total":{"value":1},"max_score":1.5,"hits":[{"_id":"1","_source":{"msg":"hi"}}]}}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	t.Cleanup(srv.Close)

	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	port, _ := strconv.Atoi(u.Port())
	es, err := service.NewElasticsearchService(service.ElasticsearchOptions{
		Scheme:          "http",
		Host:            u.Hostname(),
		Port:            port,
		VerifyCerts:     true,
		Timeout:         5 * time.Second,
		AllowedPatterns: patterns,
	})
	if err != nil {
		t.Fatalf("NewElasticsearchService: %v", err)
	}
	return es, func() string {
		mu.Lock()
		defer mu.Unlock()
		return lastBody
	}
}

func TestIsIndexAllowed(t *testing.T) {
	es, _ := newCluster(t, []string{"logs-*", "metrics"})
	cases := map[string]bool{
		"logs-2024": true,
		"metrics":   true,
		"users":     false,
		"metrics-1": false,
		"":          false,
	}
	for index, want := range cases {
		if got := es.IsIndexAllowed(index); got != want {
			t.Errorf("IsIndexAllowed(%q) = %v, want %v", index, got, want)
		}
	}

	open, _ := newCluster(t, nil)
	if !open.IsIndexAllowed("anything") {
		t.Error("no patterns should allow every index")
	}
}

func TestListIndicesFiltered(t *testing.T) {
	es, _ := newCluster(t, []string{"logs-*"})
	indices, err := es.ListIndices(context.Background())
	if err != nil {
		t.Fatalf("ListIndices: %v", err)
	}
	if len(indices) != 2 {
		t.Fatalf("got %d indices, want 2: %v", len(indices), indices)
	}
	for _, idx := range indices {
		if !strings.HasPrefix(idx.Index, "logs-") {
			t.Errorf("unexpected index %q", idx.Index)
		}
	}
}

func TestSearch(t *testing.T) {
	es, lastBody := newCluster(t, []string{"logs-*"})

	req := &models.SearchRequest{Index: "logs-2024", Query: map[string]any{"match_all": map[string]any{}}}
	req.SetDefaults()
	resp, err := es.Search(context.Background(), req)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if resp.TotalHits != 1 || len(resp.Hits) != 1 || resp.Took != 3 {
		t.Errorf("response = %+v", resp)
	}
	if resp.MaxScore == nil || *resp.MaxScore != 1.5 {
		t.Errorf("max_score = %v", resp.MaxScore)
	}

	var sent map[string]any
	last := lastBody()
	if err := json.Unmarshal([]byte(last), &sent); err != nil {
		t.Fatalf("request body %q: %v", last, err)
	}
	if sent["size"] != float64(10) {
		t.Errorf("size = %v, want default 10", sent["size"])
	}

	if _, err := es.Search(context.Background(), &models.SearchRequest{Index: "users"}); err == nil {
		t.Error("search on a disallowed index should fail")
	}
}

func TestGetMappingError(t *testing.T) {
	es, _ := newCluster(t, nil)
	if _, err := es.GetMapping(context.Background(), "missing"); err == nil {
		t.Error("404 mapping should be an error")
	}
}
