package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/toolloop/toolloop/internal/models"
	"github.com/toolloop/toolloop/internal/security"
	"github.com/toolloop/toolloop/internal/service"
)

type searchDocumentsParams struct {
	Index string         `json:"index" jsonschema:"description=Index pattern to search (e.g. 'logs-*')"`
	Query map[string]any `json:"query,omitempty" jsonschema:"description=Elasticsearch Query DSL object"`
	Size  int            `json:"size,omitempty" jsonschema:"description=Number of results to return (default: 10, max: 100)"`
}

// ESSearchTool executes an Elasticsearch search
func ESSearchTool(es *service.ElasticsearchService, masker *security.DataMasker) Tool {
	return Tool{
		Name:        "search_documents",
		Description: "Search documents in Elasticsearch using Query DSL. Returns matching documents.",
		InputSchema: SchemaFor[searchDocumentsParams](),
		Executor: Typed(func(ctx context.Context, p searchDocumentsParams) (string, error) {
			if p.Index == "" {
				return "", fmt.Errorf("index is required")
			}

			req := &models.SearchRequest{
				Index: p.Index,
				Query: p.Query,
				Size:  p.Size,
			}
			req.SetDefaults()

			resp, err := es.Search(ctx, req)
			if err != nil {
				return "", fmt.Errorf("es search: %w", err)
			}

			hits := make([]map[string]any, len(resp.Hits))
			for i, h := range resp.Hits {
				hits[i] = masker.MaskDocument(h)
			}
			out := map[string]any{
				"total_hits": resp.TotalHits,
				"took_ms":    resp.Took,
				"hits":       hits,
			}
			b, err := json.Marshal(out)
			if err != nil {
				return "", fmt.Errorf("marshal search results: %w", err)
			}
			return string(b), nil
		}),
	}
}
