package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/toolloop/toolloop/internal/service"
)

// ESListIndicesTool lists available Elasticsearch indices
func ESListIndicesTool(es *service.ElasticsearchService) Tool {
	return Tool{
		Name:        "list_indices",
		Description: "List the Elasticsearch indices that may be searched. Use this before search_documents to discover index names.",
		InputSchema: SchemaFor[NoParams](),
		Executor: Typed(func(ctx context.Context, _ NoParams) (string, error) {
			indices, err := es.ListIndices(ctx)
			if err != nil {
				return "", fmt.Errorf("list indices: %w", err)
			}
			if len(indices) == 0 {
				return fmt.Sprintf("No indices match the allowed patterns %v.", es.AllowedPatterns()), nil
			}
			b, err := json.Marshal(indices)
			if err != nil {
				return "", err
			}
			return string(b), nil
		}),
	}
}

type indexMappingParams struct {
	Index string `json:"index" jsonschema:"description=Index name"`
}

// ESMappingTool returns the field mapping of an index.
func ESMappingTool(es *service.ElasticsearchService) Tool {
	return Tool{
		Name:        "get_index_mapping",
		Description: "Get the field mapping of an Elasticsearch index so queries can target the right fields.",
		InputSchema: SchemaFor[indexMappingParams](),
		Executor: Typed(func(ctx context.Context, p indexMappingParams) (string, error) {
			if p.Index == "" {
				return "", fmt.Errorf("index is required")
			}
			mapping, err := es.GetMapping(ctx, p.Index)
			if err != nil {
				return "", fmt.Errorf("get mapping: %w", err)
			}
			b, err := json.Marshal(mapping)
			if err != nil {
				return "", err
			}
			return string(b), nil
		}),
	}
}
