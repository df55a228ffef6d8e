package models

// SearchRequest is built by the search_documents tool.
type SearchRequest struct {
	Index        string         `json:"index"`
	Query        map[string]any `json:"query,omitempty"`
	Size         int            `json:"size"`
	From         int            `json:"from"`
	Sort         []string       `json:"sort,omitempty"`
	SourceFields []string       `json:"source_fields,omitempty"`
}

func (r *SearchRequest) SetDefaults() {
	if r.Size <= 0 {
		r.Size = 10
	}
	if r.Size > 100 {
		r.Size = 100
	}
	if r.From < 0 {
		r.From = 0
	}
}

// SearchResponse for ES search results
type SearchResponse struct {
	Status       string           `json:"status"`
	Index        string           `json:"index"`
	Took         int              `json:"took"`
	TimedOut     bool             `json:"timed_out"`
	TotalHits    int64            `json:"total_hits"`
	MaxScore     *float64         `json:"max_score,omitempty"`
	Hits         []map[string]any `json:"hits"`
	Aggregations map[string]any   `json:"aggregations,omitempty"`
	Query        map[string]any   `json:"query,omitempty"`
}

// IndexInfo is one row of the _cat/indices listing.
type IndexInfo struct {
	Index     string `json:"index"`
	DocsCount string `json:"docs.count,omitempty"`
	StoreSize string `json:"store.size,omitempty"`
	Health    string `json:"health,omitempty"`
	Status    string `json:"status,omitempty"`
}
