package models

import "encoding/json"

// HealthResponse is returned by GET /health
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// ChatResponse is returned by POST /api/v1/chat
type ChatResponse struct {
	Status     string   `json:"status"`
	RunID      string   `json:"run_id"`
	Outcome    string   `json:"outcome"`
	Answer     string   `json:"answer,omitempty"`
	Iterations int      `json:"iterations"`
	ToolsUsed  []string `json:"tools_used"`
	Error      string   `json:"error,omitempty"`
	Usage      Usage    `json:"usage"`
}

type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

// HistoryResponse is returned by GET /api/v1/history. Turns use the wire
// shape of the messages API.
type HistoryResponse struct {
	Status string            `json:"status"`
	Count  int               `json:"count"`
	Turns  []json.RawMessage `json:"turns"`
}

// ToolsResponse is returned by GET /api/v1/tools
type ToolsResponse struct {
	Status string `json:"status"`
	Count  int    `json:"count"`
	Tools  any    `json:"tools"`
}

// ToolResponse is returned by GET and POST /api/v1/tools/{name}
type ToolResponse struct {
	Status string `json:"status"`
	Tool   any    `json:"tool,omitempty"`
	Output string `json:"output,omitempty"`
	Failed bool   `json:"failed,omitempty"`
}

// QueryResult is produced by the query_database tool.
type QueryResult struct {
	Columns         []string         `json:"columns"`
	Rows            []map[string]any `json:"rows"`
	RowCount        int              `json:"row_count"`
	Truncated       bool             `json:"truncated,omitempty"`
	ExecutionTimeMs int64            `json:"execution_time_ms"`
}

// TableInfo describes one table listed by list_tables.
type TableInfo struct {
	Schema string `json:"schema"`
	Name   string `json:"name"`
	Type   string `json:"type"`
}

// ColumnInfo describes one column returned by describe_table.
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}
