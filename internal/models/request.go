package models

import (
	"encoding/json"
	"strings"
)

// ChatRequest for POST /api/v1/chat
type ChatRequest struct {
	Message string `json:"message"`
	Reset   bool   `json:"reset"`   // clear history before running
	Timeout int    `json:"timeout"` // seconds
}

func (r *ChatRequest) SetDefaults(defaultTimeout int) {
	r.Message = strings.TrimSpace(r.Message)
	if r.Timeout == 0 {
		r.Timeout = defaultTimeout
	}
	if r.Timeout < 10 {
		r.Timeout = 10
	}
	if r.Timeout > 600 {
		r.Timeout = 600
	}
}

// InvokeToolRequest for POST /api/v1/tools/{name}
type InvokeToolRequest struct {
	Input json.RawMessage `json:"input"`
}
