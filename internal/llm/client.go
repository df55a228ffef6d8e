// Package llm talks to the model completion endpoint. Clients are stateless:
// every call carries the full history and the tool declarations.
package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/toolloop/toolloop/internal/conversation"
	"github.com/toolloop/toolloop/internal/tools"
)

const (
	DefaultModel     = "claude-sonnet-4-20250514"
	DefaultMaxTokens = 4096
)

// EmptyToolOutput is sent in place of a tool result with no content. Providers
// reject empty text blocks.
const EmptyToolOutput = "(no output)"

func toolResultText(content string) string {
	if strings.TrimSpace(content) == "" {
		return EmptyToolOutput
	}
	return content
}

// Client returns the model's next response for history. A nil or empty decls
// means the request carries no tool field at all.
type Client interface {
	Complete(ctx context.Context, history []conversation.Turn, decls []tools.Declaration) (*Response, error)
}

// Usage counts tokens reported by the provider for one call.
type Usage struct {
	InputTokens  int64 `json:"input_tokens"`
	OutputTokens int64 `json:"output_tokens"`
}

func (u Usage) Add(o Usage) Usage {
	return Usage{InputTokens: u.InputTokens + o.InputTokens, OutputTokens: u.OutputTokens + o.OutputTokens}
}

// Response is one model reply. Blocks are text and tool_use blocks in the
// order the model produced them.
type Response struct {
	Blocks     []conversation.ContentBlock
	StopReason string
	Usage      Usage
}

// TransportError reports a failure to obtain a successful HTTP response.
// StatusCode is zero when no response arrived at all.
type TransportError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("model endpoint returned HTTP %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("model endpoint returned HTTP %d", e.StatusCode)
	default:
		return fmt.Sprintf("model request failed: %v", e.Err)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a successful response whose body is not a usable
// model reply.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid model response: %s: %v", e.Reason, e.Err)
	}
	return "invalid model response: " + e.Reason
}

func (e *ProtocolError) Unwrap() error { return e.Err }
