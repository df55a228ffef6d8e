package llm_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/internal/conversation"
	"github.com/toolloop/toolloop/internal/llm"
	"github.com/toolloop/toolloop/internal/tools"
)

const messageBody = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-20250514",
  "content": [
    {"type": "text", "text": "Let me check."},
    {"type": "tool_use", "id": "toolu_01", "name": "get_time", "input": {}}
  ],
  "stop_reason": "tool_use",
  "stop_sequence": null,
  "usage": {"input_tokens": 12, "output_tokens": 7}
}`

type capture struct {
	calls   atomic.Int32
	body    map[string]any
	headers http.Header
}

func anthropicServer(t *testing.T, status int, body string, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.calls.Add(1)
		c.headers = r.Header.Clone()
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &c.body)
		assert.Equal(t, "/v1/messages", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newAnthropic(url string) *llm.AnthropicClient {
	return llm.NewAnthropicClient(llm.AnthropicOptions{APIKey: "sk-test", BaseURL: url})
}

// ─── Success ────────────────────────────────────────────────

func TestAnthropicComplete(t *testing.T) {
	c := &capture{}
	srv := anthropicServer(t, http.StatusOK, messageBody, c)

	history := []conversation.Turn{conversation.UserTurn("What time is it?")}
	resp, err := newAnthropic(srv.URL).Complete(context.Background(), history, nil)
	require.NoError(t, err)

	require.Len(t, resp.Blocks, 2)
	assert.Equal(t, conversation.TextBlock("Let me check."), resp.Blocks[0])
	assert.Equal(t, conversation.BlockToolUse, resp.Blocks[1].Type)
	assert.Equal(t, "toolu_01", resp.Blocks[1].ID)
	assert.Equal(t, "get_time", resp.Blocks[1].Name)
	assert.JSONEq(t, `{}`, string(resp.Blocks[1].Input))
	assert.Equal(t, "tool_use", resp.StopReason)
	assert.Equal(t, llm.Usage{InputTokens: 12, OutputTokens: 7}, resp.Usage)

	assert.Equal(t, "sk-test", c.headers.Get("X-Api-Key"))
	assert.NotEmpty(t, c.headers.Get("Anthropic-Version"))
	assert.Equal(t, llm.DefaultModel, c.body["model"])
	assert.EqualValues(t, llm.DefaultMaxTokens, c.body["max_tokens"])
	assert.NotContains(t, c.body, "tools")

	msgs, ok := c.body["messages"].([]any)
	require.True(t, ok)
	require.Len(t, msgs, 1)
	assert.Equal(t, "user", msgs[0].(map[string]any)["role"])
}

func TestAnthropicSendsHistoryAndTools(t *testing.T) {
	c := &capture{}
	srv := anthropicServer(t, http.StatusOK, messageBody, c)

	history := []conversation.Turn{
		conversation.UserTurn("What time is it?"),
		conversation.AssistantTurn([]conversation.ContentBlock{
			conversation.ToolUseBlock("toolu_01", "get_time", nil),
		}),
		conversation.ToolResultTurn(conversation.ToolResultBlock("toolu_01", "Error: boom", true)),
	}
	decls := []tools.Declaration{{
		Name:        "get_time",
		Description: "clock",
		InputSchema: map[string]any{"type": "object", "properties": map[string]any{}},
	}}
	_, err := newAnthropic(srv.URL).Complete(context.Background(), history, decls)
	require.NoError(t, err)

	toolList, ok := c.body["tools"].([]any)
	require.True(t, ok)
	require.Len(t, toolList, 1)
	assert.Equal(t, "get_time", toolList[0].(map[string]any)["name"])
	assert.Contains(t, toolList[0].(map[string]any), "input_schema")

	msgs := c.body["messages"].([]any)
	require.Len(t, msgs, 3)
	assert.Equal(t, "assistant", msgs[1].(map[string]any)["role"])

	result := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", result["type"])
	assert.Equal(t, "toolu_01", result["tool_use_id"])
	assert.Equal(t, true, result["is_error"])
}

func TestAnthropicEmptyToolOutputAndText(t *testing.T) {
	c := &capture{}
	srv := anthropicServer(t, http.StatusOK, messageBody, c)

	history := []conversation.Turn{
		conversation.UserTurn("run it"),
		conversation.AssistantTurn([]conversation.ContentBlock{
			conversation.TextBlock(""),
			conversation.ToolUseBlock("toolu_01", "noop", nil),
		}),
		conversation.ToolResultTurn(conversation.ToolResultBlock("toolu_01", "", false)),
	}
	_, err := newAnthropic(srv.URL).Complete(context.Background(), history, nil)
	require.NoError(t, err)

	msgs := c.body["messages"].([]any)
	require.Len(t, msgs, 3)

	assistant := msgs[1].(map[string]any)["content"].([]any)
	require.Len(t, assistant, 1, "empty text block is not sent")
	assert.Equal(t, "tool_use", assistant[0].(map[string]any)["type"])

	result := msgs[2].(map[string]any)["content"].([]any)[0].(map[string]any)
	assert.Equal(t, "tool_result", result["type"])
	inner := result["content"].([]any)
	require.Len(t, inner, 1)
	assert.Equal(t, llm.EmptyToolOutput, inner[0].(map[string]any)["text"])
}

// ─── Failures ───────────────────────────────────────────────

func TestAnthropicServerErrorIsTransportError(t *testing.T) {
	c := &capture{}
	body := `{"type":"error","error":{"type":"api_error","message":"overloaded"}}`
	srv := anthropicServer(t, http.StatusInternalServerError, body, c)

	_, err := newAnthropic(srv.URL).Complete(context.Background(), []conversation.Turn{conversation.UserTurn("hello")}, nil)
	require.Error(t, err)

	var te *llm.TransportError
	require.True(t, errors.As(err, &te), "got %T", err)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)
	assert.Contains(t, te.Body, "overloaded")
	assert.Equal(t, int32(1), c.calls.Load(), "no automatic retry")
}

func TestAnthropicMissingContentIsProtocolError(t *testing.T) {
	c := &capture{}
	body := `{"id":"msg_02","type":"message","role":"assistant","model":"m","stop_reason":"end_turn","usage":{"input_tokens":1,"output_tokens":1}}`
	srv := anthropicServer(t, http.StatusOK, body, c)

	_, err := newAnthropic(srv.URL).Complete(context.Background(), []conversation.Turn{conversation.UserTurn("hello")}, nil)
	var pe *llm.ProtocolError
	require.True(t, errors.As(err, &pe), "got %v", err)
}

func TestAnthropicUnparseableBodyIsProtocolError(t *testing.T) {
	c := &capture{}
	srv := anthropicServer(t, http.StatusOK, `not json`, c)

	_, err := newAnthropic(srv.URL).Complete(context.Background(), []conversation.Turn{conversation.UserTurn("hello")}, nil)
	var pe *llm.ProtocolError
	require.True(t, errors.As(err, &pe), "got %v", err)
}
