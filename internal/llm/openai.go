package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	openai "github.com/sashabaranov/go-openai"

	"github.com/toolloop/toolloop/internal/conversation"
	"github.com/toolloop/toolloop/internal/tools"
)

const DefaultOpenAIModel = openai.GPT4o

// OpenAIClient speaks the chat completions protocol. Tool invocations map to
// assistant tool_calls and tool results to messages with the tool role.
type OpenAIClient struct {
	client    *openai.Client
	model     string
	maxTokens int
	system    string
}

type OpenAIOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	SystemPrompt string
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	if opts.Model == "" {
		opts.Model = DefaultOpenAIModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	cfg := openai.DefaultConfig(opts.APIKey)
	if opts.BaseURL != "" {
		cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	return &OpenAIClient{
		client:    openai.NewClientWithConfig(cfg),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		system:    opts.SystemPrompt,
	}
}

func (c *OpenAIClient) Complete(ctx context.Context, history []conversation.Turn, decls []tools.Declaration) (*Response, error) {
	req := openai.ChatCompletionRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages:  openAIMessages(c.system, history),
	}
	if len(decls) > 0 {
		req.Tools = openAITools(decls)
	}

	resp, err := c.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return nil, classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return nil, &ProtocolError{Reason: "missing choices"}
	}

	choice := resp.Choices[0]
	out := &Response{
		StopReason: string(choice.FinishReason),
		Usage: Usage{
			InputTokens:  int64(resp.Usage.PromptTokens),
			OutputTokens: int64(resp.Usage.CompletionTokens),
		},
		Blocks: []conversation.ContentBlock{},
	}
	if choice.Message.Content != "" {
		out.Blocks = append(out.Blocks, conversation.TextBlock(choice.Message.Content))
	}
	for _, call := range choice.Message.ToolCalls {
		input := json.RawMessage(call.Function.Arguments)
		if call.Function.Arguments != "" && !json.Valid(input) {
			return nil, &ProtocolError{Reason: fmt.Sprintf("tool call %s: arguments are not valid JSON", call.ID)}
		}
		out.Blocks = append(out.Blocks, conversation.ToolUseBlock(call.ID, call.Function.Name, input))
	}

	log.Debug().
		Str("model", c.model).
		Str("stop_reason", out.StopReason).
		Int("blocks", len(out.Blocks)).
		Msg("openai response")
	return out, nil
}

func openAIMessages(system string, history []conversation.Turn) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(history)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}
	for _, turn := range history {
		if turn.IsPlainText() {
			out = append(out, openai.ChatCompletionMessage{Role: string(turn.Role), Content: turn.Text})
			continue
		}
		if turn.Role == conversation.RoleAssistant {
			msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: turn.PlainText()}
			for _, inv := range turn.ToolInvocations() {
				msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
					ID:   inv.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      inv.Name,
						Arguments: string(inv.Input),
					},
				})
			}
			out = append(out, msg)
			continue
		}
		if text := turn.PlainText(); text != "" {
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: text})
		}
		for _, res := range turn.ToolResults() {
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    toolResultText(res.Content),
				ToolCallID: res.ToolUseID,
			})
		}
	}
	return out
}

func openAITools(decls []tools.Declaration) []openai.Tool {
	out := make([]openai.Tool, len(decls))
	for i, d := range decls {
		out[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  d.InputSchema,
			},
		}
	}
	return out
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		body, _ := json.Marshal(apiErr)
		return &TransportError{StatusCode: apiErr.HTTPStatusCode, Body: string(body), Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &TransportError{StatusCode: reqErr.HTTPStatusCode, Body: string(reqErr.Body), Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ProtocolError{Reason: "cannot decode body", Err: err}
	}
	return &TransportError{Err: err}
}
