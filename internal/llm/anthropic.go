package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/conversation"
	"github.com/toolloop/toolloop/internal/tools"
)

// AnthropicClient calls the Anthropic Messages API (or a compatible
// provider). The SDK's automatic retries are disabled: a failed call is
// reported to the loop as is.
type AnthropicClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
	system    string
}

// AnthropicOptions configures NewAnthropicClient. Zero values fall back to
// DefaultModel and DefaultMaxTokens.
type AnthropicOptions struct {
	APIKey       string
	BaseURL      string
	Model        string
	MaxTokens    int
	SystemPrompt string
}

func NewAnthropicClient(opts AnthropicOptions) *AnthropicClient {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	reqOpts := []option.RequestOption{
		option.WithAPIKey(opts.APIKey),
		option.WithMaxRetries(0),
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}
	return &AnthropicClient{
		client:    anthropic.NewClient(reqOpts...),
		model:     opts.Model,
		maxTokens: opts.MaxTokens,
		system:    opts.SystemPrompt,
	}
}

func (c *AnthropicClient) Complete(ctx context.Context, history []conversation.Turn, decls []tools.Declaration) (*Response, error) {
	messages, err := anthropicMessages(history)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(c.model)),
		MaxTokens: anthropic.F(int64(c.maxTokens)),
		Messages:  anthropic.F(messages),
	}
	if len(decls) > 0 {
		params.Tools = anthropic.F(anthropicTools(decls))
	}
	if c.system != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{anthropic.NewTextBlock(c.system)})
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyAnthropicError(err)
	}
	if resp.JSON.Content.IsMissing() || resp.JSON.Content.IsNull() {
		return nil, &ProtocolError{Reason: "missing content"}
	}

	out := &Response{
		Blocks:     make([]conversation.ContentBlock, 0, len(resp.Content)),
		StopReason: string(resp.StopReason),
		Usage:      Usage{InputTokens: resp.Usage.InputTokens, OutputTokens: resp.Usage.OutputTokens},
	}
	for _, block := range resp.Content {
		switch b := block.AsUnion().(type) {
		case anthropic.TextBlock:
			out.Blocks = append(out.Blocks, conversation.TextBlock(b.Text))
		case anthropic.ToolUseBlock:
			out.Blocks = append(out.Blocks, conversation.ToolUseBlock(b.ID, b.Name, b.Input))
		default:
			log.Debug().Str("type", string(block.Type)).Msg("ignoring unsupported content block")
		}
	}

	log.Debug().
		Str("model", c.model).
		Str("stop_reason", out.StopReason).
		Int("blocks", len(out.Blocks)).
		Int64("input_tokens", out.Usage.InputTokens).
		Int64("output_tokens", out.Usage.OutputTokens).
		Msg("anthropic response")
	return out, nil
}

func anthropicMessages(history []conversation.Turn) ([]anthropic.MessageParam, error) {
	messages := make([]anthropic.MessageParam, 0, len(history))
	for i, turn := range history {
		var blocks []anthropic.ContentBlockParamUnion
		if turn.IsPlainText() {
			blocks = append(blocks, anthropic.NewTextBlock(turn.Text))
		}
		for _, b := range turn.Blocks {
			switch b.Type {
			case conversation.BlockText:
				if strings.TrimSpace(b.Text) == "" {
					continue
				}
				blocks = append(blocks, anthropic.NewTextBlock(b.Text))
			case conversation.BlockToolUse:
				blocks = append(blocks, anthropic.NewToolUseBlockParam(b.ID, b.Name, b.Input))
			case conversation.BlockToolResult:
				blocks = append(blocks, anthropic.NewToolResultBlock(b.ToolUseID, toolResultText(b.Content), b.IsError))
			default:
				return nil, fmt.Errorf("turn %d: unknown block type %q", i, b.Type)
			}
		}

		switch turn.Role {
		case conversation.RoleUser:
			messages = append(messages, anthropic.NewUserMessage(blocks...))
		case conversation.RoleAssistant:
			messages = append(messages, anthropic.NewAssistantMessage(blocks...))
		default:
			return nil, fmt.Errorf("turn %d: unknown role %q", i, turn.Role)
		}
	}
	return messages, nil
}

func anthropicTools(decls []tools.Declaration) []anthropic.ToolUnionUnionParam {
	out := make([]anthropic.ToolUnionUnionParam, len(decls))
	for i, d := range decls {
		out[i] = anthropic.ToolParam{
			Name:        anthropic.String(d.Name),
			Description: anthropic.String(d.Description),
			InputSchema: anthropic.F[interface{}](d.InputSchema),
		}
	}
	return out
}

func classifyAnthropicError(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &TransportError{StatusCode: apiErr.StatusCode, Body: apiErr.JSON.RawJSON(), Err: err}
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return &ProtocolError{Reason: "cannot decode body", Err: err}
	}
	return &TransportError{Err: err}
}
