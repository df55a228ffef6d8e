// Package conversation models the ordered log of turns exchanged between the
// user, the model and the tools it invokes.
package conversation

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role attributes a turn to one side of the conversation. Tool results are
// carried by user turns, as the model APIs expect.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType tags the variant held by a ContentBlock.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
)

// ContentBlock is one unit inside a turn: free text, a tool invocation
// emitted by the model, or the result fed back for an invocation.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use
	ID    string          `json:"id,omitempty"`
	Name  string          `json:"name,omitempty"`
	Input json.RawMessage `json:"input,omitempty"`

	// tool_result
	ToolUseID string `json:"tool_use_id,omitempty"`
	Content   string `json:"content,omitempty"`
	IsError   bool   `json:"is_error,omitempty"`
}

func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// ToolUseBlock builds a tool invocation. A nil or empty input is normalised
// to an empty JSON object so it can be forwarded verbatim.
func ToolUseBlock(id, name string, input json.RawMessage) ContentBlock {
	if len(bytes.TrimSpace(input)) == 0 {
		input = json.RawMessage(`{}`)
	}
	return ContentBlock{Type: BlockToolUse, ID: id, Name: name, Input: input}
}

func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolUseID: toolUseID, Content: content, IsError: isError}
}

// Clone returns a copy that shares no memory with b.
func (b ContentBlock) Clone() ContentBlock {
	out := b
	if b.Input != nil {
		out.Input = append(json.RawMessage(nil), b.Input...)
	}
	return out
}

// Turn is one entry of the history. A plain user utterance carries Text;
// assistant turns and tool-result turns carry Blocks.
type Turn struct {
	Role   Role
	Text   string
	Blocks []ContentBlock
}

func UserTurn(text string) Turn {
	return Turn{Role: RoleUser, Text: text}
}

func AssistantTurn(blocks []ContentBlock) Turn {
	return Turn{Role: RoleAssistant, Blocks: nonNil(cloneBlocks(blocks))}
}

func ToolResultTurn(results ...ContentBlock) Turn {
	return Turn{Role: RoleUser, Blocks: nonNil(cloneBlocks(results))}
}

// IsPlainText reports whether the turn is a bare text utterance.
func (t Turn) IsPlainText() bool {
	return t.Blocks == nil
}

// ToolInvocations returns the tool_use blocks of the turn in order.
func (t Turn) ToolInvocations() []ContentBlock {
	var out []ContentBlock
	for _, b := range t.Blocks {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ToolResults returns the tool_result blocks of the turn in order.
func (t Turn) ToolResults() []ContentBlock {
	var out []ContentBlock
	for _, b := range t.Blocks {
		if b.Type == BlockToolResult {
			out = append(out, b)
		}
	}
	return out
}

// PlainText concatenates the text carried by the turn.
func (t Turn) PlainText() string {
	if t.IsPlainText() {
		return t.Text
	}
	var buf bytes.Buffer
	for _, b := range t.Blocks {
		if b.Type == BlockText {
			buf.WriteString(b.Text)
		}
	}
	return buf.String()
}

func (t Turn) Clone() Turn {
	return Turn{Role: t.Role, Text: t.Text, Blocks: cloneBlocks(t.Blocks)}
}

type wireTurn struct {
	Role    Role            `json:"role"`
	Content json.RawMessage `json:"content"`
}

// MarshalJSON renders the turn the way the messages API does: content is a
// string for plain utterances and an array of blocks otherwise.
func (t Turn) MarshalJSON() ([]byte, error) {
	var (
		content []byte
		err     error
	)
	if t.IsPlainText() {
		content, err = json.Marshal(t.Text)
	} else {
		content, err = json.Marshal(t.Blocks)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(wireTurn{Role: t.Role, Content: content})
}

func (t *Turn) UnmarshalJSON(data []byte) error {
	var w wireTurn
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	t.Role = w.Role
	t.Text = ""
	t.Blocks = nil

	trimmed := bytes.TrimSpace(w.Content)
	if len(trimmed) == 0 {
		return fmt.Errorf("turn %q: missing content", w.Role)
	}
	if trimmed[0] == '"' {
		return json.Unmarshal(trimmed, &t.Text)
	}
	blocks := []ContentBlock{}
	if err := json.Unmarshal(trimmed, &blocks); err != nil {
		return fmt.Errorf("turn %q: decode content: %w", w.Role, err)
	}
	t.Blocks = blocks
	return nil
}

func cloneBlocks(in []ContentBlock) []ContentBlock {
	if in == nil {
		return nil
	}
	out := make([]ContentBlock, len(in))
	for i, b := range in {
		out[i] = b.Clone()
	}
	return out
}

func nonNil(in []ContentBlock) []ContentBlock {
	if in == nil {
		return []ContentBlock{}
	}
	return in
}
