package conversation_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/internal/conversation"
)

func TestHistoryAppendCopies(t *testing.T) {
	h := conversation.NewHistory()
	blocks := []conversation.ContentBlock{conversation.ToolUseBlock("t1", "read_file", json.RawMessage(`{"path":"a"}`))}
	h.Append(conversation.AssistantTurn(blocks))

	blocks[0].Name = "mutated"
	turns := h.Turns()
	require.Len(t, turns, 1)
	assert.Equal(t, "read_file", turns[0].Blocks[0].Name)

	turns[0].Blocks[0].Input[0] = 'X'
	again := h.Turns()
	assert.JSONEq(t, `{"path":"a"}`, string(again[0].Blocks[0].Input))
}

func TestHistoryResetIdempotent(t *testing.T) {
	h := conversation.NewHistory()
	h.Append(conversation.UserTurn("hi"))
	h.Reset()
	assert.Equal(t, 0, h.Len())
	h.Reset()
	assert.Equal(t, 0, h.Len())
	_, ok := h.Last()
	assert.False(t, ok)
}

func TestHistoryDump(t *testing.T) {
	h := conversation.NewHistory()
	h.Append(conversation.UserTurn("What time is it?"))
	h.Append(conversation.AssistantTurn([]conversation.ContentBlock{
		conversation.TextBlock("Checking."),
		conversation.ToolUseBlock("t1", "get_time", nil),
	}))
	h.Append(conversation.ToolResultTurn(conversation.ToolResultBlock("t1", "2024-01-01 00:00:00", false)))

	var buf bytes.Buffer
	require.NoError(t, h.Dump(&buf))
	assert.Equal(t,
		"  user: What time is it?\n  assistant: Checking. [Tool: get_time]\n  user: [Result: t1]\n",
		buf.String())
}

func TestTurnJSONShape(t *testing.T) {
	b, err := json.Marshal(conversation.UserTurn("hello"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"user","content":"hello"}`, string(b))

	b, err = json.Marshal(conversation.AssistantTurn([]conversation.ContentBlock{
		conversation.ToolUseBlock("t1", "get_time", nil),
	}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"role":"assistant","content":[{"type":"tool_use","id":"t1","name":"get_time","input":{}}]}`, string(b))

	var back conversation.Turn
	require.NoError(t, json.Unmarshal(b, &back))
	assert.Equal(t, conversation.RoleAssistant, back.Role)
	require.Len(t, back.ToolInvocations(), 1)
}

func TestValidate(t *testing.T) {
	use := conversation.AssistantTurn([]conversation.ContentBlock{
		conversation.ToolUseBlock("a", "x", nil),
		conversation.ToolUseBlock("b", "y", nil),
	})

	ok := []conversation.Turn{
		conversation.UserTurn("go"),
		use,
		conversation.ToolResultTurn(
			conversation.ToolResultBlock("a", "1", false),
			conversation.ToolResultBlock("b", "2", false),
		),
	}
	assert.NoError(t, conversation.Validate(ok))

	missing := []conversation.Turn{
		conversation.UserTurn("go"),
		use,
		conversation.ToolResultTurn(conversation.ToolResultBlock("a", "1", false)),
	}
	assert.ErrorIs(t, conversation.Validate(missing), conversation.ErrUnansweredInvocation)

	dangling := []conversation.Turn{conversation.UserTurn("go"), use}
	assert.ErrorIs(t, conversation.Validate(dangling), conversation.ErrUnansweredInvocation)
}
