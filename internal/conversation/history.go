package conversation

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrUnansweredInvocation is returned by Validate when a tool invocation is
// not answered by exactly one result in the following turn.
var ErrUnansweredInvocation = errors.New("tool invocation without matching result")

// History is the append-only log sent to the model on every call. It grows
// within a run and may only be cleared as a whole between runs. It is not
// safe for concurrent use; the owning agent serialises access.
type History struct {
	turns []Turn
}

func NewHistory() *History {
	return &History{}
}

// Append stores a copy of turn at the end of the log.
func (h *History) Append(turn Turn) {
	h.turns = append(h.turns, turn.Clone())
}

func (h *History) Len() int {
	return len(h.turns)
}

// Turns returns a deep copy of the log.
func (h *History) Turns() []Turn {
	out := make([]Turn, len(h.turns))
	for i, t := range h.turns {
		out[i] = t.Clone()
	}
	return out
}

// Last returns the most recent turn, if any.
func (h *History) Last() (Turn, bool) {
	if len(h.turns) == 0 {
		return Turn{}, false
	}
	return h.turns[len(h.turns)-1].Clone(), true
}

// Reset empties the log. Calling it repeatedly has no further effect.
func (h *History) Reset() {
	h.turns = nil
}

// Dump writes a one-line-per-turn listing used by the `history` command.
func (h *History) Dump(w io.Writer) error {
	if len(h.turns) == 0 {
		_, err := fmt.Fprintln(w, "  (empty)")
		return err
	}
	for _, t := range h.turns {
		if _, err := fmt.Fprintf(w, "  %s: %s\n", t.Role, summarize(t)); err != nil {
			return err
		}
	}
	return nil
}

func summarize(t Turn) string {
	if t.IsPlainText() {
		return t.Text
	}
	parts := make([]string, 0, len(t.Blocks))
	for _, b := range t.Blocks {
		switch b.Type {
		case BlockText:
			parts = append(parts, b.Text)
		case BlockToolUse:
			parts = append(parts, fmt.Sprintf("[Tool: %s]", b.Name))
		case BlockToolResult:
			parts = append(parts, fmt.Sprintf("[Result: %s]", b.ToolUseID))
		}
	}
	return strings.Join(parts, " ")
}

// Validate checks that every tool invocation in an assistant turn is answered
// by exactly one result carrying the same id in the immediately following turn.
// A trailing assistant turn with open invocations is reported as well.
func Validate(turns []Turn) error {
	for i, t := range turns {
		if t.Role != RoleAssistant {
			continue
		}
		invocations := t.ToolInvocations()
		if len(invocations) == 0 {
			continue
		}
		if i+1 >= len(turns) {
			return fmt.Errorf("%w: turn %d has %d open invocations", ErrUnansweredInvocation, i, len(invocations))
		}
		answered := make(map[string]int)
		for _, r := range turns[i+1].ToolResults() {
			answered[r.ToolUseID]++
		}
		for _, inv := range invocations {
			if answered[inv.ID] != 1 {
				return fmt.Errorf("%w: turn %d id %q answered %d times", ErrUnansweredInvocation, i, inv.ID, answered[inv.ID])
			}
		}
	}
	return nil
}
