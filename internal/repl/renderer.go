package repl

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/agent"
	"github.com/toolloop/toolloop/internal/tools"
)

var rule = strings.Repeat("=", 60)

const maxShownResult = 500

// Renderer prints agent progress for a human. It implements agent.Observer.
type Renderer struct {
	agent.NopObserver

	out      io.Writer
	markdown *glamour.TermRenderer
}

// NewRenderer renders assistant text as markdown when markdown is set and a
// terminal renderer can be built; otherwise text is printed as is.
func NewRenderer(out io.Writer, markdown bool) *Renderer {
	r := &Renderer{out: out}
	if markdown {
		tr, err := glamour.NewTermRenderer(
			glamour.WithAutoStyle(),
			glamour.WithWordWrap(100),
		)
		if err != nil {
			log.Warn().Err(err).Msg("markdown renderer unavailable")
		} else {
			r.markdown = tr
		}
	}
	return r
}

func (r *Renderer) AssistantText(text string) {
	if r.markdown != nil {
		if styled, err := r.markdown.Render(text); err == nil {
			fmt.Fprintf(r.out, "\nAssistant:\n%s", styled)
			return
		}
	}
	fmt.Fprintf(r.out, "\nAssistant: %s\n", text)
}

func (r *Renderer) ToolStarted(call agent.ToolCall) {
	fmt.Fprintf(r.out, "\n-> tool %s %s\n", call.Name, compactJSON(call.Input))
}

func (r *Renderer) ToolFinished(call agent.ToolCall, result tools.Result, elapsed time.Duration) {
	label := "result"
	if result.Failed {
		label = "failed"
	}
	fmt.Fprintf(r.out, "   %s (%s): %s\n", label, elapsed.Round(time.Millisecond), clip(result.Output, maxShownResult))
}

func (r *Renderer) RunFinished(result agent.Result, err error) {
	if err == nil && result.Outcome == agent.OutcomeBudgetExhausted {
		fmt.Fprintf(r.out, "\nStopped after %d iterations without a final answer.\n", result.Iterations)
	}
	fmt.Fprintln(r.out)
}

func compactJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(b)
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
