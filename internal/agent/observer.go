package agent

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/security"
	"github.com/toolloop/toolloop/internal/tools"
)

// ToolCall identifies one dispatch within a run.
type ToolCall struct {
	RunID     string
	Iteration int
	ID        string
	Name      string
	Input     json.RawMessage
}

// Observer receives progress notifications from the loop. Calls are made
// synchronously from the goroutine executing Run.
type Observer interface {
	RunStarted(runID, input string)
	AssistantText(text string)
	ToolStarted(call ToolCall)
	ToolFinished(call ToolCall, result tools.Result, elapsed time.Duration)
	RunFinished(result Result, err error)
}

// NopObserver ignores every notification.
type NopObserver struct{}

func (NopObserver) RunStarted(string, string) {}
func (NopObserver) AssistantText(string) {}
func (NopObserver) ToolStarted(ToolCall) {}
func (NopObserver) ToolFinished(ToolCall, tools.Result, time.Duration) {}
func (NopObserver) RunFinished(Result, error) {}

// Observers fans notifications out to each non-nil observer in order.
func Observers(list ...Observer) Observer {
	out := make(multiObserver, 0, len(list))
	for _, o := range list {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) RunStarted(runID, input string) {
	for _, o := range m {
		o.RunStarted(runID, input)
	}
}

func (m multiObserver) AssistantText(text string) {
	for _, o := range m {
		o.AssistantText(text)
	}
}

func (m multiObserver) ToolStarted(call ToolCall) {
	for _, o := range m {
		o.ToolStarted(call)
	}
}

func (m multiObserver) ToolFinished(call ToolCall, result tools.Result, elapsed time.Duration) {
	for _, o := range m {
		o.ToolFinished(call, result, elapsed)
	}
}

func (m multiObserver) RunFinished(result Result, err error) {
	for _, o := range m {
		o.RunFinished(result, err)
	}
}

// Hooks is an Observer built from optional callbacks.
type Hooks struct {
	OnRunStarted    func(runID, input string)
	OnAssistantText func(text string)
	OnToolStarted   func(call ToolCall)
	OnToolFinished  func(call ToolCall, result tools.Result, elapsed time.Duration)
	OnRunFinished   func(result Result, err error)
}

func (h Hooks) RunStarted(runID, input string) {
	if h.OnRunStarted != nil {
		h.OnRunStarted(runID, input)
	}
}

func (h Hooks) AssistantText(text string) {
	if h.OnAssistantText != nil {
		h.OnAssistantText(text)
	}
}

func (h Hooks) ToolStarted(call ToolCall) {
	if h.OnToolStarted != nil {
		h.OnToolStarted(call)
	}
}

func (h Hooks) ToolFinished(call ToolCall, result tools.Result, elapsed time.Duration) {
	if h.OnToolFinished != nil {
		h.OnToolFinished(call, result, elapsed)
	}
}

func (h Hooks) RunFinished(result Result, err error) {
	if h.OnRunFinished != nil {
		h.OnRunFinished(result, err)
	}
}

// LogObserver writes run progress to the global zerolog logger.
type LogObserver struct{}

func (LogObserver) RunStarted(runID, input string) {
	log.Info().Str("run_id", runID).Int("input_len", len(input)).Msg("run started")
}

func (LogObserver) AssistantText(string) {}

func (LogObserver) ToolStarted(call ToolCall) {
	log.Debug().
		Str("run_id", call.RunID).
		Int("iteration", call.Iteration).
		Str("tool", call.Name).
		Str("tool_use_id", call.ID).
		Msg("tool started")
}

func (LogObserver) ToolFinished(call ToolCall, result tools.Result, elapsed time.Duration) {
	evt := log.Info()
	if result.Failed {
		evt = log.Warn().Err(result.Err)
	}
	evt.Str("run_id", call.RunID).
		Int("iteration", call.Iteration).
		Str("tool", call.Name).
		Bool("failed", result.Failed).
		Int("output_len", len(result.Output)).
		Dur("elapsed", elapsed).
		Msg("tool finished")
}

func (LogObserver) RunFinished(result Result, err error) {
	evt := log.Info()
	if err != nil {
		evt = log.Error().Err(err)
	}
	evt.Str("run_id", result.RunID).
		Str("outcome", result.Outcome.String()).
		Int("iterations", result.Iterations).
		Strs("tools_used", result.ToolsUsed).
		Int64("input_tokens", result.Usage.InputTokens).
		Int64("output_tokens", result.Usage.OutputTokens).
		Msg("run finished")
}

// AuditObserver forwards run and tool events to the audit log and records
// token spend with the cost tracker. Either may be nil.
func AuditObserver(audit *security.AuditLogger, costs *security.CostTracker) Observer {
	return Hooks{
		OnRunStarted: func(runID, input string) {
			audit.LogRunStarted(runID, input)
		},
		OnToolFinished: func(call ToolCall, result tools.Result, elapsed time.Duration) {
			audit.LogToolCall(call.RunID, call.Name, string(call.Input), !result.Failed, elapsed.Milliseconds())
		},
		OnRunFinished: func(result Result, err error) {
			errMsg := ""
			if err != nil {
				errMsg = err.Error()
			}
			audit.LogRunFinished(result.RunID, result.Outcome.String(), result.Iterations, result.ToolsUsed, errMsg)
			costs.Record(result.RunID, result.Usage.InputTokens, result.Usage.OutputTokens)
		},
	}
}
