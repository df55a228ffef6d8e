package security

import (
	"github.com/rs/zerolog/log"
)

// AuditLogger logs security-relevant events with hashed identifiers. A nil
// or disabled logger drops every event.
type AuditLogger struct {
	enabled bool
}

func NewAuditLogger(enabled bool) *AuditLogger {
	return &AuditLogger{enabled: enabled}
}

func (a *AuditLogger) active() bool {
	return a != nil && a.enabled
}

// LogRunStarted records a user prompt entering the agent loop.
func (a *AuditLogger) LogRunStarted(runID, prompt string) {
	if !a.active() {
		return
	}
	log.Info().
		Str("event", "run_audit").
		Str("run_id", runID).
		Str("prompt_hash", hashStr(prompt)[:16]).
		Int("prompt_len", len(prompt)).
		Msg("run started")
}

// LogToolCall records one tool execution
func (a *AuditLogger) LogToolCall(runID, tool, input string, success bool, executionTimeMs int64) {
	if !a.active() {
		return
	}
	log.Info().
		Str("event", "tool_audit").
		Str("run_id", runID).
		Str("tool", tool).
		Str("input_hash", hashStr(input)[:16]).
		Bool("success", success).
		Int64("execution_time_ms", executionTimeMs).
		Msg("audit")
}

// LogRunFinished records the terminal state of a run.
func (a *AuditLogger) LogRunFinished(runID, outcome string, iterations int, toolsUsed []string, errMsg string) {
	if !a.active() {
		return
	}
	evt := log.Info().
		Str("event", "run_audit").
		Str("run_id", runID).
		Str("outcome", outcome).
		Int("iterations", iterations).
		Strs("tools_used", toolsUsed)

	if errMsg != "" {
		evt = evt.Str("error", errMsg)
	}
	evt.Msg("run finished")
}

// LogHTTPRequest records a chat request received over the API.
func (a *AuditLogger) LogHTTPRequest(prompt, apiKey string, validationPassed bool) {
	if !a.active() {
		return
	}
	log.Info().
		Str("event", "api_audit").
		Str("prompt_hash", hashStr(prompt)[:16]).
		Str("api_key_hash", hashStr(apiKey)[:16]).
		Bool("validation_passed", validationPassed).
		Msg("api audit")
}
