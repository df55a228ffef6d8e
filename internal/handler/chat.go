package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/agent"
	"github.com/toolloop/toolloop/internal/llm"
	"github.com/toolloop/toolloop/internal/middleware"
	"github.com/toolloop/toolloop/internal/models"
	"github.com/toolloop/toolloop/internal/security"
)

// ChatHandler exposes the single agent session of the process over HTTP.
type ChatHandler struct {
	agent          *agent.Agent
	promptVal      *security.PromptValidator
	pii            *security.PIIDetector
	audit          *security.AuditLogger
	defaultTimeout int
}

// NewChatHandler builds the handler. pii may be nil to disable keyword
// screening.
func NewChatHandler(
	a *agent.Agent,
	promptVal *security.PromptValidator,
	pii *security.PIIDetector,
	audit *security.AuditLogger,
	defaultTimeout int,
) *ChatHandler {
	return &ChatHandler{
		agent:          a,
		promptVal:      promptVal,
		pii:            pii,
		audit:          audit,
		defaultTimeout: defaultTimeout,
	}
}

// Chat handles POST /api/v1/chat
func (h *ChatHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.SetDefaults(h.defaultTimeout)

	if req.Message == "" {
		models.WriteError(w, http.StatusBadRequest, "message is required")
		return
	}

	apiKey := middleware.APIKey(r.Context())
	if res := h.promptVal.Validate(req.Message); !res.Valid {
		h.audit.LogHTTPRequest(req.Message, apiKey, false)
		models.WriteError(w, http.StatusBadRequest, "message rejected: "+res.Message)
		return
	}
	if h.pii != nil {
		if found, kw := h.pii.Detect(req.Message); found {
			h.audit.LogHTTPRequest(req.Message, apiKey, false)
			models.WriteError(w, http.StatusBadRequest, "message references sensitive data: "+kw)
			return
		}
	}
	h.audit.LogHTTPRequest(req.Message, apiKey, true)

	run := h.agent.Run
	if req.Reset {
		run = h.agent.RunFresh
	}

	ctx, cancel := context.WithTimeout(r.Context(), time.Duration(req.Timeout)*time.Second)
	defer cancel()

	res, err := run(ctx, req.Message)
	resp := models.ChatResponse{
		Status:     "success",
		RunID:      res.RunID,
		Outcome:    res.Outcome.String(),
		Answer:     res.FinalText,
		Iterations: res.Iterations,
		ToolsUsed:  res.ToolsUsed,
		Usage:      models.Usage{InputTokens: res.Usage.InputTokens, OutputTokens: res.Usage.OutputTokens},
	}
	if resp.ToolsUsed == nil {
		resp.ToolsUsed = []string{}
	}
	if err == nil {
		models.WriteJSON(w, http.StatusOK, resp)
		return
	}

	if errors.Is(err, agent.ErrRunInProgress) {
		models.WriteError(w, http.StatusConflict, "another chat request is still running")
		return
	}

	resp.Status = "error"
	resp.Error = err.Error()
	var transportErr *llm.TransportError
	var protocolErr *llm.ProtocolError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		models.WriteJSON(w, http.StatusGatewayTimeout, resp)
	case errors.As(err, &transportErr), errors.As(err, &protocolErr):
		log.Warn().Err(err).Str("run_id", res.RunID).Msg("model endpoint failure")
		models.WriteJSON(w, http.StatusBadGateway, resp)
	default:
		log.Error().Err(err).Str("run_id", res.RunID).Msg("chat run failed")
		models.WriteJSON(w, http.StatusInternalServerError, resp)
	}
}

// History handles GET /api/v1/history
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	turns := h.agent.History()
	raw := make([]json.RawMessage, 0, len(turns))
	for _, t := range turns {
		b, err := json.Marshal(t)
		if err != nil {
			models.WriteError(w, http.StatusInternalServerError, "encode history: "+err.Error())
			return
		}
		raw = append(raw, b)
	}
	models.WriteJSON(w, http.StatusOK, models.HistoryResponse{
		Status: "success",
		Count:  len(raw),
		Turns:  raw,
	})
}

// Reset handles POST /api/v1/reset
func (h *ChatHandler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.agent.Reset(); err != nil {
		models.WriteError(w, http.StatusConflict, err.Error())
		return
	}
	models.WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
}
