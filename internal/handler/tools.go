package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/toolloop/toolloop/internal/models"
	"github.com/toolloop/toolloop/internal/tools"
)

// ToolsHandler lists the registered tools and lets operators invoke one
// directly, without going through the model.
type ToolsHandler struct {
	registry *tools.Registry
}

func NewToolsHandler(registry *tools.Registry) *ToolsHandler {
	return &ToolsHandler{registry: registry}
}

// List handles GET /api/v1/tools
func (h *ToolsHandler) List(w http.ResponseWriter, r *http.Request) {
	decls := h.registry.Declarations()
	models.WriteJSON(w, http.StatusOK, models.ToolsResponse{
		Status: "success",
		Count:  len(decls),
		Tools:  decls,
	})
}

// Get handles GET /api/v1/tools/{name}
func (h *ToolsHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	tool, ok := h.registry.Lookup(name)
	if !ok {
		models.WriteError(w, http.StatusNotFound, "tool not found: "+name)
		return
	}
	models.WriteJSON(w, http.StatusOK, models.ToolResponse{
		Status: "success",
		Tool:   tool.Declaration(),
	})
}

// Invoke handles POST /api/v1/tools/{name}. Tool failures are reported in
// the body with status 200, the same way the model sees them.
func (h *ToolsHandler) Invoke(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := h.registry.Lookup(name); !ok {
		models.WriteError(w, http.StatusNotFound, "tool not found: "+name)
		return
	}

	var req models.InvokeToolRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		models.WriteError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res := h.registry.Invoke(r.Context(), name, req.Input)
	status := "success"
	if res.Failed {
		status = "error"
	}
	models.WriteJSON(w, http.StatusOK, models.ToolResponse{
		Status: status,
		Output: res.Output,
		Failed: res.Failed,
	})
}
