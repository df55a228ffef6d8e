package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Result is the outcome of one dispatch. Output is always set; Failed marks
// outputs that describe a failure rather than a tool answer.
type Result struct {
	Output string
	Failed bool
	Err    error
}

// Registry maps tool names to tools. It is populated at startup and may be
// read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry(initial ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(initial))}
	for _, t := range initial {
		r.Register(t)
	}
	return r
}

// Register stores tool under its name, replacing any previous entry.
func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	_, replaced := r.tools[tool.Name]
	r.tools[tool.Name] = tool
	r.mu.Unlock()

	log.Debug().Str("tool", tool.Name).Bool("replaced", replaced).Msg("tool registered")
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declarations lists every tool ordered by name. The slice is empty, never
// nil, when nothing is registered.
func (r *Registry) Declarations() []Declaration {
	names := r.Names()
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Declaration, 0, len(names))
	for _, name := range names {
		if t, ok := r.tools[name]; ok {
			out = append(out, t.Declaration())
		}
	}
	return out
}

// Execute runs the named tool and returns its output. Unknown tools,
// executor errors and executor panics all come back as "Error: ..." text.
func (r *Registry) Execute(ctx context.Context, name string, input json.RawMessage) string {
	return r.Invoke(ctx, name, input).Output
}

// Invoke is Execute with the failure flag and cause preserved.
func (r *Registry) Invoke(ctx context.Context, name string, input json.RawMessage) Result {
	tool, ok := r.Lookup(name)
	if !ok || tool.Executor == nil {
		err := fmt.Errorf("tool %q not found", name)
		return Result{Output: fmt.Sprintf("Error: Tool '%s' not found", name), Failed: true, Err: err}
	}

	out, err := safeExecute(ctx, tool.Executor, input)
	if err != nil {
		log.Warn().Err(err).Str("tool", name).Msg("tool execution error")
		return Result{Output: "Error: " + err.Error(), Failed: true, Err: err}
	}
	return Result{Output: out}
}

func safeExecute(ctx context.Context, ex Executor, input json.RawMessage) (out string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			out = ""
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return ex.Execute(ctx, input)
}
