package llm

import (
	"context"
	"errors"
	"sync"

	"github.com/toolloop/toolloop/internal/conversation"
	"github.com/toolloop/toolloop/internal/tools"
)

// ErrScriptExhausted is returned by Scripted once every step has been used.
var ErrScriptExhausted = errors.New("scripted client: no more responses")

// Step is one canned reply of a Scripted client: either a response or an error.
type Step struct {
	Response *Response
	Err      error
}

// Request records what a Scripted client was called with.
type Request struct {
	History      []conversation.Turn
	Declarations []tools.Declaration
}

// Scripted replays steps in order and records every request. When Repeat is
// set the last step is replayed forever instead of running out.
type Scripted struct {
	Steps  []Step
	Repeat bool

	mu       sync.Mutex
	next     int
	requests []Request
}

func NewScripted(steps ...Step) *Scripted {
	return &Scripted{Steps: steps}
}

// Reply is a Step carrying a response with blocks.
func Reply(blocks ...conversation.ContentBlock) Step {
	return Step{Response: &Response{Blocks: blocks, StopReason: "end_turn"}}
}

// Fail is a Step returning err.
func Fail(err error) Step {
	return Step{Err: err}
}

func (s *Scripted) Complete(ctx context.Context, history []conversation.Turn, decls []tools.Declaration) (*Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	req := Request{History: make([]conversation.Turn, len(history))}
	for i, t := range history {
		req.History[i] = t.Clone()
	}
	if decls != nil {
		req.Declarations = append([]tools.Declaration{}, decls...)
	}
	s.requests = append(s.requests, req)

	if err := ctx.Err(); err != nil {
		return nil, &TransportError{Err: err}
	}
	if len(s.Steps) == 0 || (s.next >= len(s.Steps) && !s.Repeat) {
		return nil, ErrScriptExhausted
	}
	idx := s.next
	if idx >= len(s.Steps) {
		idx = len(s.Steps) - 1
	}
	s.next++

	step := s.Steps[idx]
	if step.Err != nil {
		return nil, step.Err
	}
	resp := *step.Response
	resp.Blocks = make([]conversation.ContentBlock, len(step.Response.Blocks))
	for i, b := range step.Response.Blocks {
		resp.Blocks[i] = b.Clone()
	}
	return &resp, nil
}

// Requests returns the recorded requests in call order.
func (s *Scripted) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Calls is the number of Complete calls seen so far.
func (s *Scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}
