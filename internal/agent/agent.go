// Package agent drives the tool-use loop: it sends the conversation to the
// model, dispatches the tool invocations the model asks for and feeds the
// results back until the model answers or the iteration budget runs out.
package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/conversation"
	"github.com/toolloop/toolloop/internal/llm"
	"github.com/toolloop/toolloop/internal/tools"
)

const DefaultMaxIterations = 10

// ErrRunInProgress is returned when Run or Reset is called while another run
// of the same agent has not finished.
var ErrRunInProgress = errors.New("agent: a run is already in progress")

// DispatchMode controls how many tool invocations of one model response are
// executed before the next model call.
type DispatchMode int

const (
	// DispatchAll answers every invocation of the response, in order, in a
	// single tool-result turn.
	DispatchAll DispatchMode = iota
	// DispatchFirst executes only the first invocation. The assistant turn is
	// cut after it so that the history stays answerable.
	DispatchFirst
)

func (m DispatchMode) String() string {
	switch m {
	case DispatchAll:
		return "all"
	case DispatchFirst:
		return "first"
	default:
		return fmt.Sprintf("DispatchMode(%d)", int(m))
	}
}

// ParseDispatchMode accepts "all" and "first".
func ParseDispatchMode(s string) (DispatchMode, error) {
	switch s {
	case "", "all":
		return DispatchAll, nil
	case "first":
		return DispatchFirst, nil
	default:
		return DispatchAll, fmt.Errorf("unknown dispatch mode %q (want \"all\" or \"first\")", s)
	}
}

// Outcome is the terminal state of a run.
type Outcome int

const (
	OutcomeCompleted Outcome = iota
	OutcomeBudgetExhausted
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCompleted:
		return "completed"
	case OutcomeBudgetExhausted:
		return "budget_exhausted"
	case OutcomeFailed:
		return "failed"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Options tunes an Agent. Zero timeouts mean no deadline beyond the caller's
// context.
type Options struct {
	MaxIterations int
	DispatchMode  DispatchMode
	ModelTimeout  time.Duration
	ToolTimeout   time.Duration
	Observer      Observer
}

// Result summarises a finished run. Iterations counts successful model calls.
type Result struct {
	RunID      string
	Outcome    Outcome
	Iterations int
	FinalText  string
	ToolsUsed  []string
	Usage      llm.Usage
}

// Agent owns one conversation. Runs are strictly sequential; a concurrent
// Run is refused with ErrRunInProgress rather than queued.
type Agent struct {
	client   llm.Client
	registry *tools.Registry
	opts     Options
	observer Observer

	running atomic.Bool
	mu      sync.Mutex
	history *conversation.History
}

func New(client llm.Client, registry *tools.Registry, opts Options) *Agent {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if registry == nil {
		registry = tools.NewRegistry()
	}
	observer := opts.Observer
	if observer == nil {
		observer = NopObserver{}
	}
	return &Agent{
		client:   client,
		registry: registry,
		opts:     opts,
		observer: observer,
		history:  conversation.NewHistory(),
	}
}

func (a *Agent) Registry() *tools.Registry { return a.registry }

func (a *Agent) Options() Options { return a.opts }

// Busy reports whether a run is in flight.
func (a *Agent) Busy() bool { return a.running.Load() }

// Run appends input as a user turn and loops until the model stops asking for
// tools or MaxIterations model calls have dispatched tools. Reaching the budget
// is reported through Result.Outcome, not as an error. Model failures and
// cancellation end the run with OutcomeFailed; the turns appended so far are
// kept.
func (a *Agent) Run(ctx context.Context, input string) (Result, error) {
	return a.run(ctx, input, false)
}

// RunFresh clears the conversation and runs input as its first turn. No other
// Run or Reset can interleave between the two.
func (a *Agent) RunFresh(ctx context.Context, input string) (Result, error) {
	return a.run(ctx, input, true)
}

func (a *Agent) run(ctx context.Context, input string, fresh bool) (Result, error) {
	if !a.running.CompareAndSwap(false, true) {
		return Result{Outcome: OutcomeFailed}, ErrRunInProgress
	}
	defer a.running.Store(false)

	if fresh {
		a.clear()
	}

	res := Result{RunID: uuid.NewString()}
	start := time.Now()
	a.observer.RunStarted(res.RunID, input)
	a.append(conversation.UserTurn(input))

	err := a.loop(ctx, &res)
	if err != nil {
		res.Outcome = OutcomeFailed
	}

	log.Debug().
		Str("run_id", res.RunID).
		Bool("fresh", fresh).
		Str("outcome", res.Outcome.String()).
		Int("iterations", res.Iterations).
		Int("tools_used", len(res.ToolsUsed)).
		Dur("elapsed", time.Since(start)).
		Msg("run finished")
	a.observer.RunFinished(res, err)
	return res, err
}

func (a *Agent) loop(ctx context.Context, res *Result) error {
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("run cancelled: %w", err)
		}

		resp, err := a.complete(ctx)
		if err != nil {
			return err
		}
		res.Usage = res.Usage.Add(resp.Usage)

		turn, calls := a.pending(resp.Blocks)
		if len(calls) == 0 && strings.TrimSpace(turn.PlainText()) == "" {
			// An assistant turn with nothing in it cannot be sent back.
			return fmt.Errorf("model call failed: %w", &llm.ProtocolError{Reason: "response has no text and no tool invocations"})
		}
		res.Iterations = n
		if text := turn.PlainText(); text != "" {
			res.FinalText = text
			a.observer.AssistantText(text)
		}

		if len(calls) == 0 {
			a.append(turn)
			res.Outcome = OutcomeCompleted
			return nil
		}

		results := make([]conversation.ContentBlock, 0, len(calls))
		for _, call := range calls {
			res.ToolsUsed = append(res.ToolsUsed, call.Name)
			results = append(results, a.dispatch(ctx, ToolCall{
				RunID:     res.RunID,
				Iteration: n,
				ID:        call.ID,
				Name:      call.Name,
				Input:     call.Input,
			}))
		}
		a.append(turn)
		a.append(conversation.ToolResultTurn(results...))

		if n >= a.opts.MaxIterations {
			log.Warn().
				Str("run_id", res.RunID).
				Int("max_iterations", a.opts.MaxIterations).
				Msg("iteration budget exhausted")
			res.Outcome = OutcomeBudgetExhausted
			return nil
		}
	}
}

func (a *Agent) complete(ctx context.Context) (*llm.Response, error) {
	if a.opts.ModelTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ModelTimeout)
		defer cancel()
	}
	resp, err := a.client.Complete(ctx, a.History(), a.registry.Declarations())
	if err != nil {
		return nil, fmt.Errorf("model call failed: %w", err)
	}
	if resp == nil {
		return nil, fmt.Errorf("model call failed: %w", &llm.ProtocolError{Reason: "empty response"})
	}
	return resp, nil
}

// pending builds the assistant turn for blocks and returns the invocations to
// dispatch. In DispatchFirst mode everything after the first invocation is
// dropped.
func (a *Agent) pending(blocks []conversation.ContentBlock) (conversation.Turn, []conversation.ContentBlock) {
	var calls []conversation.ContentBlock
	kept := blocks
	for i, b := range blocks {
		if b.Type != conversation.BlockToolUse {
			continue
		}
		calls = append(calls, b)
		if a.opts.DispatchMode == DispatchFirst {
			kept = blocks[:i+1]
			break
		}
	}
	return conversation.AssistantTurn(kept), calls
}

func (a *Agent) dispatch(ctx context.Context, call ToolCall) conversation.ContentBlock {
	if a.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.opts.ToolTimeout)
		defer cancel()
	}

	a.observer.ToolStarted(call)
	start := time.Now()
	out := a.registry.Invoke(ctx, call.Name, call.Input)
	a.observer.ToolFinished(call, out, time.Since(start))

	return conversation.ToolResultBlock(call.ID, out.Output, out.Failed)
}

func (a *Agent) append(turn conversation.Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Append(turn)
}

func (a *Agent) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.history.Reset()
}

// History returns a copy of the conversation so far.
func (a *Agent) History() []conversation.Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Turns()
}

// DumpHistory writes the one-line-per-turn listing of the conversation.
func (a *Agent) DumpHistory(w io.Writer) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.history.Dump(w)
}

// Reset clears the conversation. It is refused while a run is in flight.
func (a *Agent) Reset() error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrRunInProgress
	}
	defer a.running.Store(false)
	a.clear()
	return nil
}
