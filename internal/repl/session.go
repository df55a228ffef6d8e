// Package repl is the interactive terminal front end of the agent.
package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/agent"
)

const banner = "Agent ready. Type 'quit' to exit, 'reset' to clear the conversation, 'history' to list it."

// Agent is the part of *agent.Agent the session drives.
type Agent interface {
	Run(ctx context.Context, input string) (agent.Result, error)
	Reset() error
	DumpHistory(w io.Writer) error
}

// Session reads one line at a time and hands it to the agent. Model
// failures are printed and the session keeps reading.
type Session struct {
	agent Agent
	in    io.Reader
	out   io.Writer

	// Interactive prints the banner and the input prompt.
	Interactive bool
}

func NewSession(a Agent, in io.Reader, out io.Writer) *Session {
	return &Session{agent: a, in: in, out: out}
}

// Run returns nil on quit or end of input and ctx.Err() once ctx is done.
func (s *Session) Run(ctx context.Context) error {
	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(s.in)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
		close(lines)
	}()

	if s.Interactive {
		fmt.Fprintf(s.out, "\n%s\n%s\n%s\n\n", rule, banner, rule)
	}

	for {
		s.prompt()

		var line string
		var ok bool
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok = <-lines:
		}
		if !ok {
			return <-readErr
		}

		input := strings.TrimSpace(line)
		switch input {
		case "":
			continue
		case "quit", "exit":
			fmt.Fprintln(s.out, "Goodbye!")
			return nil
		case "reset":
			if err := s.agent.Reset(); err != nil {
				fmt.Fprintf(s.out, "Error: %v\n", err)
				continue
			}
			fmt.Fprintln(s.out, "Conversation history cleared.")
			continue
		case "history":
			fmt.Fprintln(s.out, "Conversation history:")
			if err := s.agent.DumpHistory(s.out); err != nil {
				return fmt.Errorf("write history: %w", err)
			}
			continue
		}

		if _, err := s.agent.Run(ctx, input); err != nil {
			log.Debug().Err(err).Msg("run failed")
			fmt.Fprintf(s.out, "Error: %v\n", err)
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
	}
}

func (s *Session) prompt() {
	if s.Interactive {
		fmt.Fprint(s.out, "You: ")
	}
}
