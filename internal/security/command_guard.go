package security

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrCommandRejected is returned for shell commands matching a blocked pattern.
var ErrCommandRejected = errors.New("dangerous command rejected")

// DefaultBlockedCommands are always refused by execute_command.
var DefaultBlockedCommands = []string{
	`rm\s+-[a-zA-Z]*r[a-zA-Z]*f`,
	`rm\s+-[a-zA-Z]*f[a-zA-Z]*r`,
	`\bmkfs(\.\w+)?\b`,
	`\bdd\s+.*\bof=/dev/`,
	`>\s*/dev/sd[a-z]`,
	`:\(\)\s*\{\s*:\|:&\s*\};:`,
	`\b(shutdown|reboot|halt|poweroff)\b`,
	`\bchmod\s+-R\s+0?777\s+/\s*$`,
}

// CommandGuard screens commands before execute_command runs them. It is a
// tripwire against obvious accidents, not a sandbox.
type CommandGuard struct {
	patterns []*regexp.Regexp
}

// NewCommandGuard compiles DefaultBlockedCommands plus any extra patterns.
func NewCommandGuard(extra ...string) (*CommandGuard, error) {
	g := &CommandGuard{}
	for _, expr := range append(append([]string{}, DefaultBlockedCommands...), extra...) {
		if strings.TrimSpace(expr) == "" {
			continue
		}
		re, err := regexp.Compile("(?i)" + expr)
		if err != nil {
			return nil, fmt.Errorf("compile blocked command %q: %w", expr, err)
		}
		g.patterns = append(g.patterns, re)
	}
	return g, nil
}

// Check returns ErrCommandRejected when command matches a blocked pattern.
func (g *CommandGuard) Check(command string) error {
	if strings.TrimSpace(command) == "" {
		return errors.New("command cannot be empty")
	}
	for _, re := range g.patterns {
		if re.MatchString(command) {
			return fmt.Errorf("%w: matches %s", ErrCommandRejected, re.String())
		}
	}
	return nil
}
