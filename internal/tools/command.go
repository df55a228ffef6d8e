package tools

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/security"
)

type executeCommandParams struct {
	Command string `json:"command" jsonschema:"description=Shell command to execute"`
}

// ExecuteCommandTool runs a command through `sh -c` and returns its combined
// output. A non-zero exit status is appended rather than treated as a failure.
func ExecuteCommandTool(guard *security.CommandGuard, workDir string) Tool {
	return Tool{
		Name:        "execute_command",
		Description: "Execute a shell command and return its output.",
		InputSchema: SchemaFor[executeCommandParams](),
		Executor: Typed(func(ctx context.Context, p executeCommandParams) (string, error) {
			if err := guard.Check(p.Command); err != nil {
				return "", err
			}
			log.Debug().Str("command", p.Command).Msg("executing command")

			cmd := exec.CommandContext(ctx, "sh", "-c", p.Command)
			cmd.Dir = workDir
			out, err := cmd.CombinedOutput()
			result := string(out)

			var exitErr *exec.ExitError
			switch {
			case err == nil:
				return result, nil
			case ctx.Err() != nil:
				return "", fmt.Errorf("command interrupted: %w", ctx.Err())
			case errors.As(err, &exitErr):
				return result + fmt.Sprintf("\n[exit code: %d]", exitErr.ExitCode()), nil
			default:
				return "", fmt.Errorf("cannot execute command: %w", err)
			}
		}),
	}
}
