package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

type readFileParams struct {
	Path string `json:"path" jsonschema:"description=Path of the file to read"`
}

type writeFileParams struct {
	Path    string `json:"path" jsonschema:"description=Path of the file to write"`
	Content string `json:"content" jsonschema:"description=Content to write"`
}

// ReadFileTool returns the content of a file. Relative paths resolve against
// workDir when it is set.
func ReadFileTool(workDir string) Tool {
	return Tool{
		Name:        "read_file",
		Description: "Read the content of a file.",
		InputSchema: SchemaFor[readFileParams](),
		Executor: Typed(func(_ context.Context, p readFileParams) (string, error) {
			if p.Path == "" {
				return "", fmt.Errorf("path is required")
			}
			data, err := os.ReadFile(resolvePath(workDir, p.Path))
			if err != nil {
				return "", fmt.Errorf("cannot open file '%s': %w", p.Path, err)
			}
			return string(data), nil
		}),
	}
}

// WriteFileTool creates or truncates a file with the given content.
func WriteFileTool(workDir string) Tool {
	return Tool{
		Name:        "write_file",
		Description: "Write content to a file, creating or replacing it.",
		InputSchema: SchemaFor[writeFileParams](),
		Executor: Typed(func(_ context.Context, p writeFileParams) (string, error) {
			if p.Path == "" {
				return "", fmt.Errorf("path is required")
			}
			if err := os.WriteFile(resolvePath(workDir, p.Path), []byte(p.Content), 0o644); err != nil {
				return "", fmt.Errorf("cannot create file '%s': %w", p.Path, err)
			}
			return fmt.Sprintf("wrote %d bytes to '%s'", len(p.Content), p.Path), nil
		}),
	}
}

func resolvePath(workDir, path string) string {
	if workDir == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(workDir, path)
}
