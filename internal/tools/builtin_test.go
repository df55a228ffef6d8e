package tools_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toolloop/toolloop/internal/security"
	"github.com/toolloop/toolloop/internal/tools"
)

func run(t *testing.T, tool tools.Tool, input string) (string, error) {
	t.Helper()
	return tool.Executor.Execute(context.Background(), json.RawMessage(input))
}

// ─── get_time ───────────────────────────────────────────────

func TestGetTime(t *testing.T) {
	fixed := time.Date(2024, 3, 9, 7, 5, 1, 0, time.Local)
	out, err := run(t, tools.GetTimeTool(func() time.Time { return fixed }), `{}`)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-09 07:05:01", out)
}

// ─── read_file / write_file ─────────────────────────────────

func TestWriteThenReadFile(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, tools.WriteFileTool(dir), `{"path":"notes.txt","content":"hello"}`)
	require.NoError(t, err)
	assert.Equal(t, "wrote 5 bytes to 'notes.txt'", out)

	data, err := os.ReadFile(filepath.Join(dir, "notes.txt"))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	out, err = run(t, tools.ReadFileTool(dir), `{"path":"notes.txt"}`)
	require.NoError(t, err)
	assert.Equal(t, "hello", out)
}

func TestReadFileMissing(t *testing.T) {
	r := tools.NewRegistry(tools.ReadFileTool(t.TempDir()))
	out := r.Execute(context.Background(), "read_file", json.RawMessage(`{"path":"nope.txt"}`))
	assert.True(t, strings.HasPrefix(out, "Error: cannot open file 'nope.txt'"), out)
}

// ─── execute_command ────────────────────────────────────────

func TestExecuteCommand(t *testing.T) {
	guard, err := security.NewCommandGuard()
	require.NoError(t, err)
	tool := tools.ExecuteCommandTool(guard, t.TempDir())

	out, err := run(t, tool, `{"command":"echo hi"}`)
	require.NoError(t, err)
	assert.Equal(t, "hi\n", out)

	out, err = run(t, tool, `{"command":"exit 3"}`)
	require.NoError(t, err)
	assert.Equal(t, "\n[exit code: 3]", out)

	_, err = run(t, tool, `{"command":"rm -rf /"}`)
	assert.ErrorIs(t, err, security.ErrCommandRejected)
}

// ─── calculate ──────────────────────────────────────────────

func TestEvaluate(t *testing.T) {
	cases := map[string]string{
		"2+2":         "4",
		"(10*5)/4":    "12.5",
		"8/4":         "2",
		"-3 + 10 % 4": "-1",
		"1.5*2":       "3",
	}
	for expr, want := range cases {
		got, err := tools.Evaluate(expr)
		require.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}

	for _, bad := range []string{"1/0", "5 % 0", "x + 1", "1 +", "2.5 % 2", `"a"`} {
		_, err := tools.Evaluate(bad)
		assert.Error(t, err, bad)
	}
}

func TestCalculateTool(t *testing.T) {
	out, err := run(t, tools.CalculateTool(), `{"expression":"6*7"}`)
	require.NoError(t, err)
	assert.Equal(t, "6*7 = 42", out)
}

// ─── http_get ───────────────────────────────────────────────

func TestHTTPGet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/page":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			_, _ = w.Write([]byte(`<html><head><script>var x=1;</script></head><body> <h1>Title</h1> <p>Some   text</p> </body></html>`))
		case "/long":
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(strings.Repeat("a", 1500)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tool := tools.HTTPGetTool(srv.Client(), 0)

	out, err := run(t, tool, `{"url":"`+srv.URL+`/page"}`)
	require.NoError(t, err)
	assert.Equal(t, "Title Some text", out)

	out, err = run(t, tool, `{"url":"`+srv.URL+`/long"}`)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("a", 1000)+"...(truncated)", out)

	r := tools.NewRegistry(tool)
	assert.Equal(t, "Error: HTTP 404", r.Execute(context.Background(), "http_get", json.RawMessage(`{"url":"`+srv.URL+`/missing"}`)))

	_, err = run(t, tool, `{"url":"file:///etc/passwd"}`)
	assert.Error(t, err)
}

// ─── Builtins ───────────────────────────────────────────────

func TestBuiltinsWithoutBackends(t *testing.T) {
	guard, err := security.NewCommandGuard()
	require.NoError(t, err)

	r := tools.NewRegistry(tools.Builtins(tools.Dependencies{WorkDir: t.TempDir(), CommandGuard: guard})...)
	assert.Equal(t,
		[]string{"calculate", "execute_command", "get_time", "http_get", "read_file", "write_file"},
		r.Names())
}
