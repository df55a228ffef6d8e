package server_test

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/toolloop/toolloop/internal/agent"
	"github.com/toolloop/toolloop/internal/config"
	"github.com/toolloop/toolloop/internal/conversation"
	"github.com/toolloop/toolloop/internal/llm"
	"github.com/toolloop/toolloop/internal/server"
	"github.com/toolloop/toolloop/internal/tools"
)

func newServer(t *testing.T, client llm.Client) http.Handler {
	t.Helper()
	return newServerWith(t, client, func(*config.Config) {})
}

func newServerWith(t *testing.T, client llm.Client, adjust func(*config.Config)) http.Handler {
	t.Helper()
	cfg := config.Default()
	cfg.APIKeys = []string{"secret"}
	adjust(cfg)
	a := agent.New(client, tools.NewRegistry(tools.CalculateTool()), agent.Options{})
	return server.New(cfg, a, server.Backends{}).Handler()
}

func TestHealthIsPublic(t *testing.T) {
	h := newServer(t, llm.NewScripted())
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rr.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rr.Code)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID missing")
	}
}

func TestAPIRequiresKey(t *testing.T) {
	h := newServer(t, llm.NewScripted())

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status without key = %d, want 401", rr.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
	req.Header.Set("X-API-Key", "secret")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Errorf("status with key = %d, want 200", rr.Code)
	}
}

func TestChatThroughRouter(t *testing.T) {
	client := llm.NewScripted(llm.Reply(conversation.TextBlock("hello")))
	h := newServer(t, client)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Authorization", "Bearer secret")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), `"answer":"hello"`) {
		t.Errorf("body = %s", rr.Body.String())
	}
}

func TestRotatingInvalidKeysAreRateLimited(t *testing.T) {
	h := newServerWith(t, llm.NewScripted(), func(cfg *config.Config) { cfg.RateLimitPerMinute = 2 })

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tools", nil)
		req.RemoteAddr = "203.0.113.5:4000"
		req.Header.Set("X-API-Key", fmt.Sprintf("guess-%d", i))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	want := []int{http.StatusForbidden, http.StatusForbidden, http.StatusTooManyRequests}
	for i := range want {
		if codes[i] != want[i] {
			t.Errorf("request %d: status = %d, want %d", i+1, codes[i], want[i])
		}
	}
}
