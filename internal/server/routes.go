package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/config"
	"github.com/toolloop/toolloop/internal/handler"
	"github.com/toolloop/toolloop/internal/middleware"
	"github.com/toolloop/toolloop/internal/security"
)

// setupRoutes wires the chat session, the tool registry and the optional
// backends into a chi router.
func (s *Server) setupRoutes() http.Handler {
	cfg := s.cfg

	log.Info().
		Str("provider", cfg.Provider).
		Int("tools", s.agent.Registry().Len()).
		Bool("database_enabled", s.backends.Database != nil).
		Bool("elasticsearch_enabled", s.backends.Search != nil).
		Bool("auth_enabled", cfg.EnableAuth && len(cfg.APIKeys) > 0).
		Bool("audit_logging", cfg.EnableAuditLogging).
		Bool("pii_detection", cfg.EnablePIIDetection).
		Msg("service configuration")

	if cfg.EnableAuth && len(cfg.APIKeys) == 0 {
		log.Warn().Msg("WARNING: auth enabled but no API keys configured - all API requests will be rejected")
	}

	// ─── Security ───────────────────────────────────────────────────────────────
	var piiDetector *security.PIIDetector
	if cfg.EnablePIIDetection {
		piiDetector = security.NewPIIDetector(cfg.PIIKeywords)
	}
	promptVal := security.NewPromptValidator(cfg.MaxPromptLength)
	auditLogger := s.backends.Audit
	if auditLogger == nil {
		auditLogger = security.NewAuditLogger(cfg.EnableAuditLogging)
	}

	// ─── Handlers ────────────────────────────────────────────────────────────────
	checks := map[string]handler.HealthChecker{}
	if s.backends.Database != nil {
		checks["database"] = s.backends.Database
	}
	if s.backends.Search != nil {
		checks["elasticsearch"] = s.backends.Search
	}
	healthH := handler.NewHealthHandler(cfg.Provider, checks)
	chatH := handler.NewChatHandler(s.agent, promptVal, piiDetector, auditLogger, cfg.AgentTimeout)
	toolsH := handler.NewToolsHandler(s.agent.Registry())

	// ─── Router ──────────────────────────────────────────────────────────────────
	r := chi.NewRouter()

	r.Use(middleware.Recovery)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(middleware.DefaultCORSConfig(cfg.CORSOrigins, config.DefaultCORSMaxAge)))
	r.Use(chiMiddleware.RealIP)

	// Public routes
	r.Get("/health", healthH.Health)
	r.Get("/", healthH.Health)

	apiMiddleware := []func(http.Handler) http.Handler{
		middleware.RateLimit(cfg.RateLimitPerMinute, cfg.APIKeyHeader, cfg.APIKeys),
	}
	if cfg.EnableAuth {
		apiMiddleware = append(apiMiddleware, middleware.Auth(cfg.APIKeys, cfg.APIKeyHeader))
	}

	r.Group(func(r chi.Router) {
		for _, m := range apiMiddleware {
			r.Use(m)
		}

		r.Route(cfg.APIPrefix, func(r chi.Router) {
			r.Post("/chat", chatH.Chat)
			r.Get("/history", chatH.History)
			r.Post("/reset", chatH.Reset)

			r.Get("/tools", toolsH.List)
			r.Get("/tools/{name}", toolsH.Get)
			r.Post("/tools/{name}", toolsH.Invoke)
		})
	})

	return r
}
