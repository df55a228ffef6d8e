// Package server exposes the agent session over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/agent"
	"github.com/toolloop/toolloop/internal/config"
	"github.com/toolloop/toolloop/internal/security"
	"github.com/toolloop/toolloop/internal/service"
)

// Backends are the optional services behind the data tools. Nil fields are
// disabled. Database is closed when the server shuts down.
type Backends struct {
	Database *service.Database
	Search   *service.ElasticsearchService
	Audit    *security.AuditLogger
}

type Server struct {
	cfg      *config.Config
	agent    *agent.Agent
	backends Backends
	http     *http.Server
}

func New(cfg *config.Config, a *agent.Agent, backends Backends) *Server {
	s := &Server{cfg: cfg, agent: a, backends: backends}

	// Chat requests can run for the whole agent timeout.
	writeTimeout := cfg.AgentTimeoutDuration() + 30*time.Second
	if writeTimeout < 60*time.Second {
		writeTimeout = 60 * time.Second
	}

	s.http = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      s.setupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s
}

// Handler returns the routed handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Addr() string {
	return s.http.Addr
}

// Run serves until ctx is cancelled, then shuts down gracefully. The
// database pool is closed when Run returns.
func (s *Server) Run(ctx context.Context) error {
	defer s.closeBackends()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.http.Addr).Msg("http server listening")
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("graceful shutdown initiated")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		return s.http.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) closeBackends() {
	if s.backends.Database != nil {
		s.backends.Database.Close()
		log.Info().Msg("database pool closed")
	}
}
