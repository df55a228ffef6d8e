package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/toolloop/toolloop/internal/agent"
	"github.com/toolloop/toolloop/internal/config"
	"github.com/toolloop/toolloop/internal/llm"
	"github.com/toolloop/toolloop/internal/security"
	"github.com/toolloop/toolloop/internal/server"
	"github.com/toolloop/toolloop/internal/service"
	"github.com/toolloop/toolloop/internal/tools"
)

// app is everything a command needs, built once from the config.
type app struct {
	cfg      *config.Config
	registry *tools.Registry
	backends server.Backends
	costs    *security.CostTracker
}

// newApp connects the optional backends and registers the built-in tools.
// Backends that fail to connect are disabled with a warning.
func newApp(ctx context.Context, cfg *config.Config) *app {
	a := &app{cfg: cfg}

	deps := tools.Dependencies{
		WorkDir:      cfg.WorkDir,
		HTTPClient:   &http.Client{Timeout: time.Duration(cfg.HTTPGetTimeout) * time.Second},
		HTTPGetLimit: cfg.HTTPGetLimit,
		SQLValidator: security.NewSQLValidator(),
		MaxQueryRows: cfg.MaxQueryRows,
	}
	if cfg.EnableDataMasking {
		deps.Masker = security.NewDataMasker(cfg.SensitiveColumns)
	}

	if cfg.EnableShell {
		guard, err := security.NewCommandGuard(cfg.BlockedCommands...)
		if err != nil {
			log.Warn().Err(err).Msg("execute_command disabled")
		} else {
			deps.CommandGuard = guard
		}
	}

	if cfg.DatabaseURL != "" {
		db, err := service.NewDatabase(ctx, cfg.DatabaseURL, int32(cfg.DatabaseMaxConns))
		if err == nil {
			err = db.TestConnection(ctx)
			if err != nil {
				db.Close()
			}
		}
		if err != nil {
			log.Warn().Err(err).Msg("PostgreSQL unavailable - database tools disabled")
		} else {
			deps.Database = db
			a.backends.Database = db
		}
	}

	if cfg.ElasticsearchEnabled {
		es, err := service.NewElasticsearchService(service.ElasticsearchOptions{
			Scheme:          cfg.ElasticsearchScheme,
			Host:            cfg.ElasticsearchHost,
			Port:            cfg.ElasticsearchPort,
			User:            cfg.ElasticsearchUser,
			Password:        cfg.ElasticsearchPassword,
			VerifyCerts:     cfg.ElasticsearchVerifyCerts,
			MaxRetries:      cfg.ElasticsearchMaxRetries,
			Timeout:         time.Duration(cfg.ElasticsearchTimeout) * time.Second,
			AllowedPatterns: cfg.ESAllowedPatterns,
		})
		if err != nil {
			log.Warn().Err(err).Msg("Elasticsearch unavailable - search tools disabled")
		} else {
			deps.Search = es
			a.backends.Search = es
		}
	}

	a.registry = tools.NewRegistry(tools.Builtins(deps)...)
	a.backends.Audit = security.NewAuditLogger(cfg.EnableAuditLogging)
	if cfg.EnableCostTracking {
		a.costs = security.NewCostTracker(cfg.InputPricePerMTok, cfg.OutputPricePerMTok)
	}
	return a
}

// newAgent validates the model settings and builds the agent. extra
// observers run before the log and audit observers.
func (a *app) newAgent(extra ...agent.Observer) (*agent.Agent, error) {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	mode, err := agent.ParseDispatchMode(cfg.DispatchMode)
	if err != nil {
		return nil, err
	}

	client, err := llm.New(llm.Settings{
		Provider:     cfg.Provider,
		APIKey:       cfg.APIKey(),
		BaseURL:      cfg.BaseURL(),
		Model:        cfg.Model,
		MaxTokens:    cfg.MaxTokens,
		SystemPrompt: cfg.SystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("build model client: %w", err)
	}

	observers := make([]agent.Observer, 0, len(extra)+2)
	observers = append(observers, extra...)
	observers = append(observers, agent.LogObserver{}, agent.AuditObserver(a.backends.Audit, a.costs))
	return agent.New(client, a.registry, agent.Options{
		MaxIterations: cfg.MaxIterations,
		DispatchMode:  mode,
		ModelTimeout:  cfg.ModelTimeoutDuration(),
		ToolTimeout:   cfg.ToolTimeoutDuration(),
		Observer:      agent.Observers(observers...),
	}), nil
}

func (a *app) close() {
	if a.backends.Database != nil {
		a.backends.Database.Close()
	}
	a.reportUsage()
}

func (a *app) reportUsage() {
	if a.costs != nil {
		in, out := a.costs.Totals()
		if in+out > 0 {
			log.Info().
				Int64("input_tokens", in).
				Int64("output_tokens", out).
				Float64("cost_usd", a.costs.Cost(in, out)).
				Msg("session usage")
		}
	}
}
