package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/toolloop/toolloop/internal/repl"
	"github.com/toolloop/toolloop/internal/server"
)

var chatCmd = &cobra.Command{
	Use:   "chat [api-key]",
	Short: "Start an interactive chat session (default)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runChat,
}

var serveCmd = &cobra.Command{
	Use:   "serve [api-key]",
	Short: "Serve the agent session over HTTP",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runServe,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool declarations sent to the model as JSON",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(ctx, cfg)
	defer app.close()

	stdout := os.Stdout
	interactive := isatty.IsTerminal(stdout.Fd()) || isatty.IsCygwinTerminal(stdout.Fd())
	renderer := repl.NewRenderer(stdout, interactive)

	a, err := app.newAgent(renderer)
	if err != nil {
		return err
	}
	log.Debug().
		Str("provider", cfg.Provider).
		Strs("tools", app.registry.Names()).
		Msg("agent ready")

	session := repl.NewSession(a, os.Stdin, stdout)
	session.Interactive = interactive
	if err := session.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := newApp(ctx, cfg)
	a, err := app.newAgent()
	if err != nil {
		app.close()
		return err
	}
	defer app.reportUsage()

	srv := server.New(cfg, a, app.backends)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		watchBackends(gctx, app.backends, backendCheckInterval)
		return nil
	})
	return g.Wait()
}

const backendCheckInterval = time.Minute

// watchBackends logs backends that stop answering until ctx is done.
func watchBackends(ctx context.Context, b server.Backends, every time.Duration) {
	checks := map[string]interface {
		TestConnection(context.Context) error
	}{}
	if b.Database != nil {
		checks["database"] = b.Database
	}
	if b.Search != nil {
		checks["elasticsearch"] = b.Search
	}
	if len(checks) == 0 {
		return
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		for name, c := range checks {
			checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			if err := c.TestConnection(checkCtx); err != nil && ctx.Err() == nil {
				log.Warn().Err(err).Str("backend", name).Msg("backend unavailable")
			}
			cancel()
		}
	}
}

func runTools(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	app := newApp(context.Background(), cfg)
	defer app.close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(app.registry.Declarations())
}
