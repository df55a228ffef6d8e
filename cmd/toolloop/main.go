package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/toolloop/toolloop/internal/config"
)

type flags struct {
	configFile    string
	logLevel      string
	provider      string
	model         string
	baseURL       string
	maxIterations int
	dispatchMode  string
	workDir       string
	noShell       bool
}

var opts flags

var rootCmd = &cobra.Command{
	Use:   "toolloop [api-key]",
	Short: "toolloop runs a tool-using LLM agent in the terminal or over HTTP",
	Long: `toolloop lets a language model answer requests by calling local tools.

Without a subcommand it starts an interactive chat. The API key may be given
as the only argument; otherwise it is read from the config file or the
ANTHROPIC_API_KEY / OPENAI_API_KEY environment variables.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runChat,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&opts.configFile, "config", "", "Path to a JSON or YAML config file (default $TOOLLOOP_CONFIG)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&opts.provider, "provider", "", "Model provider (anthropic, openai)")
	pf.StringVar(&opts.model, "model", "", "Model name")
	pf.StringVar(&opts.baseURL, "base-url", "", "Override the provider endpoint")
	pf.IntVar(&opts.maxIterations, "max-iterations", 0, "Model calls allowed per request")
	pf.StringVar(&opts.dispatchMode, "dispatch", "", "Tool dispatch mode (all, first)")
	pf.StringVar(&opts.workDir, "work-dir", "", "Directory relative tool paths resolve against")
	pf.BoolVar(&opts.noShell, "no-shell", false, "Disable the execute_command tool")

	rootCmd.AddCommand(chatCmd, serveCmd, toolsCmd)
}

// loadConfig layers flags and the positional API key over config.LoadFrom.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg, err := config.LoadFrom(opts.configFile)
	if err != nil {
		return nil, err
	}

	changed := cmd.Flags().Changed
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("provider") {
		cfg.Provider = opts.provider
	}
	if changed("model") {
		cfg.Model = opts.model
	}
	if changed("base-url") {
		if cfg.Provider == "openai" {
			cfg.OpenAIBaseURL = opts.baseURL
		} else {
			cfg.AnthropicBaseURL = opts.baseURL
		}
	}
	if changed("max-iterations") {
		cfg.MaxIterations = opts.maxIterations
	}
	if changed("dispatch") {
		cfg.DispatchMode = opts.dispatchMode
	}
	if changed("work-dir") {
		cfg.WorkDir = opts.workDir
	}
	if opts.noShell {
		cfg.EnableShell = false
	}
	if len(args) == 1 {
		cfg.SetAPIKey(args[0])
	}

	initLogger(cfg.LogLevel)
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
