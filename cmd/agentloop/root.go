package main

import (
	"context"

	"github.com/spf13/cobra"

	"agentloop/internal"
	"agentloop/internal/ai/tools"
	"agentloop/internal/initialization"
	"agentloop/internal/logger"
	"agentloop/internal/metrics"
)

var configPath string

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "agentloop",
		Short:         "Think/Act/Observe agent over an OpenAI-compatible chat API",
		Version:       internal.APP_VERSION,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to config.toml (default $CONFIG_PATH or "+internal.DEFAULT_CONFIG_PATH+")")

	root.AddCommand(
		chatCmd(),
		askCmd(),
		batchCmd(),
		ircCmd(),
		toolsCmd(),
		sessionsCmd(),
		initCmd(),
		hashpassCmd(),
	)
	return root
}

// withApp loads the configuration, wires the agent and runs fn with it.
// needsLLM makes a missing API key fatal up front. The metrics endpoint runs
// alongside when configured.
func withApp(cmd *cobra.Command, needsLLM bool, fn func(ctx context.Context, app *initialization.App) error) error {
	cfg, err := initialization.LoadConfig(configPath)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	app, err := initialization.Initialize(ctx, cfg, needsLLM)
	if err != nil {
		return err
	}
	defer app.Close()

	if addr := cfg.Metrics.Addr; addr != "" {
		go func() {
			if err := metrics.Serve(ctx, addr); err != nil {
				logger.Errorf("Metrics server stopped: %v", err)
			}
		}()
	}

	return fn(tools.WithCaller(ctx, initialization.CallerName()), app)
}
