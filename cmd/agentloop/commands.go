package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"agentloop/internal"
	"agentloop/internal/config"
	"agentloop/internal/initialization"
	"agentloop/internal/ircbridge"
	"agentloop/internal/logger"
	"agentloop/internal/setup"
)

func chatCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation (/reset clears the session, /exit quits)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, func(ctx context.Context, app *initialization.App) error {
				if sessionID == "" {
					sessionID = "cli:" + uuid.NewString()
				} else if exists, err := app.Store.SessionExists(ctx, sessionID); err == nil && exists {
					logger.Infof("Resuming session %s", sessionID)
				}

				out := cmd.OutOrStdout()
				green := logger.GetColorFunc("green")
				fmt.Fprintf(out, "Session %s. Type /exit to quit.\n", sessionID)

				scanner := bufio.NewScanner(cmd.InOrStdin())
				for {
					fmt.Fprint(out, green("> "))
					if !scanner.Scan() {
						return scanner.Err()
					}

					switch line := strings.TrimSpace(scanner.Text()); line {
					case "":
						continue
					case "/exit", "/quit":
						return nil
					case "/reset":
						if err := app.Agent.ResetSession(ctx, sessionID); err != nil {
							return err
						}
						fmt.Fprintln(out, "Session cleared.")
					default:
						response, err := app.Agent.Run(ctx, sessionID, line)
						if errors.Is(err, context.Canceled) {
							return nil
						}
						fmt.Fprintln(out, response)
					}
				}
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session id to resume (a new one is generated when empty)")
	return cmd
}

func askCmd() *cobra.Command {
	var sessionID string
	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer a single question and exit",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, true, func(ctx context.Context, app *initialization.App) error {
				id := sessionID
				if id == "" {
					id = "ask:" + uuid.NewString()
					defer app.Agent.ResetSession(context.WithoutCancel(ctx), id)
				}
				response, err := app.Agent.Run(ctx, id, strings.Join(args, " "))
				fmt.Fprintln(cmd.OutOrStdout(), response)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "keep the exchange in this session")
	return cmd
}

func batchCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "batch <file>",
		Short: "Answer one query per line of file with a bounded worker pool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			queries, err := readQueries(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, true, func(ctx context.Context, app *initialization.App) error {
				n := workers
				if n <= 0 {
					n = app.Config.Batch.Workers
				}

				failed := 0
				out := cmd.OutOrStdout()
				for i, result := range app.Agent.RunBatch(ctx, queries, n) {
					fmt.Fprintf(out, "[%d] %s\n", i+1, result.Query)
					if result.Err != nil {
						failed++
						fmt.Fprintf(out, "    error: %v\n", result.Err)
						continue
					}
					fmt.Fprintf(out, "    %s\n", strings.ReplaceAll(result.Response, "\n", "\n    "))
				}
				if failed > 0 {
					return fmt.Errorf("%d of %d queries failed", failed, len(queries))
				}
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "worker pool size (default batch.workers)")
	return cmd
}

// readQueries returns the non-blank lines of path, skipping # comments.
func readQueries(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var queries []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if len(queries) == 0 {
		return nil, fmt.Errorf("no queries found in %s", path)
	}
	return queries, nil
}

func ircCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "irc",
		Short: "Serve the agent on IRC until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, true, func(ctx context.Context, app *initialization.App) error {
				bridge := ircbridge.NewBridge(app.Agent, app.Config.IRC)
				return ircbridge.Run(ctx, app.Config.IRC, bridge)
			})
		},
	}
}

func toolsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools available to the agent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(_ context.Context, app *initialization.App) error {
				yellow := logger.GetColorFunc("yellow")
				for _, tool := range app.Agent.Registry().GetAllTools() {
					fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", yellow(tool.Name()), tool.Description())
				}
				return nil
			})
		},
	}
}

func sessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List persisted sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *initialization.App) error {
				sessions, err := app.Store.ListSessions(ctx)
				if err != nil {
					return err
				}
				for _, s := range sessions {
					fmt.Fprintf(cmd.OutOrStdout(), "%-40s %4d messages  updated %s\n",
						s.ID, s.MessageCount, s.UpdatedAt.Local().Format("2006-01-02 15:04"))
				}
				return nil
			})
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "rm <id>...",
		Short: "Delete persisted sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, false, func(ctx context.Context, app *initialization.App) error {
				for _, id := range args {
					if err := app.Agent.ResetSession(ctx, id); err != nil {
						return err
					}
					logger.Successf("Deleted session %s", id)
				}
				return nil
			})
		},
	})
	return cmd
}

func initCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file with the default settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := configPath
			if path == "" {
				path = config.GetConfigPath(internal.DEFAULT_CONFIG_PATH)
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.SaveConfig(path, config.Default()); err != nil {
				return err
			}
			logger.Successf("Wrote default configuration to %s", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func hashpassCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hashpass",
		Short: "Hash an IRC operator passphrase for irc.operator_passhash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := setup.PromptOperatorHash(cmd.InOrStdin(), cmd.OutOrStdout())
			return err
		},
	}
}
