// Package commands contains the CLI command implementations.
package commands

import (
	"context"
	"os"

	"github.com/spf13/cobra"
)

// configKey is the context key for runtime config.
type configKey struct{}

// Config holds runtime configuration for commands.
type Config struct {
	WorkDir string
	JSONOut bool
}

// getConfig retrieves config from context, or returns defaults.
func getConfig(ctx context.Context) Config {
	if cfg, ok := ctx.Value(configKey{}).(Config); ok {
		return cfg
	}

	return Config{}
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	var (
		workDir string
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:     "replant",
		Short:   "Replay commit ranges onto a new base, resumably",
		Version: Version,
		Long: `Replant rewrites commit history by replaying a range of commits
onto a new base. Commits can be reordered, dropped, edited, or squashed,
and merge topology can be preserved instead of linearized.

Sessions are durable: a conflict, an edit stop, or a process crash
leaves the session on disk, and replant picks up exactly where it
stopped.

Examples:
  # Replay everything after origin/main onto origin/main
  replant start origin/main

  # Replay onto a different base
  replant start origin/main --onto release/1.2

  # Keep merge commits instead of linearizing
  replant start origin/main --preserve-merges

  # Drive the plan from JSON instead of an editor
  replant start origin/main --plan plan.json

  # After resolving a conflict
  replant continue`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Store config in context for subcommands.
			cfg := Config{
				WorkDir: workDir,
				JSONOut: jsonOut,
			}
			ctx := context.WithValue(cmd.Context(), configKey{}, cfg)
			cmd.SetContext(ctx)
		},
	}

	cmd.PersistentFlags().StringVarP(
		&workDir, "dir", "C", "",
		"run as if git was started in this directory",
	)
	cmd.PersistentFlags().BoolVar(
		&jsonOut, "json", false,
		"output in JSON format (for machine consumption)",
	)

	// Add subcommands.
	cmd.AddCommand(NewStartCmd())
	cmd.AddCommand(NewContinueCmd())
	cmd.AddCommand(NewSkipCmd())
	cmd.AddCommand(NewAbortCmd())
	cmd.AddCommand(NewStatusCmd())
	cmd.AddCommand(NewPlanCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
