package cli

import (
	"context"
	"fmt"
	"slices"

	"github.com/spf13/cobra"

	"github.com/unclebandit/newsflow/internal/app"
	"github.com/unclebandit/newsflow/internal/config"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	ConfigPath string

	// Open builds the application for a command. Tests swap it out.
	Open func(ctx context.Context, configPath string) (*app.App, error)
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the newsflow operator CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{Open: openApp})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "newsflow",
		Short: "NewsFlow operator tools",
		Long:  "Inspect and send pending batches, read campaign stats and import subscribers against the configured store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")

	cmd.AddCommand(NewBatchesCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewReconcileCommand(opts))
	cmd.AddCommand(NewImportSubscribersCommand(opts))

	return cmd
}

func openApp(ctx context.Context, configPath string) (*app.App, error) {
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return app.Build(ctx, cfg)
}

// withApp opens the application, runs fn and closes it again.
func withApp(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, a *app.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	a, err := opts.Open(ctx, opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot open newsflow", err)
	}
	defer a.Close()
	return fn(ctx, a)
}
