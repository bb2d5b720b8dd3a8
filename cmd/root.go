// Package cmd defines and implements the CLI commands for the ledger executable.
package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/canadian-music-ledger/internal/app"
	"github.com/JakeFAU/canadian-music-ledger/internal/config"
	"github.com/JakeFAU/canadian-music-ledger/internal/logging"
	"github.com/JakeFAU/canadian-music-ledger/internal/pipeline"
)

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Run(ctx context.Context) (pipeline.Report, error)
	Close()
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (App, error) {
	return app.NewApp(ctx, cfg, logger)
}

// newLogger is swapped in tests to keep output quiet.
var newLogger = func(cfg config.LoggingConfig) (*zap.Logger, error) {
	return logging.Build(logging.Options{Development: cfg.Development, Level: cfg.Level})
}

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Builds the Canadian Music Ledger release list and tally.",
		Long: `ledger collects recent releases by Canadian artists from MusicBrainz,
Bandcamp tag pages, the iTunes Canada feeds and, when a key is configured,
Last.fm. It merges duplicates across sources and writes releases.json and
tally.json for the static dashboard.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables use the LEDGER_ prefix")

	cmd.AddCommand(newBuildCmd(&cfgFile))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute is the main entry point.
func Execute(ctx context.Context) {
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		zap.L().Fatal("Command execution failed", zap.Error(err))
	}
}

func loadRuntime(cfgFile string) (config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.Logging)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("logger init: %w", err)
	}
	zap.ReplaceGlobals(logger)
	return cfg, logger, nil
}
