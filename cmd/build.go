package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newBuildCmd creates the 'build' subcommand, which runs the pipeline once.
func newBuildCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Runs one ledger build and writes both artifacts",
		Long: `Fetches candidates from every enabled source, drops releases older
than the lookback window, merges duplicates, computes the tally and writes
both artifacts. The command fails only when the artifacts cannot be written.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadRuntime(*cfgFile)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck // best-effort flush

			appInstance, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			defer appInstance.Close()

			report, err := appInstance.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("build: %w", err)
			}

			for _, src := range report.Sources {
				logger.Info("source summary",
					zap.String("source", string(src.Source)),
					zap.Int("releases", src.Releases),
					zap.Int("failed_units", len(src.Failures)),
				)
			}
			logger.Info(fmt.Sprintf("Done. %d releases written", len(report.Releases)),
				zap.String("run_id", report.RunID),
				zap.String("releases_uri", report.Written.ReleasesURI),
				zap.String("tally_uri", report.Written.TallyURI),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "%d releases written to %s\n", len(report.Releases), report.Written.ReleasesURI)
			return nil
		},
	}
}
