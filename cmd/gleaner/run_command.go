package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"gleaner/internal/logging"
	"gleaner/internal/pipeline"
)

func newRunCommand(cctx *commandContext) *cobra.Command {
	var dryRun bool
	var limit int
	var force bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the content pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cctx.ensureLogger()
			if err != nil {
				return err
			}
			logging.CleanupOldLogs(logger, cfg.Paths.LogDir, "gleaner*.log*", cfg.Logging.RetentionDays)

			st, err := cctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			p, err := pipeline.New(cfg, st, logger)
			if err != nil {
				return err
			}

			result, err := p.Run(cmd.Context(), pipeline.Options{
				DryRun: dryRun,
				Limit:  limit,
				Force:  force,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Processed: %d, Failed: %d\n", result.Processed, result.Failed)
			if result.PermanentFailures > 0 {
				fmt.Fprintf(out, "Skipped (paywall): %d\n", result.PermanentFailures)
			}
			if result.Retried > 0 {
				fmt.Fprintf(out, "Retried: %d\n", result.Retried)
			}
			if result.DryRun && result.Skipped > 0 {
				fmt.Fprintf(out, "Skipped (dry run): %d\n", result.Skipped)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show what would be processed without doing it")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Limit number of items to process")
	cmd.Flags().BoolVar(&force, "force", false, "Override pipeline lock if another run is in progress")
	return cmd
}
