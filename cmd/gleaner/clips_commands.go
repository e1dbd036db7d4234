package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"gleaner/internal/pipeline"
)

func newClipsCommand(cctx *commandContext) *cobra.Command {
	clipsCmd := &cobra.Command{
		Use:   "clips",
		Short: "Process captured web clips",
	}

	clipsCmd.AddCommand(newClipsProcessCommand(cctx))
	clipsCmd.AddCommand(newClipsBatchCommand(cctx))
	return clipsCmd
}

func (c *commandContext) clipsPipeline() (*pipeline.Pipeline, func(), error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	st, err := c.openStore()
	if err != nil {
		return nil, nil, err
	}
	p, err := pipeline.New(cfg, st, logger)
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return p, func() { st.Close() }, nil
}

func newClipsProcessCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "process <file>",
		Short: "Process a single captured clip",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clipPath, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}

			p, closeStore, err := cctx.clipsPipeline()
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := p.ProcessClip(cmd.Context(), clipPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			switch {
			case result.AlreadyProcessed:
				fmt.Fprintf(out, "Already processed: %s\n", filepath.Base(clipPath))
			case result.Promoted:
				fmt.Fprintf(out, "Promoted: %s (%s)\n", result.Title, result.Category)
			default:
				fmt.Fprintf(out, "Processed (not promoted): %s\n", filepath.Base(clipPath))
			}
			return nil
		},
	}
}

func newClipsBatchCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "batch",
		Short: "Process all unprocessed clips in the vault",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, closeStore, err := cctx.clipsPipeline()
			if err != nil {
				return err
			}
			defer closeStore()

			result, err := p.ProcessClipBatch(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Batch complete: %d processed, %d already done", result.Processed, result.Skipped)
			if result.Failed > 0 {
				fmt.Fprintf(cmd.OutOrStdout(), ", %d failed", result.Failed)
			}
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}
}
