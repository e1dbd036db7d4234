package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"gleaner/internal/feeds"
	"gleaner/internal/store"
)

const watchInterval = 2 * time.Second

func newStatusCommand(cctx *commandContext) *cobra.Command {
	var lastRun bool
	var watch bool
	var date string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show pipeline status: pending items, retry queue, last run",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := cctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			switch {
			case watch:
				return watchPipeline(cmd, st)
			case date != "":
				return showRunForDate(cmd, st, date)
			case lastRun:
				return showLastRun(cmd, st)
			default:
				return showStatusSummary(cmd, cctx, st)
			}
		},
	}

	cmd.Flags().BoolVar(&lastRun, "last-run", false, "Show detailed report of last pipeline run")
	cmd.Flags().StringVar(&date, "date", "", "Show run from specific date (YYYY-MM-DD)")
	cmd.Flags().BoolVar(&watch, "watch", false, "Watch current run in real-time (updates every 2s)")
	return cmd
}

func showStatusSummary(cmd *cobra.Command, cctx *commandContext, st *store.Store) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	lastRun := "No previous runs"
	if last, err := st.LastSuccessfulRun(ctx); err != nil {
		return err
	} else if last != nil {
		lastRun = last.Local().Format("2006-01-02 15:04")
	}

	logger, err := cctx.ensureLogger()
	if err != nil {
		return err
	}
	manager := feeds.NewManager(st, logger)
	pending, err := manager.PreviewEntries(ctx, 0)
	if err != nil {
		return err
	}

	retrySize, err := st.RetryQueueSize(ctx)
	if err != nil {
		return err
	}

	rows := [][]string{
		{"Last successful run", lastRun},
		{"Pending items", fmt.Sprintf("%d", len(pending))},
		{"Retry queue", fmt.Sprintf("%d", retrySize)},
	}
	for _, category := range store.Categories() {
		subscriptions, err := st.ListFeeds(ctx, category)
		if err != nil {
			return err
		}
		rows = append(rows, []string{fmt.Sprintf("Feeds (%s)", category), fmt.Sprintf("%d", len(subscriptions))})
	}

	fmt.Fprintln(out, renderTable(
		[]string{"Metric", "Value"},
		rows,
		[]columnAlignment{alignLeft, alignRight},
	))
	return nil
}

func showLastRun(cmd *cobra.Command, st *store.Store) error {
	return showRunDetails(cmd, st, 0)
}

func showRunDetails(cmd *cobra.Command, st *store.Store, runID int64) error {
	details, err := st.RunDetails(cmd.Context(), runID)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if details == nil {
		fmt.Fprintln(out, "No pipeline runs found")
		return nil
	}

	run := details.Run
	started := run.StartedAt.Local().Format("2006-01-02 15:04:05")
	completed := "In progress"
	duration := "Running..."
	if run.CompletedAt != nil {
		completed = run.CompletedAt.Local().Format("2006-01-02 15:04:05")
		elapsed := run.CompletedAt.Sub(run.StartedAt)
		duration = fmt.Sprintf("%dm %ds", int(elapsed.Minutes()), int(elapsed.Seconds())%60)
	}

	fmt.Fprintf(out, "Last Run: %s - %s (%s)\n", started, completed, duration)
	fmt.Fprintf(out, "Status: %s\n\n", run.Status)
	fmt.Fprintln(out, "Summary:")
	fmt.Fprintf(out, "  Processed: %d items\n", run.ItemsProcessed)
	fmt.Fprintf(out, "  Failed: %d\n\n", run.ItemsFailed)

	if len(details.Entries) > 0 {
		fmt.Fprintln(out, "Items Processed:")
		for _, entry := range details.Entries {
			fmt.Fprintf(out, "  + %s %s\n", entry.Title, noteDestination(entry.NotePath))
		}
		fmt.Fprintln(out)
	}
	if len(details.Failed) > 0 {
		fmt.Fprintln(out, "Failed Items:")
		for _, item := range details.Failed {
			fmt.Fprintf(out, "  x %s\n", item.Title)
			fmt.Fprintf(out, "    Error: %s\n", item.LastError)
		}
		fmt.Fprintln(out)
	}
	return nil
}

func showRunForDate(cmd *cobra.Command, st *store.Store, date string) error {
	day, err := time.ParseInLocation("2006-01-02", date, time.Local)
	if err != nil {
		return fmt.Errorf("invalid date %q (expected YYYY-MM-DD)", date)
	}
	runID, err := st.RunOnDate(cmd.Context(), day)
	if err != nil {
		return err
	}
	if runID == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "No pipeline runs found on %s\n", date)
		return nil
	}
	return showRunDetails(cmd, st, runID)
}

func watchPipeline(cmd *cobra.Command, st *store.Store) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Carriage-return rewriting only makes sense on a terminal.
	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	lineEnd := "\n"
	prefix := ""
	if interactive {
		lineEnd = ""
		prefix = "\r"
	}

	fmt.Fprintln(out, "Watching pipeline (Ctrl+C to exit)...")
	fmt.Fprintln(out)

	ticker := time.NewTicker(watchInterval)
	defer ticker.Stop()

	lastCount := 0
	for {
		current, err := st.CurrentRun(ctx)
		if err != nil {
			return err
		}
		if current != nil {
			count, title, err := st.ProcessedSince(ctx, current.StartedAt)
			if err != nil {
				return err
			}
			if title == "" {
				title = "Starting..."
			}
			title = truncateTitle(title, 50)
			fmt.Fprintf(out, "%s[%s] Processing %s... (%d/%d items)%s",
				prefix,
				current.StartedAt.Local().Format("15:04:05"),
				title, count, current.ItemsFetched, lineEnd)
			lastCount = count
		} else {
			fmt.Fprintf(out, "%sNo pipeline currently running (%d items in last run)%s", prefix, lastCount, lineEnd)
		}

		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Watch stopped.")
			return nil
		case <-ticker.C:
		}
	}
}

// truncateTitle shortens a title to max runes so a multi-byte character is
// never split mid-sequence.
func truncateTitle(title string, max int) string {
	runes := []rune(title)
	if len(runes) <= max {
		return title
	}
	return string(runes[:max])
}

// noteDestination derives a display destination from where the note landed
// in the vault.
func noteDestination(notePath string) string {
	if notePath == "" {
		return "-> Unknown"
	}
	parts := strings.Split(filepath.ToSlash(notePath), "/")
	for i, part := range parts {
		if part == "Knowledge" {
			if i+1 < len(parts)-1 {
				return "-> " + parts[i+1] + "/"
			}
			return "-> Knowledge/"
		}
		if part == "Discarded" {
			return "-> Discarded"
		}
	}
	return "-> Clippings/"
}
