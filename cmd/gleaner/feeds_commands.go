package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"gleaner/internal/feeds"
	"gleaner/internal/store"
)

func newFeedsCommand(cctx *commandContext) *cobra.Command {
	feedsCmd := &cobra.Command{
		Use:   "feeds",
		Short: "Manage feed subscriptions",
	}

	feedsCmd.AddCommand(newFeedsAddCommand(cctx))
	feedsCmd.AddCommand(newFeedsRemoveCommand(cctx))
	feedsCmd.AddCommand(newFeedsListCommand(cctx))
	feedsCmd.AddCommand(newFeedsExportCommand(cctx))
	feedsCmd.AddCommand(newFeedsImportCommand(cctx))
	return feedsCmd
}

func (c *commandContext) feedManager() (*feeds.Manager, *store.Store, error) {
	st, err := c.openStore()
	if err != nil {
		return nil, nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		st.Close()
		return nil, nil, err
	}
	return feeds.NewManager(st, logger), st, nil
}

func parseCategoryFlag(value string) (store.Category, error) {
	if value == "" {
		return "", nil
	}
	return store.ParseCategory(value)
}

func newFeedsAddCommand(cctx *commandContext) *cobra.Command {
	var categoryFlag string

	cmd := &cobra.Command{
		Use:   "add <url>",
		Short: "Add a new feed subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := parseCategoryFlag(categoryFlag)
			if err != nil {
				return err
			}
			manager, st, err := cctx.feedManager()
			if err != nil {
				return err
			}
			defer st.Close()

			feed, err := manager.AddFeed(cmd.Context(), args[0], "", category)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added: %s (%s)\n", feed.Title, feed.Category)
			return nil
		},
	}

	cmd.Flags().StringVarP(&categoryFlag, "category", "C", "", "Feed category: article, video, or audio (auto-detected if not specified)")
	return cmd
}

func newFeedsRemoveCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <url>",
		Short: "Remove a feed subscription",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, st, err := cctx.feedManager()
			if err != nil {
				return err
			}
			defer st.Close()

			removed, err := manager.RemoveFeed(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !removed {
				return fmt.Errorf("no active subscription for %s", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed: %s\n", args[0])
			return nil
		},
	}
}

func newFeedsListCommand(cctx *commandContext) *cobra.Command {
	var categoryFlag string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List all feed subscriptions",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, err := parseCategoryFlag(categoryFlag)
			if err != nil {
				return err
			}
			manager, st, err := cctx.feedManager()
			if err != nil {
				return err
			}
			defer st.Close()

			subscriptions, err := manager.ListFeeds(cmd.Context(), category)
			if err != nil {
				return err
			}
			if len(subscriptions) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No feed subscriptions")
				return nil
			}

			rows := make([][]string, 0, len(subscriptions))
			for _, feed := range subscriptions {
				fetched := "never"
				if feed.LastFetchedAt != nil {
					fetched = feed.LastFetchedAt.Local().Format("2006-01-02 15:04")
				}
				rows = append(rows, []string{string(feed.Category), feed.Title, feed.URL, fetched})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Category", "Title", "URL", "Last Fetched"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().StringVarP(&categoryFlag, "category", "C", "", "Filter by category: article, video, or audio")
	return cmd
}

func newFeedsExportCommand(cctx *commandContext) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export feeds to OPML format",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, st, err := cctx.feedManager()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := os.MkdirAll(filepath.Dir(output), 0o755); err != nil {
				return fmt.Errorf("create export directory: %w", err)
			}
			file, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create export file: %w", err)
			}
			defer file.Close()

			if err := manager.ExportOPML(cmd.Context(), file); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Exported to: %s\n", output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "exports/feeds.opml", "Output file path")
	return cmd
}

func newFeedsImportCommand(cctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "import <opml-file>",
		Short: "Import feeds from OPML file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, st, err := cctx.feedManager()
			if err != nil {
				return err
			}
			defer st.Close()

			file, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open opml file: %w", err)
			}
			defer file.Close()

			count, err := manager.ImportOPML(cmd.Context(), file)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d feeds\n", count)
			return nil
		},
	}
}
