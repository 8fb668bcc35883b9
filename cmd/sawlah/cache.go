package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/sawlah/internal/tui"
)

var pruneOlderThan time.Duration

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local history cache",
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show how many finished tasks are cached",
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connect()
		if err != nil {
			return err
		}
		defer b.Close()

		n, err := b.history.Count()
		if err != nil {
			return err
		}
		printField("Database", cfg.DBPath())
		printField("Cached", fmt.Sprintf("%d tasks", n))
		return nil
	},
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Drop cached tasks older than a cutoff",
	Long: `Drop cached tasks older than a cutoff. They are fetched again on demand.

Examples:
  sawlah cache prune --older-than 720h`,
	RunE: func(cmd *cobra.Command, args []string) error {
		b, err := connect()
		if err != nil {
			return err
		}
		defer b.Close()

		n, err := b.history.Prune(time.Now().Add(-pruneOlderThan))
		if err != nil {
			return err
		}
		fmt.Println(tui.SuccessStyle.Render(fmt.Sprintf("Pruned %d cached tasks", n)))
		return nil
	},
}

func init() {
	cachePruneCmd.Flags().DurationVar(&pruneOlderThan, "older-than", 30*24*time.Hour, "age cutoff")

	cacheCmd.AddCommand(cacheStatsCmd)
	cacheCmd.AddCommand(cachePruneCmd)
}
