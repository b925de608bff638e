package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/output"
)

var statsCmd = &cobra.Command{
	Use:     "stats",
	Short:   "Show server-side account stats",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		stats, err := client.GetStats()
		if err != nil {
			return fmt.Errorf("fetch stats: %w", err)
		}

		output.Title("Account stats")
		output.Info("records:   %d", stats.TotalRecords)
		output.Info("changes:   %d", stats.TotalChanges)
		output.Info("devices:   %d active", stats.ActiveDevices)
		if stats.OpenConflicts > 0 {
			output.Warning("conflicts: %d open", stats.OpenConflicts)
		}
		output.Info("storage:   %s of %s", output.Bytes(stats.StorageBytes), output.Bytes(stats.StorageCapBytes))
		if stats.LastChangeTime != "" {
			output.Subtle("last change: %s", stats.LastChangeTime)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
