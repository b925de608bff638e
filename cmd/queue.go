package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/db"
	"github.com/evans/recall/internal/output"
)

var queueCmd = &cobra.Command{
	Use:     "queue",
	Short:   "List queued local changes",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		erroredOnly, _ := cmd.Flags().GetBool("errored")

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		changes, err := database.ListChanges()
		if err != nil {
			return fmt.Errorf("list changes: %w", err)
		}

		shown := 0
		for _, c := range changes {
			if erroredOnly && c.SyncStatus != db.StatusError {
				continue
			}
			shown++
			line := fmt.Sprintf("%-6s %s/%s", c.Operation, c.TableName, c.RecordID)
			if c.RetryCount > 0 {
				line += fmt.Sprintf("  retries %d/%d", c.RetryCount, c.MaxRetries)
			}
			if c.SyncStatus == db.StatusError {
				output.Error("%s", line)
			} else {
				output.Info("%s", line)
			}
			output.Subtle("    %s  %s", c.ID, output.RelativeTime(c.Timestamp))
		}
		if shown == 0 {
			output.Success("queue empty")
		}
		return nil
	},
}

func init() {
	queueCmd.Flags().Bool("errored", false, "only changes that exhausted retries")
	rootCmd.AddCommand(queueCmd)
}
