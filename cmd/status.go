package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/output"
)

var statusCmd = &cobra.Command{
	Use:     "status",
	Short:   "Show local sync state",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		engine, err := newEngine(database)
		if err != nil {
			return err
		}

		st, err := engine.CurrentStatus()
		if err != nil {
			return fmt.Errorf("read status: %w", err)
		}

		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(st)
		}

		output.Title("Sync status")
		output.Info("state:     %s", output.State(st.State))
		if st.DeviceID != "" {
			output.Info("device:    %s", st.DeviceID)
		} else {
			output.Warning("device not linked; run 'recall-sync login'")
		}
		output.Info("pending:   %d changes", st.PendingChanges)
		if st.ErroredChanges > 0 {
			output.Warning("errored:   %d changes exhausted retries", st.ErroredChanges)
		}
		if st.OpenConflicts > 0 {
			output.Warning("conflicts: %d unresolved", st.OpenConflicts)
		}
		output.Info("storage:   %s of %s", output.Bytes(st.StorageBytes), output.Bytes(st.StorageCap))
		if st.Watermark != "" {
			output.Subtle("watermark: %s", st.Watermark)
		}
		if st.LastSuccess != nil {
			output.Subtle("last sync: %s", output.RelativeTime(*st.LastSuccess))
		} else {
			output.Subtle("last sync: never")
		}
		if st.LastError != "" {
			output.Error("last error: %s", st.LastError)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().Bool("json", false, "machine-readable output")
	rootCmd.AddCommand(statusCmd)
}
