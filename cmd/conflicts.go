package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/db"
	"github.com/evans/recall/internal/output"
)

var conflictsCmd = &cobra.Command{
	Use:     "conflicts",
	Short:   "List sync conflicts",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		severity, _ := cmd.Flags().GetString("severity")
		remote, _ := cmd.Flags().GetBool("remote")

		if remote {
			return listRemoteConflicts(all, severity)
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		opts := db.ListConflictsOptions{}
		if !all {
			unresolved := false
			opts.Resolved = &unresolved
		}
		if severity != "" {
			s := db.ConflictSeverity(severity)
			switch s {
			case db.SeverityLow, db.SeverityMedium, db.SeverityHigh:
				opts.Severity = &s
			default:
				return fmt.Errorf("unknown severity %q (low, medium, high)", severity)
			}
		}

		conflicts, err := database.ListConflicts(opts)
		if err != nil {
			return fmt.Errorf("list conflicts: %w", err)
		}
		if len(conflicts) == 0 {
			output.Success("no conflicts")
			return nil
		}

		output.Title("Conflicts (%d)", len(conflicts))
		for _, c := range conflicts {
			output.Info("%s", output.Conflict(c))
		}
		return nil
	},
}

// listRemoteConflicts shows the server's view of the account's conflicts,
// which includes collisions reported by other devices.
func listRemoteConflicts(all bool, severity string) error {
	client, err := newClient()
	if err != nil {
		return err
	}

	var resolved *bool
	if !all {
		unresolved := false
		resolved = &unresolved
	}
	conflicts, err := client.GetConflicts(severity, resolved)
	if err != nil {
		return fmt.Errorf("fetch conflicts: %w", err)
	}
	if len(conflicts) == 0 {
		output.Success("no conflicts on server")
		return nil
	}

	output.Title("Server conflicts (%d)", len(conflicts))
	for _, c := range conflicts {
		state := "unresolved"
		if c.Resolved {
			state = "resolved"
		}
		output.Info("%s  %s/%s  %s  %s", c.ConflictID, c.TableName, c.RecordID,
			output.Severity(db.ConflictSeverity(c.Severity)), state)
	}
	return nil
}

var autoResolveCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run the server's auto-resolution pass",
	Long:  `Asks the server to resolve open conflicts with its default policy; remaining ones need manual resolution.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		resp, err := client.AutoResolveConflicts()
		if err != nil {
			return fmt.Errorf("auto-resolve: %w", err)
		}

		output.Success("resolved %d conflicts", resp.ResolvedCount)
		if resp.FailedCount > 0 {
			output.Warning("%d conflicts need manual resolution", resp.FailedCount)
		}
		return nil
	},
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <conflict-id> <keep_local|keep_remote>",
	Short: "Resolve a conflict manually",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		conflictID, strategy := args[0], args[1]
		if strategy != "keep_local" && strategy != "keep_remote" {
			return fmt.Errorf("unknown strategy %q (keep_local, keep_remote)", strategy)
		}

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		engine, err := newEngine(database)
		if err != nil {
			return err
		}

		if err := engine.Resolve(conflictID, strategy); err != nil {
			return fmt.Errorf("resolve conflict: %w", err)
		}
		output.Success("resolved %s (%s)", conflictID, strategy)
		if strategy == "keep_local" {
			output.Subtle("local copy re-queued; it syncs on the next cycle")
		}
		return nil
	},
}

func init() {
	conflictsCmd.Flags().Bool("all", false, "include resolved conflicts")
	conflictsCmd.Flags().String("severity", "", "filter by severity (low, medium, high)")
	conflictsCmd.Flags().Bool("remote", false, "list the server's conflicts instead of local ones")
	conflictsCmd.AddCommand(autoResolveCmd)
	conflictsCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(conflictsCmd)
}
