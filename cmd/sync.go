package cmd

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/output"
	recallsync "github.com/evans/recall/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Run one sync cycle now",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		engine, err := newEngine(database)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		// One probe so the engine knows whether the server is reachable.
		engine.Probe(ctx)

		result, err := engine.Sync(ctx, force)
		switch {
		case errors.Is(err, recallsync.ErrOffline):
			output.Warning("server unreachable; changes stay queued")
			return nil
		case errors.Is(err, recallsync.ErrSyncInProgress):
			output.Warning("a sync cycle is already running (use --force to override)")
			return err
		case err != nil:
			output.Error("sync failed: %v", err)
			return err
		}

		output.Success("synced: %d pushed, %d pulled", result.Pushed, result.Pulled)
		if result.Conflicts > 0 {
			output.Warning("%d conflicts recorded; see 'recall-sync conflicts'", result.Conflicts)
		}
		if result.Errored > 0 {
			output.Warning("%d changes rejected by the server", result.Errored)
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().Bool("force", false, "run even if another cycle is in progress")
	syncCmd.Flags().Duration("timeout", 2*time.Minute, "abort the cycle after this long")
	rootCmd.AddCommand(syncCmd)
}
