package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/events"
	"github.com/evans/recall/internal/output"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Run the sync loop in the foreground",
	Long:    `Syncs periodically, probes connectivity, and reacts to queued changes until interrupted.`,
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		quiet, _ := cmd.Flags().GetBool("quiet")

		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()

		engine, err := newEngine(database)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if !quiet {
			ch, cancel := engine.Events().Subscribe()
			defer cancel()
			go printEvents(ch)
		}

		output.Info("watching for changes (ctrl-c to stop)")
		if err := engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		output.Info("stopped")
		return nil
	},
}

// printEvents streams engine lifecycle events to the terminal.
func printEvents(ch <-chan events.Event) {
	for ev := range ch {
		switch ev.Kind {
		case events.KindSyncCompleted:
			if ev.Pushed > 0 || ev.Pulled > 0 || ev.Conflicts > 0 {
				output.Success("synced: %d pushed, %d pulled, %d conflicts", ev.Pushed, ev.Pulled, ev.Conflicts)
			}
		case events.KindSyncFailed:
			output.Error("sync failed: %v", ev.Err)
		case events.KindConflictFound:
			output.Warning("conflict on %s/%s", ev.Table, ev.RecordID)
		case events.KindNetworkOffline:
			output.Warning("offline; changes will queue locally")
		case events.KindNetworkOnline:
			output.Success("back online")
		case events.KindStoragePressure:
			output.Warning("local storage cap reached (%s used)", output.Bytes(ev.Bytes))
		}
	}
}

func init() {
	watchCmd.Flags().Bool("quiet", false, "suppress event output")
	rootCmd.AddCommand(watchCmd)
}
