package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/db"
	"github.com/evans/recall/internal/output"
	"github.com/evans/recall/internal/syncconfig"
)

var initCmd = &cobra.Command{
	Use:     "init",
	Short:   "Initialize the local sync store",
	Long:    `Creates the local data directory, SQLite store and device keystore.`,
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := getDataDir()

		if _, err := os.Stat(filepath.Join(dir, "recall.db")); err == nil {
			output.Warning("store already initialized at %s", dir)
			return nil
		}

		database, err := db.Initialize(dir)
		if err != nil {
			output.Error("initialize store: %v", err)
			return err
		}
		defer database.Close()

		// Ensure the device keystore exists so encryption works from the
		// first sync.
		ks, err := syncconfig.OpenKeystore()
		if err != nil {
			return fmt.Errorf("open keystore: %w", err)
		}
		fp, err := ks.Fingerprint()
		if err != nil {
			return fmt.Errorf("create keystore: %w", err)
		}

		output.Success("initialized store at %s", dir)
		output.Subtle("device fingerprint: %s", fp)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
