package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/evans/recall/internal/codec"
	"github.com/evans/recall/internal/db"
	"github.com/evans/recall/internal/events"
	"github.com/evans/recall/internal/output"
	recallsync "github.com/evans/recall/internal/sync"
	"github.com/evans/recall/internal/syncclient"
	"github.com/evans/recall/internal/syncconfig"
)

var (
	version string
	dataDir string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

var rootCmd = &cobra.Command{
	Use:   "recall-sync",
	Short: "Offline-first sync engine for recall data",
	Long: `recall-sync keeps local recall data consistent across devices.

Changes made offline queue locally and sync automatically when
connectivity returns. Payloads are compressed and field-encrypted
before they leave the device.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// nameWithAliases returns "name, alias1, alias2" if aliases exist, else just "name"
func nameWithAliases(cmd *cobra.Command) string {
	if len(cmd.Aliases) > 0 {
		return cmd.Name() + ", " + strings.Join(cmd.Aliases, ", ")
	}
	return cmd.Name()
}

func init() {
	cobra.OnInitialize(initDataDir)
	cobra.AddTemplateFunc("nameWithAliases", nameWithAliases)

	rootCmd.AddGroup(
		&cobra.Group{ID: "sync", Title: "Sync Commands:"},
		&cobra.Group{ID: "system", Title: "System Commands:"},
	)
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (default: $RECALL_DATA_DIR or ~/.local/share/recall)")

	// Accept underscores in flag names (e.g. --data_dir) for shell-script callers.
	rootCmd.PersistentFlags().SetNormalizeFunc(func(f *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})
}

func initDataDir() {
	if dataDir != "" {
		return
	}
	dir, err := syncconfig.DataDir()
	if err != nil {
		output.Error("resolve data directory: %v", err)
		os.Exit(1)
	}
	dataDir = dir
}

func getDataDir() string {
	if dataDir == "" {
		initDataDir()
	}
	return dataDir
}

// openDB opens the local store, failing with a hint when uninitialized.
func openDB() (*db.DB, error) {
	database, err := db.Open(getDataDir())
	if err != nil {
		return nil, err
	}
	if _, err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return database, nil
}

// newClient builds the transport client from stored credentials and the
// device keystore. Payload encryption is enabled whenever a master key can
// be derived.
func newClient() (*syncclient.Client, error) {
	if !syncconfig.IsAuthenticated() {
		return nil, fmt.Errorf("not logged in; run 'recall-sync login' first")
	}
	deviceID, err := syncconfig.GetDeviceID()
	if err != nil {
		return nil, fmt.Errorf("device id: %w", err)
	}

	client := syncclient.New(syncconfig.GetServerURL(), syncconfig.GetAPIKey(), deviceID)

	ks, err := syncconfig.OpenKeystore()
	if err != nil {
		return nil, fmt.Errorf("open keystore: %w", err)
	}
	masterKey, err := ks.MasterKey()
	if err != nil {
		return nil, fmt.Errorf("derive master key: %w", err)
	}
	client.Codec, err = codec.New(masterKey)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// newEngine assembles the orchestrator from config, store and transport.
func newEngine(database *db.DB) (*recallsync.Engine, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}

	cfg := recallsync.Config{
		SyncInterval:  syncconfig.GetSyncInterval(),
		ProbeInterval: syncconfig.GetProbeInterval(),
		StorageCap:    syncconfig.GetStorageCap(),
	}
	if fileCfg, err := syncconfig.LoadConfig(); err == nil && fileCfg.Sync.PriorityTables != "" {
		for _, t := range strings.Split(fileCfg.Sync.PriorityTables, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.PriorityTables = append(cfg.PriorityTables, t)
			}
		}
	}

	return recallsync.New(database, client, events.NewBus(), cfg), nil
}
