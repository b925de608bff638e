package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/output"
	"github.com/evans/recall/internal/syncconfig"
)

var configCmd = &cobra.Command{
	Use:     "config",
	Short:   "Show or change sync configuration",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := syncconfig.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		output.Title("Configuration")
		output.Info("server:         %s", syncconfig.GetServerURL())
		output.Info("sync enabled:   %t", cfg.Sync.Enabled)
		output.Info("premium:        %t", syncconfig.IsPremium())
		output.Info("sync interval:  %s", syncconfig.GetSyncInterval())
		output.Info("probe interval: %s", syncconfig.GetProbeInterval())
		output.Info("storage cap:    %s", output.Bytes(syncconfig.GetStorageCap()))
		if cfg.Sync.PriorityTables != "" {
			output.Info("priority:       %s", cfg.Sync.PriorityTables)
		}
		output.Subtle("logged in: %t", syncconfig.IsAuthenticated())
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Long: `Supported keys: server, enabled, interval, probe_interval,
storage_cap (bytes), priority_tables (comma-separated).`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]

		cfg, err := syncconfig.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		switch key {
		case "server":
			cfg.Sync.URL = value
		case "enabled":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return fmt.Errorf("enabled wants true or false: %w", err)
			}
			cfg.Sync.Enabled = b
		case "interval":
			cfg.Sync.Interval = value
		case "probe_interval":
			cfg.Sync.ProbeInterval = value
		case "storage_cap":
			n, err := strconv.ParseInt(value, 10, 64)
			if err != nil || n <= 0 {
				return fmt.Errorf("storage_cap wants a positive byte count")
			}
			cfg.Sync.StorageCap = &n
		case "priority_tables":
			cfg.Sync.PriorityTables = value
		default:
			return fmt.Errorf("unknown key %q", key)
		}

		if err := syncconfig.SaveConfig(cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
		output.Success("%s = %s", key, value)
		return nil
	},
}

func init() {
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}
