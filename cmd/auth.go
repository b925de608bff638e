package cmd

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/output"
	"github.com/evans/recall/internal/syncclient"
	"github.com/evans/recall/internal/syncconfig"
)

var loginCmd = &cobra.Command{
	Use:     "login",
	Short:   "Store credentials and register this device",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		apiKey, _ := cmd.Flags().GetString("api-key")
		serverURL, _ := cmd.Flags().GetString("server")
		deviceName, _ := cmd.Flags().GetString("name")

		if apiKey == "" {
			return fmt.Errorf("--api-key is required")
		}
		if serverURL == "" {
			serverURL = syncconfig.GetServerURL()
		}

		deviceID, err := syncconfig.GetDeviceID()
		if err != nil {
			return fmt.Errorf("device id: %w", err)
		}

		ks, err := syncconfig.OpenKeystore()
		if err != nil {
			return fmt.Errorf("open keystore: %w", err)
		}
		fingerprint, err := ks.Fingerprint()
		if err != nil {
			return fmt.Errorf("device fingerprint: %w", err)
		}

		client := syncclient.New(serverURL, apiKey, deviceID)
		device, err := client.RegisterDevice(&syncclient.RegisterDeviceRequest{
			DeviceName:        deviceName,
			DeviceType:        "cli",
			Platform:          runtime.GOOS,
			AppVersion:        version,
			DeviceFingerprint: fingerprint,
		})
		if err != nil {
			if errors.Is(err, syncclient.ErrDeviceLimitExceeded) {
				output.Error("device limit reached for this account; deactivate another device or upgrade")
				return err
			}
			return fmt.Errorf("register device: %w", err)
		}

		if err := syncconfig.SaveAuth(&syncconfig.AuthCredentials{
			APIKey:    apiKey,
			ServerURL: serverURL,
			DeviceID:  device.ID,
		}); err != nil {
			return fmt.Errorf("save credentials: %w", err)
		}

		// Link the local store to the registered device so sync can track
		// its watermark.
		database, err := openDB()
		if err != nil {
			return err
		}
		defer database.Close()
		if err := database.SetSyncState(device.ID); err != nil {
			return fmt.Errorf("link device: %w", err)
		}

		output.Success("logged in; registered device %q (%s)", device.DeviceName, device.ID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:     "logout",
	Short:   "Forget stored credentials",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := syncconfig.ClearAuth(); err != nil {
			return fmt.Errorf("clear credentials: %w", err)
		}
		output.Success("logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().String("api-key", "", "account API key")
	loginCmd.Flags().String("server", "", "sync server URL (default from config)")
	loginCmd.Flags().String("name", "recall-cli", "device name shown in device lists")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
