package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/evans/recall/internal/output"
	"github.com/evans/recall/internal/syncclient"
)

var devicesCmd = &cobra.Command{
	Use:     "devices",
	Short:   "Manage linked devices",
	GroupID: "sync",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		resp, err := client.ListDevices()
		if err != nil {
			return fmt.Errorf("list devices: %w", err)
		}

		if resp.IsPremium {
			output.Title("Devices (%d, premium)", len(resp.Devices))
		} else {
			output.Title("Devices (%d of %d)", len(resp.Devices), resp.MaxDevices)
		}
		for _, d := range resp.Devices {
			marker := " "
			if d.ID == resp.CurrentDeviceID {
				marker = "*"
			}
			state := "active"
			if !d.Active {
				state = "inactive"
			}
			line := fmt.Sprintf("%s %s  %s/%s  %s", marker, d.DeviceName, d.DeviceType, d.Platform, state)
			if d.LastSync != "" {
				line += "  last sync " + d.LastSync
			}
			output.Info("%s", line)
			output.Subtle("    %s", d.ID)
		}
		return nil
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <device-id>",
	Short: "Deactivate a linked device",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient()
		if err != nil {
			return err
		}

		if err := client.DeactivateDevice(args[0]); err != nil {
			if errors.Is(err, syncclient.ErrInvalidOperation) {
				output.Error("cannot deactivate the current device; log in from another device first")
				return err
			}
			return fmt.Errorf("deactivate device: %w", err)
		}
		output.Success("deactivated %s", args[0])
		return nil
	},
}

func init() {
	devicesCmd.AddCommand(deactivateCmd)
	rootCmd.AddCommand(devicesCmd)
}
