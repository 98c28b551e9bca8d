package main

import (
	"github.com/spf13/cobra"

	"adbfleet/adb"
)

func newDevicesCmd(a *app) *cobra.Command {
	var q adb.DeviceQuery
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List attached devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dispatcher()
			if err != nil {
				return err
			}
			devices, err := d.Devices(cmd.Context(), q)
			if err != nil {
				return err
			}
			printDevices(cmd.OutOrStdout(), devices, q.Long)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&q.Long, "long", "l", false, "list device qualifiers")
	cmd.Flags().BoolVar(&q.OnlineOnly, "online", false, "hide offline devices")
	return cmd
}
