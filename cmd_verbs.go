package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"adbfleet/service"
)

// newVerbCmd wires a no-argument fleet verb to a command.
func newVerbCmd(a *app, use, short string, verb func(*service.Fleet, context.Context) (service.FleetResult, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			result, err := verb(fleet, cmd.Context())
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
}

func newWaitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "wait",
		Short: "Block until every target device is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			return fleet.WaitForDevice(cmd.Context())
		},
	}
}

// newVersionCmd prints the adb version once, or per device with --device.
func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the adbfleet and adb versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "adbfleet %s\n", Version)

			d, err := a.dispatcher()
			if err != nil {
				return err
			}
			if len(a.serials) > 0 {
				result, err := d.Fleet().Subset(a.serials...).Version(cmd.Context())
				if err != nil {
					return err
				}
				return printResult(out, result)
			}
			output, err := d.Server(cmd.Context(), "version")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, output.Stdout)
			return nil
		},
	}
}

func newServerCmd(a *app, use, short string, run func(*service.Dispatcher, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.dispatcher()
			if err != nil {
				return err
			}
			if err := run(d, cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), color.GreenString("%s: done", use))
			return nil
		},
	}
}
