package main

import (
	"strings"

	"github.com/spf13/cobra"

	"adbfleet/adb"
	"adbfleet/shell"
)

func newExecCmd(a *app) *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "exec -- <adb args>...",
		Short: "Run arbitrary adb arguments on every target device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			result, err := fleet.Dispatch(cmd.Context(), adb.NewCommand(args...).WithWait(wait))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "wait for each device before running")
	return cmd
}

func newShellCmd(a *app) *cobra.Command {
	var superuser bool
	var retries int
	cmd := &cobra.Command{
		Use:   "shell <command>...",
		Short: "Run a shell command line on every target device",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			sh := shell.New(fleet,
				shell.WithSuperuser(superuser),
				shell.WithSuperuserRetries(retries),
				shell.WithLogger(a.logger),
			)
			result, err := sh.Execute(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVar(&superuser, "su", false, "run through su -c")
	cmd.Flags().IntVar(&retries, "su-retries", 0, "re-run failed elevated commands this many times")
	return cmd
}
