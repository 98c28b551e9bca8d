package main

import (
	"github.com/spf13/cobra"

	"adbfleet/service"
)

func newPushCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "push <local> <remote>",
		Short: "Copy a file or directory to every target device",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			result, err := fleet.Push(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
}

func newPullCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <remote> [local]",
		Short: "Copy a file or directory from every target device",
		Long:  "Copy a file or directory from every target device. Without local the file goes to device.database_path.",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			local := cfg.Device.DatabasePath
			if len(args) == 2 {
				local = args[1]
			}
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			result, err := fleet.Pull(cmd.Context(), args[0], local)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
}

func newInstallCmd(a *app) *cobra.Command {
	var opts service.InstallOptions
	cmd := &cobra.Command{
		Use:   "install <apk>",
		Short: "Install a package on every target device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			result, err := fleet.Install(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVarP(&opts.ForwardLock, "forward-lock", "l", false, "forward-lock the app")
	cmd.Flags().BoolVarP(&opts.Reinstall, "reinstall", "r", false, "reinstall, keeping its data")
	cmd.Flags().BoolVar(&opts.SDCard, "sdcard", false, "install on the SD card")
	return cmd
}

func newUninstallCmd(a *app) *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:   "uninstall <package>",
		Short: "Remove a package from every target device",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			result, err := fleet.Uninstall(cmd.Context(), args[0], keep)
			if err != nil {
				return err
			}
			return printResult(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().BoolVarP(&keep, "keep", "k", false, "keep the data and cache directories")
	return cmd
}
