package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"adbfleet/store"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var verbose bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent dispatches recorded by serve",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			history, err := store.Open(cfg.History.Database, a.logger)
			if err != nil {
				return err
			}
			defer history.Close()

			records, err := history.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, rec := range records {
				status := color.GreenString("ok")
				if rec.Failed > 0 {
					status = color.RedString("%d/%d failed", rec.Failed, len(rec.Results))
				}
				at := time.Unix(rec.Timestamp, 0).Format("2006-01-02 15:04:05")
				fmt.Fprintf(out, "%s  %s  %s  %s\n", at, rec.ID, status, rec.Command)
				if !verbose {
					continue
				}
				for _, o := range rec.Results {
					line := o.Stdout
					if o.Error != "" {
						line = color.RedString(o.Error)
					}
					fmt.Fprintf(out, "    %s: %s\n", o.Device, line)
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", store.DefaultLimit, "number of dispatches to show")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "show per-device output")
	return cmd
}
