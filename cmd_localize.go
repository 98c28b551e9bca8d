package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"adbfleet/service"
	"adbfleet/shell"
)

type localizeStep struct {
	name string
	run  func() (service.FleetResult, error)
}

// newLocalizeCmd applies the configured timezone and language to the devices
// and optionally syncs their clocks to the host.
func newLocalizeCmd(a *app) *cobra.Command {
	var syncClock bool
	var retries int
	cmd := &cobra.Command{
		Use:   "localize",
		Short: "Set timezone and language from the config (needs su)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			fleet, err := a.fleet()
			if err != nil {
				return err
			}
			sh := shell.New(fleet, shell.WithSuperuser(true), shell.WithSuperuserRetries(retries), shell.WithLogger(a.logger))
			ctx := cmd.Context()

			var steps []localizeStep
			if tz := cfg.Device.Timezone; tz != "" {
				steps = append(steps, localizeStep{"timezone " + tz, func() (service.FleetResult, error) {
					return sh.Setprop(ctx, "persist.sys.timezone", tz)
				}})
			}
			if locale := cfg.Device.Locale(); locale != "" {
				steps = append(steps, localizeStep{"locale " + locale, func() (service.FleetResult, error) {
					return sh.Setprop(ctx, "persist.sys.locale", locale)
				}})
			}
			if syncClock {
				steps = append(steps, localizeStep{"clock", func() (service.FleetResult, error) {
					return sh.SetDate(ctx, time.Now())
				}})
			}

			out := cmd.OutOrStdout()
			var failed error
			for _, step := range steps {
				fmt.Fprintf(out, "%s:\n", step.name)
				result, err := step.run()
				if err != nil {
					return err
				}
				if err := printResult(out, result); err != nil {
					failed = err
				}
			}
			return failed
		},
	}
	cmd.Flags().BoolVar(&syncClock, "sync-clock", false, "also set the device clock to the host time")
	cmd.Flags().IntVar(&retries, "su-retries", 0, "re-run failed elevated commands this many times")
	return cmd
}
