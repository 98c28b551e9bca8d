package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"adbfleet/adb"
	"adbfleet/service"
)

// printResult writes each device's outcome in target order and returns
// errDevicesFailed when any device failed.
func printResult(w io.Writer, result service.FleetResult) error {
	for _, r := range result.Results() {
		header := color.GreenString("[%s]", r.Device)
		if !r.OK() {
			header = color.RedString("[%s]", r.Device)
		}
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s %s\n", header, color.RedString("error: %v", r.Err))
		case r.ExitCode != 0:
			fmt.Fprintf(w, "%s %s\n", header, color.RedString("exit status %d", r.ExitCode))
		default:
			fmt.Fprintln(w, header)
		}
		writeIndented(w, r.Stdout, nil)
		writeIndented(w, r.Stderr, color.New(color.FgYellow))
	}
	if len(result.Failed()) > 0 {
		return errDevicesFailed
	}
	return nil
}

func writeIndented(w io.Writer, text string, c *color.Color) {
	if text == "" {
		return
	}
	for _, line := range strings.Split(text, "\n") {
		if c != nil {
			line = c.Sprint(line)
		}
		fmt.Fprintln(w, "  "+line)
	}
}

func printDevices(w io.Writer, devices adb.DeviceList, long bool) {
	for _, d := range devices {
		state := color.GreenString(d.State)
		if !d.Online() {
			state = color.RedString(d.State)
		}
		if !long || len(d.Info) == 0 {
			fmt.Fprintf(w, "%s\t%s\n", d.Serial, state)
			continue
		}
		info := make([]string, 0, len(d.Info))
		for _, key := range []string{"usb", "product", "model", "device", "transport_id"} {
			if v, ok := d.Info[key]; ok {
				info = append(info, key+":"+v)
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", d.Serial, state, strings.Join(info, " "))
	}
}
