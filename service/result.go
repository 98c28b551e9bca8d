package service

import (
	"encoding/json"

	"adbfleet/adb"
)

// Result is one device's outcome within a dispatch.
type Result struct {
	Device string
	adb.Output
	// Err is set when the invocation could not produce output: an
	// *adb.SpawnError, an *adb.TimeoutError or a context error.
	Err error
}

// OK reports whether the invocation ran and exited with status zero.
func (r Result) OK() bool {
	return r.Err == nil && r.ExitCode == 0
}

// MarshalJSON renders Err as a string.
func (r Result) MarshalJSON() ([]byte, error) {
	type view struct {
		Device string `json:"device"`
		adb.Output
		Error string `json:"error,omitempty"`
	}
	v := view{Device: r.Device, Output: r.Output}
	if r.Err != nil {
		v.Error = r.Err.Error()
	}
	return json.Marshal(v)
}

// FleetResult holds the per-device results of one dispatch in the order the
// targets were resolved. It is never modified after Dispatch returns.
type FleetResult struct {
	results []Result
}

// NewFleetResult builds a FleetResult from results in the given order.
func NewFleetResult(results ...Result) FleetResult {
	return FleetResult{results: append([]Result(nil), results...)}
}

// Len returns the number of entries, duplicates included.
func (f FleetResult) Len() int {
	return len(f.results)
}

// Results returns a copy of the entries in target order.
func (f FleetResult) Results() []Result {
	return append([]Result(nil), f.results...)
}

// Devices returns the device of every entry in target order.
func (f FleetResult) Devices() []string {
	devices := make([]string, len(f.results))
	for i, r := range f.results {
		devices[i] = r.Device
	}
	return devices
}

// Get returns the first entry for device.
func (f FleetResult) Get(device string) (Result, bool) {
	for _, r := range f.results {
		if r.Device == device {
			return r, true
		}
	}
	return Result{}, false
}

// Failed returns the entries that did not run cleanly: an error, or a
// non-zero exit status.
func (f FleetResult) Failed() []Result {
	var failed []Result
	for _, r := range f.results {
		if !r.OK() {
			failed = append(failed, r)
		}
	}
	return failed
}

// Err returns the first per-device error, if any.
func (f FleetResult) Err() error {
	for _, r := range f.results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}

// Stdout maps each device to its standard output. For duplicate devices the
// first entry wins, matching Get.
func (f FleetResult) Stdout() map[string]string {
	out := make(map[string]string, len(f.results))
	for _, r := range f.results {
		if _, seen := out[r.Device]; !seen {
			out[r.Device] = r.Stdout
		}
	}
	return out
}

// Merge returns a copy of f with the entries at the given positions
// swapped for the entries of other, in order. It is used to fold a retry of
// a sub-fleet back into the original result.
func (f FleetResult) Merge(positions []int, other FleetResult) FleetResult {
	merged := f.Results()
	for i, pos := range positions {
		if i < len(other.results) {
			merged[pos] = other.results[i]
		}
	}
	return FleetResult{results: merged}
}

// MarshalJSON renders the entries as an ordered array.
func (f FleetResult) MarshalJSON() ([]byte, error) {
	if f.results == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(f.results)
}
