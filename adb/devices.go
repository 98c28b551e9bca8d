package adb

import (
	"fmt"
	"strings"
)

const listHeader = "List of devices attached"

// DeviceQuery selects how "adb devices" is run and filtered.
type DeviceQuery struct {
	// Long passes -l so that product/model/transport qualifiers are listed.
	Long bool
	// OnlineOnly drops devices whose state mentions "offline".
	OnlineOnly bool
}

func (q DeviceQuery) command() Command {
	if q.Long {
		return NewCommand("devices", "-l")
	}
	return NewCommand("devices")
}

// Device is one line of the attached device list.
type Device struct {
	Serial string            `json:"serial"`
	State  string            `json:"state"`
	Info   map[string]string `json:"info,omitempty"`
}

// Online reports whether the device state does not mark it offline.
func (d Device) Online() bool {
	return !strings.Contains(d.State, "offline")
}

// WiFi reports whether the device is attached over TCP (host:port serial).
func (d Device) WiFi() bool {
	return strings.Contains(d.Serial, ":")
}

// DeviceList is the attached device list in the order adb printed it.
type DeviceList []Device

// Serials returns the device identifiers in order.
func (l DeviceList) Serials() []string {
	serials := make([]string, len(l))
	for i, d := range l {
		serials[i] = d.Serial
	}
	return serials
}

// Get returns the device with the given serial.
func (l DeviceList) Get(serial string) (Device, bool) {
	for _, d := range l {
		if d.Serial == serial {
			return d, true
		}
	}
	return Device{}, false
}

// Online returns the devices that are not offline.
func (l DeviceList) Online() DeviceList {
	online := make(DeviceList, 0, len(l))
	for _, d := range l {
		if d.Online() {
			online = append(online, d)
		}
	}
	return online
}

// ParseDeviceList parses the output of "adb devices" or "adb devices -l".
// Daemon start-up chatter ("* daemon not running ...") before the header is
// ignored; any other first line is an *EnumerationError.
func ParseDeviceList(output string) (DeviceList, error) {
	lines := strings.Split(strings.ReplaceAll(output, "\r\n", "\n"), "\n")

	header := -1
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "* ") {
			continue
		}
		if line != listHeader {
			return nil, &EnumerationError{
				Output: output,
				Err:    fmt.Errorf("%w: %q", ErrUnexpectedHeader, line),
			}
		}
		header = i
		break
	}
	if header < 0 {
		return nil, &EnumerationError{
			Output: output,
			Err:    fmt.Errorf("%w: missing %q", ErrUnexpectedHeader, listHeader),
		}
	}

	devices := DeviceList{}
	for _, line := range lines[header+1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		device, ok := parseDeviceLine(line)
		if !ok {
			continue
		}
		devices = append(devices, device)
	}
	return devices, nil
}

// parseDeviceLine handles "<serial>\t<state>" and the -l form
// "<serial>   <state> usb:1-1 product:x model:y transport_id:3".
func parseDeviceLine(line string) (Device, bool) {
	if serial, state, found := strings.Cut(line, "\t"); found {
		return Device{Serial: strings.TrimSpace(serial), State: strings.TrimSpace(state)}, true
	}

	parts := strings.Fields(line)
	if len(parts) < 2 {
		return Device{}, false
	}
	device := Device{Serial: parts[0], State: parts[1]}
	for _, part := range parts[2:] {
		key, value, found := strings.Cut(part, ":")
		if !found {
			continue
		}
		if device.Info == nil {
			device.Info = make(map[string]string)
		}
		device.Info[key] = value
	}
	return device, true
}
