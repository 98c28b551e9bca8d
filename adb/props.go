package adb

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseScreenSize extracts the resolution from "wm size" output. An override
// size wins over the physical size because it is what the display shows.
func ParseScreenSize(output string) string {
	var physicalSize, overrideSize string
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if value, ok := strings.CutPrefix(line, "Physical size:"); ok {
			physicalSize = strings.TrimSpace(value)
		}
		if value, ok := strings.CutPrefix(line, "Override size:"); ok {
			overrideSize = strings.TrimSpace(value)
		}
	}

	if overrideSize != "" {
		return overrideSize
	}
	if physicalSize != "" {
		return physicalSize
	}
	return "unknown"
}

// ParseBatteryLevel extracts the charge level (0-100) from "dumpsys battery".
func ParseBatteryLevel(output string) (int, error) {
	for _, line := range strings.Split(output, "\n") {
		value, ok := strings.CutPrefix(strings.TrimSpace(line), "level:")
		if !ok {
			continue
		}
		level, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return 0, fmt.Errorf("parse battery level %q: %w", value, err)
		}
		return level, nil
	}
	return 0, fmt.Errorf("battery level not found")
}
