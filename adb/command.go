package adb

import "strings"

// Command describes one bridge invocation independent of the device it
// targets. It is a value type: the With/For methods return modified copies.
type Command struct {
	// Args is the verb followed by its arguments, e.g. {"push", "a", "/sdcard/"}.
	Args []string
	// Serial selects a device with -s. Takes precedence over Emulator.
	Serial string
	// Emulator selects the only running emulator with -e.
	Emulator bool
	// Wait prepends wait-for-device.
	Wait bool
}

// NewCommand returns a Command for the given verb and arguments.
func NewCommand(args ...string) Command {
	return Command{Args: append([]string(nil), args...)}
}

// ForDevice returns a copy of c addressed to serial.
func (c Command) ForDevice(serial string) Command {
	c.Args = append([]string(nil), c.Args...)
	c.Serial = serial
	return c
}

// WithWait returns a copy of c with wait-for-device set to wait.
func (c Command) WithWait(wait bool) Command {
	c.Args = append([]string(nil), c.Args...)
	c.Wait = wait
	return c
}

// Verb returns the first argument, or "" for an empty command.
func (c Command) Verb() string {
	if len(c.Args) == 0 {
		return ""
	}
	return c.Args[0]
}

// Argv renders the arguments passed to the bridge executable:
// [-s <serial> | -e] [wait-for-device] args...
func (c Command) Argv() []string {
	argv := make([]string, 0, len(c.Args)+3)
	if c.Serial != "" {
		argv = append(argv, "-s", c.Serial)
	} else if c.Emulator {
		argv = append(argv, "-e")
	}
	if c.Wait {
		argv = append(argv, "wait-for-device")
	}
	return append(argv, c.Args...)
}

// String renders the argv as a single line for logs.
func (c Command) String() string {
	return strings.Join(c.Argv(), " ")
}
