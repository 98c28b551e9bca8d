package adb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// DefaultPath is used when neither configuration nor ADB_PATH name the tool.
const DefaultPath = "adb"

// Output is the captured result of one bridge invocation.
type Output struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// Invoker runs one bridge command line to completion.
type Invoker interface {
	Invoke(ctx context.Context, cmd Command) (Output, error)
}

// Enumerator lists the devices currently attached to the bridge.
type Enumerator interface {
	Devices(ctx context.Context, q DeviceQuery) (DeviceList, error)
}

// ADBClient wraps adb command execution. It implements both Invoker and
// Enumerator.
type ADBClient struct {
	ADBPath string
	logger  log.Logger
}

// NewADBClient creates a client for the adb executable at path.
func NewADBClient(path string, logger log.Logger) *ADBClient {
	if path == "" {
		path = DefaultPath
	}
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &ADBClient{
		ADBPath: path,
		logger:  log.With(logger, "component", "adb"),
	}
}

// Invoke runs cmd and waits for it to exit. Both streams are captured and
// trimmed. A non-zero exit status is reported in Output.ExitCode rather than
// as an error; only a failure to start the process (*SpawnError) or a done
// context is an error.
func (c *ADBClient) Invoke(ctx context.Context, cmd Command) (Output, error) {
	proc := exec.CommandContext(ctx, c.ADBPath, cmd.Argv()...)
	var stdout, stderr bytes.Buffer
	proc.Stdout = &stdout
	proc.Stderr = &stderr

	err := proc.Run()
	out := Output{
		Stdout: strings.TrimSpace(stdout.String()),
		Stderr: strings.TrimSpace(stderr.String()),
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			level.Debug(c.logger).Log("msg", "invocation interrupted", "cmd", cmd.String(), "err", ctxErr)
			return out, fmt.Errorf("%s: %w", cmd.String(), ctxErr)
		}
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			level.Debug(c.logger).Log("msg", "spawn failed", "cmd", cmd.String(), "err", err)
			return out, &SpawnError{Path: c.ADBPath, Serial: cmd.Serial, Err: err}
		}
		out.ExitCode = exitErr.ExitCode()
	}

	level.Debug(c.logger).Log(
		"msg", "invoked",
		"cmd", cmd.String(),
		"exit", out.ExitCode,
		"stdout", out.Stdout,
		"stderr", out.Stderr,
	)
	return out, nil
}

// Devices runs "adb devices" and parses the attached device list.
func (c *ADBClient) Devices(ctx context.Context, q DeviceQuery) (DeviceList, error) {
	out, err := c.Invoke(ctx, q.command())
	if err != nil {
		return nil, &EnumerationError{Err: err}
	}
	if out.ExitCode != 0 {
		return nil, &EnumerationError{
			Output: out.Stderr,
			Err:    fmt.Errorf("adb devices exited with status %d: %s", out.ExitCode, out.Stderr),
		}
	}

	devices, err := ParseDeviceList(out.Stdout)
	if err != nil {
		return nil, err
	}
	if q.OnlineOnly {
		devices = devices.Online()
	}
	return devices, nil
}

// OneSerial returns the serial of the only attached device. It fails with
// *TooManyDevicesError when more than one is attached.
func OneSerial(ctx context.Context, e Enumerator, q DeviceQuery) (string, error) {
	devices, err := e.Devices(ctx, q)
	if err != nil {
		return "", err
	}
	switch len(devices) {
	case 0:
		return "", &EnumerationError{Err: ErrNoDevices}
	case 1:
		return devices[0].Serial, nil
	default:
		return "", &TooManyDevicesError{Serials: devices.Serials()}
	}
}
