// Package shell renders device shell command lines for common filesystem and
// system operations and runs them over a fleet, optionally elevated with su.
package shell

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"

	"adbfleet/adb"
	"adbfleet/service"
)

// DateLayout is the timestamp format accepted by "date -s" on the device.
const DateLayout = "20060102.150405"

var modePattern = regexp.MustCompile(`^[0-7]{3,4}$`)

// Shell runs shell commands on every device of a fleet.
type Shell struct {
	fleet     *service.Fleet
	superuser bool
	retries   int
	logger    log.Logger
}

// Option configures a Shell.
type Option func(*Shell)

// WithSuperuser runs every command except Echo and Redirect through su.
func WithSuperuser(superuser bool) Option {
	return func(s *Shell) { s.superuser = superuser }
}

// WithSuperuserRetries re-runs elevated commands up to n more times on the
// devices where they failed. Zero disables retries.
func WithSuperuserRetries(n int) Option {
	return func(s *Shell) {
		if n < 0 {
			n = 0
		}
		s.retries = n
	}
}

func WithLogger(logger log.Logger) Option {
	return func(s *Shell) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func New(fleet *service.Fleet, opts ...Option) *Shell {
	s := &Shell{fleet: fleet, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = log.With(s.logger, "component", "shell")
	return s
}

func (s *Shell) with(fleet *service.Fleet) *Shell {
	c := *s
	c.fleet = fleet
	return &c
}

// Fleet returns the underlying fleet handle.
func (s *Shell) Fleet() *service.Fleet { return s.fleet }

// Superuser reports whether commands are elevated.
func (s *Shell) Superuser() bool { return s.superuser }

// Device returns a shell scoped to one device.
func (s *Shell) Device(serial string) *Shell { return s.with(s.fleet.Device(serial)) }

// Subset returns a shell scoped to serials.
func (s *Shell) Subset(serials ...string) *Shell { return s.with(s.fleet.Subset(serials...)) }

// Devices returns the addressed serials; see service.Fleet.Devices.
func (s *Shell) Devices(ctx context.Context) ([]string, error) { return s.fleet.Devices(ctx) }

// Len returns the number of addressed devices.
func (s *Shell) Len(ctx context.Context) (int, error) { return s.fleet.Len(ctx) }

// AsSuperuser returns a copy of s that elevates its commands.
func (s *Shell) AsSuperuser() *Shell {
	c := *s
	c.superuser = true
	return &c
}

// Execute runs command, elevated when the shell is a superuser shell.
func (s *Shell) Execute(ctx context.Context, command string) (service.FleetResult, error) {
	if s.superuser {
		return s.elevated(ctx, command)
	}
	return s.fleet.Shell(ctx, command)
}

// Su runs command through su exactly once, whatever the superuser flag.
func (s *Shell) Su(ctx context.Context, command string) (service.FleetResult, error) {
	return s.elevated(ctx, command)
}

func (s *Shell) elevated(ctx context.Context, command string) (service.FleetResult, error) {
	line := Su(command)
	result, err := s.fleet.Shell(ctx, line)
	if err != nil {
		return result, err
	}

	for attempt := 1; attempt <= s.retries; attempt++ {
		var positions []int
		var serials []string
		for i, r := range result.Results() {
			if !r.OK() {
				positions = append(positions, i)
				serials = append(serials, r.Device)
			}
		}
		if len(positions) == 0 {
			break
		}
		level.Info(s.logger).Log("msg", "retrying elevated command", "attempt", attempt, "devices", strings.Join(serials, ","))

		retry, err := s.fleet.Subset(serials...).Shell(ctx, line)
		if err != nil {
			return result, err
		}
		result = result.Merge(positions, retry)
	}
	return result, nil
}

// Ls lists remote as a directory.
func (s *Shell) Ls(ctx context.Context, remote string, long bool) (service.FleetResult, error) {
	dir := strings.TrimRight(adb.RemotePath(remote), "/") + "/"
	if long {
		return s.Execute(ctx, "ls -l "+Quote(dir))
	}
	return s.Execute(ctx, "ls "+Quote(dir))
}

func (s *Shell) Mkdir(ctx context.Context, remote string) (service.FleetResult, error) {
	return s.Execute(ctx, "mkdir "+quotePath(remote))
}

// Chmod sets octal permissions such as "755" on remote.
func (s *Shell) Chmod(ctx context.Context, remote, mode string, recursive bool) (service.FleetResult, error) {
	if !modePattern.MatchString(mode) {
		return service.FleetResult{}, fmt.Errorf("chmod: invalid mode %q", mode)
	}
	args := []string{"chmod"}
	if recursive {
		args = append(args, "-R")
	}
	args = append(args, mode, quotePath(remote))
	return s.Execute(ctx, strings.Join(args, " "))
}

// CopyOptions are the flags of cp.
type CopyOptions struct {
	Recursive bool
	Force     bool
}

func (s *Shell) Cp(ctx context.Context, origin, destination string, opts CopyOptions) (service.FleetResult, error) {
	args := []string{"cp"}
	if opts.Recursive {
		args = append(args, "-r")
	}
	if opts.Force {
		args = append(args, "-f")
	}
	args = append(args, quotePath(origin), quotePath(destination))
	return s.Execute(ctx, strings.Join(args, " "))
}

func (s *Shell) Mv(ctx context.Context, origin, destination string) (service.FleetResult, error) {
	return s.Execute(ctx, "mv "+quotePath(origin)+" "+quotePath(destination))
}

// RemoveOptions are the flags of rm.
type RemoveOptions struct {
	Recursive bool
	Force     bool
}

func (s *Shell) Rm(ctx context.Context, remote string, opts RemoveOptions) (service.FleetResult, error) {
	args := []string{"rm"}
	if opts.Recursive {
		args = append(args, "-r")
	}
	if opts.Force {
		args = append(args, "-f")
	}
	args = append(args, quotePath(remote))
	return s.Execute(ctx, strings.Join(args, " "))
}

// Mount mounts remote, or remounts it read-write when rwRemount is set.
func (s *Shell) Mount(ctx context.Context, remote string, rwRemount bool) (service.FleetResult, error) {
	if rwRemount {
		return s.Execute(ctx, "mount -o rw,remount "+quotePath(remote))
	}
	return s.Execute(ctx, "mount "+quotePath(remote))
}

// Echo prints content on each device. It never runs through su.
func (s *Shell) Echo(ctx context.Context, content string) (service.FleetResult, error) {
	return s.fleet.Shell(ctx, "echo "+Quote(escapeContent(content)))
}

// Redirect writes content to remote, appending when appendTo is set. Like
// Echo it never runs through su.
func (s *Shell) Redirect(ctx context.Context, content, remote string, appendTo bool) (service.FleetResult, error) {
	op := ">"
	if appendTo {
		op = ">>"
	}
	return s.fleet.Shell(ctx, "echo "+Quote(escapeContent(content))+" "+op+" "+quotePath(remote))
}

func (s *Shell) Cat(ctx context.Context, remote string) (service.FleetResult, error) {
	return s.Execute(ctx, "cat "+quotePath(remote))
}

func (s *Shell) Getprop(ctx context.Context, prop string) (service.FleetResult, error) {
	return s.Execute(ctx, "getprop "+prop)
}

func (s *Shell) Setprop(ctx context.Context, prop, value string) (service.FleetResult, error) {
	return s.Execute(ctx, "setprop "+prop+" "+Quote(value))
}

// Date returns the device date.
func (s *Shell) Date(ctx context.Context) (service.FleetResult, error) {
	return s.Execute(ctx, "date")
}

// SetDate sets the device clock to t, in the device's local time.
func (s *Shell) SetDate(ctx context.Context, t time.Time) (service.FleetResult, error) {
	return s.Execute(ctx, "date -s "+t.Format(DateLayout))
}

// Setenforce switches SELinux to permissive (0) or enforcing (1).
func (s *Shell) Setenforce(ctx context.Context, permissive bool) (service.FleetResult, error) {
	if permissive {
		return s.Execute(ctx, "setenforce 0")
	}
	return s.Execute(ctx, "setenforce 1")
}

// Stop stops the Android runtime.
func (s *Shell) Stop(ctx context.Context) (service.FleetResult, error) {
	return s.Execute(ctx, "stop")
}

// Start starts the Android runtime.
func (s *Shell) Start(ctx context.Context) (service.FleetResult, error) {
	return s.Execute(ctx, "start")
}

func (s *Shell) Sleep(ctx context.Context, seconds int) (service.FleetResult, error) {
	return s.Execute(ctx, "sleep "+strconv.Itoa(seconds))
}
