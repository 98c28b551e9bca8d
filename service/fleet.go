package service

import (
	"context"

	"adbfleet/adb"
)

// Bridge lists the adb verbs a Fleet implements.
type Bridge interface {
	Execute(ctx context.Context, args ...string) (FleetResult, error)
	WaitForDevice(ctx context.Context) error
	GetSerialNo(ctx context.Context) (FleetResult, error)
	Shell(ctx context.Context, command string) (FleetResult, error)
	Push(ctx context.Context, local, remote string) (FleetResult, error)
	Pull(ctx context.Context, remote, local string) (FleetResult, error)
	Install(ctx context.Context, local string, opts InstallOptions) (FleetResult, error)
	Uninstall(ctx context.Context, pkg string, keepData bool) (FleetResult, error)
	Remount(ctx context.Context) (FleetResult, error)
	Root(ctx context.Context) (FleetResult, error)
	Reboot(ctx context.Context) (FleetResult, error)
	Version(ctx context.Context) (FleetResult, error)
	Help(ctx context.Context) (FleetResult, error)
}

// Unsupported lists adb verbs that are deliberately not implemented. Each
// returns *adb.UnsupportedOperationError.
type Unsupported interface {
	Logcat(ctx context.Context) error
	Bugreport(ctx context.Context) error
	Jdwp(ctx context.Context) error
	Forward(ctx context.Context, local, remote string) error
	Listen(ctx context.Context) error
	Connect(ctx context.Context, host string) error
	GetState(ctx context.Context) error
}

var (
	_ Bridge      = (*Fleet)(nil)
	_ Unsupported = (*Fleet)(nil)
)

// Fleet is a read-only view over a set of devices backed by a shared
// Dispatcher. An unscoped Fleet addresses whatever is attached at the time
// of each call.
type Fleet struct {
	dispatcher *Dispatcher
	serials    []string
}

// NewFleet returns a handle over serials, or over every attached device when
// none are given.
func NewFleet(d *Dispatcher, serials ...string) *Fleet {
	return &Fleet{dispatcher: d, serials: copyStrings(serials)}
}

func copyStrings(s []string) []string {
	if len(s) == 0 {
		return nil
	}
	return append([]string(nil), s...)
}

// Dispatcher returns the dispatcher shared by this handle.
func (f *Fleet) Dispatcher() *Dispatcher {
	return f.dispatcher
}

// Scoped reports whether the handle is pinned to an explicit device set.
func (f *Fleet) Scoped() bool {
	return len(f.serials) > 0
}

// Device returns a handle scoped to one device, sharing the dispatcher.
func (f *Fleet) Device(serial string) *Fleet {
	return &Fleet{dispatcher: f.dispatcher, serials: []string{serial}}
}

// Subset returns a handle scoped to serials, sharing the dispatcher. An
// empty subset addresses every attached device.
func (f *Fleet) Subset(serials ...string) *Fleet {
	return &Fleet{dispatcher: f.dispatcher, serials: copyStrings(serials)}
}

// One returns a handle on the single device this fleet addresses. It fails
// with *adb.TooManyDevicesError when there is more than one.
func (f *Fleet) One(ctx context.Context) (*Fleet, error) {
	serials, err := f.Devices(ctx)
	if err != nil {
		return nil, err
	}
	switch len(serials) {
	case 0:
		return nil, &adb.EnumerationError{Err: adb.ErrNoDevices}
	case 1:
		return f.Device(serials[0]), nil
	default:
		return nil, &adb.TooManyDevicesError{Serials: serials}
	}
}

// Devices returns the scoped serials, or a fresh enumeration when unscoped.
func (f *Fleet) Devices(ctx context.Context) ([]string, error) {
	if f.Scoped() {
		return copyStrings(f.serials), nil
	}
	devices, err := f.dispatcher.Devices(ctx, adb.DeviceQuery{})
	if err != nil {
		return nil, err
	}
	return devices.Serials(), nil
}

// Len returns the number of addressed devices; see Devices.
func (f *Fleet) Len(ctx context.Context) (int, error) {
	serials, err := f.Devices(ctx)
	if err != nil {
		return 0, err
	}
	return len(serials), nil
}

// Dispatch runs cmd against the devices of this handle.
func (f *Fleet) Dispatch(ctx context.Context, cmd adb.Command) (FleetResult, error) {
	return f.dispatcher.Dispatch(ctx, cmd, f.serials)
}

// Execute runs an arbitrary adb verb with arguments.
func (f *Fleet) Execute(ctx context.Context, args ...string) (FleetResult, error) {
	return f.Dispatch(ctx, adb.NewCommand(args...))
}

// WaitForDevice blocks until every addressed device is reachable.
func (f *Fleet) WaitForDevice(ctx context.Context) error {
	_, err := f.Execute(ctx, "wait-for-device")
	return err
}

// GetSerialNo asks each device for its serial number.
func (f *Fleet) GetSerialNo(ctx context.Context) (FleetResult, error) {
	return f.Execute(ctx, "get-serialno")
}

// Shell runs command in the device shell.
func (f *Fleet) Shell(ctx context.Context, command string) (FleetResult, error) {
	return f.Execute(ctx, "shell", command)
}

// Push copies a host file or directory to remote.
func (f *Fleet) Push(ctx context.Context, local, remote string) (FleetResult, error) {
	return f.Execute(ctx, "push", adb.LocalPath(local), adb.RemotePath(remote))
}

// Pull copies remote to the host. An empty local pulls into the working
// directory.
func (f *Fleet) Pull(ctx context.Context, remote, local string) (FleetResult, error) {
	return f.Execute(ctx, "pull", adb.RemotePath(remote), adb.LocalPath(local))
}

// InstallOptions are the flags of "adb install".
type InstallOptions struct {
	ForwardLock bool // -l
	Reinstall   bool // -r
	SDCard      bool // -s
}

func (o InstallOptions) args() []string {
	var args []string
	if o.ForwardLock {
		args = append(args, "-l")
	}
	if o.Reinstall {
		args = append(args, "-r")
	}
	if o.SDCard {
		args = append(args, "-s")
	}
	return args
}

// Install installs the package at local.
func (f *Fleet) Install(ctx context.Context, local string, opts InstallOptions) (FleetResult, error) {
	args := append([]string{"install"}, opts.args()...)
	return f.Execute(ctx, append(args, adb.LocalPath(local))...)
}

// Uninstall removes pkg, keeping its data and cache when keepData is set.
func (f *Fleet) Uninstall(ctx context.Context, pkg string, keepData bool) (FleetResult, error) {
	if keepData {
		return f.Execute(ctx, "uninstall", "-k", pkg)
	}
	return f.Execute(ctx, "uninstall", pkg)
}

// Remount remounts the system partitions read-write.
func (f *Fleet) Remount(ctx context.Context) (FleetResult, error) {
	return f.Execute(ctx, "remount")
}

// Root restarts adbd with root permissions.
func (f *Fleet) Root(ctx context.Context) (FleetResult, error) {
	return f.Execute(ctx, "root")
}

// Reboot reboots the devices.
func (f *Fleet) Reboot(ctx context.Context) (FleetResult, error) {
	return f.Execute(ctx, "reboot")
}

// Version reports the adb version as seen for each device.
func (f *Fleet) Version(ctx context.Context) (FleetResult, error) {
	return f.Execute(ctx, "version")
}

// Help returns adb's usage text for each device.
func (f *Fleet) Help(ctx context.Context) (FleetResult, error) {
	return f.Execute(ctx, "help")
}

func unsupported(verb string) error {
	return &adb.UnsupportedOperationError{Verb: verb}
}

func (f *Fleet) Logcat(context.Context) error { return unsupported("logcat") }
func (f *Fleet) Bugreport(context.Context) error { return unsupported("bugreport") }
func (f *Fleet) Jdwp(context.Context) error { return unsupported("jdwp") }
func (f *Fleet) Forward(context.Context, string, string) error { return unsupported("forward") }
func (f *Fleet) Listen(context.Context) error { return unsupported("listen") }
func (f *Fleet) Connect(context.Context, string) error { return unsupported("connect") }
func (f *Fleet) GetState(context.Context) error { return unsupported("get-state") }
